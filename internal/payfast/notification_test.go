package payfast

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseNotification_JSON(t *testing.T) {
	body := []byte(`{
		"m_payment_id": "01AB",
		"amount_gross": 200.50,
		"pf_payment_id": 1089250,
		"test": true,
		"custom_str2": null,
		"items": [1, "two"],
		"meta": {"z": 1, "a": "<b>"},
		"signature": "abc"
	}`)

	n, err := ParseNotification("application/json", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"m_payment_id":  "01AB",
		"amount_gross":  "200.50",
		"pf_payment_id": "1089250",
		"test":          "true",
		"custom_str2":   "",
		"items":         `[1,"two"]`,
		"meta":          `{"a":"<b>","z":1}`,
		"signature":     "abc",
	}
	for k, v := range want {
		if n.Fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, n.Fields[k], v)
		}
	}

	if n.PaymentID() != "01AB" || n.Signature() != "abc" {
		t.Errorf("unexpected accessors: %s %s", n.PaymentID(), n.Signature())
	}

	if !json.Valid(n.Raw) {
		t.Errorf("raw capture is not valid JSON: %s", n.Raw)
	}
}

func TestParseNotification_Form(t *testing.T) {
	body := []byte("m_payment_id=01AB&item_name=Pickup+%231&email_address=a%40b.co&signature=abc")

	n, err := ParseNotification("application/x-www-form-urlencoded; charset=utf-8", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n.Fields["item_name"] != "Pickup #1" {
		t.Errorf("unexpected item_name %q", n.Fields["item_name"])
	}
	if n.Email() != "a@b.co" {
		t.Errorf("unexpected email %q", n.Email())
	}

	var raw map[string]string
	if err := json.Unmarshal(n.Raw, &raw); err != nil {
		t.Fatalf("raw capture is not a JSON object: %v", err)
	}
	if raw["m_payment_id"] != "01AB" {
		t.Errorf("raw capture lost fields: %v", raw)
	}
}

func TestParseNotification_Errors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"empty json", "application/json", "  "},
		{"empty form", "application/x-www-form-urlencoded", ""},
		{"not an object", "application/json", `[1,2]`},
		{"null", "application/json", `null`},
		{"broken json", "", `{"a":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseNotification(tt.contentType, []byte(tt.body)); err == nil {
				t.Error("expected an error")
			}
		})
	}

	if _, err := ParseNotification("application/json", nil); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("expected ErrEmptyBody, got %v", err)
	}
}

func TestParseNotification_EmptyObject(t *testing.T) {
	n, err := ParseNotification("application/json", []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.Fields) != 0 {
		t.Errorf("expected no fields, got %v", n.Fields)
	}
	if Sign(n.Fields, "") != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Error("expected digest of the empty string")
	}
}

func TestParseNotification_TrailingBytes(t *testing.T) {
	for _, body := range []string{
		`{"m_payment_id":"1","signature":"bad"} x`,
		`{"m_payment_id":"1","signature":"bad"}{}`,
	} {
		n, err := ParseNotification("application/json", []byte(body))
		if err != nil {
			t.Fatalf("body %q: unexpected error: %v", body, err)
		}
		if n.PaymentID() != "1" {
			t.Errorf("body %q: unexpected payment id %q", body, n.PaymentID())
		}
		if string(n.Raw) != `{"m_payment_id":"1","signature":"bad"}` {
			t.Errorf("body %q: raw capture should hold only the object, got %s", body, n.Raw)
		}
	}
}

func TestNulFreeJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":"x\u0000y"}`, `{"a":"x\ufffdy"}`},
		{`{"a":"\\u0000"}`, `{"a":"\\u0000"}`},
		{`{"a":"\\\u0000"}`, `{"a":"\\\ufffd"}`},
		{`{"a":"plain"}`, `{"a":"plain"}`},
	}

	for _, tt := range tests {
		if got := string(nulFreeJSON(json.RawMessage(tt.in))); got != tt.want {
			t.Errorf("nulFreeJSON(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if got := stripNUL("PU\x00-1"); got != "PU�-1" {
		t.Errorf("stripNUL left %q", got)
	}
}

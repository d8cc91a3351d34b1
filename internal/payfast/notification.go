package payfast

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
)

// Notification is a parsed ITN body: the flattened fields used for
// signing and the raw JSON kept for audit.
type Notification struct {
	Fields map[string]string
	Raw    json.RawMessage
}

func (n *Notification) PaymentID() string { return n.Fields[PaymentIDField] }
func (n *Notification) Signature() string { return n.Fields[SignatureField] }
func (n *Notification) Email() string     { return n.Fields[EmailField] }

var ErrEmptyBody = errors.New("empty notification body")

// ParseNotification reads a JSON object, or a form-encoded body when the
// content type says so.
func ParseNotification(contentType string, body []byte) (*Notification, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/x-www-form-urlencoded" {
		return parseForm(body)
	}
	return parseJSON(body)
}

func parseJSON(body []byte) (*Notification, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrEmptyBody
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	if values == nil {
		return nil, errors.New("notification is not a JSON object")
	}

	fields := make(map[string]string, len(values))
	for k, v := range values {
		s, err := Stringify(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		fields[k] = s
	}

	// Anything after the first object is not part of the notification.
	raw, err := compact(trimmed[:dec.InputOffset()])
	if err != nil {
		return nil, err
	}

	return &Notification{Fields: fields, Raw: raw}, nil
}

func parseForm(body []byte) (*Notification, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("decode notification form: %w", err)
	}

	fields := make(map[string]string, len(values))
	for k, v := range values {
		fields[k] = strings.Join(v, ",")
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	return &Notification{Fields: fields, Raw: raw}, nil
}

// Stringify renders a decoded JSON value as the text that gets signed.
// Numbers keep their literal form, null is empty, and arrays or objects
// become compact JSON with sorted keys.
func Stringify(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return "", err
		}
		return strings.TrimSuffix(buf.String(), "\n"), nil
	}
}

func compact(data []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// stripNUL replaces NUL with U+FFFD. Postgres rejects NUL in text and
// JSONB, and a garbled notification must still be recorded.
func stripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "\uFFFD")
}

// nulFreeJSON rewrites every \u0000 escape in compact JSON as \ufffd. An
// escaped backslash is copied as a pair, so "\\u0000" is left alone.
func nulFreeJSON(data json.RawMessage) json.RawMessage {
	if !bytes.Contains(data, []byte(`\u0000`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' || i+1 >= len(data) {
			out = append(out, data[i])
			continue
		}
		if bytes.HasPrefix(data[i:], []byte(`\u0000`)) {
			out = append(out, `\ufffd`...)
			i += len(`\u0000`) - 1
			continue
		}
		out = append(out, data[i], data[i+1])
		i++
	}
	return out
}

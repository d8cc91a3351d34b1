package payfast

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/joao-fontenele/ewaste-funnel/internal/database"
	"github.com/joao-fontenele/ewaste-funnel/internal/domain"
)

type fakeOrders struct {
	created []*domain.Order
	err     error
	panic   bool
}

func (f *fakeOrders) Create(_ context.Context, order *domain.Order) error {
	if f.panic {
		panic("driver exploded")
	}
	if f.err != nil {
		return f.err
	}
	order.ID = "order-1"
	f.created = append(f.created, order)
	return nil
}

type fakePublisher struct {
	events []any
}

func (f *fakePublisher) Publish(_ context.Context, _ string, event any) error {
	f.events = append(f.events, event)
	return nil
}

const testPassphrase = "jt7NOE43FZPn"

func newTestHandler(orders *fakeOrders, publisher *fakePublisher) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if publisher == nil {
		return NewHandler(orders, nil, testPassphrase, nil, logger)
	}
	return NewHandler(orders, publisher, testPassphrase, nil, logger)
}

func signedBody(t *testing.T, fields map[string]string) string {
	t.Helper()
	payload := map[string]string{}
	for k, v := range fields {
		payload[k] = v
	}
	payload["signature"] = Sign(fields, testPassphrase)
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func postITN(h *Handler, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payfast/itn", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.HandleITN(rec, req)
	return rec
}

func assertAcknowledged(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp["ok"] {
		t.Errorf("expected ok=true, got %s", rec.Body.String())
	}
}

func TestHandler_HandleITN(t *testing.T) {
	fields := map[string]string{
		"m_payment_id":   "PU-1001",
		"pf_payment_id":  "1089250",
		"payment_status": "COMPLETE",
		"amount_gross":   "350.00",
		"item_name":      "Bulk pickup & disposal",
		"email_address":  "client@example.com",
	}

	t.Run("records a verified payment and publishes an event", func(t *testing.T) {
		orders := &fakeOrders{}
		publisher := &fakePublisher{}
		h := newTestHandler(orders, publisher)

		rec := postITN(h, "application/json", signedBody(t, fields))

		assertAcknowledged(t, rec)
		if len(orders.created) != 1 {
			t.Fatalf("expected 1 order, got %d", len(orders.created))
		}
		order := orders.created[0]
		if order.Kind != domain.OrderKindPayment {
			t.Errorf("expected kind payment, got %s", order.Kind)
		}
		if order.Status != domain.OrderStatusVerified {
			t.Errorf("expected status verified, got %s", order.Status)
		}
		if order.PaymentID != "PU-1001" {
			t.Errorf("unexpected payment id %s", order.PaymentID)
		}
		if order.Signature != Sign(fields, testPassphrase) {
			t.Errorf("expected received signature to be stored, got %s", order.Signature)
		}
		if order.Email != "client@example.com" {
			t.Errorf("unexpected email %s", order.Email)
		}

		var raw map[string]string
		if err := json.Unmarshal(order.Payload.Payment, &raw); err != nil {
			t.Fatalf("payload is not the raw body: %v", err)
		}
		if raw["item_name"] != "Bulk pickup & disposal" || raw["signature"] == "" {
			t.Errorf("payload not preserved verbatim: %v", raw)
		}

		if len(publisher.events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(publisher.events))
		}
		event := publisher.events[0].(domain.OrderReceivedEvent)
		if event.OrderID != "order-1" || event.PaymentID != "PU-1001" {
			t.Errorf("unexpected event %+v", event)
		}
	})

	t.Run("wrong signature is recorded as invalid", func(t *testing.T) {
		orders := &fakeOrders{}
		publisher := &fakePublisher{}
		h := newTestHandler(orders, publisher)

		body := `{"m_payment_id":"PU-1002","amount_gross":"10.00","signature":"0123456789abcdef0123456789abcdef"}`
		rec := postITN(h, "application/json", body)

		assertAcknowledged(t, rec)
		if len(orders.created) != 1 {
			t.Fatalf("expected 1 order, got %d", len(orders.created))
		}
		if orders.created[0].Status != domain.OrderStatusInvalid {
			t.Errorf("expected status invalid, got %s", orders.created[0].Status)
		}
		if len(publisher.events) != 0 {
			t.Errorf("expected no event for an invalid payment, got %d", len(publisher.events))
		}
	})

	t.Run("missing signature is recorded as invalid", func(t *testing.T) {
		orders := &fakeOrders{}
		h := newTestHandler(orders, nil)

		rec := postITN(h, "application/json", `{"m_payment_id":"PU-1003"}`)

		assertAcknowledged(t, rec)
		if len(orders.created) != 1 || orders.created[0].Status != domain.OrderStatusInvalid {
			t.Fatalf("expected one invalid order, got %+v", orders.created)
		}
		if orders.created[0].Signature != "" {
			t.Errorf("expected empty signature, got %s", orders.created[0].Signature)
		}
	})

	t.Run("form encoded notifications verify", func(t *testing.T) {
		orders := &fakeOrders{}
		h := newTestHandler(orders, nil)

		form := url.Values{}
		for k, v := range fields {
			form.Set(k, v)
		}
		form.Set("signature", Sign(fields, testPassphrase))

		rec := postITN(h, "application/x-www-form-urlencoded", form.Encode())

		assertAcknowledged(t, rec)
		if len(orders.created) != 1 || orders.created[0].Status != domain.OrderStatusVerified {
			t.Fatalf("expected one verified order, got %+v", orders.created)
		}
	})

	t.Run("database failure still answers 200", func(t *testing.T) {
		orders := &fakeOrders{err: &database.ConnectionError{Err: errors.New("connection refused")}}
		h := newTestHandler(orders, nil)

		rec := postITN(h, "application/json", signedBody(t, fields))

		assertAcknowledged(t, rec)
	})

	t.Run("panic still answers 200", func(t *testing.T) {
		orders := &fakeOrders{panic: true}
		h := newTestHandler(orders, nil)

		rec := postITN(h, "application/json", signedBody(t, fields))

		assertAcknowledged(t, rec)
	})

	t.Run("oversized and garbled values are still recorded", func(t *testing.T) {
		orders := &fakeOrders{}
		h := newTestHandler(orders, nil)

		body := `{"m_payment_id":"PU-\u00001004","email_address":"a\u0000@example.com","signature":"` + strings.Repeat("f", 200) + `"}`
		rec := postITN(h, "application/json", body)

		assertAcknowledged(t, rec)
		if len(orders.created) != 1 || orders.created[0].Status != domain.OrderStatusInvalid {
			t.Fatalf("expected one invalid order, got %+v", orders.created)
		}
		order := orders.created[0]
		if len(order.Signature) != 200 {
			t.Errorf("expected the full signature to be kept, got %d characters", len(order.Signature))
		}
		if strings.Contains(order.PaymentID+order.Email, "\x00") {
			t.Errorf("NUL reached a text column: %q %q", order.PaymentID, order.Email)
		}
		if strings.Contains(string(order.Payload.Payment), `\u0000`) {
			t.Errorf("NUL escape reached the JSONB payload: %s", order.Payload.Payment)
		}
	})

	t.Run("trailing bytes after the object still record an order", func(t *testing.T) {
		orders := &fakeOrders{}
		h := newTestHandler(orders, nil)

		rec := postITN(h, "application/json", `{"m_payment_id":"PU-1005","signature":"bad"} x`)

		assertAcknowledged(t, rec)
		if len(orders.created) != 1 || orders.created[0].PaymentID != "PU-1005" {
			t.Fatalf("expected one order for PU-1005, got %+v", orders.created)
		}
	})

	t.Run("unparseable body is acknowledged without an order", func(t *testing.T) {
		orders := &fakeOrders{}
		h := newTestHandler(orders, nil)

		rec := postITN(h, "application/json", `{"m_payment_id":`)

		assertAcknowledged(t, rec)
		if len(orders.created) != 0 {
			t.Errorf("expected no order, got %d", len(orders.created))
		}
	})
}

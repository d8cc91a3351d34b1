package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/ewaste-funnel/internal/domain"
	"github.com/joao-fontenele/ewaste-funnel/internal/messaging"
)

// NotificationHandler turns order received events into emails: one to the
// sales inbox for every order, and an acknowledgement to the customer for
// pickup and quote requests. Only the team email is retried; the
// acknowledgement is best effort.
type NotificationHandler struct {
	emailServiceURL string
	notifyEmail     string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL, notifyEmail string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: strings.TrimRight(emailServiceURL, "/"),
		notifyEmail:     notifyEmail,
		httpClient:      client,
		logger:          logger,
	}
}

type emailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// permanentError marks an email the service will never accept.
type permanentError struct {
	status int
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("email service rejected message with status %d", e.status)
}

func (e *permanentError) Is(target error) bool {
	return target == messaging.ErrSkip
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderReceivedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order received event: %w: %w", messaging.ErrSkip, err)
	}
	if event.OrderID == "" {
		return fmt.Errorf("order received event without order id: %w", messaging.ErrSkip)
	}

	h.logger.Info("processing order received event", "order_id", event.OrderID, "kind", event.Kind)

	if err := h.sendEmail(ctx, teamEmail(h.notifyEmail, event)); err != nil {
		h.logger.Error("failed to send team notification", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send team notification: %w", err)
	}

	// The team email is already out, so a failed acknowledgement is not
	// retried: redelivering the event would send the team email again.
	if msg, ok := customerEmail(event); ok {
		if err := h.sendEmail(ctx, msg); err != nil {
			h.logger.Error("failed to send customer acknowledgement", "error", err, "order_id", event.OrderID)
		}
	}

	h.logger.Info("order notifications sent", "order_id", event.OrderID)
	return nil
}

func teamEmail(to string, event domain.OrderReceivedEvent) emailMessage {
	var subject string
	switch event.Kind {
	case domain.OrderKindPickup:
		subject = "New pickup request"
	case domain.OrderKindQuote:
		subject = "New quote request"
	case domain.OrderKindPayment:
		subject = "Payment received"
	default:
		subject = "New order"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Order: %s\nKind: %s\nStatus: %s\n", event.OrderID, event.Kind, event.Status)
	if event.Name != "" {
		fmt.Fprintf(&b, "Contact: %s\n", event.Name)
	}
	if event.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", event.Email)
	}
	if event.PaymentID != "" {
		fmt.Fprintf(&b, "Payment: %s\n", event.PaymentID)
	}
	fmt.Fprintf(&b, "Received: %s\n", event.Timestamp.Format("2006-01-02 15:04 MST"))

	return emailMessage{
		To:      to,
		Subject: subject + ": " + event.OrderID,
		Body:    b.String(),
	}
}

func customerEmail(event domain.OrderReceivedEvent) (emailMessage, bool) {
	if event.Email == "" {
		return emailMessage{}, false
	}

	greeting := "Hi"
	if event.Name != "" {
		greeting += " " + event.Name
	}

	switch event.Kind {
	case domain.OrderKindPickup:
		return emailMessage{
			To:      event.Email,
			Subject: "We received your pickup request",
			Body:    greeting + ",\n\nThanks for booking an e-waste pickup. We will be in touch to confirm a collection date.\n\nReference: " + event.OrderID,
		}, true
	case domain.OrderKindQuote:
		return emailMessage{
			To:      event.Email,
			Subject: "We received your quote request",
			Body:    greeting + ",\n\nThanks for your enquiry. Our team will send a quote shortly.\n\nReference: " + event.OrderID,
		}, true
	}
	return emailMessage{}, false
}

func (h *NotificationHandler) sendEmail(ctx context.Context, msg emailMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &permanentError{status: resp.StatusCode}
	default:
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}
}

package payfast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/ewaste-funnel/internal/domain"
	"github.com/joao-fontenele/ewaste-funnel/internal/telemetry"
)

const maxBodyBytes = 1 << 20

type OrderCreator interface {
	Create(ctx context.Context, order *domain.Order) error
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	orders      OrderCreator
	publisher   EventPublisher
	passphrase  string
	instruments *telemetry.Instruments
	logger      *slog.Logger
	now         func() time.Time
}

func NewHandler(orders OrderCreator, publisher EventPublisher, passphrase string, instruments *telemetry.Instruments, logger *slog.Logger) *Handler {
	return &Handler{
		orders:      orders,
		publisher:   publisher,
		passphrase:  passphrase,
		instruments: instruments,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HandleITN always answers 200. PayFast redelivers any notification that
// gets another status, so every failure below is logged and swallowed here
// and nowhere else.
func (h *Handler) HandleITN(w http.ResponseWriter, r *http.Request) {
	if err := h.process(r); err != nil {
		h.instruments.NotificationReceived(r.Context(), telemetry.OutcomeError)
		h.logger.Error("failed to process payment notification", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]bool{"ok": true}); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) process(r *http.Request) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while processing notification: %v", rec)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read notification body: %w", err)
	}

	notification, err := ParseNotification(r.Header.Get("Content-Type"), body)
	if err != nil {
		return err
	}

	status := domain.OrderStatusInvalid
	if Verify(notification.Fields, h.passphrase) {
		status = domain.OrderStatusVerified
	}

	now := h.now()
	order := &domain.Order{
		Kind:      domain.OrderKindPayment,
		Email:     stripNUL(notification.Email()),
		Status:    status,
		Payload:   domain.OrderPayload{Payment: nulFreeJSON(notification.Raw)},
		PaymentID: stripNUL(notification.PaymentID()),
		Signature: stripNUL(notification.Signature()),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.orders.Create(r.Context(), order); err != nil {
		return fmt.Errorf("record payment %q: %w", order.PaymentID, err)
	}

	h.instruments.NotificationReceived(r.Context(), string(status))
	h.instruments.OrderCreated(r.Context(), string(order.Kind))

	if status == domain.OrderStatusInvalid {
		h.logger.Warn("payment notification signature mismatch", "order_id", order.ID, "payment_id", order.PaymentID)
		return nil
	}

	if h.publisher != nil {
		if err := h.publisher.Publish(r.Context(), order.ID, domain.NewOrderReceivedEvent(order)); err != nil {
			h.logger.Error("failed to publish order received event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("payment notification verified", "order_id", order.ID, "payment_id", order.PaymentID)
	return nil
}

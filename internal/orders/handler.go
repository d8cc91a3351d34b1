package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/ewaste-funnel/internal/domain"
	"github.com/joao-fontenele/ewaste-funnel/internal/telemetry"
	"github.com/joao-fontenele/ewaste-funnel/internal/validation"
)

const maxBodyBytes = 1 << 20

type Store interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	repo        Store
	publisher   EventPublisher
	instruments *telemetry.Instruments
	logger      *slog.Logger
}

// NewHandler wires the intake and admin order endpoints. publisher may be
// nil when no broker is configured.
func NewHandler(repo Store, publisher EventPublisher, instruments *telemetry.Instruments, logger *slog.Logger) *Handler {
	return &Handler{
		repo:        repo,
		publisher:   publisher,
		instruments: instruments,
		logger:      logger,
	}
}

func (h *Handler) HandlePickup(w http.ResponseWriter, r *http.Request) {
	var req domain.PickupRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	h.intake(w, r, &domain.Order{
		Kind:    domain.OrderKindPickup,
		Email:   req.Email,
		Payload: domain.OrderPayload{Pickup: &req},
	})
}

func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	var req domain.QuoteRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	h.intake(w, r, &domain.Order{
		Kind:    domain.OrderKindQuote,
		Email:   req.Email,
		Payload: domain.OrderPayload{Quote: &req},
	})
}

type intakeResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

func (h *Handler) intake(w http.ResponseWriter, r *http.Request, order *domain.Order) {
	now := time.Now().UTC()
	order.Status = domain.OrderStatusNew
	order.CreatedAt = now
	order.UpdatedAt = now

	if err := h.repo.Create(r.Context(), order); err != nil {
		h.logger.Error("failed to create order", "error", err, "kind", order.Kind)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.instruments.OrderCreated(r.Context(), string(order.Kind))

	if h.publisher != nil {
		if err := h.publisher.Publish(r.Context(), order.ID, domain.NewOrderReceivedEvent(order)); err != nil {
			h.logger.Error("failed to publish order received event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order created", "order_id", order.ID, "kind", order.Kind)
	h.writeJSON(w, http.StatusOK, intakeResponse{OK: true, ID: order.ID})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		h.writeErr(w, err)
		return
	}

	orders, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status" validate:"required,oneof=new verified invalid processing done"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	id, ok := orderID(r)
	if !ok {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	order, err := h.repo.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

// orderID returns the path id when it can name a stored order at all.
func orderID(r *http.Request) (string, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func parseFilter(q url.Values) (domain.OrderFilter, error) {
	var filter domain.OrderFilter
	var violations []validation.Violation

	if v := q.Get("kind"); v != "" {
		filter.Kind = domain.OrderKind(v)
		if !filter.Kind.Valid() {
			violations = append(violations, validation.Violation{Path: "kind", Message: "must be one of: pickup, quote, payment"})
		}
	}

	if v := q.Get("status"); v != "" {
		filter.Status = domain.OrderStatus(v)
		if !filter.Status.Valid() {
			violations = append(violations, validation.Violation{Path: "status", Message: "must be one of: new, verified, invalid, processing, done"})
		}
	}

	var err error
	if filter.From, err = parseBound(q.Get("from"), false); err != nil {
		violations = append(violations, validation.Violation{Path: "from", Message: "must be an RFC 3339 timestamp or YYYY-MM-DD date"})
	}
	if filter.To, err = parseBound(q.Get("to"), true); err != nil {
		violations = append(violations, validation.Violation{Path: "to", Message: "must be an RFC 3339 timestamp or YYYY-MM-DD date"})
	}

	if len(violations) > 0 {
		return filter, &validation.ValidationError{Violations: violations}
	}
	return filter, nil
}

// parseBound accepts RFC 3339 or a bare date. A bare date used as an upper
// bound covers the whole day.
func parseBound(value string, upper bool) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}

	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, err
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := validation.Struct(dst); err != nil {
		h.writeErr(w, err)
		return false
	}
	return true
}

type errorResponse struct {
	OK      bool                   `json:"ok"`
	Error   string                 `json:"error"`
	Details []validation.Violation `json:"details,omitempty"`
}

// writeErr maps an error onto the response taxonomy. Anything unrecognised
// is logged in full and reported as a generic 500.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		h.logger.Debug("request failed validation", "error", err)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: verr.Violations})
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "order not found")
	default:
		h.logger.Error("order request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

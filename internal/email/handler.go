package email

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/joao-fontenele/ewaste-funnel/internal/validation"
)

const maxBodyBytes = 256 << 10

// Handler accepts outbound mail from the notification worker. Delivery is
// logged rather than handed to an SMTP relay.
type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

type sendRequest struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=255"`
	Body    string `json:"body"`
}

type sendResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"messageId"`
}

type errorResponse struct {
	Error   string                 `json:"error"`
	Details []validation.Violation `json:"details,omitempty"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := validation.Struct(&req); err != nil {
		resp := errorResponse{Error: "validation failed"}
		var verr *validation.ValidationError
		if errors.As(err, &verr) {
			resp.Details = verr.Violations
		}
		h.writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	messageID := uuid.NewString()
	h.logger.Info("email sent", "message_id", messageID, "to", req.To, "subject", req.Subject, "body_bytes", len(req.Body))

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent", MessageID: messageID})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

package directory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/ewaste-funnel/internal/domain"
	"github.com/joao-fontenele/ewaste-funnel/internal/validation"
)

const maxBodyBytes = 1 << 20

type Store interface {
	Create(ctx context.Context, entry *domain.DirectoryEntry) error
	ListVerified(ctx context.Context, filter domain.DirectoryFilter) ([]domain.DirectoryEntry, error)
}

type Handler struct {
	repo   Store
	logger *slog.Logger
}

func NewHandler(repo Store, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

type createEntryRequest struct {
	Name     string   `json:"name" validate:"required,min=1"`
	City     string   `json:"city" validate:"required,min=1"`
	Services []string `json:"services" validate:"required,min=1,dive,required"`
	Phone    string   `json:"phone"`
	Email    string   `json:"email" validate:"omitempty,email"`
	Website  string   `json:"website" validate:"omitempty,url"`
	Address  string   `json:"address"`
	Verified bool     `json:"verified"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.DirectoryFilter{
		City:    strings.TrimSpace(q.Get("city")),
		Service: strings.TrimSpace(q.Get("service")),
	}

	entries, err := h.repo.ListVerified(r.Context(), filter)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validation.Struct(&req); err != nil {
		h.writeErr(w, err)
		return
	}

	entry := &domain.DirectoryEntry{
		Name:     req.Name,
		City:     req.City,
		Services: req.Services,
		Phone:    req.Phone,
		Email:    req.Email,
		Website:  req.Website,
		Address:  req.Address,
		Verified: req.Verified,
	}

	if err := h.repo.Create(r.Context(), entry); err != nil {
		h.writeErr(w, err)
		return
	}

	h.logger.Info("directory entry created", "entry_id", entry.ID, "city", entry.City)
	h.writeJSON(w, http.StatusCreated, entry)
}

type errorResponse struct {
	OK      bool                   `json:"ok"`
	Error   string                 `json:"error"`
	Details []validation.Violation `json:"details,omitempty"`
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		h.logger.Debug("request failed validation", "error", err)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: verr.Violations})
		return
	}

	h.logger.Error("directory request failed", "error", err)
	h.writeError(w, http.StatusInternalServerError, "internal server error")
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

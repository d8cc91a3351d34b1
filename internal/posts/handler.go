package posts

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
	Create(ctx context.Context, post *domain.Post) error
	ListPublished(ctx context.Context) ([]domain.Post, error)
}

type Handler struct {
	repo   Store
	logger *slog.Logger
}

func NewHandler(repo Store, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

type createPostRequest struct {
	Title     string   `json:"title" validate:"required,min=1"`
	Body      string   `json:"body" validate:"required,min=1"`
	Author    string   `json:"author"`
	Tags      []string `json:"tags"`
	Published bool     `json:"published"`
}

// HandleList serves the public blog listing.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.repo.ListPublished(r.Context())
	if err != nil {
		h.writeErr(w, err)
		return
	}

	public := make([]domain.PublicPost, len(posts))
	for i, p := range posts {
		public[i] = p.Public()
	}

	h.writeJSON(w, http.StatusOK, public)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validation.Struct(&req); err != nil {
		h.writeErr(w, err)
		return
	}

	slug := Slugify(req.Title)
	if slug == "" {
		h.writeErr(w, &validation.ValidationError{Violations: []validation.Violation{
			{Path: "title", Message: "must contain at least one letter or digit"},
		}})
		return
	}

	post := &domain.Post{
		Title:     req.Title,
		Body:      req.Body,
		Slug:      slug,
		Author:    strings.TrimSpace(req.Author),
		Tags:      cleanTags(req.Tags),
		Published: req.Published,
	}

	if err := h.repo.Create(r.Context(), post); err != nil {
		h.writeErr(w, err)
		return
	}

	h.logger.Info("post created", "post_id", post.ID, "slug", post.Slug)
	h.writeJSON(w, http.StatusCreated, post)
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

type errorResponse struct {
	OK      bool                   `json:"ok"`
	Error   string                 `json:"error"`
	Details []validation.Violation `json:"details,omitempty"`
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		h.logger.Debug("request failed validation", "error", err)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: verr.Violations})
	case errors.Is(err, domain.ErrConflict):
		h.writeError(w, http.StatusConflict, "a post with this slug already exists")
	default:
		h.logger.Error("post request failed", "error", err)
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

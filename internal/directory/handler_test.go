package directory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/ewaste-funnel/internal/domain"
)

type mockStore struct {
	CreateFunc       func(ctx context.Context, entry *domain.DirectoryEntry) error
	ListVerifiedFunc func(ctx context.Context, filter domain.DirectoryFilter) ([]domain.DirectoryEntry, error)
}

func (m *mockStore) Create(ctx context.Context, entry *domain.DirectoryEntry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	entry.ID = "entry-1"
	return nil
}

func (m *mockStore) ListVerified(ctx context.Context, filter domain.DirectoryFilter) ([]domain.DirectoryEntry, error) {
	if m.ListVerifiedFunc != nil {
		return m.ListVerifiedFunc(ctx, filter)
	}
	return []domain.DirectoryEntry{}, nil
}

func newTestHandler(store Store) *Handler {
	return NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandler_HandleList(t *testing.T) {
	var got domain.DirectoryFilter
	store := &mockStore{ListVerifiedFunc: func(_ context.Context, filter domain.DirectoryFilter) ([]domain.DirectoryEntry, error) {
		got = filter
		return []domain.DirectoryEntry{{ID: "entry-1", Name: "Green Cycle", City: "Durban", Services: []string{"batteries"}, Verified: true}}, nil
	}}

	req := httptest.NewRequest(http.MethodGet, "/directory?city=+durban+&service=batteries", nil)
	rec := httptest.NewRecorder()
	newTestHandler(store).HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got.City != "durban" || got.Service != "batteries" {
		t.Errorf("unexpected filter %+v", got)
	}

	var entries []domain.DirectoryEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("failed to decode entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Green Cycle" {
		t.Errorf("unexpected entries %+v", entries)
	}
}

func TestHandler_HandleCreate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		storeErr   error
		wantStatus int
		wantPaths  []string
	}{
		{
			name:       "valid entry",
			body:       `{"name":"Green Cycle","city":"Durban","services":["batteries","laptops"],"website":"https://greencycle.example"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "no services",
			body:       `{"name":"Green Cycle","city":"Durban","services":[]}`,
			wantStatus: http.StatusBadRequest,
			wantPaths:  []string{"services"},
		},
		{
			name:       "bad contact details",
			body:       `{"name":"Green Cycle","city":"Durban","services":["tvs"],"email":"nope","website":"greencycle"}`,
			wantStatus: http.StatusBadRequest,
			wantPaths:  []string{"email", "website"},
		},
		{
			name:       "malformed body",
			body:       `[`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "store failure",
			body:       `{"name":"Green Cycle","city":"Durban","services":["tvs"]}`,
			storeErr:   errors.New("pool exhausted"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{CreateFunc: func(_ context.Context, entry *domain.DirectoryEntry) error {
				if tt.storeErr != nil {
					return tt.storeErr
				}
				entry.ID = "entry-1"
				return nil
			}}

			req := httptest.NewRequest(http.MethodPost, "/directory", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			newTestHandler(store).HandleCreate(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if len(tt.wantPaths) == 0 {
				return
			}

			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode error: %v", err)
			}
			if len(resp.Details) != len(tt.wantPaths) {
				t.Fatalf("expected %d violations, got %+v", len(tt.wantPaths), resp.Details)
			}
			for i, path := range tt.wantPaths {
				if resp.Details[i].Path != path {
					t.Errorf("violation %d: expected path %q, got %q", i, path, resp.Details[i].Path)
				}
			}
		})
	}
}

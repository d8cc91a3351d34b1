// Package auth gates the admin endpoints behind a verified identity token
// and an email allow-list.
package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// IdentityVerifier resolves a bearer token to the email it was issued for.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

type Guard struct {
	verifier IdentityVerifier
	allowed  map[string]struct{}
	logger   *slog.Logger
}

func NewGuard(verifier IdentityVerifier, adminEmails []string, logger *slog.Logger) *Guard {
	allowed := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		if email = normalizeEmail(email); email != "" {
			allowed[email] = struct{}{}
		}
	}

	return &Guard{
		verifier: verifier,
		allowed:  allowed,
		logger:   logger,
	}
}

// IsAdmin reports whether r carries a valid token for an allow-listed
// email. Every failure, including a panicking verifier, is just false.
func (g *Guard) IsAdmin(r *http.Request) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.Error("identity verification panicked", "panic", rec)
			ok = false
		}
	}()

	token, found := bearerToken(r.Header.Get("Authorization"))
	if !found {
		return false
	}

	email, err := g.verifier.Verify(r.Context(), token)
	if err != nil {
		g.logger.Debug("admin token rejected", "error", err)
		return false
	}

	_, ok = g.allowed[normalizeEmail(email)]
	if !ok {
		g.logger.Warn("non-admin identity attempted admin access", "path", r.URL.Path)
	}
	return ok
}

// Require answers 403 with the same body for every rejection so callers
// cannot tell a bad token from an unprivileged one.
func (g *Guard) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.IsAdmin(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			if err := json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "forbidden"}); err != nil {
				g.logger.Error("failed to encode response", "error", err)
			}
			return
		}
		next(w, r)
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

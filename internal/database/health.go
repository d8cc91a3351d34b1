package database

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
}

// HealthHandler reports liveness without forcing a connection. The pool is
// opened lazily by the first request that needs it, so "idle" is healthy.
func HealthHandler(p Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		state := "idle"
		if p.IsConnected() {
			state = "connected"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(healthResponse{OK: true, Database: state})
	}
}

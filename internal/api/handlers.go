package api

import (
	"net/http"
	"time"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if s.credentials == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "not_ready", "fetcher not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"credentials":    s.credentials.State(),
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

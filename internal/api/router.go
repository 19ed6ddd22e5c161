package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/telemyapp/brother-bot/internal/metrics"
	"github.com/telemyapp/brother-bot/internal/model"
)

type CredentialStateSource interface {
	State() model.CredentialState
}

type Server struct {
	credentials CredentialStateSource
	startedAt   time.Time
}

// NewRouter serves the local ops endpoints. It never triggers a portal call.
func NewRouter(src CredentialStateSource) http.Handler {
	s := &Server{credentials: src, startedAt: time.Now()}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", metrics.Default().Handler().ServeHTTP)
	return r
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	var payload apiError
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

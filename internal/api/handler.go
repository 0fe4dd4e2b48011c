package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cragcast/internal/conditions"
	"cragcast/internal/session"
	"cragcast/internal/timer"
	"cragcast/internal/weather"
)

type Forecaster interface {
	Forecast(ctx context.Context, lat, lon float64) (*weather.Forecast, error)
}

type Handler struct {
	forecasts Forecaster
	sessions  *session.Service
	scoring   conditions.Config
}

func NewHandler(forecasts Forecaster, sessions *session.Service) *Handler {
	return &Handler{
		forecasts: forecasts,
		sessions:  sessions,
		scoring:   conditions.DefaultConfig(),
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)

	mux.HandleFunc("GET /v1/conditions", h.getConditions)
	mux.HandleFunc("POST /v1/conditions/analyze", h.analyzeConditions)

	mux.HandleFunc("POST /v1/sessions", h.startSession)
	mux.HandleFunc("GET /v1/sessions/active", h.activeSession)
	mux.HandleFunc("GET /v1/sessions/{id}", h.getSession)
	mux.HandleFunc("POST /v1/sessions/{id}/end", h.endSession)

	mux.HandleFunc("GET /v1/sessions/{id}/clock", h.getClock)
	mux.HandleFunc("POST /v1/sessions/{id}/clock/pause", h.pauseClock)
	mux.HandleFunc("POST /v1/sessions/{id}/clock/resume", h.resumeClock)

	mux.HandleFunc("GET /v1/sessions/{id}/rest", h.getRest)
	mux.HandleFunc("POST /v1/sessions/{id}/rest/configure", h.configureRest)
	mux.HandleFunc("POST /v1/sessions/{id}/rest/start", h.startRest)
	mux.HandleFunc("POST /v1/sessions/{id}/rest/pause", h.pauseRest)
	mux.HandleFunc("POST /v1/sessions/{id}/rest/resume", h.resumeRest)
	mux.HandleFunc("POST /v1/sessions/{id}/rest/reset", h.resetRest)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeError maps domain errors onto status codes. Anything unrecognised
// is logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, weather.ErrMalformedForecast):
		writeJSONError(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, weather.ErrForecastUnavailable):
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, session.ErrNotFound):
		writeJSONError(w, "session not found", http.StatusNotFound)
	case errors.Is(err, session.ErrInvalidInput):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, session.ErrEnded),
		errors.Is(err, session.ErrAlreadyActive),
		errors.Is(err, timer.ErrInvalidTransition):
		writeJSONError(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("request failed", "err", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"cragcast/internal/session"
	"cragcast/internal/timer"
)

type startSessionRequest struct {
	UserID      string `json:"user_id"`
	Location    string `json:"location"`
	EnergyLevel int    `json:"energy_level"`
}

type endSessionRequest struct {
	SessionQuality *int   `json:"session_quality"`
	Notes          string `json:"notes"`
}

type configureRestRequest struct {
	Minutes int `json:"minutes"`
}

type clockJSON struct {
	SessionID      string     `json:"session_id"`
	State          string     `json:"state"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ElapsedSeconds int        `json:"elapsed_seconds"`
	Elapsed        string     `json:"elapsed"`
}

type restJSON struct {
	SessionID        string     `json:"session_id"`
	State            string     `json:"state"`
	DurationMinutes  int        `json:"duration_minutes"`
	RemainingSeconds int        `json:"remaining_seconds"`
	Remaining        string     `json:"remaining"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndsAt           *time.Time `json:"ends_at,omitempty"`
}

type sessionJSON struct {
	Session session.Session `json:"session"`
	Clock   *clockJSON      `json:"clock,omitempty"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toClockJSON(s timer.ClockSnapshot) *clockJSON {
	return &clockJSON{
		SessionID:      s.SessionID,
		State:          string(s.State),
		StartedAt:      timePtr(s.StartedAt),
		ElapsedSeconds: s.Seconds(),
		Elapsed:        timer.FormatHMS(s.Seconds()),
	}
}

func toRestJSON(s timer.RestSnapshot) restJSON {
	return restJSON{
		SessionID:        s.SessionID,
		State:            string(s.State),
		DurationMinutes:  s.Minutes,
		RemainingSeconds: s.Remaining,
		Remaining:        timer.FormatHMS(s.Remaining),
		StartedAt:        timePtr(s.StartedAt),
		EndsAt:           timePtr(s.EndsAt),
	}
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, clock, err := h.sessions.Start(r.Context(), req.UserID, req.Location, req.EnergyLevel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionJSON{Session: sess, Clock: toClockJSON(clock)})
}

func (h *Handler) activeSession(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	st := h.sessions.Locator(userID).Check(r.Context(), nil)
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionJSON{Session: sess})
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	// The body is optional.
	var req endSessionRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, err := h.sessions.End(r.Context(), r.PathValue("id"), session.EndDetails{
		Quality: req.SessionQuality,
		Notes:   req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionJSON{Session: sess})
}

func (h *Handler) getClock(w http.ResponseWriter, r *http.Request) {
	h.withClock(w, r, nil)
}

func (h *Handler) pauseClock(w http.ResponseWriter, r *http.Request) {
	h.withClock(w, r, (*timer.SessionClock).Pause)
}

func (h *Handler) resumeClock(w http.ResponseWriter, r *http.Request) {
	h.withClock(w, r, (*timer.SessionClock).Resume)
}

func (h *Handler) withClock(w http.ResponseWriter, r *http.Request, op func(*timer.SessionClock, context.Context) error) {
	clock, err := h.sessions.Clock(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if op != nil {
		if err := op(clock, r.Context()); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toClockJSON(clock.Tick(r.Context())))
}

func (h *Handler) getRest(w http.ResponseWriter, r *http.Request) {
	rest, err := h.sessions.Rest(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRestJSON(rest.Tick(r.Context())))
}

func (h *Handler) configureRest(w http.ResponseWriter, r *http.Request) {
	var req configureRestRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.withRest(w, r, func(rest *timer.RestTimer, ctx context.Context) error {
		_, err := rest.Configure(ctx, req.Minutes)
		return err
	})
}

func (h *Handler) startRest(w http.ResponseWriter, r *http.Request) {
	h.withRest(w, r, (*timer.RestTimer).Start)
}

func (h *Handler) pauseRest(w http.ResponseWriter, r *http.Request) {
	h.withRest(w, r, (*timer.RestTimer).Pause)
}

func (h *Handler) resumeRest(w http.ResponseWriter, r *http.Request) {
	h.withRest(w, r, (*timer.RestTimer).Resume)
}

func (h *Handler) resetRest(w http.ResponseWriter, r *http.Request) {
	h.withRest(w, r, func(rest *timer.RestTimer, ctx context.Context) error {
		rest.Reset(ctx)
		return nil
	})
}

func (h *Handler) withRest(w http.ResponseWriter, r *http.Request, op func(*timer.RestTimer, context.Context) error) {
	rest, err := h.sessions.Rest(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := op(rest, r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRestJSON(rest.Snapshot()))
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/claude/pushreps/internal/models"
	"github.com/claude/pushreps/internal/progress"
	"github.com/claude/pushreps/internal/session"
	"github.com/claude/pushreps/internal/workout"
)

// sessionView is the engine state plus fields a UI would otherwise derive.
type sessionView struct {
	session.State
	ProgressPercent int    `json:"progress_percent"`
	RestClock       string `json:"rest_clock"`
	Pending         int    `json:"pending"`
}

// setResponse is returned by the set endpoint. Completion is set only when
// the last set finished.
type setResponse struct {
	Session    sessionView         `json:"session"`
	Completion *workout.Completion `json:"completion,omitempty"`
}

func (s *Server) view() sessionView {
	st := s.svc.Engine().State()
	return sessionView{
		State:           st,
		ProgressPercent: st.ProgressPercent(),
		RestClock:       st.RestClock(),
		Pending:         len(s.svc.Pending()),
	}
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleSelectPlan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Plan string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	id, err := models.ParsePlanID(body.Plan)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.svc.Engine().SelectPlan(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	if err := s.svc.Engine().Start(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleRep(w http.ResponseWriter, _ *http.Request) {
	if err := s.svc.Engine().CompleteRep(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.CompleteSet(r.Context())
	if errors.Is(err, progress.ErrPersistence) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":      err.Error(),
			"session":    s.view(),
			"completion": c,
		})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, setResponse{Session: s.view(), Completion: c})
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.svc.Engine().Pause()
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.svc.Engine().Resume()
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.svc.Engine().Reset()
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleTick(w http.ResponseWriter, _ *http.Request) {
	s.svc.Engine().Tick()
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Retry(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

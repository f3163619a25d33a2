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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrInvalidTransition), errors.Is(err, workout.ErrNothingPending):
		status = http.StatusConflict
	case errors.Is(err, progress.ErrPersistence):
		status = http.StatusServiceUnavailable
	case errors.Is(err, progress.ErrInvalidRecord), errors.Is(err, models.ErrUnknownPlan):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handlePlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.Plans())
}

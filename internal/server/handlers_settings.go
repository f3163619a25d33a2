package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/claude/pushreps/internal/importer"
)

type notificationSettings struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.notifications.Enabled(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, notificationSettings{Enabled: &enabled})
}

func (s *Server) handlePutNotifications(w http.ResponseWriter, r *http.Request) {
	var body notificationSettings
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if body.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required"})
		return
	}
	if err := s.notifications.SetEnabled(r.Context(), *body.Enabled); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Store().Clear(r.Context()); err != nil {
		s.log.Error("clear data failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Store().Summary())
}

// handleImport replays an exported workoutHistory array. ?dry_run=true
// reports counts without writing.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if v := r.URL.Query().Get("dry_run"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dry_run must be a boolean"})
			return
		}
		dryRun = b
	}

	entries, err := importer.Parse(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	stats, err := importer.New(s.svc.Store(), s.log, dryRun).Import(r.Context(), entries)
	if err != nil {
		s.log.Error("import failed", "error", err)
		writeError(w, err)
		return
	}
	s.log.Info("history imported", "entries", stats.Entries, "imported", stats.Imported, "dry_run", dryRun)
	writeJSON(w, http.StatusOK, stats)
}

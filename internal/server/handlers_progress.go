package server

import (
	"net/http"
	"strconv"
	"time"
)

const defaultRecentLimit = 10

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Store().Summary())
}

func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	store := s.svc.Store()
	ref := store.Today()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, d, store.Location())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
			return
		}
		ref = parsed
	}
	writeJSON(w, http.StatusOK, store.WeeklyHistogram(ref))
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, s.svc.Store().RecentSessions(limit))
}

package http

import (
	"net/http"

	applog "bookngn/internal/log"
)

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.sync.Stats(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, applog.OpSync, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSyncRetry(w http.ResponseWriter, r *http.Request) {
	n, err := s.sync.RetryFailed(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, applog.OpSync, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int64{"requeued": n})
}

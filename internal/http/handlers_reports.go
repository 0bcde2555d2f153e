package http

import (
	"net/http"

	applog "bookngn/internal/log"
)

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r)
	if err != nil {
		respondError(w, r, applog.OpRead, err)
		return
	}
	months, err := s.reports.MonthlySummary(r.Context(), userID(r), year)
	if err != nil {
		respondError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, months)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r)
	if err != nil {
		respondError(w, r, applog.OpRead, err)
		return
	}
	d, err := s.reports.Dashboard(r.Context(), userID(r), year)
	if err != nil {
		respondError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

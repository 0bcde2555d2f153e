package http

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"bookngn/internal/core"
	applog "bookngn/internal/log"
)

type budgetRequest struct {
	CategoryID  string            `json:"category_id"`
	AmountLimit core.Money        `json:"amount_limit"`
	Period      core.BudgetPeriod `json:"period"`
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.ledger.ListBudgets(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, applog.OpList, err)
		return
	}
	if budgets == nil {
		budgets = []core.Budget{}
	}
	writeJSON(w, http.StatusOK, budgets)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, applog.OpCreate, err)
		return
	}
	period := req.Period
	if period == "" {
		period = core.Monthly
	}

	b, err := s.ledger.CreateBudget(r.Context(), userID(r), core.Budget{
		CategoryID:  strings.TrimSpace(req.CategoryID),
		AmountLimit: req.AmountLimit,
		Period:      core.BudgetPeriod(strings.ToLower(string(period))),
	})
	if err != nil {
		respondError(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteBudget(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		respondError(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.reports.BudgetStatus(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

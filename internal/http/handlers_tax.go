package http

import (
	"fmt"
	"net/http"

	"bookngn/internal/core"
	applog "bookngn/internal/log"
	"bookngn/internal/services"
)

// estimateRequest is the body of POST /api/tax/estimate. Category overrides
// the profile's own category when set.
type estimateRequest struct {
	Profile          profileRequest `json:"profile"`
	Category         string         `json:"category"`
	AdditionalIncome core.Money     `json:"additional_income"`
	BusinessExpenses core.Money     `json:"business_expenses"`
}

func (s *Server) handleGetTax(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r)
	if err != nil {
		respondError(w, r, applog.OpCompute, err)
		return
	}
	report, err := s.tax.Compute(r.Context(), userID(r), year)
	if err != nil {
		respondError(w, r, applog.OpCompute, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleEstimateTax(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, applog.OpCompute, err)
		return
	}
	profile, err := req.Profile.toProfile()
	if err != nil {
		respondError(w, r, applog.OpCompute, err)
		return
	}
	var category core.TaxpayerCategory
	if req.Category != "" {
		if category, err = core.ParseTaxpayerCategory(req.Category); err != nil {
			respondError(w, r, applog.OpCompute, fmt.Errorf("%w: %w", services.ErrValidation, err))
			return
		}
	}

	res, err := s.tax.Estimate(services.EstimateRequest{
		Profile:          profile,
		Category:         category,
		AdditionalIncome: req.AdditionalIncome,
		BusinessExpenses: req.BusinessExpenses,
	})
	if err != nil {
		respondError(w, r, applog.OpCompute, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

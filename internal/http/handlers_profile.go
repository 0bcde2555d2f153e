package http

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"bookngn/internal/core"
	applog "bookngn/internal/log"
	"bookngn/internal/services"
)

// profileRequest mirrors core.FinancialProfile but accepts the legacy
// taxpayer category spellings and an omitted utility percentage.
type profileRequest struct {
	MonthlyIncome     core.Money       `json:"monthly_income"`
	LifeInsurance     core.Money       `json:"life_insurance_premium"`
	HealthInsurance   core.Money       `json:"health_insurance_premium"`
	VoluntaryPension  core.Money       `json:"voluntary_pension"`
	VoluntaryNHF      core.Money       `json:"voluntary_nhf"`
	RentPaid          core.Money       `json:"rent_paid"`
	MonthlyUtilities  core.Money       `json:"monthly_utilities"`
	UtilityPercentage *decimal.Decimal `json:"utility_percentage"`
	MortgageInterest  core.Money       `json:"mortgage_interest"`
	EmployeeCount     int              `json:"employee_count"`
	Category          string           `json:"taxpayer_category"`
}

func (req profileRequest) toProfile() (core.FinancialProfile, error) {
	p := core.FinancialProfile{
		MonthlyIncome:     req.MonthlyIncome,
		LifeInsurance:     req.LifeInsurance,
		HealthInsurance:   req.HealthInsurance,
		VoluntaryPension:  req.VoluntaryPension,
		VoluntaryNHF:      req.VoluntaryNHF,
		RentPaid:          req.RentPaid,
		MonthlyUtilities:  req.MonthlyUtilities,
		UtilityPercentage: core.DefaultUtilityPercentage,
		MortgageInterest:  req.MortgageInterest,
		EmployeeCount:     req.EmployeeCount,
		Category:          core.PAYE,
	}
	if req.UtilityPercentage != nil {
		p.UtilityPercentage = *req.UtilityPercentage
	}
	if req.Category != "" {
		c, err := core.ParseTaxpayerCategory(req.Category)
		if err != nil {
			return p, fmt.Errorf("%w: %w", services.ErrValidation, err)
		}
		p.Category = c
	}
	return p, nil
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.ledger.GetProfile(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, applog.OpUpdate, err)
		return
	}
	p, err := req.toProfile()
	if err != nil {
		respondError(w, r, applog.OpUpdate, err)
		return
	}

	saved, err := s.ledger.SaveProfile(r.Context(), userID(r), p)
	if err != nil {
		respondError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"bookngn/internal/cache"
	"bookngn/internal/core"
	"bookngn/internal/storage"
	"bookngn/internal/tax"
)

// TaxReport is the tax position of one user for one year.
type TaxReport struct {
	Year       int              `json:"year"`
	Ledger     tax.LedgerTotals `json:"ledger"`
	HasProfile bool             `json:"has_profile"`
	Result     tax.Result       `json:"result"`
	ComputedAt time.Time        `json:"computed_at"`
}

// TaxService computes tax reports from stored data. Results are cached per
// user and year and concurrent computations of the same key are collapsed.
//
// Every Invalidate bumps the user's generation. A computation that started
// under an older generation never leaves its report in the cache.
type TaxService struct {
	storage *storage.SQLiteRepository
	engine  *tax.Engine
	cache   cache.Cache[TaxReport]
	group   singleflight.Group

	genMu sync.Mutex
	gens  map[string]uint64
}

// NewTaxService wires the service. c may be nil to disable caching.
func NewTaxService(storage *storage.SQLiteRepository, engine *tax.Engine, c cache.Cache[TaxReport]) *TaxService {
	return &TaxService{storage: storage, engine: engine, cache: c, gens: make(map[string]uint64)}
}

func (s *TaxService) generation(userID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[userID]
}

func cacheKey(userID string, year int) string {
	return fmt.Sprintf("tax:%s:%d", userID, year)
}

// Engine exposes the underlying engine, e.g. for listing schedules.
func (s *TaxService) Engine() *tax.Engine {
	return s.engine
}

// Compute returns the tax report for userID in year.
func (s *TaxService) Compute(ctx context.Context, userID string, year int) (TaxReport, error) {
	if year < 1900 || year > 9999 {
		return TaxReport{}, invalid(fmt.Errorf("year %d out of range", year))
	}
	key := cacheKey(userID, year)
	if s.cache != nil {
		if r, ok := s.cache.Get(ctx, key); ok {
			slog.DebugContext(ctx, "Tax report cache hit", "user_id", userID, "year", year)
			return r, nil
		}
	}

	gen := s.generation(userID)
	v, err, _ := s.group.Do(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		snap, err := s.storage.TaxSnapshot(ctx, userID, year)
		if err != nil {
			return TaxReport{}, fmt.Errorf("read tax snapshot: %w", err)
		}
		totals := tax.FoldLedger(snap.Transactions, year)
		res, err := s.engine.Compute(totals.Apply(tax.Input{Profile: snap.Profile}))
		if err != nil {
			return TaxReport{}, err
		}
		r := TaxReport{
			Year:       year,
			Ledger:     totals,
			HasProfile: snap.HasProfile,
			Result:     res,
			ComputedAt: time.Now().UTC(),
		}
		if s.cache != nil {
			s.store(ctx, userID, key, gen, r)
		}
		slog.InfoContext(ctx, "Computed tax report",
			"user_id", userID,
			"year", year,
			"category", res.Category,
			"annual_tax_kobo", res.AnnualTax.Kobo)
		return r, nil
	})
	if err != nil {
		return TaxReport{}, err
	}
	return v.(TaxReport), nil
}

// store caches r unless userID was invalidated since gen. Invalidate bumps
// before it deletes, so the recheck after Set catches a write that raced it.
func (s *TaxService) store(ctx context.Context, userID, key string, gen uint64, r TaxReport) {
	if s.generation(userID) != gen {
		return
	}
	s.cache.Set(ctx, key, r)
	if s.generation(userID) != gen {
		s.cache.Delete(ctx, key)
		slog.DebugContext(ctx, "Dropped tax report computed before invalidation", "user_id", userID, "year", r.Year)
	}
}

// Invalidate drops every cached year for userID.
func (s *TaxService) Invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	s.genMu.Lock()
	s.gens[userID]++
	s.genMu.Unlock()
	if n := s.cache.DeletePrefix(ctx, "tax:"+userID+":"); n > 0 {
		slog.DebugContext(ctx, "Invalidated tax reports", "user_id", userID, "count", n)
	}
}

// EstimateRequest is an ad hoc computation that touches no stored data.
type EstimateRequest struct {
	Profile          core.FinancialProfile `json:"profile"`
	Category         core.TaxpayerCategory `json:"category"`
	AdditionalIncome core.Money            `json:"additional_income"`
	BusinessExpenses core.Money            `json:"business_expenses"`
}

// Estimate runs the engine on the request as given. An explicit zero
// utility percentage stays zero; defaults belong to whoever built the profile.
func (s *TaxService) Estimate(req EstimateRequest) (tax.Result, error) {
	return s.engine.Compute(tax.Input{
		Profile:          req.Profile,
		Category:         req.Category,
		AdditionalIncome: req.AdditionalIncome,
		BusinessExpenses: req.BusinessExpenses,
	})
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bookngn/internal/auth"
	"bookngn/internal/cache"
	"bookngn/internal/core"
	applog "bookngn/internal/log"
	"bookngn/internal/services"
	"bookngn/internal/storage"
	"bookngn/internal/tax"
)

const testSecret = "test-secret-0123456789"

type testEnv struct {
	server   *Server
	verifier *auth.Verifier
	repo     *storage.SQLiteRepository
}

func newTestEnv(t *testing.T, rateLimit int, ready ...ReadinessCheck) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "http.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	taxSvc := services.NewTaxService(repo, tax.NewEngine(tax.DefaultRules()),
		cache.NewLRUCache[services.TaxReport](50, time.Minute))
	verifier := auth.NewVerifier(testSecret)
	srv := NewServer(":0", Deps{
		Ledger:   services.NewLedgerService(repo, nil, taxSvc),
		Tax:      taxSvc,
		Reports:  services.NewReportService(repo, taxSvc),
		Sync:     services.NewSyncProcessor(repo, nil, services.DefaultSyncProcessorConfig()),
		Verifier: verifier,
		Ready:    ready,
	}, Options{
		RateLimitPerMinute: rateLimit,
		Logger:             applog.New(applog.Config{Output: io.Discard}),
	})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return &testEnv{server: srv, verifier: verifier, repo: repo}
}

// do sends a request as userID (no auth header when userID is empty).
func (e *testEnv) do(t *testing.T, userID, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	req.RemoteAddr = "203.0.113.10:4000"
	if userID != "" {
		token, err := e.verifier.Issue(userID, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, 60)

	rec := env.do(t, "", http.MethodGet, "/healthz", nil)
	expectStatus(t, rec, http.StatusOK)
	if h := decode[map[string]any](t, rec); h["status"] != "ok" {
		t.Errorf("health = %v", h)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}

	expectStatus(t, env.do(t, "", http.MethodGet, "/readyz", nil), http.StatusOK)
}

func TestReadyFailingCheck(t *testing.T) {
	env := newTestEnv(t, 60, ReadinessCheck{
		Name:  "sqlite",
		Check: func(context.Context) error { return errors.New("disk gone") },
	})

	rec := env.do(t, "", http.MethodGet, "/readyz", nil)
	expectStatus(t, rec, http.StatusServiceUnavailable)
	body := decode[struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}](t, rec)
	if body.Checks["sqlite"] != "disk gone" {
		t.Errorf("checks = %v", body.Checks)
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	env := newTestEnv(t, 60)

	for _, tc := range []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.jwt"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			env.server.Handler.ServeHTTP(rec, req)
			expectStatus(t, rec, http.StatusUnauthorized)
			if body := decode[map[string]string](t, rec); body["error"] != "Unauthorized" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestTransactionLifecycle(t *testing.T) {
	env := newTestEnv(t, 100)

	cats := decode[[]core.Category](t, env.do(t, "u1", http.MethodGet, "/api/categories", nil))
	var rentID string
	for _, c := range cats {
		if c.Name == "Rent" {
			rentID = c.ID
		}
	}
	if rentID == "" {
		t.Fatalf("categories = %+v", cats)
	}

	rec := env.do(t, "u1", http.MethodPost, "/api/transactions", map[string]any{
		"type":          "expense",
		"amount":        "45000.50",
		"category_id":   rentID,
		"date":          "2025-03-01",
		"description":   "Shop rent",
		"is_deductible": true,
	})
	expectStatus(t, rec, http.StatusCreated)
	created := decode[core.Transaction](t, rec)
	if created.ID == "" || created.Amount.Kobo != 4_500_050 || created.Type != core.Expense {
		t.Fatalf("created = %+v", created)
	}

	rec = env.do(t, "u1", http.MethodGet, "/api/transactions?from=2025-01-01&to=2025-12-31&type=Expense", nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]core.Transaction](t, rec); len(list) != 1 {
		t.Fatalf("list = %+v", list)
	}

	expectStatus(t, env.do(t, "u2", http.MethodGet, "/api/transactions/"+created.ID, nil), http.StatusNotFound)

	rec = env.do(t, "u1", http.MethodPatch, "/api/transactions/"+created.ID, map[string]any{"amount": 50000})
	expectStatus(t, rec, http.StatusOK)
	if updated := decode[core.Transaction](t, rec); updated.Amount != core.Naira(50_000) || updated.Description != "Shop rent" {
		t.Errorf("updated = %+v", updated)
	}

	rec = env.do(t, "u1", http.MethodPatch, "/api/transactions/"+created.ID, map[string]any{"date": "2025-04-15"})
	expectStatus(t, rec, http.StatusOK)
	if updated := decode[core.Transaction](t, rec); updated.Date.String() != "2025-04-15" || updated.Amount != core.Naira(50_000) {
		t.Errorf("date patch = %+v", updated)
	}

	expectStatus(t, env.do(t, "u1", http.MethodDelete, "/api/transactions/"+created.ID, nil), http.StatusNoContent)
	expectStatus(t, env.do(t, "u1", http.MethodGet, "/api/transactions/"+created.ID, nil), http.StatusNotFound)
	expectStatus(t, env.do(t, "u1", http.MethodDelete, "/api/transactions/"+created.ID, nil), http.StatusNotFound)
}

func TestCreateTransactionErrors(t *testing.T) {
	env := newTestEnv(t, 100)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"empty body", "", http.StatusUnprocessableEntity},
		{"malformed json", "{", http.StatusUnprocessableEntity},
		{"unknown field", map[string]any{"type": "income", "amount": 1, "description": "x", "colour": "red"}, http.StatusUnprocessableEntity},
		{"bad type", map[string]any{"type": "gift", "amount": 1, "description": "x"}, http.StatusUnprocessableEntity},
		{"negative amount", map[string]any{"type": "income", "amount": -5, "description": "x"}, http.StatusUnprocessableEntity},
		{"amount too large", map[string]any{"type": "income", "amount": 1e18, "description": "x"}, http.StatusUnprocessableEntity},
		{"missing description", map[string]any{"type": "income", "amount": 5}, http.StatusUnprocessableEntity},
		{"unknown category", map[string]any{"type": "income", "amount": 5, "description": "x", "category_id": "nope"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "u1", http.MethodPost, "/api/transactions", tt.body)
			expectStatus(t, rec, tt.want)
			if body := decode[map[string]any](t, rec); body["error"] == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestListTransactionsBadQuery(t *testing.T) {
	env := newTestEnv(t, 100)
	for _, q := range []string{"from=2025-13-01", "type=transfer", "limit=-1", "offset=x"} {
		expectStatus(t, env.do(t, "u1", http.MethodGet, "/api/transactions?"+q, nil), http.StatusUnprocessableEntity)
	}
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(t, "u1", http.MethodPost, "/api/categories", map[string]any{"name": "Transport", "type": "Expense"})
	expectStatus(t, rec, http.StatusCreated)

	rec = env.do(t, "u1", http.MethodPost, "/api/categories", map[string]any{"name": "Transport", "type": "Expense"})
	expectStatus(t, rec, http.StatusConflict)

	rec = env.do(t, "u1", http.MethodPost, "/api/categories", map[string]any{"name": "Gifts", "type": "other"})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	cats := decode[[]core.Category](t, env.do(t, "u1", http.MethodGet, "/api/categories", nil))
	if len(cats) != 5 {
		t.Errorf("got %d categories, want 5", len(cats))
	}
}

func TestProfileAndTax(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(t, "u1", http.MethodGet, "/api/profile", nil)
	expectStatus(t, rec, http.StatusOK)
	if p := decode[core.FinancialProfile](t, rec); p.Category != core.PAYE {
		t.Errorf("default profile = %+v", p)
	}

	rec = env.do(t, "u1", http.MethodPut, "/api/profile", map[string]any{
		"monthly_income":    500000,
		"taxpayer_category": "Self-Employed",
	})
	expectStatus(t, rec, http.StatusOK)
	saved := decode[core.FinancialProfile](t, rec)
	if saved.Category != core.SelfEmployed || saved.UtilityPercentage.IntPart() != 40 {
		t.Errorf("saved = %+v", saved)
	}

	rec = env.do(t, "u1", http.MethodGet, "/api/tax?year=2025", nil)
	expectStatus(t, rec, http.StatusOK)
	report := decode[services.TaxReport](t, rec)
	if !report.HasProfile || report.Result.AnnualTax != core.Naira(870_000) || report.Result.GrossIncome != core.Naira(6_000_000) {
		t.Errorf("report = %+v", report)
	}
	if report.Result.EffectiveRate.String() != "14.5" {
		t.Errorf("effective rate = %s", report.Result.EffectiveRate)
	}

	expectStatus(t, env.do(t, "u1", http.MethodGet, "/api/tax?year=twenty", nil), http.StatusUnprocessableEntity)

	rec = env.do(t, "u1", http.MethodPut, "/api/profile", map[string]any{"utility_percentage": 140})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	if body := decode[map[string]string](t, rec); body["field"] != "utility_percentage" {
		t.Errorf("body = %v", body)
	}

	expectStatus(t, env.do(t, "u1", http.MethodPut, "/api/profile", map[string]any{"taxpayer_category": "partnership"}),
		http.StatusUnprocessableEntity)
}

func TestEstimateTax(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(t, "u1", http.MethodPost, "/api/tax/estimate", map[string]any{
		"profile":  map[string]any{"monthly_income": 500000},
		"category": "SELF_EMPLOYED",
	})
	expectStatus(t, rec, http.StatusOK)
	res := decode[tax.Result](t, rec)
	if res.AnnualTax != core.Naira(870_000) || res.Category != core.SelfEmployed {
		t.Errorf("result = %+v", res)
	}

	rec = env.do(t, "u1", http.MethodPost, "/api/tax/estimate", map[string]any{
		"profile": map[string]any{"monthly_income": -1},
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = env.do(t, "u1", http.MethodPost, "/api/tax/estimate", map[string]any{"category": "trust"})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
}

func TestBudgets(t *testing.T) {
	env := newTestEnv(t, 100)

	cats := decode[[]core.Category](t, env.do(t, "u1", http.MethodGet, "/api/categories", nil))
	var utilities string
	for _, c := range cats {
		if c.Name == "Utilities" {
			utilities = c.ID
		}
	}

	rec := env.do(t, "u1", http.MethodPost, "/api/budgets", map[string]any{
		"category_id":  utilities,
		"amount_limit": 20000,
		"period":       "Monthly",
	})
	expectStatus(t, rec, http.StatusCreated)
	b := decode[core.Budget](t, rec)

	expectStatus(t, env.do(t, "u1", http.MethodPost, "/api/budgets", map[string]any{
		"category_id": utilities, "amount_limit": 0,
	}), http.StatusUnprocessableEntity)

	now := time.Now()
	expectStatus(t, env.do(t, "u1", http.MethodPost, "/api/transactions", map[string]any{
		"type": "expense", "amount": 5000, "category_id": utilities,
		"date": core.NewDate(now.Year(), int(now.Month()), 1).String(), "description": "Light bill",
	}), http.StatusCreated)

	rec = env.do(t, "u1", http.MethodGet, "/api/budgets/status", nil)
	expectStatus(t, rec, http.StatusOK)
	statuses := decode[[]core.BudgetStatus](t, rec)
	if len(statuses) != 1 || statuses[0].Spent != core.Naira(5_000) || statuses[0].Remaining != core.Naira(15_000) {
		t.Errorf("statuses = %+v", statuses)
	}

	expectStatus(t, env.do(t, "u1", http.MethodDelete, "/api/budgets/"+b.ID, nil), http.StatusNoContent)
	if list := decode[[]core.Budget](t, env.do(t, "u1", http.MethodGet, "/api/budgets", nil)); len(list) != 0 {
		t.Errorf("budgets after delete = %+v", list)
	}
}

func TestReportsAndSync(t *testing.T) {
	env := newTestEnv(t, 100)

	expectStatus(t, env.do(t, "u1", http.MethodPost, "/api/transactions", map[string]any{
		"type": "income", "amount": 100, "exchange_rate": "1500", "date": "2025-02-10", "description": "Export order",
	}), http.StatusCreated)

	rec := env.do(t, "u1", http.MethodGet, "/api/reports/monthly?year=2025", nil)
	expectStatus(t, rec, http.StatusOK)
	months := decode[[]core.MonthSummary](t, rec)
	if len(months) != 12 || months[1].Income != core.Naira(150_000) {
		t.Errorf("months = %+v", months)
	}

	rec = env.do(t, "u1", http.MethodGet, "/api/dashboard?year=2025", nil)
	expectStatus(t, rec, http.StatusOK)
	d := decode[services.Dashboard](t, rec)
	if d.Tax.Ledger.ForeignIncome != core.Naira(150_000) || d.Sync.Pending != 1 {
		t.Errorf("dashboard = %+v", d)
	}

	rec = env.do(t, "u1", http.MethodGet, "/api/sync/status", nil)
	expectStatus(t, rec, http.StatusOK)
	if st := decode[core.SyncQueueStats](t, rec); st.Pending != 1 {
		t.Errorf("sync stats = %+v", st)
	}

	rec = env.do(t, "u1", http.MethodPost, "/api/sync/retry", nil)
	expectStatus(t, rec, http.StatusAccepted)
	if body := decode[map[string]int64](t, rec); body["requeued"] != 0 {
		t.Errorf("retry = %v", body)
	}
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	env := newTestEnv(t, 2)

	body := map[string]any{"name": "X", "type": "income"}
	expectStatus(t, env.do(t, "u1", http.MethodPost, "/api/categories", body), http.StatusCreated)
	body["name"] = "Y"
	expectStatus(t, env.do(t, "u1", http.MethodPost, "/api/categories", body), http.StatusCreated)
	body["name"] = "Z"
	rec := env.do(t, "u1", http.MethodPost, "/api/categories", body)
	expectStatus(t, rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	expectStatus(t, env.do(t, "u1", http.MethodGet, "/api/categories", nil), http.StatusOK)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	env := newTestEnv(t, 100)
	expectStatus(t, env.do(t, "u1", http.MethodGet, "/nope", nil), http.StatusNotFound)
	expectStatus(t, env.do(t, "u1", http.MethodPut, "/api/transactions", nil), http.StatusMethodNotAllowed)
	expectStatus(t, env.do(t, "u1", http.MethodPost, "/api/transactions/abc", nil), http.StatusMethodNotAllowed)
	expectStatus(t, env.do(t, "u1", http.MethodGet, "/api/nope", nil), http.StatusNotFound)

	rec := env.do(t, "u1", http.MethodDelete, "/api/profile", nil)
	expectStatus(t, rec, http.StatusMethodNotAllowed)
	if body := decode[map[string]string](t, rec); body["error"] != "method not allowed" {
		t.Errorf("body = %v", body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrValidation, http.StatusUnprocessableEntity},
		{services.ErrUnknownCategory, http.StatusUnprocessableEntity},
		{tax.ErrUnknownCategory, http.StatusUnprocessableEntity},
		{&tax.ValidationError{Field: "rent_paid", Err: tax.ErrNegativeAmount}, http.StatusUnprocessableEntity},
		{storage.ErrNotFound, http.StatusNotFound},
		{storage.ErrDuplicateCategory, http.StatusConflict},
		{errors.New("database is locked"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bookngn/internal/core"
)

// fakeSheets is a minimal in-memory stand-in for the Sheets values API.
type fakeSheets struct {
	mu    sync.Mutex
	tabs  map[string][][]string
	calls map[string]int
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{tabs: map[string][][]string{}, calls: map[string]int{}}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rng, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.Error(w, "unexpected path", http.StatusNotFound)
		return
	}
	isClear := strings.HasSuffix(rng, ":clear")
	rng = strings.TrimSuffix(rng, ":clear")
	sheet, cells, _ := strings.Cut(rng, "!")
	f.calls[r.Method]++

	switch {
	case r.Method == http.MethodGet:
		var values [][]string
		for _, row := range f.tabs[sheet] {
			if len(row) == 0 {
				values = append(values, []string{})
				continue
			}
			values = append(values, []string{row[0]})
		}
		json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": values})
	case r.Method == http.MethodPut:
		var vr struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n := rowNumber(cells)
		for len(f.tabs[sheet]) < n {
			f.tabs[sheet] = append(f.tabs[sheet], nil)
		}
		row := make([]string, len(vr.Values[0]))
		for i, v := range vr.Values[0] {
			row[i] = fmt.Sprint(v)
		}
		f.tabs[sheet][n-1] = row
		json.NewEncoder(w).Encode(map[string]any{"updatedRows": 1})
	case r.Method == http.MethodPost && isClear:
		n := rowNumber(cells)
		if n <= len(f.tabs[sheet]) {
			f.tabs[sheet][n-1] = nil
		}
		json.NewEncoder(w).Encode(map[string]any{})
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func rowNumber(cells string) int {
	first, _, _ := strings.Cut(cells, ":")
	n, _ := strconv.Atoi(strings.TrimLeft(first, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
	return n
}

func (f *fakeSheets) rows(sheet string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tabs[sheet]
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewWithService(svc, Config{SpreadsheetID: "sheet-1"})
}

func TestUpsertTransactionAppendsThenUpdates(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSheets()
	fake.tabs["Transactions"] = [][]string{{"ID"}}
	c := newTestClient(t, fake)

	tx := core.Transaction{
		ID: "t1", Type: core.Income, Amount: core.Money{Kobo: 10050}, CategoryID: "c1", AccountID: "default",
		Date: core.NewDate(2025, 2, 1), Description: "Invoice 7", Version: 1,
		ExchangeRate: decimal.NewNullDecimal(decimal.NewFromInt(1500)),
	}
	if err := c.UpsertTransaction(ctx, "u1", tx); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rows := fake.rows("Transactions")
	if len(rows) != 2 || rows[1][0] != "t1" {
		t.Fatalf("expected appended row 2, got %v", rows)
	}
	if rows[1][7] != "100.50" || rows[1][10] != "150750.00" {
		t.Fatalf("unexpected amounts: %v", rows[1])
	}

	tx.Description = "Invoice 7 (paid)"
	tx.Version = 2
	if err := c.UpsertTransaction(ctx, "u1", tx); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	rows = fake.rows("Transactions")
	if len(rows) != 2 || rows[1][6] != "Invoice 7 (paid)" {
		t.Fatalf("expected in-place update, got %v", rows)
	}
	if fake.calls[http.MethodGet] != 1 {
		t.Fatalf("row index should be cached, got %d reads", fake.calls[http.MethodGet])
	}

	if err := c.DeleteTransaction(ctx, "u1", "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rows = fake.rows("Transactions"); len(rows[1]) != 0 {
		t.Fatalf("row not cleared: %v", rows)
	}
	// Deleting an unknown id is a no-op.
	if err := c.DeleteTransaction(ctx, "u1", "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestUpsertProfileAndBudget(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSheets()
	c := newTestClient(t, fake)

	p := core.DefaultProfile()
	p.MonthlyIncome = core.Naira(500_000)
	if err := c.UpsertProfile(ctx, "u1", p); err != nil {
		t.Fatal(err)
	}
	if rows := fake.rows("Profiles"); len(rows) != 1 || rows[0][0] != "u1" || rows[0][1] != "500000.00" {
		t.Fatalf("unexpected profile rows: %v", rows)
	}

	b := core.Budget{ID: "b1", CategoryID: "c1", AmountLimit: core.Naira(20_000), Period: core.Yearly}
	if err := c.UpsertBudget(ctx, "u1", b); err != nil {
		t.Fatal(err)
	}
	if rows := fake.rows("Budgets"); len(rows) != 1 || rows[0][4] != "yearly" {
		t.Fatalf("unexpected budget rows: %v", rows)
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNilServiceFails(t *testing.T) {
	c := &Client{}
	if err := c.UpsertBudget(context.Background(), "u1", core.Budget{ID: "b"}); err == nil {
		t.Fatal("expected error without service")
	}
}

func TestIndexColumn(t *testing.T) {
	idx := indexColumn([][]any{{"ID"}, {"a"}, {}, {" b "}})
	if len(idx) != 2 || idx["a"] != 2 || idx["b"] != 4 {
		t.Fatalf("unexpected index: %v", idx)
	}
}

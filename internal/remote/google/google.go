// Package google mirrors the ledger into a Google Sheets spreadsheet, one tab
// per entity with the entity id in column A.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bookngn/internal/core"
	"bookngn/internal/remote"
)

// Ensure interface conformance
var _ remote.Mirror = (*Client)(nil)

type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
	TransactionsSheet  string
	BudgetsSheet       string
	ProfilesSheet      string
}

func (c Config) withDefaults() Config {
	if c.TransactionsSheet == "" {
		c.TransactionsSheet = "Transactions"
	}
	if c.BudgetsSheet == "" {
		c.BudgetsSheet = "Budgets"
	}
	if c.ProfilesSheet == "" {
		c.ProfilesSheet = "Profiles"
	}
	return c
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheets        Config

	// Row index cache: sheet -> entity id -> 1-based row number.
	mu                 sync.Mutex
	rowIndex           map[string]map[string]int
	rowCount           map[string]int
	cacheExpiresAt     map[string]time.Time
	cacheValidDuration time.Duration
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		svc:                svc,
		spreadsheetID:      cfg.SpreadsheetID,
		sheets:             cfg,
		rowIndex:           make(map[string]map[string]int),
		rowCount:           make(map[string]int),
		cacheExpiresAt:     make(map[string]time.Time),
		cacheValidDuration: 5 * time.Minute,
	}
}

func (c *Client) Name() string { return "sheets" }

// newSheetsService initializes a Sheets Service using Service Account credentials,
// falling back to GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) UpsertTransaction(ctx context.Context, userID string, t core.Transaction) error {
	return c.upsertRow(ctx, c.sheets.TransactionsSheet, t.ID, transactionRow(userID, t))
}

func (c *Client) DeleteTransaction(ctx context.Context, _ string, id string) error {
	return c.clearRow(ctx, c.sheets.TransactionsSheet, id)
}

func (c *Client) UpsertBudget(ctx context.Context, userID string, b core.Budget) error {
	return c.upsertRow(ctx, c.sheets.BudgetsSheet, b.ID, budgetRow(userID, b))
}

func (c *Client) DeleteBudget(ctx context.Context, _ string, id string) error {
	return c.clearRow(ctx, c.sheets.BudgetsSheet, id)
}

func (c *Client) UpsertProfile(ctx context.Context, userID string, p core.FinancialProfile) error {
	return c.upsertRow(ctx, c.sheets.ProfilesSheet, userID, profileRow(userID, p))
}

// upsertRow overwrites the row whose column A equals id, or appends a new row.
func (c *Client) upsertRow(ctx context.Context, sheet, id string, values []any) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	row, next, err := c.locate(ctx, sheet, id)
	if err != nil {
		return err
	}
	if row == 0 {
		row = next
	}

	rng := fmt.Sprintf("%s!A%d", sheet, row)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		c.invalidate(sheet)
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}

	c.remember(sheet, id, row)
	slog.DebugContext(ctx, "Row written to Google Sheets", "sheet", sheet, "id", id, "row", row)
	return nil
}

// clearRow blanks the row holding id. Missing rows are not an error.
func (c *Client) clearRow(ctx context.Context, sheet, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	row, _, err := c.locate(ctx, sheet, id)
	if err != nil {
		return err
	}
	if row == 0 {
		return nil
	}
	rng := fmt.Sprintf("%s!A%d:Z%d", sheet, row, row)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		c.invalidate(sheet)
		return fmt.Errorf("failed to clear %s: %w", rng, err)
	}
	c.forget(sheet, id)
	return nil
}

// locate returns the row of id (0 if absent) and the next free row.
func (c *Client) locate(ctx context.Context, sheet, id string) (int, int, error) {
	c.mu.Lock()
	if time.Now().Before(c.cacheExpiresAt[sheet]) {
		row, count := c.rowIndex[sheet][id], c.rowCount[sheet]
		c.mu.Unlock()
		return row, count + 1, nil
	}
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", rng, err)
	}
	index := indexColumn(resp.Values)

	c.mu.Lock()
	c.rowIndex[sheet] = index
	c.rowCount[sheet] = len(resp.Values)
	c.cacheExpiresAt[sheet] = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()

	return index[id], len(resp.Values) + 1, nil
}

func (c *Client) remember(sheet, id string, row int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rowIndex[sheet] == nil {
		c.rowIndex[sheet] = make(map[string]int)
	}
	c.rowIndex[sheet][id] = row
	if row > c.rowCount[sheet] {
		c.rowCount[sheet] = row
	}
}

func (c *Client) forget(sheet, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rowIndex[sheet], id)
}

func (c *Client) invalidate(sheet string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cacheExpiresAt, sheet)
}

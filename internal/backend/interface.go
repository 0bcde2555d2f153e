package backend

import (
	"context"

	"bookngn/internal/remote"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds the selected mirror and an optional cleanup function. Mirror is
// nil for the none backend, which keeps every change local.
type Result struct {
	Mirror  remote.Mirror
	Cleanup CleanupFunc
}

// Close runs the cleanup function if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates remote mirrors based on configuration
type Factory interface {
	CreateMirror(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for mirror creation
type Config struct {
	Type BackendType

	// Postgres specific
	PostgresDSN string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	TransactionsSheet        string
	BudgetsSheet             string
	ProfilesSheet            string
}

// BackendType represents the type of backend
type BackendType string

const (
	NoneBackend     BackendType = "none"
	MemoryBackend   BackendType = "memory"
	SheetsBackend   BackendType = "sheets"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case NoneBackend, MemoryBackend, SheetsBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

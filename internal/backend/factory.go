package backend

import (
	"context"
	"fmt"
	"log/slog"

	"bookngn/internal/remote/google"
	"bookngn/internal/remote/memory"
	"bookngn/internal/remote/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateMirror implements Factory.CreateMirror
func (f *DefaultFactory) CreateMirror(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case NoneBackend:
		f.logger.Info("Remote mirror disabled, changes stay local")
		return &Result{}, nil
	case MemoryBackend:
		f.logger.Info("Initialized in-memory mirror")
		return &Result{Mirror: memory.New()}, nil
	case SheetsBackend:
		return f.createSheetsMirror(ctx, config)
	case PostgresBackend:
		return f.createPostgresMirror(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsMirror(ctx context.Context, config Config) (*Result, error) {
	cli, err := google.New(ctx, google.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
		TransactionsSheet:  config.TransactionsSheet,
		BudgetsSheet:       config.BudgetsSheet,
		ProfilesSheet:      config.ProfilesSheet,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets mirror", "spreadsheet_id", config.GoogleSpreadsheetID)
	return &Result{Mirror: cli}, nil
}

func (f *DefaultFactory) createPostgresMirror(ctx context.Context, config Config) (*Result, error) {
	repo, db, err := postgres.Open(ctx, config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres mirror: %w", err)
	}

	f.logger.Info("Initialized Postgres mirror")
	return &Result{Mirror: repo, Cleanup: db.Close}, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"bookngn/internal/core"
	"bookngn/internal/storage"
	"bookngn/internal/tax"
)

// Publisher sends the "sync requested" nudge to the worker.
type Publisher interface {
	PublishSyncRequested(ctx context.Context, userID, entity, entityID string) error
}

// Invalidator drops derived data that depends on a user's ledger or profile.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// LedgerService orchestrates ledger writes across SQLite and AMQP. Every
// mutation is stored locally first (the row and its sync_queue entry commit
// together); the AMQP nudge is best effort.
type LedgerService struct {
	storage     *storage.SQLiteRepository
	publisher   Publisher
	invalidator Invalidator
}

// NewLedgerService wires the service. publisher and invalidator may be nil.
func NewLedgerService(storage *storage.SQLiteRepository, publisher Publisher, invalidator Invalidator) *LedgerService {
	return &LedgerService{
		storage:     storage,
		publisher:   publisher,
		invalidator: invalidator,
	}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// checkCategory resolves a category id and verifies it accepts entries of type t.
func (s *LedgerService) checkCategory(ctx context.Context, userID, categoryID string, t core.EntryType) error {
	if categoryID == "" {
		return nil
	}
	// Seeds the defaults for first-time users before looking the id up
	if _, err := s.storage.ListCategories(ctx, userID); err != nil {
		return err
	}
	c, err := s.storage.GetCategory(ctx, userID, categoryID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
	}
	if err != nil {
		return err
	}
	if t != "" && c.Type != t {
		return fmt.Errorf("%w: %s is %s", ErrCategoryMismatch, c.Name, c.Type)
	}
	return nil
}

func (s *LedgerService) CreateTransaction(ctx context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}
	if t.Type == core.Income {
		t.IsDeductible = false
	}
	if err := s.checkCategory(ctx, userID, t.CategoryID, t.Type); err != nil {
		return core.Transaction{}, err
	}

	created, err := s.storage.CreateTransaction(ctx, userID, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.changed(ctx, userID, storage.EntityTransaction, created.ID)
	return created, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	return s.storage.GetTransaction(ctx, userID, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, invalid(core.ErrInvalidEntryType)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, invalid(errors.New("limit and offset must not be negative"))
	}
	return s.storage.ListTransactions(ctx, userID, f)
}

// TransactionPatch carries the fields of a partial update; nil means unchanged.
type TransactionPatch struct {
	Type         *core.EntryType
	Amount       *core.Money
	CategoryID   *string
	AccountID    *string
	Date         *core.Date
	Description  *string
	IsDeductible *bool
	ExchangeRate *decimal.NullDecimal
}

// UpdateTransaction applies patch to the stored entry.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID, id string, patch TransactionPatch) (core.Transaction, error) {
	t, err := s.storage.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if patch.Type != nil {
		t.Type = *patch.Type
	}
	if patch.Amount != nil {
		t.Amount = *patch.Amount
	}
	if patch.CategoryID != nil {
		t.CategoryID = *patch.CategoryID
	}
	if patch.AccountID != nil {
		t.AccountID = *patch.AccountID
	}
	if patch.Date != nil {
		t.Date = *patch.Date
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.IsDeductible != nil {
		t.IsDeductible = *patch.IsDeductible
	}
	if patch.ExchangeRate != nil {
		t.ExchangeRate = *patch.ExchangeRate
	}
	if t.Type == core.Income {
		t.IsDeductible = false
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}
	if err := s.checkCategory(ctx, userID, t.CategoryID, t.Type); err != nil {
		return core.Transaction{}, err
	}

	updated, err := s.storage.UpdateTransaction(ctx, userID, t)
	if err != nil {
		return core.Transaction{}, err
	}
	s.changed(ctx, userID, storage.EntityTransaction, id)
	return updated, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id string) error {
	if err := s.storage.DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	s.changed(ctx, userID, storage.EntityTransaction, id)
	return nil
}

func (s *LedgerService) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	return s.storage.ListCategories(ctx, userID)
}

func (s *LedgerService) CreateCategory(ctx context.Context, userID string, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, invalid(err)
	}
	// Seed defaults first so a custom "Rent" collides with the seeded one
	if _, err := s.storage.ListCategories(ctx, userID); err != nil {
		return core.Category{}, err
	}
	return s.storage.CreateCategory(ctx, userID, c)
}

func (s *LedgerService) CreateBudget(ctx context.Context, userID string, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, invalid(err)
	}
	if err := s.checkCategory(ctx, userID, b.CategoryID, core.Expense); err != nil {
		return core.Budget{}, err
	}
	created, err := s.storage.CreateBudget(ctx, userID, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	s.publish(ctx, userID, storage.EntityBudget, created.ID)
	return created, nil
}

func (s *LedgerService) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	return s.storage.ListBudgets(ctx, userID)
}

func (s *LedgerService) DeleteBudget(ctx context.Context, userID, id string) error {
	if err := s.storage.DeleteBudget(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, userID, storage.EntityBudget, id)
	return nil
}

// GetProfile returns the stored profile, or the defaults for users that never saved one.
func (s *LedgerService) GetProfile(ctx context.Context, userID string) (core.FinancialProfile, error) {
	p, err := s.storage.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return core.DefaultProfile(), nil
	}
	return p, err
}

func (s *LedgerService) SaveProfile(ctx context.Context, userID string, p core.FinancialProfile) (core.FinancialProfile, error) {
	if p.Category == "" {
		p.Category = core.PAYE
	}
	if !p.Category.Valid() {
		return core.FinancialProfile{}, invalid(core.ErrInvalidTaxpayerCategory)
	}
	if err := tax.ValidateProfile(p); err != nil {
		return core.FinancialProfile{}, invalid(err)
	}
	saved, err := s.storage.SaveProfile(ctx, userID, p)
	if err != nil {
		return core.FinancialProfile{}, fmt.Errorf("save profile: %w", err)
	}
	s.changed(ctx, userID, storage.EntityProfile, userID)
	return saved, nil
}

// changed invalidates derived tax results and nudges the worker.
func (s *LedgerService) changed(ctx context.Context, userID, entity, id string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, userID)
	}
	s.publish(ctx, userID, entity, id)
}

func (s *LedgerService) publish(ctx context.Context, userID, entity, id string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping sync message", "entity", entity, "id", id)
		return
	}
	if err := s.publisher.PublishSyncRequested(ctx, userID, entity, id); err != nil {
		// The queue row is already committed; the poller will pick it up
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"entity", entity, "id", id, "error", err)
	}
}

// Package remote defines the ports for the hosted mirror that the sync
// processor pushes local changes to.
package remote

import (
	"context"

	"bookngn/internal/core"
)

// Ports for outbound adapters.
type (
	TransactionMirror interface {
		UpsertTransaction(ctx context.Context, userID string, t core.Transaction) error
		DeleteTransaction(ctx context.Context, userID, id string) error
	}

	BudgetMirror interface {
		UpsertBudget(ctx context.Context, userID string, b core.Budget) error
		DeleteBudget(ctx context.Context, userID, id string) error
	}

	ProfileMirror interface {
		UpsertProfile(ctx context.Context, userID string, p core.FinancialProfile) error
	}

	// Mirror is everything the sync processor needs from a remote backend.
	Mirror interface {
		TransactionMirror
		BudgetMirror
		ProfileMirror
		Name() string
	}
)

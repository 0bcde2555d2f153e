package memory

import (
	"context"
	"errors"
	"testing"

	"bookngn/internal/core"
)

func TestMemoryStoreUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx := core.Transaction{ID: "t1", Type: core.Income, Amount: core.Naira(10), Date: core.NewDate(2025, 1, 1), Version: 2}
	if err := s.UpsertTransaction(ctx, "u1", tx); err != nil {
		t.Fatal(err)
	}
	stale := tx
	stale.Version = 1
	stale.Amount = core.Naira(99)
	if err := s.UpsertTransaction(ctx, "u1", stale); err != nil {
		t.Fatal(err)
	}
	got := s.Transactions("u1")
	if len(got) != 1 || got[0].Amount != core.Naira(10) {
		t.Fatalf("stale version should not overwrite: %+v", got)
	}
	if len(s.Transactions("u2")) != 0 {
		t.Fatal("other users should see nothing")
	}

	if err := s.DeleteTransaction(ctx, "u1", "t1"); err != nil {
		t.Fatal(err)
	}
	if len(s.Transactions("u1")) != 0 {
		t.Fatal("expected delete")
	}

	if err := s.UpsertProfile(ctx, "u1", core.DefaultProfile()); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Profile("u1"); !ok {
		t.Fatal("profile not stored")
	}
	if s.Calls() != 4 {
		t.Fatalf("calls = %d", s.Calls())
	}
}

func TestMemoryStoreFailNext(t *testing.T) {
	s := New()
	s.FailNext(1)
	b := core.Budget{ID: "b1", CategoryID: "c", AmountLimit: core.Naira(1), Period: core.Monthly}
	if err := s.UpsertBudget(context.Background(), "u1", b); !errors.Is(err, ErrInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if err := s.UpsertBudget(context.Background(), "u1", b); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Budget("b1"); !ok {
		t.Fatal("budget not stored")
	}
}

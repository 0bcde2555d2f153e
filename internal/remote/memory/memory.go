// Package memory is an in-process mirror used in tests and local development.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"bookngn/internal/core"
	"bookngn/internal/remote"
)

var _ remote.Mirror = (*Store)(nil)

type Store struct {
	mu           sync.Mutex
	transactions map[string]core.Transaction
	budgets      map[string]core.Budget
	profiles     map[string]core.FinancialProfile
	owners       map[string]string
	failNext     int
	calls        int
}

var ErrInjected = errors.New("memory mirror: injected failure")

func New() *Store {
	return &Store{
		transactions: make(map[string]core.Transaction),
		budgets:      make(map[string]core.Budget),
		profiles:     make(map[string]core.FinancialProfile),
		owners:       make(map[string]string),
	}
}

func (s *Store) Name() string { return "memory" }

// FailNext makes the next n calls return ErrInjected.
func (s *Store) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// Calls returns the number of mirror calls made so far, failed ones included.
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Store) begin() error {
	s.calls++
	if s.failNext > 0 {
		s.failNext--
		return ErrInjected
	}
	return nil
}

func (s *Store) UpsertTransaction(_ context.Context, userID string, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	if cur, ok := s.transactions[t.ID]; ok && cur.Version > t.Version {
		return nil
	}
	s.transactions[t.ID] = t
	s.owners[t.ID] = userID
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, _ string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	delete(s.transactions, id)
	delete(s.owners, id)
	return nil
}

func (s *Store) UpsertBudget(_ context.Context, userID string, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	s.budgets[b.ID] = b
	s.owners[b.ID] = userID
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, _ string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	delete(s.budgets, id)
	delete(s.owners, id)
	return nil
}

func (s *Store) UpsertProfile(_ context.Context, userID string, p core.FinancialProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	s.profiles[userID] = p
	return nil
}

// Transactions returns the mirrored entries of a user ordered by date.
func (s *Store) Transactions(userID string) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for id, t := range s.transactions {
		if s.owners[id] == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out
}

func (s *Store) Budget(id string) (core.Budget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	return b, ok
}

func (s *Store) Profile(userID string) (core.FinancialProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	return p, ok
}

package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"bookngn/internal/core"
	applog "bookngn/internal/log"
	"bookngn/internal/services"
	"bookngn/internal/storage"
)

// transactionRequest is the body of POST /api/transactions.
type transactionRequest struct {
	Type         string              `json:"type"`
	Amount       core.Money          `json:"amount"`
	CategoryID   string              `json:"category_id"`
	AccountID    string              `json:"account_id"`
	Date         core.Date           `json:"date"`
	Description  string              `json:"description"`
	IsDeductible bool                `json:"is_deductible"`
	ExchangeRate decimal.NullDecimal `json:"exchange_rate"`
}

func (req transactionRequest) toTransaction() (core.Transaction, error) {
	t, err := core.ParseEntryType(req.Type)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %w", services.ErrValidation, err)
	}
	date := req.Date
	if date.IsZero() {
		now := time.Now()
		date = core.NewDate(now.Year(), int(now.Month()), now.Day())
	}
	return core.Transaction{
		Type:         t,
		Amount:       req.Amount,
		CategoryID:   strings.TrimSpace(req.CategoryID),
		AccountID:    strings.TrimSpace(req.AccountID),
		Date:         date,
		Description:  sanitizeInput(req.Description),
		IsDeductible: req.IsDeductible,
		ExchangeRate: req.ExchangeRate,
	}, nil
}

// transactionPatchRequest is the body of PATCH /api/transactions/{id}.
// exchange_rate is raw so an explicit null (clear) differs from absence.
type transactionPatchRequest struct {
	Type         *string         `json:"type"`
	Amount       *core.Money     `json:"amount"`
	CategoryID   *string         `json:"category_id"`
	AccountID    *string         `json:"account_id"`
	Date         *core.Date      `json:"date"`
	Description  *string         `json:"description"`
	IsDeductible *bool           `json:"is_deductible"`
	ExchangeRate json.RawMessage `json:"exchange_rate"`
}

func (req transactionPatchRequest) toPatch() (services.TransactionPatch, error) {
	p := services.TransactionPatch{
		Amount:       req.Amount,
		CategoryID:   req.CategoryID,
		AccountID:    req.AccountID,
		Date:         req.Date,
		IsDeductible: req.IsDeductible,
	}
	if req.Type != nil {
		t, err := core.ParseEntryType(*req.Type)
		if err != nil {
			return p, fmt.Errorf("%w: %w", services.ErrValidation, err)
		}
		p.Type = &t
	}
	if req.Description != nil {
		d := sanitizeInput(*req.Description)
		p.Description = &d
	}
	if len(req.ExchangeRate) > 0 {
		var rate decimal.NullDecimal
		if err := json.Unmarshal(req.ExchangeRate, &rate); err != nil {
			return p, fmt.Errorf("%w: %w", services.ErrValidation, core.ErrInvalidExchangeRate)
		}
		p.ExchangeRate = &rate
	}
	return p, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f storage.TransactionFilter
	var err error

	if v := q.Get("from"); v != "" {
		if f.From, err = core.ParseDate(v); err != nil {
			respondError(w, r, applog.OpList, fmt.Errorf("%w: from: %w", services.ErrValidation, err))
			return
		}
	}
	if v := q.Get("to"); v != "" {
		if f.To, err = core.ParseDate(v); err != nil {
			respondError(w, r, applog.OpList, fmt.Errorf("%w: to: %w", services.ErrValidation, err))
			return
		}
	}
	if v := q.Get("type"); v != "" {
		if f.Type, err = core.ParseEntryType(v); err != nil {
			respondError(w, r, applog.OpList, fmt.Errorf("%w: %w", services.ErrValidation, err))
			return
		}
	}
	f.CategoryID = q.Get("category_id")
	if f.Limit, err = parseIntParam(r, "limit"); err != nil {
		respondError(w, r, applog.OpList, err)
		return
	}
	if f.Offset, err = parseIntParam(r, "offset"); err != nil {
		respondError(w, r, applog.OpList, err)
		return
	}

	txs, err := s.ledger.ListTransactions(r.Context(), userID(r), f)
	if err != nil {
		respondError(w, r, applog.OpList, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, applog.OpCreate, err)
		return
	}
	t, err := req.toTransaction()
	if err != nil {
		respondError(w, r, applog.OpCreate, err)
		return
	}

	created, err := s.ledger.CreateTransaction(r.Context(), userID(r), t)
	if err != nil {
		respondError(w, r, applog.OpCreate, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogEntryRecorded(r.Context(),
		userID(r), created.ID, string(created.Type), created.Amount.Kobo, created.CategoryID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.ledger.GetTransaction(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, applog.OpUpdate, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		respondError(w, r, applog.OpUpdate, err)
		return
	}

	updated, err := s.ledger.UpdateTransaction(r.Context(), userID(r), mux.Vars(r)["id"], patch)
	if err != nil {
		respondError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		respondError(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sanitizeInput removes control characters (except tab and newlines) and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

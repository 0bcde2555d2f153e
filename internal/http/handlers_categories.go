package http

import (
	"fmt"
	"net/http"
	"strings"

	"bookngn/internal/core"
	applog "bookngn/internal/log"
	"bookngn/internal/services"
)

type categoryRequest struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.ListCategories(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, applog.OpCreate, err)
		return
	}
	t, err := core.ParseEntryType(req.Type)
	if err != nil {
		respondError(w, r, applog.OpCreate, fmt.Errorf("%w: %w", services.ErrValidation, err))
		return
	}

	c, err := s.ledger.CreateCategory(r.Context(), userID(r), core.Category{
		Name:  sanitizeInput(req.Name),
		Type:  t,
		Color: strings.TrimSpace(req.Color),
		Icon:  strings.TrimSpace(req.Icon),
	})
	if err != nil {
		respondError(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

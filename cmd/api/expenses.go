package main

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/finwise/obligations/pkg/ledger"
	"github.com/finwise/obligations/pkg/models"
)

type addExpenseRequest struct {
	UserID      string          `json:"user_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category" validate:"required"`
	Description string          `json:"description"`
	OccurredOn  string          `json:"occurred_on" validate:"omitempty,datetime=2006-01-02"`
	Kind        string          `json:"kind" validate:"required,oneof=expense income"`
}

func (s *Server) addExpenseHandler(w http.ResponseWriter, r *http.Request) {
	var req addExpenseRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	input := ledger.AddExpenseInput{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Kind:        models.EntryKind(req.Kind),
	}
	if req.OccurredOn != "" {
		occurred, err := parseDate(req.OccurredOn)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid occurred_on")
			return
		}
		input.OccurredOn = occurred
	}

	entry, err := s.ledger.AddExpense(input)
	if err != nil {
		s.log.WithError(err).Error("failed to add expense")
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, entry)
}

func (s *Server) listExpensesHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.ListExpenses(r.URL.Query().Get("user_id"))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

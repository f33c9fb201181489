package main

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/finwise/obligations/pkg/ledger"
	"github.com/finwise/obligations/pkg/models"
)

type createTemplateRequest struct {
	UserID             string          `json:"user_id" validate:"required"`
	Name               string          `json:"name" validate:"required"`
	Amount             decimal.Decimal `json:"amount"`
	Category           string          `json:"category"`
	ScheduleDayOfMonth int             `json:"schedule_day_of_month" validate:"required,min=1,max=31"`
}

func (s *Server) createTemplateHandler(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	tpl, err := s.ledger.CreateTemplate(ledger.CreateTemplateInput{
		UserID:             req.UserID,
		Name:               req.Name,
		Amount:             req.Amount,
		Category:           req.Category,
		ScheduleDayOfMonth: req.ScheduleDayOfMonth,
	})
	if err != nil {
		s.log.WithError(err).Error("failed to create template")
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, tpl)
}

func (s *Server) getTemplateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	tpl, err := s.ledger.GetTemplate(id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tpl)
}

func (s *Server) listTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	tpls, err := s.ledger.ListTemplates(r.URL.Query().Get("user_id"))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tpls)
}

func (s *Server) updateTemplateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	var tpl models.RecurringExpenseTemplate
	if err := decodeAndValidate(r, &tpl); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	tpl.ID = id

	if err := s.ledger.UpdateTemplate(&tpl); err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tpl)
}

func (s *Server) deleteTemplateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	if err := s.ledger.DeleteTemplate(id); err != nil {
		respondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package main

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/finwise/obligations/pkg/ledger"
	"github.com/finwise/obligations/pkg/models"
)

type createSubscriptionRequest struct {
	UserID          string          `json:"user_id" validate:"required"`
	Name            string          `json:"name" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	Category        string          `json:"category"`
	BillingCycle    string          `json:"billing_cycle" validate:"required,oneof=weekly monthly quarterly yearly"`
	NextBillingDate string          `json:"next_billing_date" validate:"required,datetime=2006-01-02"`
}

func (s *Server) createSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	nextBilling, err := parseDate(req.NextBillingDate)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid next_billing_date")
		return
	}

	sub, err := s.ledger.CreateSubscription(ledger.CreateSubscriptionInput{
		UserID:          req.UserID,
		Name:            req.Name,
		Amount:          req.Amount,
		Category:        req.Category,
		BillingCycle:    models.BillingCycle(req.BillingCycle),
		NextBillingDate: nextBilling,
	})
	if err != nil {
		s.log.WithError(err).Error("failed to create subscription")
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, sub)
}

func (s *Server) getSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}
	sub, err := s.ledger.GetSubscription(id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

func (s *Server) listSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	subs, err := s.ledger.ListSubscriptions(r.URL.Query().Get("user_id"))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, subs)
}

func (s *Server) updateSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}

	var sub models.SubscriptionAccount
	if err := decodeAndValidate(r, &sub); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	sub.ID = id

	if err := s.ledger.UpdateSubscription(&sub); err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

func (s *Server) deleteSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}
	if err := s.ledger.DeleteSubscription(id); err != nil {
		respondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package main

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/finwise/obligations/pkg/ledger"
	"github.com/finwise/obligations/pkg/models"
)

type createLoanRequest struct {
	UserID             string          `json:"user_id" validate:"required"`
	Lender             string          `json:"lender" validate:"required"`
	Principal          decimal.Decimal `json:"principal"`
	AnnualInterestRate decimal.Decimal `json:"annual_interest_rate"`
	TenureMonths       int             `json:"tenure_months" validate:"required,min=1"`
	StartDate          string          `json:"start_date" validate:"required,datetime=2006-01-02"`
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid start_date")
		return
	}

	loan, err := s.ledger.CreateLoan(ledger.CreateLoanInput{
		UserID:             req.UserID,
		Lender:             req.Lender,
		Principal:          req.Principal,
		AnnualInterestRate: req.AnnualInterestRate,
		TenureMonths:       req.TenureMonths,
		StartDate:          startDate,
	})
	if err != nil {
		s.log.WithError(err).Error("failed to create loan")
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, loan)
}

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	return id, err == nil
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid loan id")
		return
	}
	loan, err := s.ledger.GetLoan(id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, loan)
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.ListLoans(r.URL.Query().Get("user_id"))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, loans)
}

func (s *Server) updateLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	var loan models.LoanAccount
	if err := decodeAndValidate(r, &loan); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	loan.ID = id

	if err := s.ledger.UpdateLoan(&loan); err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, loan)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid loan id")
		return
	}
	if err := s.ledger.DeleteLoan(id); err != nil {
		respondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loanScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid loan id")
		return
	}
	entries, err := s.ledger.LoanSchedule(id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

type recordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	var req recordPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := s.ledger.RecordManualPayment(id, req.Amount)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, record)
}

func (s *Server) listPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid loan id")
		return
	}
	records, err := s.ledger.ListPayments(id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}

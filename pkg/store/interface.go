package store

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/finwise/obligations/pkg/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Storage defines the persistence operations for loans, subscriptions,
// recurring templates and the ledger. Ledger entries and payment records are
// append-only: there are no update or delete operations for them.
type Storage interface {
	CreateLoan(loan *models.LoanAccount) error
	GetLoan(id uuid.UUID) (*models.LoanAccount, error)
	UpdateLoan(loan *models.LoanAccount) error
	DeleteLoan(id uuid.UUID) error
	ListLoans(userID string) ([]*models.LoanAccount, error)
	// ListDueLoans returns active loans with a positive outstanding balance
	// whose next due date is on or before asOf.
	ListDueLoans(asOf time.Time) ([]*models.LoanAccount, error)

	CreateSubscription(sub *models.SubscriptionAccount) error
	GetSubscription(id uuid.UUID) (*models.SubscriptionAccount, error)
	UpdateSubscription(sub *models.SubscriptionAccount) error
	DeleteSubscription(id uuid.UUID) error
	ListSubscriptions(userID string) ([]*models.SubscriptionAccount, error)
	// ListDueSubscriptions returns active subscriptions whose next billing
	// date is on or before asOf.
	ListDueSubscriptions(asOf time.Time) ([]*models.SubscriptionAccount, error)

	CreateTemplate(tpl *models.RecurringExpenseTemplate) error
	GetTemplate(id uuid.UUID) (*models.RecurringExpenseTemplate, error)
	UpdateTemplate(tpl *models.RecurringExpenseTemplate) error
	DeleteTemplate(id uuid.UUID) error
	ListTemplates(userID string) ([]*models.RecurringExpenseTemplate, error)
	ListActiveTemplates() ([]*models.RecurringExpenseTemplate, error)

	CreateLedgerEntry(entry *models.LedgerEntry) error
	ListLedgerEntries(userID string) ([]*models.LedgerEntry, error)

	CreatePaymentRecord(record *models.PaymentRecord) error
	ListPaymentRecords(loanID uuid.UUID) ([]*models.PaymentRecord, error)

	Close() error
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "active"
	LoanStatusCompleted LoanStatus = "completed"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

type BillingCycle string

const (
	BillingCycleWeekly    BillingCycle = "weekly"
	BillingCycleMonthly   BillingCycle = "monthly"
	BillingCycleQuarterly BillingCycle = "quarterly"
	BillingCycleYearly    BillingCycle = "yearly"
)

type EntryKind string

const (
	EntryKindExpense EntryKind = "expense"
	EntryKindIncome  EntryKind = "income"
)

// SourceType identifies which recurring obligation produced a ledger entry.
// Manual entries carry an empty source type.
type SourceType string

const (
	SourceTypeSubscription SourceType = "subscription"
	SourceTypeLoan         SourceType = "loan"
	SourceTypeTemplate     SourceType = "template"
)

// LoanAccount is an EMI loan owned by a single user. MonthlyPayment is
// computed once at creation from the original loan parameters; the original
// Principal never changes, only OutstandingBalance.
type LoanAccount struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             string          `json:"user_id"`
	Lender             string          `json:"lender"`
	Principal          decimal.Decimal `json:"principal"`
	AnnualInterestRate decimal.Decimal `json:"annual_interest_rate"` // percent per annum, e.g. 8.5
	TenureMonths       int             `json:"tenure_months"`
	StartDate          time.Time       `json:"start_date"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	MonthlyPayment     decimal.Decimal `json:"monthly_payment"`
	NextDueDate        time.Time       `json:"next_due_date"`
	Status             LoanStatus      `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// SubscriptionAccount is a recurring service charge (streaming, gym, ...).
// NextBillingDate is the anchor that the processor advances one cycle at a
// time; paused or cancelled subscriptions are never billed.
type SubscriptionAccount struct {
	ID              uuid.UUID          `json:"id"`
	UserID          string             `json:"user_id"`
	Name            string             `json:"name"`
	Amount          decimal.Decimal    `json:"amount"`
	Category        string             `json:"category,omitempty"`
	BillingCycle    BillingCycle       `json:"billing_cycle"`
	NextBillingDate time.Time          `json:"next_billing_date"`
	Status          SubscriptionStatus `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// RecurringExpenseTemplate emits one ledger entry per month on its schedule
// day. LastProcessedAt prevents a second entry when the processor runs twice
// on the same calendar day (UTC).
type RecurringExpenseTemplate struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             string          `json:"user_id"`
	Name               string          `json:"name"`
	Amount             decimal.Decimal `json:"amount"`
	Category           string          `json:"category"`
	ScheduleDayOfMonth int             `json:"schedule_day_of_month"` // 1-31
	IsActive           bool            `json:"is_active"`
	LastProcessedAt    *time.Time      `json:"last_processed_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// LedgerEntry is an append-only record of a financial event. Entries created
// by the processor reference the obligation that produced them.
type LedgerEntry struct {
	ID          uuid.UUID       `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	OccurredOn  time.Time       `json:"occurred_on"`
	Kind        EntryKind       `json:"kind"`
	SourceType  SourceType      `json:"source_type,omitempty"`
	SourceID    *uuid.UUID      `json:"source_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type PaymentStatus string

const (
	PaymentStatusPaid PaymentStatus = "paid"
)

// PaymentRecord captures one recorded loan installment with its
// principal/interest split.
type PaymentRecord struct {
	ID                 uuid.UUID       `json:"id"`
	LoanID             uuid.UUID       `json:"loan_id"`
	AmountPaid         decimal.Decimal `json:"amount_paid"`
	PrincipalComponent decimal.Decimal `json:"principal_component"`
	InterestComponent  decimal.Decimal `json:"interest_component"`
	DueDate            time.Time       `json:"due_date"`
	PaymentDate        time.Time       `json:"payment_date"`
	Status             PaymentStatus   `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
}

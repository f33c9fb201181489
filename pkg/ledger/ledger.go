// Package ledger holds the business logic for loans, subscriptions,
// recurring expense templates and the expense ledger.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finwise/obligations/pkg/amortize"
	"github.com/finwise/obligations/pkg/models"
	"github.com/finwise/obligations/pkg/store"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrLoanNotActive = errors.New("loan is not active")
)

// Ledger handles create/read/update flows and manual payments. The recurring
// batch processing lives in the processor package.
type Ledger struct {
	storage store.Storage
}

func NewLedger(s store.Storage) *Ledger {
	return &Ledger{storage: s}
}

// CreateLoanInput contains the user-supplied loan parameters.
type CreateLoanInput struct {
	UserID             string
	Lender             string
	Principal          decimal.Decimal
	AnnualInterestRate decimal.Decimal
	TenureMonths       int
	StartDate          time.Time
}

// CreateLoan registers a new loan. The monthly payment is computed once here
// from the original parameters; the first installment falls due one month
// after the start date.
func (l *Ledger) CreateLoan(input CreateLoanInput) (*models.LoanAccount, error) {
	if input.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	payment, err := amortize.MonthlyPayment(input.Principal, input.AnnualInterestRate, input.TenureMonths)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	loan := &models.LoanAccount{
		ID:                 uuid.New(),
		UserID:             input.UserID,
		Lender:             input.Lender,
		Principal:          input.Principal,
		AnnualInterestRate: input.AnnualInterestRate,
		TenureMonths:       input.TenureMonths,
		StartDate:          input.StartDate,
		OutstandingBalance: input.Principal,
		MonthlyPayment:     payment,
		NextDueDate:        amortize.AddMonths(input.StartDate, 1),
		Status:             models.LoanStatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := l.storage.CreateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}
	return loan, nil
}

func (l *Ledger) GetLoan(id uuid.UUID) (*models.LoanAccount, error) {
	return l.storage.GetLoan(id)
}

func (l *Ledger) ListLoans(userID string) ([]*models.LoanAccount, error) {
	return l.storage.ListLoans(userID)
}

// UpdateLoan applies a manual correction. The balance must not go negative;
// a balance corrected down to zero completes the loan.
func (l *Ledger) UpdateLoan(loan *models.LoanAccount) error {
	if loan.OutstandingBalance.IsNegative() {
		return fmt.Errorf("%w: outstanding balance must not be negative", ErrInvalidInput)
	}
	if loan.OutstandingBalance.IsZero() {
		loan.Status = models.LoanStatusCompleted
	}
	loan.UpdatedAt = time.Now().UTC()
	return l.storage.UpdateLoan(loan)
}

func (l *Ledger) DeleteLoan(id uuid.UUID) error {
	return l.storage.DeleteLoan(id)
}

// LoanSchedule recomputes the full amortization table from the loan's
// original parameters.
func (l *Ledger) LoanSchedule(id uuid.UUID) ([]amortize.Entry, error) {
	loan, err := l.storage.GetLoan(id)
	if err != nil {
		return nil, err
	}
	return amortize.Schedule(loan.Principal, loan.AnnualInterestRate, loan.TenureMonths, loan.StartDate)
}

// RecordManualPayment applies an ad-hoc payment against a loan's balance,
// outside the normal installment schedule. The whole amount reduces
// principal.
func (l *Ledger) RecordManualPayment(loanID uuid.UUID, amount decimal.Decimal) (*models.PaymentRecord, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrInvalidInput)
	}

	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != models.LoanStatusActive {
		return nil, ErrLoanNotActive
	}

	now := time.Now().UTC()
	loan.OutstandingBalance = loan.OutstandingBalance.Sub(amount)
	if loan.OutstandingBalance.LessThanOrEqual(decimal.Zero) {
		loan.OutstandingBalance = decimal.Zero
		loan.Status = models.LoanStatusCompleted
	}
	loan.UpdatedAt = now
	if err := l.storage.UpdateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to update loan balance: %w", err)
	}

	record := &models.PaymentRecord{
		ID:                 uuid.New(),
		LoanID:             loan.ID,
		AmountPaid:         amount,
		PrincipalComponent: amount,
		InterestComponent:  decimal.Zero,
		DueDate:            loan.NextDueDate,
		PaymentDate:        now,
		Status:             models.PaymentStatusPaid,
		CreatedAt:          now,
	}
	if err := l.storage.CreatePaymentRecord(record); err != nil {
		return nil, fmt.Errorf("failed to store payment record: %w", err)
	}

	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		UserID:      loan.UserID,
		Amount:      amount,
		Category:    "EMI Payments",
		Description: loan.Lender,
		OccurredOn:  now,
		Kind:        models.EntryKindExpense,
		SourceType:  models.SourceTypeLoan,
		SourceID:    &loan.ID,
		CreatedAt:   now,
	}
	if err := l.storage.CreateLedgerEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to store ledger entry: %w", err)
	}

	return record, nil
}

func (l *Ledger) ListPayments(loanID uuid.UUID) ([]*models.PaymentRecord, error) {
	return l.storage.ListPaymentRecords(loanID)
}

// CreateSubscriptionInput contains the user-supplied subscription fields.
type CreateSubscriptionInput struct {
	UserID          string
	Name            string
	Amount          decimal.Decimal
	Category        string
	BillingCycle    models.BillingCycle
	NextBillingDate time.Time
}

func validBillingCycle(c models.BillingCycle) bool {
	switch c {
	case models.BillingCycleWeekly, models.BillingCycleMonthly, models.BillingCycleQuarterly, models.BillingCycleYearly:
		return true
	}
	return false
}

func (l *Ledger) CreateSubscription(input CreateSubscriptionInput) (*models.SubscriptionAccount, error) {
	if input.UserID == "" || input.Name == "" {
		return nil, fmt.Errorf("%w: user id and name are required", ErrInvalidInput)
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if !validBillingCycle(input.BillingCycle) {
		return nil, fmt.Errorf("%w: unknown billing cycle %q", ErrInvalidInput, input.BillingCycle)
	}

	now := time.Now().UTC()
	sub := &models.SubscriptionAccount{
		ID:              uuid.New(),
		UserID:          input.UserID,
		Name:            input.Name,
		Amount:          input.Amount,
		Category:        input.Category,
		BillingCycle:    input.BillingCycle,
		NextBillingDate: input.NextBillingDate,
		Status:          models.SubscriptionStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := l.storage.CreateSubscription(sub); err != nil {
		return nil, fmt.Errorf("failed to store subscription: %w", err)
	}
	return sub, nil
}

func (l *Ledger) GetSubscription(id uuid.UUID) (*models.SubscriptionAccount, error) {
	return l.storage.GetSubscription(id)
}

func (l *Ledger) ListSubscriptions(userID string) ([]*models.SubscriptionAccount, error) {
	return l.storage.ListSubscriptions(userID)
}

func (l *Ledger) UpdateSubscription(sub *models.SubscriptionAccount) error {
	if !validBillingCycle(sub.BillingCycle) {
		return fmt.Errorf("%w: unknown billing cycle %q", ErrInvalidInput, sub.BillingCycle)
	}
	sub.UpdatedAt = time.Now().UTC()
	return l.storage.UpdateSubscription(sub)
}

func (l *Ledger) DeleteSubscription(id uuid.UUID) error {
	return l.storage.DeleteSubscription(id)
}

// CreateTemplateInput contains the user-supplied recurring expense fields.
type CreateTemplateInput struct {
	UserID             string
	Name               string
	Amount             decimal.Decimal
	Category           string
	ScheduleDayOfMonth int
}

func (l *Ledger) CreateTemplate(input CreateTemplateInput) (*models.RecurringExpenseTemplate, error) {
	if input.UserID == "" || input.Name == "" {
		return nil, fmt.Errorf("%w: user id and name are required", ErrInvalidInput)
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if input.ScheduleDayOfMonth < 1 || input.ScheduleDayOfMonth > 31 {
		return nil, fmt.Errorf("%w: schedule day must be between 1 and 31, got %d", ErrInvalidInput, input.ScheduleDayOfMonth)
	}

	now := time.Now().UTC()
	tpl := &models.RecurringExpenseTemplate{
		ID:                 uuid.New(),
		UserID:             input.UserID,
		Name:               input.Name,
		Amount:             input.Amount,
		Category:           input.Category,
		ScheduleDayOfMonth: input.ScheduleDayOfMonth,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := l.storage.CreateTemplate(tpl); err != nil {
		return nil, fmt.Errorf("failed to store template: %w", err)
	}
	return tpl, nil
}

func (l *Ledger) GetTemplate(id uuid.UUID) (*models.RecurringExpenseTemplate, error) {
	return l.storage.GetTemplate(id)
}

func (l *Ledger) ListTemplates(userID string) ([]*models.RecurringExpenseTemplate, error) {
	return l.storage.ListTemplates(userID)
}

func (l *Ledger) UpdateTemplate(tpl *models.RecurringExpenseTemplate) error {
	if tpl.ScheduleDayOfMonth < 1 || tpl.ScheduleDayOfMonth > 31 {
		return fmt.Errorf("%w: schedule day must be between 1 and 31, got %d", ErrInvalidInput, tpl.ScheduleDayOfMonth)
	}
	tpl.UpdatedAt = time.Now().UTC()
	return l.storage.UpdateTemplate(tpl)
}

func (l *Ledger) DeleteTemplate(id uuid.UUID) error {
	return l.storage.DeleteTemplate(id)
}

// AddExpenseInput contains the fields of a manually recorded ledger entry.
type AddExpenseInput struct {
	UserID      string
	Amount      decimal.Decimal
	Category    string
	Description string
	OccurredOn  time.Time
	Kind        models.EntryKind
}

// AddExpense records a one-off expense or income entry with no originating
// obligation.
func (l *Ledger) AddExpense(input AddExpenseInput) (*models.LedgerEntry, error) {
	if input.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if input.Kind != models.EntryKindExpense && input.Kind != models.EntryKindIncome {
		return nil, fmt.Errorf("%w: unknown entry kind %q", ErrInvalidInput, input.Kind)
	}

	occurred := input.OccurredOn
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		UserID:      input.UserID,
		Amount:      input.Amount,
		Category:    input.Category,
		Description: input.Description,
		OccurredOn:  occurred,
		Kind:        input.Kind,
		CreatedAt:   time.Now().UTC(),
	}
	if err := l.storage.CreateLedgerEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to store ledger entry: %w", err)
	}
	return entry, nil
}

func (l *Ledger) ListExpenses(userID string) ([]*models.LedgerEntry, error) {
	return l.storage.ListLedgerEntries(userID)
}

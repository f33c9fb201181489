// Package processor implements the recurring obligations batch job: it scans
// due subscriptions, loans and recurring expense templates as of a given day,
// writes the resulting ledger entries, and advances each item's schedule.
package processor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/finwise/obligations/pkg/amortize"
	"github.com/finwise/obligations/pkg/models"
	"github.com/finwise/obligations/pkg/store"
)

const (
	// CategorySubscriptions is the default category for subscription charges
	// without one of their own.
	CategorySubscriptions = "Subscriptions"
	// CategoryEMIPayments is the ledger category for loan installments.
	CategoryEMIPayments = "EMI Payments"
)

var (
	itemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obligations_items_processed_total",
		Help: "Recurring items successfully processed, by collection",
	}, []string{"collection"})

	itemsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obligations_items_failed_total",
		Help: "Recurring items skipped due to per-item errors, by collection",
	}, []string{"collection"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obligations_runs_total",
		Help: "Processor runs, by outcome",
	}, []string{"outcome"})
)

// UserSummary lists what was processed for one user in a single run.
type UserSummary struct {
	Subscriptions []string        `json:"subscriptions"`
	EMIs          []string        `json:"emis"`
	Templates     []string        `json:"templates"`
	Total         decimal.Decimal `json:"total"`
}

// Summary aggregates the results of one processor run.
type Summary struct {
	Processed     int                     `json:"processed"`
	Subscriptions int                     `json:"subscriptions"`
	EMIs          int                     `json:"emis"`
	Templates     int                     `json:"templates"`
	Users         map[string]*UserSummary `json:"userSummary"`
}

func (s *Summary) user(userID string) *UserSummary {
	u, ok := s.Users[userID]
	if !ok {
		u = &UserSummary{
			Subscriptions: []string{},
			EMIs:          []string{},
			Templates:     []string{},
			Total:         decimal.Zero,
		}
		s.Users[userID] = u
	}
	return u
}

// Processor advances recurring obligations past their due dates. It is
// designed as a single sequential batch invocation: no two runs should
// advance the same entity concurrently.
type Processor struct {
	storage store.Storage
	log     *logrus.Logger
}

func New(storage store.Storage, log *logrus.Logger) *Processor {
	return &Processor{storage: storage, log: log}
}

// Run processes everything due on or before today. The day is an explicit
// parameter rather than a clock read so runs are testable and replayable; it
// is normalized to a UTC calendar date.
//
// Items are processed independently: a failure on one is logged and the batch
// continues. Only a collection-level fetch failure aborts the run, in which
// case no partial summary is returned.
func (p *Processor) Run(today time.Time) (*Summary, error) {
	today = DateOnly(today)
	summary := &Summary{Users: make(map[string]*UserSummary)}

	if err := p.processSubscriptions(today, summary); err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := p.processLoans(today, summary); err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := p.processTemplates(today, summary); err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	runsTotal.WithLabelValues("success").Inc()
	p.log.WithFields(logrus.Fields{
		"date":          today.Format(time.DateOnly),
		"processed":     summary.Processed,
		"subscriptions": summary.Subscriptions,
		"emis":          summary.EMIs,
		"templates":     summary.Templates,
	}).Info("processing run complete")
	return summary, nil
}

func (p *Processor) processSubscriptions(today time.Time, summary *Summary) error {
	subs, err := p.storage.ListDueSubscriptions(today)
	if err != nil {
		return fmt.Errorf("failed to list due subscriptions: %w", err)
	}

	for _, sub := range subs {
		if err := p.billSubscription(sub, today); err != nil {
			p.itemFailed("subscriptions", sub.ID, err)
			continue
		}
		itemsProcessed.WithLabelValues("subscriptions").Inc()
		summary.Subscriptions++
		summary.Processed++
		u := summary.user(sub.UserID)
		u.Subscriptions = append(u.Subscriptions, sub.Name)
		u.Total = u.Total.Add(sub.Amount)
	}
	return nil
}

// billSubscription emits one charge and advances the billing date by exactly
// one cycle from its current value, preserving the original anchor day even
// when several cycles have lapsed. A subscription that is still in the past
// afterwards is picked up again on the next run.
func (p *Processor) billSubscription(sub *models.SubscriptionAccount, today time.Time) error {
	category := sub.Category
	if category == "" {
		category = CategorySubscriptions
	}

	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		UserID:      sub.UserID,
		Amount:      sub.Amount,
		Category:    category,
		Description: sub.Name,
		OccurredOn:  today,
		Kind:        models.EntryKindExpense,
		SourceType:  models.SourceTypeSubscription,
		SourceID:    &sub.ID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.storage.CreateLedgerEntry(entry); err != nil {
		return fmt.Errorf("ledger entry: %w", err)
	}

	sub.NextBillingDate = NextBillingDate(sub.NextBillingDate, sub.BillingCycle)
	sub.UpdatedAt = time.Now().UTC()
	if err := p.storage.UpdateSubscription(sub); err != nil {
		return fmt.Errorf("advance billing date: %w", err)
	}
	return nil
}

func (p *Processor) processLoans(today time.Time, summary *Summary) error {
	loans, err := p.storage.ListDueLoans(today)
	if err != nil {
		return fmt.Errorf("failed to list due loans: %w", err)
	}

	for _, loan := range loans {
		if err := p.recordInstallment(loan, today); err != nil {
			p.itemFailed("loans", loan.ID, err)
			continue
		}
		itemsProcessed.WithLabelValues("loans").Inc()
		summary.EMIs++
		summary.Processed++
		u := summary.user(loan.UserID)
		u.EMIs = append(u.EMIs, loan.Lender)
		u.Total = u.Total.Add(loan.MonthlyPayment)
	}
	return nil
}

// recordInstallment splits the fixed payment into interest on the current
// balance and a principal reduction, then advances the due date one month.
// The balance is clamped at zero; a fully repaid loan becomes completed and
// is never selected again.
func (p *Processor) recordInstallment(loan *models.LoanAccount, today time.Time) error {
	rate := amortize.MonthlyRate(loan.AnnualInterestRate)
	interest := loan.OutstandingBalance.Mul(rate).Round(2)
	principalPart := loan.MonthlyPayment.Sub(interest)

	newOutstanding := loan.OutstandingBalance.Sub(principalPart).Round(2)
	if newOutstanding.IsNegative() {
		newOutstanding = decimal.Zero
	}

	record := &models.PaymentRecord{
		ID:                 uuid.New(),
		LoanID:             loan.ID,
		AmountPaid:         loan.MonthlyPayment,
		PrincipalComponent: principalPart,
		InterestComponent:  interest,
		DueDate:            loan.NextDueDate,
		PaymentDate:        today,
		Status:             models.PaymentStatusPaid,
		CreatedAt:          time.Now().UTC(),
	}
	if err := p.storage.CreatePaymentRecord(record); err != nil {
		return fmt.Errorf("payment record: %w", err)
	}

	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		UserID:      loan.UserID,
		Amount:      loan.MonthlyPayment,
		Category:    CategoryEMIPayments,
		Description: loan.Lender,
		OccurredOn:  today,
		Kind:        models.EntryKindExpense,
		SourceType:  models.SourceTypeLoan,
		SourceID:    &loan.ID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.storage.CreateLedgerEntry(entry); err != nil {
		return fmt.Errorf("ledger entry: %w", err)
	}

	loan.OutstandingBalance = newOutstanding
	loan.NextDueDate = amortize.AddMonths(loan.NextDueDate, 1)
	if newOutstanding.IsZero() {
		loan.Status = models.LoanStatusCompleted
	}
	loan.UpdatedAt = time.Now().UTC()
	if err := p.storage.UpdateLoan(loan); err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	return nil
}

func (p *Processor) processTemplates(today time.Time, summary *Summary) error {
	templates, err := p.storage.ListActiveTemplates()
	if err != nil {
		return fmt.Errorf("failed to list active templates: %w", err)
	}

	for _, tpl := range templates {
		if !templateDue(tpl, today) {
			continue
		}
		// At most one entry per template per calendar day, regardless of how
		// many times the processor runs.
		if tpl.LastProcessedAt != nil && SameDay(*tpl.LastProcessedAt, today) {
			p.log.WithFields(logrus.Fields{
				"collection": "templates",
				"id":         tpl.ID,
			}).Debug("already processed today, skipping")
			continue
		}
		if err := p.emitTemplateExpense(tpl, today); err != nil {
			p.itemFailed("templates", tpl.ID, err)
			continue
		}
		itemsProcessed.WithLabelValues("templates").Inc()
		summary.Templates++
		summary.Processed++
		u := summary.user(tpl.UserID)
		u.Templates = append(u.Templates, tpl.Name)
		u.Total = u.Total.Add(tpl.Amount)
	}
	return nil
}

// templateDue reports whether a template's schedule day falls on today. A
// schedule day past the end of the current month fires on the month's last
// day, so day-31 templates are not silently dropped in shorter months.
func templateDue(tpl *models.RecurringExpenseTemplate, today time.Time) bool {
	if tpl.ScheduleDayOfMonth == today.Day() {
		return true
	}
	lastDay := time.Date(today.Year(), today.Month()+1, 0, 0, 0, 0, 0, today.Location()).Day()
	return today.Day() == lastDay && tpl.ScheduleDayOfMonth > lastDay
}

func (p *Processor) emitTemplateExpense(tpl *models.RecurringExpenseTemplate, today time.Time) error {
	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		UserID:      tpl.UserID,
		Amount:      tpl.Amount,
		Category:    tpl.Category,
		Description: tpl.Name,
		OccurredOn:  today,
		Kind:        models.EntryKindExpense,
		SourceType:  models.SourceTypeTemplate,
		SourceID:    &tpl.ID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.storage.CreateLedgerEntry(entry); err != nil {
		return fmt.Errorf("ledger entry: %w", err)
	}

	// Stamp with the processing date, not the wall clock, so replayed runs
	// stay idempotent for their own day.
	tpl.LastProcessedAt = &today
	tpl.UpdatedAt = time.Now().UTC()
	if err := p.storage.UpdateTemplate(tpl); err != nil {
		return fmt.Errorf("stamp last processed: %w", err)
	}
	return nil
}

func (p *Processor) itemFailed(collection string, id uuid.UUID, err error) {
	itemsFailed.WithLabelValues(collection).Inc()
	p.log.WithFields(logrus.Fields{
		"collection": collection,
		"id":         id,
	}).WithError(err).Error("item processing failed, continuing batch")
}

// NextBillingDate advances a billing anchor by one cycle. Monthly and longer
// cycles use calendar arithmetic with end-of-month clamping.
func NextBillingDate(current time.Time, cycle models.BillingCycle) time.Time {
	switch cycle {
	case models.BillingCycleWeekly:
		return current.AddDate(0, 0, 7)
	case models.BillingCycleQuarterly:
		return amortize.AddMonths(current, 3)
	case models.BillingCycleYearly:
		return amortize.AddMonths(current, 12)
	default: // monthly
		return amortize.AddMonths(current, 1)
	}
}

// DateOnly normalizes a timestamp to its UTC calendar date. All idempotence
// comparisons use this convention.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two timestamps fall on the same UTC calendar date.
func SameDay(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}

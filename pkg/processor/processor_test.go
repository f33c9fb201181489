package processor

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwise/obligations/pkg/models"
	"github.com/finwise/obligations/pkg/store"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func newSubscription(userID, name string, amount string, cycle models.BillingCycle, next time.Time) *models.SubscriptionAccount {
	return &models.SubscriptionAccount{
		ID:              uuid.New(),
		UserID:          userID,
		Name:            name,
		Amount:          d(amount),
		BillingCycle:    cycle,
		NextBillingDate: next,
		Status:          models.SubscriptionStatusActive,
	}
}

func newLoan(userID, lender string, outstanding, payment, rate string, nextDue time.Time) *models.LoanAccount {
	return &models.LoanAccount{
		ID:                 uuid.New(),
		UserID:             userID,
		Lender:             lender,
		Principal:          d(outstanding),
		AnnualInterestRate: d(rate),
		TenureMonths:       12,
		StartDate:          nextDue.AddDate(0, -1, 0),
		OutstandingBalance: d(outstanding),
		MonthlyPayment:     d(payment),
		NextDueDate:        nextDue,
		Status:             models.LoanStatusActive,
	}
}

func newTemplate(userID, name string, amount string, day int) *models.RecurringExpenseTemplate {
	return &models.RecurringExpenseTemplate{
		ID:                 uuid.New(),
		UserID:             userID,
		Name:               name,
		Amount:             d(amount),
		Category:           "Rent",
		ScheduleDayOfMonth: day,
		IsActive:           true,
	}
}

func TestRun_BillsDueSubscription(t *testing.T) {
	st := store.NewMemoryStore()
	sub := newSubscription("user-1", "Netflix", "499", models.BillingCycleMonthly, date(2024, 1, 1))
	require.NoError(t, st.CreateSubscription(sub))

	summary, err := New(st, testLogger()).Run(date(2024, 1, 5))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Subscriptions)
	require.Contains(t, summary.Users, "user-1")
	assert.Equal(t, []string{"Netflix"}, summary.Users["user-1"].Subscriptions)
	assert.True(t, summary.Users["user-1"].Total.Equal(d("499")))

	entries, err := st.ListLedgerEntries("user-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Amount.Equal(d("499")))
	assert.Equal(t, CategorySubscriptions, entries[0].Category)
	assert.Equal(t, models.EntryKindExpense, entries[0].Kind)
	assert.Equal(t, models.SourceTypeSubscription, entries[0].SourceType)
	require.NotNil(t, entries[0].SourceID)
	assert.Equal(t, sub.ID, *entries[0].SourceID)
	assert.Equal(t, date(2024, 1, 5), entries[0].OccurredOn)

	// The next billing date advances from the current anchor, not from today.
	updated, err := st.GetSubscription(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 2, 1), updated.NextBillingDate)
}

func TestRun_SubscriptionCustomCategory(t *testing.T) {
	st := store.NewMemoryStore()
	sub := newSubscription("user-1", "Gym", "50", models.BillingCycleMonthly, date(2024, 1, 1))
	sub.Category = "Health"
	require.NoError(t, st.CreateSubscription(sub))

	_, err := New(st, testLogger()).Run(date(2024, 1, 1))
	require.NoError(t, err)

	entries, _ := st.ListLedgerEntries("user-1")
	require.Len(t, entries, 1)
	assert.Equal(t, "Health", entries[0].Category)
}

func TestRun_SkipsFutureAndInactiveSubscriptions(t *testing.T) {
	st := store.NewMemoryStore()
	future := newSubscription("user-1", "Future", "10", models.BillingCycleMonthly, date(2024, 2, 1))
	paused := newSubscription("user-1", "Paused", "10", models.BillingCycleMonthly, date(2024, 1, 1))
	paused.Status = models.SubscriptionStatusPaused
	cancelled := newSubscription("user-1", "Cancelled", "10", models.BillingCycleMonthly, date(2024, 1, 1))
	cancelled.Status = models.SubscriptionStatusCancelled
	for _, sub := range []*models.SubscriptionAccount{future, paused, cancelled} {
		require.NoError(t, st.CreateSubscription(sub))
	}

	summary, err := New(st, testLogger()).Run(date(2024, 1, 15))
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Processed)
	entries, _ := st.ListLedgerEntries("user-1")
	assert.Empty(t, entries)

	unchanged, _ := st.GetSubscription(future.ID)
	assert.Equal(t, date(2024, 2, 1), unchanged.NextBillingDate)
}

func TestRun_LapsedSubscriptionCatchesUpOneCyclePerRun(t *testing.T) {
	st := store.NewMemoryStore()
	sub := newSubscription("user-1", "Magazine", "25", models.BillingCycleMonthly, date(2023, 10, 15))
	require.NoError(t, st.CreateSubscription(sub))

	p := New(st, testLogger())
	today := date(2024, 1, 5)

	// Each run emits exactly one entry and advances one cycle, preserving the
	// day-15 anchor; the subscription stays due until it catches up.
	for i, want := range []time.Time{date(2023, 11, 15), date(2023, 12, 15), date(2024, 1, 15)} {
		summary, err := p.Run(today)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Subscriptions, "run %d", i+1)
		updated, _ := st.GetSubscription(sub.ID)
		assert.Equal(t, want, updated.NextBillingDate, "run %d", i+1)
	}

	// Caught up: nothing due anymore.
	summary, err := p.Run(today)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Subscriptions)

	entries, _ := st.ListLedgerEntries("user-1")
	assert.Len(t, entries, 3)
}

func TestRun_RecordsLoanInstallment(t *testing.T) {
	st := store.NewMemoryStore()
	loan := newLoan("user-1", "HDFC", "5000", "5000", "12", date(2024, 1, 1))
	require.NoError(t, st.CreateLoan(loan))

	summary, err := New(st, testLogger()).Run(date(2024, 1, 1))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.EMIs)
	assert.Equal(t, []string{"HDFC"}, summary.Users["user-1"].EMIs)

	updated, err := st.GetLoan(loan.ID)
	require.NoError(t, err)
	assert.True(t, updated.OutstandingBalance.Equal(d("50")), "outstanding: %s", updated.OutstandingBalance)
	assert.Equal(t, models.LoanStatusActive, updated.Status)
	assert.Equal(t, date(2024, 2, 1), updated.NextDueDate)

	records, err := st.ListPaymentRecords(loan.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].InterestComponent.Equal(d("50")))
	assert.True(t, records[0].PrincipalComponent.Equal(d("4950")))
	assert.True(t, records[0].AmountPaid.Equal(d("5000")))
	assert.Equal(t, date(2024, 1, 1), records[0].DueDate)
	assert.Equal(t, models.PaymentStatusPaid, records[0].Status)

	entries, _ := st.ListLedgerEntries("user-1")
	require.Len(t, entries, 1)
	assert.Equal(t, CategoryEMIPayments, entries[0].Category)
	assert.True(t, entries[0].Amount.Equal(d("5000")))
}

func TestRun_CompletedLoanIsNeverSelectedAgain(t *testing.T) {
	st := store.NewMemoryStore()
	// Final installment: principal component covers the whole balance.
	loan := newLoan("user-1", "SBI", "1000", "1010", "0", date(2024, 1, 1))
	require.NoError(t, st.CreateLoan(loan))

	p := New(st, testLogger())
	summary, err := p.Run(date(2024, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EMIs)

	updated, _ := st.GetLoan(loan.ID)
	assert.True(t, updated.OutstandingBalance.IsZero())
	assert.Equal(t, models.LoanStatusCompleted, updated.Status)

	// Subsequent runs find nothing, even well past the advanced due date.
	summary, err = p.Run(date(2024, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.EMIs)

	records, _ := st.ListPaymentRecords(loan.ID)
	assert.Len(t, records, 1)
}

func TestRun_LoanDueStrictlyAfterTodayIsUntouched(t *testing.T) {
	st := store.NewMemoryStore()
	loan := newLoan("user-1", "HDFC", "5000", "500", "10", date(2024, 1, 2))
	require.NoError(t, st.CreateLoan(loan))

	summary, err := New(st, testLogger()).Run(date(2024, 1, 1))
	require.NoError(t, err)

	assert.Equal(t, 0, summary.EMIs)
	updated, _ := st.GetLoan(loan.ID)
	assert.True(t, updated.OutstandingBalance.Equal(d("5000")))
	assert.Equal(t, date(2024, 1, 2), updated.NextDueDate)
}

func TestRun_TemplateProcessedOncePerDay(t *testing.T) {
	st := store.NewMemoryStore()
	tpl := newTemplate("user-1", "Rent", "1200", 15)
	require.NoError(t, st.CreateTemplate(tpl))

	p := New(st, testLogger())
	today := date(2024, 3, 15)

	summary, err := p.Run(today)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Templates)

	updated, _ := st.GetTemplate(tpl.ID)
	require.NotNil(t, updated.LastProcessedAt)

	// Second run on the same day is a no-op for the template.
	summary, err = p.Run(today)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Templates)

	entries, _ := st.ListLedgerEntries("user-1")
	assert.Len(t, entries, 1)
}

func TestRun_TemplateFiresNextMonth(t *testing.T) {
	st := store.NewMemoryStore()
	tpl := newTemplate("user-1", "Rent", "1200", 15)
	require.NoError(t, st.CreateTemplate(tpl))

	p := New(st, testLogger())
	_, err := p.Run(date(2024, 3, 15))
	require.NoError(t, err)
	summary, err := p.Run(date(2024, 4, 15))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Templates)
	entries, _ := st.ListLedgerEntries("user-1")
	assert.Len(t, entries, 2)
}

func TestRun_TemplateOffScheduleDayIsSkipped(t *testing.T) {
	st := store.NewMemoryStore()
	tpl := newTemplate("user-1", "Rent", "1200", 15)
	require.NoError(t, st.CreateTemplate(tpl))
	inactive := newTemplate("user-1", "Old rent", "900", 14)
	inactive.IsActive = false
	require.NoError(t, st.CreateTemplate(inactive))

	summary, err := New(st, testLogger()).Run(date(2024, 3, 14))
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Templates)
	updated, _ := st.GetTemplate(tpl.ID)
	assert.Nil(t, updated.LastProcessedAt)
}

func TestRun_TemplateDayClampsToShortMonth(t *testing.T) {
	st := store.NewMemoryStore()
	tpl := newTemplate("user-1", "Insurance", "300", 31)
	require.NoError(t, st.CreateTemplate(tpl))

	// April has 30 days; a day-31 template fires on the 30th.
	summary, err := New(st, testLogger()).Run(date(2024, 4, 30))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Templates)

	// But not earlier in the month.
	st2 := store.NewMemoryStore()
	require.NoError(t, st2.CreateTemplate(newTemplate("user-1", "Insurance", "300", 31)))
	summary, err = New(st2, testLogger()).Run(date(2024, 4, 29))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Templates)
}

func TestRun_AggregatesPerUser(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.CreateSubscription(newSubscription("alice", "Netflix", "499", models.BillingCycleMonthly, date(2024, 1, 1))))
	require.NoError(t, st.CreateSubscription(newSubscription("alice", "Spotify", "199", models.BillingCycleMonthly, date(2024, 1, 3))))
	require.NoError(t, st.CreateLoan(newLoan("bob", "HDFC", "5000", "5000", "12", date(2024, 1, 1))))
	require.NoError(t, st.CreateTemplate(newTemplate("bob", "Rent", "1200", 5)))

	summary, err := New(st, testLogger()).Run(date(2024, 1, 5))
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 2, summary.Subscriptions)
	assert.Equal(t, 1, summary.EMIs)
	assert.Equal(t, 1, summary.Templates)

	require.Contains(t, summary.Users, "alice")
	require.Contains(t, summary.Users, "bob")
	assert.ElementsMatch(t, []string{"Netflix", "Spotify"}, summary.Users["alice"].Subscriptions)
	assert.True(t, summary.Users["alice"].Total.Equal(d("698")))
	assert.Equal(t, []string{"HDFC"}, summary.Users["bob"].EMIs)
	assert.Equal(t, []string{"Rent"}, summary.Users["bob"].Templates)
	assert.True(t, summary.Users["bob"].Total.Equal(d("6200")))
}

// failingStore wraps a Storage and injects errors for specific calls.
type failingStore struct {
	store.Storage
	refuseEntryFor    uuid.UUID
	failListDueSubs   bool
	failListDueLoans  bool
	failListTemplates bool
}

var errInjected = errors.New("injected storage failure")

func (f *failingStore) CreateLedgerEntry(entry *models.LedgerEntry) error {
	if entry.SourceID != nil && *entry.SourceID == f.refuseEntryFor {
		return errInjected
	}
	return f.Storage.CreateLedgerEntry(entry)
}

func (f *failingStore) ListDueSubscriptions(asOf time.Time) ([]*models.SubscriptionAccount, error) {
	if f.failListDueSubs {
		return nil, errInjected
	}
	return f.Storage.ListDueSubscriptions(asOf)
}

func (f *failingStore) ListDueLoans(asOf time.Time) ([]*models.LoanAccount, error) {
	if f.failListDueLoans {
		return nil, errInjected
	}
	return f.Storage.ListDueLoans(asOf)
}

func (f *failingStore) ListActiveTemplates() ([]*models.RecurringExpenseTemplate, error) {
	if f.failListTemplates {
		return nil, errInjected
	}
	return f.Storage.ListActiveTemplates()
}

func TestRun_ItemFailureDoesNotAbortBatch(t *testing.T) {
	mem := store.NewMemoryStore()
	bad := newSubscription("user-1", "Bad", "10", models.BillingCycleMonthly, date(2024, 1, 1))
	good := newSubscription("user-1", "Good", "20", models.BillingCycleMonthly, date(2024, 1, 1))
	require.NoError(t, mem.CreateSubscription(bad))
	require.NoError(t, mem.CreateSubscription(good))

	st := &failingStore{Storage: mem, refuseEntryFor: bad.ID}
	summary, err := New(st, testLogger()).Run(date(2024, 1, 1))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Subscriptions)
	assert.Equal(t, []string{"Good"}, summary.Users["user-1"].Subscriptions)

	// The failed item was not advanced and stays due for the next run.
	unchanged, _ := mem.GetSubscription(bad.ID)
	assert.Equal(t, date(2024, 1, 1), unchanged.NextBillingDate)
}

func TestRun_FetchFailureIsFatal(t *testing.T) {
	cases := []struct {
		name string
		st   *failingStore
	}{
		{"subscriptions", &failingStore{Storage: store.NewMemoryStore(), failListDueSubs: true}},
		{"loans", &failingStore{Storage: store.NewMemoryStore(), failListDueLoans: true}},
		{"templates", &failingStore{Storage: store.NewMemoryStore(), failListTemplates: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			summary, err := New(tc.st, testLogger()).Run(date(2024, 1, 1))
			assert.ErrorIs(t, err, errInjected)
			assert.Nil(t, summary)
		})
	}
}

func TestNextBillingDate(t *testing.T) {
	cases := []struct {
		name    string
		current time.Time
		cycle   models.BillingCycle
		want    time.Time
	}{
		{"weekly", date(2024, 1, 1), models.BillingCycleWeekly, date(2024, 1, 8)},
		{"monthly", date(2024, 1, 1), models.BillingCycleMonthly, date(2024, 2, 1)},
		{"monthly end-of-month clamp", date(2024, 1, 31), models.BillingCycleMonthly, date(2024, 2, 29)},
		{"quarterly", date(2024, 1, 15), models.BillingCycleQuarterly, date(2024, 4, 15)},
		{"yearly", date(2024, 2, 29), models.BillingCycleYearly, date(2025, 2, 28)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NextBillingDate(tc.current, tc.cycle))
		})
	}
}

func TestSameDay(t *testing.T) {
	assert.True(t, SameDay(
		time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 0, 1, 0, 0, time.UTC),
	))
	assert.False(t, SameDay(
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
	))
	// Local timestamps are compared on their UTC date.
	est := time.FixedZone("EST", -5*3600)
	assert.False(t, SameDay(
		time.Date(2024, 3, 15, 22, 0, 0, 0, est), // 03:00 UTC on the 16th
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	))
}

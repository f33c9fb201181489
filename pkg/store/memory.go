package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finwise/obligations/pkg/models"
)

// MemoryStore is an in-memory Storage implementation. It backs tests and the
// "memory" storage mode, where nothing needs to survive a restart.
type MemoryStore struct {
	mu             sync.RWMutex
	loans          map[uuid.UUID]*models.LoanAccount
	subscriptions  map[uuid.UUID]*models.SubscriptionAccount
	templates      map[uuid.UUID]*models.RecurringExpenseTemplate
	ledgerEntries  []*models.LedgerEntry
	paymentRecords []*models.PaymentRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		loans:         make(map[uuid.UUID]*models.LoanAccount),
		subscriptions: make(map[uuid.UUID]*models.SubscriptionAccount),
		templates:     make(map[uuid.UUID]*models.RecurringExpenseTemplate),
	}
}

// ---- loans ----

func (m *MemoryStore) CreateLoan(loan *models.LoanAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *loan
	m.loans[loan.ID] = &cp
	return nil
}

func (m *MemoryStore) GetLoan(id uuid.UUID) (*models.LoanAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loan, ok := m.loans[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *loan
	return &cp, nil
}

func (m *MemoryStore) UpdateLoan(loan *models.LoanAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[loan.ID]; !ok {
		return ErrNotFound
	}
	cp := *loan
	m.loans[loan.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteLoan(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[id]; !ok {
		return ErrNotFound
	}
	delete(m.loans, id)
	return nil
}

func (m *MemoryStore) ListLoans(userID string) ([]*models.LoanAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var loans []*models.LoanAccount
	for _, loan := range m.loans {
		if loan.UserID == userID {
			cp := *loan
			loans = append(loans, &cp)
		}
	}
	return loans, nil
}

func (m *MemoryStore) ListDueLoans(asOf time.Time) ([]*models.LoanAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var loans []*models.LoanAccount
	for _, loan := range m.loans {
		if loan.Status == models.LoanStatusActive && loan.OutstandingBalance.IsPositive() && !loan.NextDueDate.After(asOf) {
			cp := *loan
			loans = append(loans, &cp)
		}
	}
	return loans, nil
}

// ---- subscriptions ----

func (m *MemoryStore) CreateSubscription(sub *models.SubscriptionAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subscriptions[sub.ID] = &cp
	return nil
}

func (m *MemoryStore) GetSubscription(id uuid.UUID) (*models.SubscriptionAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subscriptions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *MemoryStore) UpdateSubscription(sub *models.SubscriptionAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[sub.ID]; !ok {
		return ErrNotFound
	}
	cp := *sub
	m.subscriptions[sub.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteSubscription(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[id]; !ok {
		return ErrNotFound
	}
	delete(m.subscriptions, id)
	return nil
}

func (m *MemoryStore) ListSubscriptions(userID string) ([]*models.SubscriptionAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var subs []*models.SubscriptionAccount
	for _, sub := range m.subscriptions {
		if sub.UserID == userID {
			cp := *sub
			subs = append(subs, &cp)
		}
	}
	return subs, nil
}

func (m *MemoryStore) ListDueSubscriptions(asOf time.Time) ([]*models.SubscriptionAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var subs []*models.SubscriptionAccount
	for _, sub := range m.subscriptions {
		if sub.Status == models.SubscriptionStatusActive && !sub.NextBillingDate.After(asOf) {
			cp := *sub
			subs = append(subs, &cp)
		}
	}
	return subs, nil
}

// ---- recurring templates ----

func (m *MemoryStore) CreateTemplate(tpl *models.RecurringExpenseTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tpl
	m.templates[tpl.ID] = &cp
	return nil
}

func (m *MemoryStore) GetTemplate(id uuid.UUID) (*models.RecurringExpenseTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tpl, ok := m.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tpl
	return &cp, nil
}

func (m *MemoryStore) UpdateTemplate(tpl *models.RecurringExpenseTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[tpl.ID]; !ok {
		return ErrNotFound
	}
	cp := *tpl
	m.templates[tpl.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteTemplate(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[id]; !ok {
		return ErrNotFound
	}
	delete(m.templates, id)
	return nil
}

func (m *MemoryStore) ListTemplates(userID string) ([]*models.RecurringExpenseTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var tpls []*models.RecurringExpenseTemplate
	for _, tpl := range m.templates {
		if tpl.UserID == userID {
			cp := *tpl
			tpls = append(tpls, &cp)
		}
	}
	return tpls, nil
}

func (m *MemoryStore) ListActiveTemplates() ([]*models.RecurringExpenseTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var tpls []*models.RecurringExpenseTemplate
	for _, tpl := range m.templates {
		if tpl.IsActive {
			cp := *tpl
			tpls = append(tpls, &cp)
		}
	}
	return tpls, nil
}

// ---- ledger entries ----

func (m *MemoryStore) CreateLedgerEntry(entry *models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.ledgerEntries = append(m.ledgerEntries, &cp)
	return nil
}

func (m *MemoryStore) ListLedgerEntries(userID string) ([]*models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*models.LedgerEntry
	for _, entry := range m.ledgerEntries {
		if entry.UserID == userID {
			cp := *entry
			entries = append(entries, &cp)
		}
	}
	return entries, nil
}

// ---- payment records ----

func (m *MemoryStore) CreatePaymentRecord(record *models.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *record
	m.paymentRecords = append(m.paymentRecords, &cp)
	return nil
}

func (m *MemoryStore) ListPaymentRecords(loanID uuid.UUID) ([]*models.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []*models.PaymentRecord
	for _, record := range m.paymentRecords {
		if record.LoanID == loanID {
			cp := *record
			records = append(records, &cp)
		}
	}
	return records, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

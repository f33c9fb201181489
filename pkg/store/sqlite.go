package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finwise/obligations/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Storage on top of SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database file and initializes the
// schema.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if _, err = db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err = db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the tables if they don't already exist. Decimal fields
// are stored as TEXT so no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		lender TEXT NOT NULL,
		principal TEXT NOT NULL,
		annual_interest_rate TEXT NOT NULL,
		tenure_months INTEGER NOT NULL,
		start_date DATETIME NOT NULL,
		outstanding_balance TEXT NOT NULL,
		monthly_payment TEXT NOT NULL,
		next_due_date DATETIME NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		billing_cycle TEXT NOT NULL,
		next_billing_date DATETIME NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS recurring_templates (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		category TEXT NOT NULL,
		schedule_day_of_month INTEGER NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		last_processed_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		occurred_on DATETIME NOT NULL,
		kind TEXT NOT NULL,
		source_type TEXT NOT NULL DEFAULT '',
		source_id TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS payment_records (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		principal_component TEXT NOT NULL,
		interest_component TEXT NOT NULL,
		due_date DATETIME NOT NULL,
		payment_date DATETIME NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---- loans ----

const loanColumns = `id, user_id, lender, principal, annual_interest_rate, tenure_months, start_date, outstanding_balance, monthly_payment, next_due_date, status, created_at, updated_at`

func (s *SQLiteStore) CreateLoan(loan *models.LoanAccount) error {
	_, err := s.db.Exec(
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.UserID, loan.Lender, loan.Principal, loan.AnnualInterestRate, loan.TenureMonths,
		loan.StartDate, loan.OutstandingBalance, loan.MonthlyPayment, loan.NextDueDate, loan.Status,
		loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

func scanLoan(row interface{ Scan(...any) error }) (*models.LoanAccount, error) {
	var loan models.LoanAccount
	var idStr string
	if err := row.Scan(&idStr, &loan.UserID, &loan.Lender, &loan.Principal, &loan.AnnualInterestRate,
		&loan.TenureMonths, &loan.StartDate, &loan.OutstandingBalance, &loan.MonthlyPayment,
		&loan.NextDueDate, &loan.Status, &loan.CreatedAt, &loan.UpdatedAt); err != nil {
		return nil, err
	}
	loan.ID = uuid.MustParse(idStr)
	return &loan, nil
}

func (s *SQLiteStore) GetLoan(id uuid.UUID) (*models.LoanAccount, error) {
	row := s.db.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id.String())
	loan, err := scanLoan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

func (s *SQLiteStore) UpdateLoan(loan *models.LoanAccount) error {
	result, err := s.db.Exec(
		`UPDATE loans SET user_id = ?, lender = ?, principal = ?, annual_interest_rate = ?, tenure_months = ?,
		 start_date = ?, outstanding_balance = ?, monthly_payment = ?, next_due_date = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		loan.UserID, loan.Lender, loan.Principal, loan.AnnualInterestRate, loan.TenureMonths,
		loan.StartDate, loan.OutstandingBalance, loan.MonthlyPayment, loan.NextDueDate, loan.Status,
		loan.UpdatedAt, loan.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return checkAffected(result)
}

func (s *SQLiteStore) DeleteLoan(id uuid.UUID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.Exec(`DELETE FROM payment_records WHERE loan_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete associated payment records: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM loans WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListLoans(userID string) ([]*models.LoanAccount, error) {
	rows, err := s.db.Query(`SELECT `+loanColumns+` FROM loans WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()
	return collectLoans(rows, nil)
}

// ListDueLoans selects active loans with money still owed. The date cutoff is
// applied in Go: SQLite compares DATETIME text lexically and the driver's
// timestamp format makes that fragile across timezones.
func (s *SQLiteStore) ListDueLoans(asOf time.Time) ([]*models.LoanAccount, error) {
	rows, err := s.db.Query(`SELECT `+loanColumns+` FROM loans WHERE status = ?`, models.LoanStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list due loans: %w", err)
	}
	defer rows.Close()
	return collectLoans(rows, func(l *models.LoanAccount) bool {
		return l.OutstandingBalance.IsPositive() && !l.NextDueDate.After(asOf)
	})
}

func collectLoans(rows *sql.Rows, keep func(*models.LoanAccount) bool) ([]*models.LoanAccount, error) {
	var loans []*models.LoanAccount
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		if keep == nil || keep(loan) {
			loans = append(loans, loan)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// ---- subscriptions ----

const subscriptionColumns = `id, user_id, name, amount, category, billing_cycle, next_billing_date, status, created_at, updated_at`

func (s *SQLiteStore) CreateSubscription(sub *models.SubscriptionAccount) error {
	_, err := s.db.Exec(
		`INSERT INTO subscriptions (`+subscriptionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID.String(), sub.UserID, sub.Name, sub.Amount, sub.Category, sub.BillingCycle,
		sub.NextBillingDate, sub.Status, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func scanSubscription(row interface{ Scan(...any) error }) (*models.SubscriptionAccount, error) {
	var sub models.SubscriptionAccount
	var idStr string
	if err := row.Scan(&idStr, &sub.UserID, &sub.Name, &sub.Amount, &sub.Category, &sub.BillingCycle,
		&sub.NextBillingDate, &sub.Status, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.ID = uuid.MustParse(idStr)
	return &sub, nil
}

func (s *SQLiteStore) GetSubscription(id uuid.UUID) (*models.SubscriptionAccount, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id.String())
	sub, err := scanSubscription(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

func (s *SQLiteStore) UpdateSubscription(sub *models.SubscriptionAccount) error {
	result, err := s.db.Exec(
		`UPDATE subscriptions SET user_id = ?, name = ?, amount = ?, category = ?, billing_cycle = ?,
		 next_billing_date = ?, status = ?, updated_at = ? WHERE id = ?`,
		sub.UserID, sub.Name, sub.Amount, sub.Category, sub.BillingCycle,
		sub.NextBillingDate, sub.Status, sub.UpdatedAt, sub.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return checkAffected(result)
}

func (s *SQLiteStore) DeleteSubscription(id uuid.UUID) error {
	result, err := s.db.Exec(`DELETE FROM subscriptions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return checkAffected(result)
}

func (s *SQLiteStore) ListSubscriptions(userID string) ([]*models.SubscriptionAccount, error) {
	rows, err := s.db.Query(`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows, nil)
}

func (s *SQLiteStore) ListDueSubscriptions(asOf time.Time) ([]*models.SubscriptionAccount, error) {
	rows, err := s.db.Query(`SELECT `+subscriptionColumns+` FROM subscriptions WHERE status = ?`, models.SubscriptionStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list due subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows, func(sub *models.SubscriptionAccount) bool {
		return !sub.NextBillingDate.After(asOf)
	})
}

func collectSubscriptions(rows *sql.Rows, keep func(*models.SubscriptionAccount) bool) ([]*models.SubscriptionAccount, error) {
	var subs []*models.SubscriptionAccount
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription row: %w", err)
		}
		if keep == nil || keep(sub) {
			subs = append(subs, sub)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return subs, nil
}

// ---- recurring templates ----

const templateColumns = `id, user_id, name, amount, category, schedule_day_of_month, is_active, last_processed_at, created_at, updated_at`

func (s *SQLiteStore) CreateTemplate(tpl *models.RecurringExpenseTemplate) error {
	_, err := s.db.Exec(
		`INSERT INTO recurring_templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tpl.ID.String(), tpl.UserID, tpl.Name, tpl.Amount, tpl.Category, tpl.ScheduleDayOfMonth,
		tpl.IsActive, tpl.LastProcessedAt, tpl.CreatedAt, tpl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

func scanTemplate(row interface{ Scan(...any) error }) (*models.RecurringExpenseTemplate, error) {
	var tpl models.RecurringExpenseTemplate
	var idStr string
	var lastProcessed sql.NullTime
	if err := row.Scan(&idStr, &tpl.UserID, &tpl.Name, &tpl.Amount, &tpl.Category, &tpl.ScheduleDayOfMonth,
		&tpl.IsActive, &lastProcessed, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
		return nil, err
	}
	tpl.ID = uuid.MustParse(idStr)
	if lastProcessed.Valid {
		tpl.LastProcessedAt = &lastProcessed.Time
	}
	return &tpl, nil
}

func (s *SQLiteStore) GetTemplate(id uuid.UUID) (*models.RecurringExpenseTemplate, error) {
	row := s.db.QueryRow(`SELECT `+templateColumns+` FROM recurring_templates WHERE id = ?`, id.String())
	tpl, err := scanTemplate(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tpl, nil
}

func (s *SQLiteStore) UpdateTemplate(tpl *models.RecurringExpenseTemplate) error {
	result, err := s.db.Exec(
		`UPDATE recurring_templates SET user_id = ?, name = ?, amount = ?, category = ?, schedule_day_of_month = ?,
		 is_active = ?, last_processed_at = ?, updated_at = ? WHERE id = ?`,
		tpl.UserID, tpl.Name, tpl.Amount, tpl.Category, tpl.ScheduleDayOfMonth,
		tpl.IsActive, tpl.LastProcessedAt, tpl.UpdatedAt, tpl.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	return checkAffected(result)
}

func (s *SQLiteStore) DeleteTemplate(id uuid.UUID) error {
	result, err := s.db.Exec(`DELETE FROM recurring_templates WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return checkAffected(result)
}

func (s *SQLiteStore) ListTemplates(userID string) ([]*models.RecurringExpenseTemplate, error) {
	return s.listTemplates(`SELECT `+templateColumns+` FROM recurring_templates WHERE user_id = ?`, userID)
}

func (s *SQLiteStore) ListActiveTemplates() ([]*models.RecurringExpenseTemplate, error) {
	return s.listTemplates(`SELECT ` + templateColumns + ` FROM recurring_templates WHERE is_active = 1`)
}

func (s *SQLiteStore) listTemplates(query string, args ...any) ([]*models.RecurringExpenseTemplate, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var tpls []*models.RecurringExpenseTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template row: %w", err)
		}
		tpls = append(tpls, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return tpls, nil
}

// ---- ledger entries ----

func (s *SQLiteStore) CreateLedgerEntry(entry *models.LedgerEntry) error {
	var sourceID any
	if entry.SourceID != nil {
		sourceID = entry.SourceID.String()
	}
	_, err := s.db.Exec(
		`INSERT INTO ledger_entries (id, user_id, amount, category, description, occurred_on, kind, source_type, source_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.UserID, entry.Amount, entry.Category, entry.Description,
		entry.OccurredOn, entry.Kind, entry.SourceType, sourceID, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListLedgerEntries(userID string) ([]*models.LedgerEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, amount, category, description, occurred_on, kind, source_type, source_id, created_at
		 FROM ledger_entries WHERE user_id = ? ORDER BY occurred_on DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		var idStr string
		var sourceID sql.NullString
		if err := rows.Scan(&idStr, &entry.UserID, &entry.Amount, &entry.Category, &entry.Description,
			&entry.OccurredOn, &entry.Kind, &entry.SourceType, &sourceID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry row: %w", err)
		}
		entry.ID = uuid.MustParse(idStr)
		if sourceID.Valid {
			sid := uuid.MustParse(sourceID.String)
			entry.SourceID = &sid
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return entries, nil
}

// ---- payment records ----

func (s *SQLiteStore) CreatePaymentRecord(record *models.PaymentRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO payment_records (id, loan_id, amount_paid, principal_component, interest_component, due_date, payment_date, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID.String(), record.LoanID.String(), record.AmountPaid, record.PrincipalComponent,
		record.InterestComponent, record.DueDate, record.PaymentDate, record.Status, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListPaymentRecords(loanID uuid.UUID) ([]*models.PaymentRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, loan_id, amount_paid, principal_component, interest_component, due_date, payment_date, status, created_at
		 FROM payment_records WHERE loan_id = ? ORDER BY payment_date ASC`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list payment records for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var records []*models.PaymentRecord
	for rows.Next() {
		var record models.PaymentRecord
		var idStr, loanIDStr string
		if err := rows.Scan(&idStr, &loanIDStr, &record.AmountPaid, &record.PrincipalComponent,
			&record.InterestComponent, &record.DueDate, &record.PaymentDate, &record.Status, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment record row: %w", err)
		}
		record.ID = uuid.MustParse(idStr)
		record.LoanID = uuid.MustParse(loanIDStr)
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

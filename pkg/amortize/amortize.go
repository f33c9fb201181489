// Package amortize computes fixed-payment (EMI) loan schedules. All
// functions are pure and safe for concurrent use.
package amortize

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidArgument is returned when loan parameters are malformed. Inputs
// are rejected outright, never clamped.
var ErrInvalidArgument = errors.New("invalid argument")

var (
	one            = decimal.NewFromInt(1)
	monthsPerYear  = decimal.NewFromInt(12)
	percentDivisor = decimal.NewFromInt(100)
)

// Entry is one period of an amortization schedule. Schedules are derived
// state: they can be recomputed at any time from the original loan
// parameters and are never authoritative.
type Entry struct {
	Period           int             `json:"period"` // 1-based
	DueDate          time.Time       `json:"due_date"`
	Payment          decimal.Decimal `json:"payment"`
	Principal        decimal.Decimal `json:"principal"`
	Interest         decimal.Decimal `json:"interest"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// MonthlyRate converts an annual percentage rate (e.g. 8.5) to a monthly
// fractional rate.
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.Div(monthsPerYear).Div(percentDivisor)
}

func validate(principal, annualRatePercent decimal.Decimal, tenureMonths int) error {
	if principal.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: principal must be positive, got %s", ErrInvalidArgument, principal)
	}
	if annualRatePercent.IsNegative() {
		return fmt.Errorf("%w: interest rate must not be negative, got %s", ErrInvalidArgument, annualRatePercent)
	}
	if tenureMonths < 1 {
		return fmt.Errorf("%w: tenure must be at least 1 month, got %d", ErrInvalidArgument, tenureMonths)
	}
	return nil
}

// MonthlyPayment computes the fixed installment that retires principal over
// tenureMonths at the given annual rate, rounded half-up to cents.
//
//	r = annualRatePercent / 12 / 100
//	payment = P * r * (1+r)^n / ((1+r)^n - 1)
//
// A zero rate degenerates to a straight-line split P / n.
func MonthlyPayment(principal, annualRatePercent decimal.Decimal, tenureMonths int) (decimal.Decimal, error) {
	if err := validate(principal, annualRatePercent, tenureMonths); err != nil {
		return decimal.Zero, err
	}

	n := decimal.NewFromInt(int64(tenureMonths))
	r := MonthlyRate(annualRatePercent)
	if r.IsZero() {
		return principal.Div(n).Round(2), nil
	}

	factor := one.Add(r).Pow(n) // (1+r)^n
	payment := principal.Mul(r).Mul(factor).Div(factor.Sub(one))
	return payment.Round(2), nil
}

// Schedule generates the full period-by-period amortization table: exactly
// tenureMonths entries, each with its principal/interest split and the
// balance remaining after payment. Components are rounded to cents
// independently; the final period absorbs the accumulated rounding drift so
// the balance lands exactly on zero.
func Schedule(principal, annualRatePercent decimal.Decimal, tenureMonths int, startDate time.Time) ([]Entry, error) {
	payment, err := MonthlyPayment(principal, annualRatePercent, tenureMonths)
	if err != nil {
		return nil, err
	}

	r := MonthlyRate(annualRatePercent)
	entries := make([]Entry, 0, tenureMonths)
	balance := principal

	for period := 1; period <= tenureMonths; period++ {
		interest := balance.Mul(r).Round(2)
		principalPart := payment.Sub(interest)

		if period == tenureMonths || principalPart.GreaterThan(balance) {
			principalPart = balance
			payment = principalPart.Add(interest)
		}

		balance = balance.Sub(principalPart)
		if balance.IsNegative() {
			balance = decimal.Zero
		}

		entries = append(entries, Entry{
			Period:           period,
			DueDate:          AddMonths(startDate, period),
			Payment:          payment.Round(2),
			Principal:        principalPart.Round(2),
			Interest:         interest,
			RemainingBalance: balance.Round(2),
		})
	}

	return entries, nil
}

// AddMonths advances a date by whole calendar months, preserving the day of
// month where it exists and clamping to the last day of the target month
// otherwise (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, t.Location())
}

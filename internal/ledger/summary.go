package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/store"
)

// ErrUnknownPeriod is returned by ParsePeriod.
var ErrUnknownPeriod = errors.New("unknown period")

// Period is a trailing window of days ending today. Zero means all time.
type Period struct {
	Name string
	Days int
}

var periods = []Period{
	{Name: "7d", Days: 7},
	{Name: "30d", Days: 30},
	{Name: "90d", Days: 90},
	{Name: "1y", Days: 365},
	{Name: "all"},
}

// Periods lists the accepted period names.
func Periods() []string {
	names := make([]string, len(periods))
	for i, p := range periods {
		names[i] = p.Name
	}
	return names
}

// ParsePeriod looks up a period by name. Empty means 30d.
func ParsePeriod(name string) (Period, error) {
	if name == "" {
		name = "30d"
	}
	for _, p := range periods {
		if p.Name == name {
			return p, nil
		}
	}
	return Period{}, fmt.Errorf("%w %q (want one of %v)", ErrUnknownPeriod, name, Periods())
}

// Since returns the first day the period covers, or the zero time for "all".
func (p Period) Since(now time.Time) time.Time {
	if p.Days == 0 {
		return time.Time{}
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -p.Days)
}

// SummaryRequest scopes a summary to an owner and optionally one account.
type SummaryRequest struct {
	Owner     string
	AccountID string
	Period    Period
}

// Summary is cash flow over a period.
type Summary struct {
	Period           string          `json:"period"`
	Since            *time.Time      `json:"since,omitempty"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	NetCashFlow      decimal.Decimal `json:"net_cash_flow"`
	TransactionCount int             `json:"transaction_count"`
}

// Summarize adds up income and expenses over the requested period.
func (s *Service) Summarize(ctx context.Context, req SummaryRequest) (*Summary, error) {
	if req.Period.Name == "" {
		req.Period, _ = ParsePeriod("")
	}
	filter := store.TxFilter{
		Owner:     req.Owner,
		AccountID: req.AccountID,
		Since:     req.Period.Since(s.now()),
	}

	var totals store.Totals
	err := s.db.Read(ctx, func(q *store.Queries) error {
		if req.AccountID != "" {
			if _, err := loadAccount(ctx, q, req.AccountID); err != nil {
				return err
			}
		}
		var err error
		totals, err = q.SumTransactions(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := &Summary{
		Period:           req.Period.Name,
		TotalIncome:      totals.Credits,
		TotalExpenses:    totals.Debits,
		NetCashFlow:      totals.Net(),
		TransactionCount: totals.Count,
	}
	if !filter.Since.IsZero() {
		since := filter.Since
		out.Since = &since
	}
	return out, nil
}

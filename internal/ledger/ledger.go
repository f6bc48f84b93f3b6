// Package ledger reads committed transactions back as ledger pages and checks
// stored account balances against them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/logger"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Tolerance is the largest difference still reported as balanced.
var Tolerance = decimal.New(1, -2)

// ErrAccountNotFound is returned for an unknown account ID.
var ErrAccountNotFound = errors.New("account not found")

// Filter narrows the transactions on a ledger page.
type Filter struct {
	Direction model.Direction
	Since     time.Time
	Until     time.Time
	Category  string
}

// PageRequest selects a page. Zero values mean page 1 of DefaultLimit rows.
type PageRequest struct {
	Number int
	Limit  int
}

// Entry is one ledger row.
type Entry struct {
	Transaction model.Transaction `json:"transaction"`
	Change      decimal.Decimal   `json:"change"`
	// RunningBalance sums Change from the first row of this page. It is a
	// reading aid and not the account's historical balance.
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalCount  int `json:"total_count"`
	Limit       int `json:"limit"`
}

// Page is one page of an account's ledger, newest first.
type Page struct {
	Account    model.Account `json:"account"`
	Entries    []Entry       `json:"entries"`
	Pagination Pagination    `json:"pagination"`
}

// Report compares an account's stored balance with its transactions.
type Report struct {
	AccountID        string          `json:"account_id"`
	TotalCredits     decimal.Decimal `json:"total_credits"`
	TotalDebits      decimal.Decimal `json:"total_debits"`
	ExpectedBalance  decimal.Decimal `json:"expected_balance"`
	ActualBalance    decimal.Decimal `json:"actual_balance"`
	Difference       decimal.Decimal `json:"difference"`
	IsBalanced       bool            `json:"is_balanced"`
	TransactionCount int             `json:"transaction_count"`
}

// Recalculation is the result of rewriting a stored balance.
type Recalculation struct {
	AccountID         string          `json:"account_id"`
	PreviousBalance   decimal.Decimal `json:"previous_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	TotalCredits      decimal.Decimal `json:"total_credits"`
	TotalDebits       decimal.Decimal `json:"total_debits"`
	TransactionCount  int             `json:"transaction_count"`
}

// Changed reports whether the recalculation moved the stored balance.
func (r *Recalculation) Changed() bool {
	return !r.PreviousBalance.Equal(r.CalculatedBalance)
}

// Service answers ledger queries.
type Service struct {
	db  *store.DB
	now func() time.Time
}

// NewService creates a ledger Service. A nil now uses time.Now.
func NewService(db *store.DB, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{db: db, now: now}
}

// BuildLedger returns one page of the account's transactions ordered by date
// and then insertion order, newest first.
func (s *Service) BuildLedger(ctx context.Context, accountID string, f Filter, req PageRequest) (*Page, error) {
	if req.Number < 1 {
		req.Number = 1
	}
	if req.Limit < 1 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	filter := store.TxFilter{
		AccountID: accountID,
		Direction: f.Direction,
		Since:     f.Since,
		Until:     f.Until,
		Category:  f.Category,
	}

	page := &Page{Pagination: Pagination{CurrentPage: req.Number, Limit: req.Limit}}
	var txns []model.Transaction
	err := s.db.Read(ctx, func(q *store.Queries) error {
		acct, err := loadAccount(ctx, q, accountID)
		if err != nil {
			return err
		}
		page.Account = acct

		if page.Pagination.TotalCount, err = q.CountTransactions(ctx, filter); err != nil {
			return err
		}
		txns, err = q.ListTransactions(ctx, filter, req.Limit, (req.Number-1)*req.Limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	page.Pagination.TotalPages = (page.Pagination.TotalCount + req.Limit - 1) / req.Limit
	page.Entries = make([]Entry, 0, len(txns))
	running := decimal.Zero
	for _, t := range txns {
		change := t.Signed()
		running = running.Add(change)
		page.Entries = append(page.Entries, Entry{Transaction: t, Change: change, RunningBalance: running})
	}
	return page, nil
}

// Reconcile compares the stored balance with the sum of the account's
// transactions, both read from one snapshot. It never changes anything.
func (s *Service) Reconcile(ctx context.Context, accountID string) (*Report, error) {
	var (
		acct   model.Account
		totals store.Totals
	)
	err := s.db.Read(ctx, func(q *store.Queries) error {
		var err error
		if acct, err = loadAccount(ctx, q, accountID); err != nil {
			return err
		}
		totals, err = q.SumTransactions(ctx, store.TxFilter{AccountID: accountID})
		return err
	})
	if err != nil {
		return nil, err
	}

	expected := totals.Net()
	diff := acct.CurrentBalance.Sub(expected)
	report := &Report{
		AccountID:        accountID,
		TotalCredits:     totals.Credits,
		TotalDebits:      totals.Debits,
		ExpectedBalance:  expected,
		ActualBalance:    acct.CurrentBalance,
		Difference:       diff,
		IsBalanced:       diff.Abs().LessThan(Tolerance),
		TransactionCount: totals.Count,
	}
	if !report.IsBalanced {
		log := logger.FromContext(ctx)
		log.Warn().
			Str("account_id", accountID).
			Str("expected", expected.StringFixed(2)).
			Str("actual", acct.CurrentBalance.StringFixed(2)).
			Msg("balance discrepancy")
	}
	return report, nil
}

// Recalculate overwrites the stored balance with the sum of the account's
// transactions. It is the only operation that repairs a balance.
func (s *Service) Recalculate(ctx context.Context, accountID string) (*Recalculation, error) {
	var out *Recalculation
	err := s.db.Write(ctx, func(q *store.Queries) error {
		acct, err := loadAccount(ctx, q, accountID)
		if err != nil {
			return err
		}
		totals, err := q.SumTransactions(ctx, store.TxFilter{AccountID: accountID})
		if err != nil {
			return err
		}
		out = &Recalculation{
			AccountID:         accountID,
			PreviousBalance:   acct.CurrentBalance,
			CalculatedBalance: totals.Net(),
			TotalCredits:      totals.Credits,
			TotalDebits:       totals.Debits,
			TransactionCount:  totals.Count,
		}
		return q.SetBalance(ctx, accountID, out.CalculatedBalance, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)

	log.Info().
		Str("account_id", accountID).
		Str("previous", out.PreviousBalance.StringFixed(2)).
		Str("calculated", out.CalculatedBalance.StringFixed(2)).
		Msg("balance recalculated")
	return out, nil
}

func loadAccount(ctx context.Context, q *store.Queries, accountID string) (model.Account, error) {
	acct, err := q.Account(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return acct, err
}

package importer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/normalize"
)

// ErrEmptyDescription rejects rows that carry an amount but no description.
var ErrEmptyDescription = errors.New("empty description")

// RowError records a data row that could not be turned into a candidate.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// parseRow maps one data row into a candidate. A nil candidate with a nil
// error means the row carried no amount and is dropped.
func parseRow(d *Dialect, row Row, line int, opts Options) (c *model.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = &RowError{Line: line, Err: fmt.Errorf("mapping row: %v", r)}
		}
	}()

	f := d.Map(row)

	amount, dir, ok := d.direction(f)
	if !ok {
		return nil, nil
	}

	desc := strings.TrimSpace(f.Description)
	if desc == "" {
		return nil, &RowError{Line: line, Err: ErrEmptyDescription}
	}

	fallback := false
	date, err := d.parseDate(f.Date)
	if err != nil {
		if !opts.DateFallbackToToday {
			return nil, &RowError{Line: line, Err: err}
		}
		date = normalize.DateOnly(opts.now())
		fallback = true
	}

	cand := &model.Candidate{
		Line:         line,
		Date:         date,
		Amount:       amount,
		Direction:    dir,
		Description:  desc,
		DateFallback: fallback,
		Reference: model.Reference{
			ChequeNumber: f.ChequeNumber,
			BranchCode:   f.BranchCode,
			PostDate:     optionalDate(f.PostDate),
			ValueDate:    optionalDate(f.ValueDate),
		},
	}
	if strings.TrimSpace(f.Balance) != "" {
		bal := normalize.ParseAmount(f.Balance)
		cand.ReportedBalance = &bal
	}
	if cat := strings.TrimSpace(f.Category); cat != "" {
		cand.Category = cat
		cand.CategoryConfidence = decimal.NewFromInt(1)
		cand.CategorySource = model.CategoryStatement
	}
	return cand, nil
}

// direction picks the amount and direction from the mapped fields. The
// boolean is false when no positive amount is present.
func (d *Dialect) direction(f Fields) (decimal.Decimal, model.Direction, bool) {
	if f.Debit != "" || f.Credit != "" {
		if debit := normalize.ParseAmount(f.Debit).Abs(); debit.IsPositive() {
			return debit, model.Debit, true
		}
		if credit := normalize.ParseAmount(f.Credit).Abs(); credit.IsPositive() {
			return credit, model.Credit, true
		}
		return decimal.Zero, "", false
	}

	amt := normalize.ParseAmount(f.Amount)
	if amt.IsZero() {
		return decimal.Zero, "", false
	}

	var dir model.Direction
	switch d.Sign {
	case NegativeIsCredit:
		dir = model.Debit
		if strings.EqualFold(strings.TrimSpace(f.Kind), "credit") || amt.IsNegative() {
			dir = model.Credit
		}
	default:
		dir = model.Credit
		if amt.IsNegative() {
			dir = model.Debit
		}
	}
	return amt.Abs(), dir, true
}

func optionalDate(raw string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := normalize.ParseDate(raw)
	if err != nil {
		return nil
	}
	return &t
}

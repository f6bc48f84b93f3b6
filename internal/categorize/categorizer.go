// Package categorize assigns spending categories to statement rows. It is
// best effort: a categorizer that fails or times out never fails an import.
package categorize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

var (
	// ErrNoMatch means the categorizer had no opinion about the row.
	ErrNoMatch = errors.New("no category matched")
	// ErrCategorizationUnavailable wraps every failure that was replaced by
	// the Uncategorized placeholder.
	ErrCategorizationUnavailable = errors.New("categorization unavailable")
)

// Categorizer suggests a category for one transaction.
//
//go:generate mockgen -destination=mocks/mock_categorizer.go -source=categorizer.go Categorizer
type Categorizer interface {
	Categorize(ctx context.Context, description string, amount decimal.Decimal, direction model.Direction) (Result, error)
}

// Result is a suggested category and how sure the categorizer is, in [0, 1].
type Result struct {
	Category   string
	Confidence decimal.Decimal
}

// Categories is the fixed list automatic categorizers choose from.
var Categories = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Healthcare",
	"Utilities",
	"Insurance",
	"Investment",
	"Salary/Income",
	"Transfer",
	"ATM Withdrawal",
	"Online Services",
	"Education",
	"Travel",
	"Gifts",
	"Other",
}

// Known maps free text to one of Categories, ignoring case. A reply that
// contains a category name, or is contained in one, also matches.
func Known(name string) (string, bool) {
	name = strings.Trim(strings.TrimSpace(name), `"'.`)
	if name == "" {
		return "", false
	}
	lower := strings.ToLower(name)
	for _, c := range Categories {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	for _, c := range Categories {
		cl := strings.ToLower(c)
		if strings.Contains(lower, cl) || (len(lower) >= 4 && strings.Contains(cl, lower)) {
			return c, true
		}
	}
	return "", false
}

// Chain asks each categorizer in turn and returns the first answer.
type Chain []Categorizer

func (c Chain) Categorize(ctx context.Context, description string, amount decimal.Decimal, direction model.Direction) (Result, error) {
	if len(c) == 0 {
		return Result{}, ErrNoMatch
	}
	var errs []error
	for _, cat := range c {
		res, err := cat.Categorize(ctx, description, amount, direction)
		if err == nil {
			return res, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return Result{}, fmt.Errorf("all categorizers failed: %w", errors.Join(errs...))
}

package categorize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cleared-dev/tally/internal/logger"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

// ErrEmptyCategory is returned when overriding with a blank category.
var ErrEmptyCategory = errors.New("category is empty")

// Scope picks stored transactions for re-categorization.
type Scope struct {
	Owner     string
	AccountID string
	// All includes rows that already have an automatic category.
	All bool
}

// Recategorize runs c over stored transactions again. Rows corrected by the
// user and rows categorized by the statement are never touched. It returns
// the number of rows updated with the outcome of the run.
func Recategorize(ctx context.Context, db *store.DB, c Categorizer, scope Scope, opts Options) (int, Outcome, error) {
	txns, err := db.Queries().ListRecategorizable(ctx, store.TxFilter{
		Owner:         scope.Owner,
		AccountID:     scope.AccountID,
		Uncategorized: !scope.All,
	})
	if err != nil {
		return 0, Outcome{}, err
	}
	if len(txns) == 0 {
		return 0, Outcome{}, nil
	}

	candidates := make([]model.Candidate, len(txns))
	for i, t := range txns {
		candidates[i] = model.Candidate{
			Date:        t.Date,
			Amount:      t.Amount,
			Direction:   t.Direction,
			Description: t.Description,
		}
	}
	outcome := Apply(ctx, c, candidates, opts)

	updated := 0
	err = db.Write(ctx, func(q *store.Queries) error {
		for i, cand := range candidates {
			if cand.CategorySource != model.CategoryAuto || cand.Category == txns[i].Category {
				continue
			}
			changed, err := q.SetAutoCategory(ctx, txns[i].ID, cand.Category, cand.CategoryConfidence)
			if err != nil {
				return err
			}
			if changed {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, outcome, err
	}

	log := logger.FromContext(ctx)

	log.Info().
		Int("candidates", len(txns)).
		Int("updated", updated).
		Int("fallbacks", outcome.Fallbacks).
		Msg("recategorized")
	return updated, outcome, nil
}

// Override records the user's category for a transaction. Automatic
// categorization never changes it afterwards.
func Override(ctx context.Context, db *store.DB, txnID, category string) (model.Transaction, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return model.Transaction{}, ErrEmptyCategory
	}
	if known, ok := Known(category); ok && strings.EqualFold(known, category) {
		category = known
	}

	var txn model.Transaction
	err := db.Write(ctx, func(q *store.Queries) error {
		if err := q.SetUserCategory(ctx, txnID, category); err != nil {
			return err
		}
		var err error
		txn, err = q.Transaction(ctx, txnID)
		return err
	})
	if err != nil {
		return model.Transaction{}, fmt.Errorf("overriding category: %w", err)
	}
	return txn, nil
}

// Pending counts transactions still waiting for a category.
func Pending(ctx context.Context, db *store.DB, owner, accountID string) (int, error) {
	return db.Queries().CountTransactions(ctx, store.TxFilter{
		Owner:         owner,
		AccountID:     accountID,
		Uncategorized: true,
	})
}

package categorize

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/tally/internal/logger"
	"github.com/cleared-dev/tally/internal/model"
)

const (
	DefaultTimeout     = 3 * time.Second
	DefaultConcurrency = 4
)

// Options bound the work Apply does.
type Options struct {
	Timeout     time.Duration // per call
	Concurrency int
}

// Outcome counts what Apply did.
type Outcome struct {
	Categorized int
	Fallbacks   int // failures replaced by Uncategorized
	Kept        int // rows that already carried a category
}

// Apply categorizes candidates in place. Rows that already have a category
// are left alone. A failed, empty or timed-out answer becomes Uncategorized
// with zero confidence. With a nil categorizer every row is Uncategorized
// and nothing counts as a fallback.
func Apply(ctx context.Context, c Categorizer, candidates []model.Candidate, opts Options) Outcome {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	log := logger.FromContext(ctx)

	var categorized, fallbacks, kept atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(opts.Concurrency)

	for i := range candidates {
		cand := &candidates[i]
		if cand.Category != "" {
			kept.Add(1)
			continue
		}
		if c == nil {
			setUncategorized(cand)
			continue
		}

		g.Go(func() error {
			res, err := call(ctx, c, cand.Description, cand.Amount, cand.Direction, opts.Timeout)
			if err == nil && res.Category == "" {
				err = ErrNoMatch
			}
			if err != nil {
				setUncategorized(cand)
				fallbacks.Add(1)
				log.Debug().
					Int("line", cand.Line).
					Err(fmt.Errorf("%w: %w", ErrCategorizationUnavailable, err)).
					Msg("category fallback")
				return nil
			}
			cand.Category = res.Category
			cand.CategoryConfidence = res.Confidence
			cand.CategorySource = model.CategoryAuto
			categorized.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	out := Outcome{
		Categorized: int(categorized.Load()),
		Fallbacks:   int(fallbacks.Load()),
		Kept:        int(kept.Load()),
	}
	if out.Fallbacks > 0 {
		log.Warn().Int("fallbacks", out.Fallbacks).Int("categorized", out.Categorized).
			Msg("some transactions left uncategorized")
	}
	return out
}

// call runs one categorization and gives up at the timeout even if the
// categorizer ignores its context.
func call(ctx context.Context, c Categorizer, description string, amount decimal.Decimal, direction model.Direction, timeout time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		res Result
		err error
	}
	done := make(chan answer, 1)
	go func() {
		res, err := c.Categorize(ctx, description, amount, direction)
		done <- answer{res, err}
	}()

	select {
	case a := <-done:
		return a.res, a.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func setUncategorized(c *model.Candidate) {
	c.Category = model.Uncategorized
	c.CategoryConfidence = decimal.Zero
	c.CategorySource = model.CategoryNone
}

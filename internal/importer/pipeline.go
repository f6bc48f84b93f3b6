package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cleared-dev/tally/internal/logger"
	"github.com/cleared-dev/tally/internal/model"
)

// ErrNoHeader means the input had no header row at all.
var ErrNoHeader = errors.New("statement has no header row")

// Options tune how rows are parsed.
type Options struct {
	// DateFallbackToToday substitutes today's date for unparseable dates
	// instead of rejecting the row. Each substitution is counted.
	DateFallbackToToday bool
	// Now overrides the clock used for date substitution.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Batch is the result of reading one statement.
type Batch struct {
	Dialect        *Dialect
	Candidates     []model.Candidate
	RowErrors      []*RowError
	Rows           int // data rows read
	ZeroAmountRows int
	DateFallbacks  int
}

// Pipeline reads statements through a dialect registry.
type Pipeline struct {
	registry *Registry
	opts     Options
}

// NewPipeline creates a Pipeline.
func NewPipeline(registry *Registry, opts Options) *Pipeline {
	return &Pipeline{registry: registry, opts: opts}
}

// Ingest reads the header row, resolves the dialect (the hint, if given,
// wins), then parses every data row in file order. Rows that fail are
// recorded and skipped. An empty candidate list is not an error.
func (p *Pipeline) Ingest(ctx context.Context, r io.Reader, hint string) (*Batch, error) {
	log := logger.FromContext(ctx)

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = cleanHeader(header[i])
	}

	dialect, err := p.registry.Resolve(header, hint)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("dialect", dialect.Key).Strs("header", header).Msg("dialect resolved")

	batch := &Batch{Dialect: dialect}
	for {
		if batch.Rows%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("reading statement: %w", err)
			}
			batch.Rows++
			batch.RowErrors = append(batch.RowErrors, &RowError{Line: pe.StartLine, Err: pe.Err})
			log.Warn().Int("line", pe.StartLine).Err(pe.Err).Msg("skipping malformed row")
			continue
		}
		batch.Rows++
		line, _ := cr.FieldPos(0)

		cand, err := parseRow(dialect, makeRow(header, rec), line, p.opts)
		if err != nil {
			var re *RowError
			if !errors.As(err, &re) {
				re = &RowError{Line: line, Err: err}
			}
			batch.RowErrors = append(batch.RowErrors, re)
			log.Warn().Int("line", line).Err(re.Err).Msg("skipping row")
			continue
		}
		if cand == nil {
			batch.ZeroAmountRows++
			continue
		}
		if cand.DateFallback {
			batch.DateFallbacks++
			log.Warn().Int("line", line).Msg("unparseable date replaced with today")
		}
		batch.Candidates = append(batch.Candidates, *cand)
	}

	log.Info().
		Str("dialect", dialect.Key).
		Int("rows", batch.Rows).
		Int("candidates", len(batch.Candidates)).
		Int("row_errors", len(batch.RowErrors)).
		Int("zero_amount", batch.ZeroAmountRows).
		Msg("statement parsed")
	return batch, nil
}

// makeRow pairs values with header names. Short rows leave later columns
// empty; on duplicate header names the first column wins.
func makeRow(header, rec []string) Row {
	row := make(Row, len(header))
	for i, h := range header {
		if _, dup := row[h]; dup {
			continue
		}
		if i < len(rec) {
			row[h] = rec[i]
		} else {
			row[h] = ""
		}
	}
	return row
}

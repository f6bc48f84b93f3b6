// Package ingest turns one uploaded statement into committed transactions:
// read and parse, categorize, commit, record.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/auditlog"
	"github.com/cleared-dev/tally/internal/categorize"
	"github.com/cleared-dev/tally/internal/importer"
	"github.com/cleared-dev/tally/internal/journal"
	"github.com/cleared-dev/tally/internal/logger"
)

// ErrNoTransactions means a statement was read but no row produced a
// transaction.
var ErrNoTransactions = errors.New("no valid transactions found")

// Config wires a Service.
type Config struct {
	Pipeline          *importer.Pipeline
	Journal           *journal.Service
	Categorizer       categorize.Categorizer // nil leaves everything Uncategorized
	CategorizeOptions categorize.Options
	// AuditRoot is the workspace whose audit log records each import.
	// Empty disables the audit log.
	AuditRoot       string
	Owner           string
	DefaultCurrency string
	Now             func() time.Time
}

// Service ingests statements.
type Service struct {
	cfg Config
}

// NewService creates an ingest Service.
func NewService(cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{cfg: cfg}
}

// Request is one statement to ingest.
type Request struct {
	Reader      io.Reader
	Name        string // shown in logs and the audit log
	DialectHint string
	AccountID   string // empty picks or creates the account from the dialect
}

// Summary reports what an ingestion did. Row-level problems only appear
// here as counts.
type Summary struct {
	Processed         int             `json:"processed"` // newly inserted
	Duplicates        int             `json:"duplicates"`
	Invalid           int             `json:"invalid"`
	Total             int             `json:"total"` // candidates offered to the commit
	Dialect           string          `json:"dialect"`
	AccountID         string          `json:"account_id"`
	AccountName       string          `json:"account_name"`
	AccountCreated    bool            `json:"account_created"`
	Balance           decimal.Decimal `json:"balance"`
	Rows              int             `json:"rows"`
	RowErrors         int             `json:"row_errors"`
	ZeroAmountRows    int             `json:"zero_amount_rows"`
	DateFallbacks     int             `json:"date_fallbacks"`
	CategoryFallbacks int             `json:"category_fallbacks"`
}

// Ingest reads, categorizes and commits one statement. A statement no
// dialect recognizes, or a failed commit, leaves the books untouched.
func (s *Service) Ingest(ctx context.Context, req Request) (*Summary, error) {
	log := logger.FromContext(ctx).With().Str("source", req.Name).Logger()
	ctx = logger.WithContext(ctx, log)

	batch, err := s.cfg.Pipeline.Ingest(ctx, req.Reader, req.DialectHint)
	if err != nil {
		s.audit(ctx, auditlog.ActionImportFailed, req.AccountID, req.Name, err.Error())
		return nil, fmt.Errorf("reading %s: %w", req.Name, err)
	}

	sum := &Summary{
		Dialect:        batch.Dialect.Key,
		Total:          len(batch.Candidates),
		Rows:           batch.Rows,
		RowErrors:      len(batch.RowErrors),
		ZeroAmountRows: batch.ZeroAmountRows,
		DateFallbacks:  batch.DateFallbacks,
	}
	if len(batch.Candidates) == 0 {
		s.audit(ctx, auditlog.ActionImportFailed, req.AccountID, req.Name, ErrNoTransactions.Error())
		return sum, fmt.Errorf("%s: %w", req.Name, ErrNoTransactions)
	}

	outcome := categorize.Apply(ctx, s.cfg.Categorizer, batch.Candidates, s.cfg.CategorizeOptions)
	sum.CategoryFallbacks = outcome.Fallbacks

	res, err := s.cfg.Journal.Commit(ctx, journal.Target{
		AccountID:   req.AccountID,
		Owner:       s.cfg.Owner,
		Institution: batch.Dialect.Name,
		AccountType: batch.Dialect.AccountType,
		Currency:    s.cfg.DefaultCurrency,
		Dialect:     batch.Dialect.Key,
	}, batch.Candidates)
	if err != nil {
		s.audit(ctx, auditlog.ActionImportFailed, req.AccountID, req.Name, err.Error())
		return nil, err
	}

	sum.Processed = res.Inserted
	sum.Duplicates = res.Duplicates
	sum.Invalid = res.Invalid
	sum.AccountID = res.Account.ID
	sum.AccountName = res.Account.Name
	sum.AccountCreated = res.Created
	sum.Balance = res.Account.CurrentBalance

	s.audit(ctx, auditlog.ActionImport, sum.AccountID, req.Name, fmt.Sprintf(
		"dialect=%s processed=%d duplicates=%d invalid=%d row_errors=%d date_fallbacks=%d category_fallbacks=%d",
		sum.Dialect, sum.Processed, sum.Duplicates, sum.Invalid, sum.RowErrors, sum.DateFallbacks, sum.CategoryFallbacks))

	log.Info().
		Str("dialect", sum.Dialect).
		Int("processed", sum.Processed).
		Int("duplicates", sum.Duplicates).
		Int("invalid", sum.Invalid).
		Msg("statement ingested")
	return sum, nil
}

// IngestFile ingests the statement at path. With remove set the file is
// deleted afterwards whether or not ingestion succeeded.
func (s *Service) IngestFile(ctx context.Context, path string, req Request, remove bool) (*Summary, error) {
	if remove {
		defer func() {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				log := logger.FromContext(ctx)
				log.Warn().Err(err).Str("path", path).Msg("removing statement")
			}
		}()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening statement: %w", err)
	}
	defer f.Close()

	req.Reader = f
	if req.Name == "" {
		req.Name = filepath.Base(path)
	}
	return s.Ingest(ctx, req)
}

// InboxResult is the outcome for one file in the import inbox.
type InboxResult struct {
	File    importer.FileInfo
	Summary *Summary
	Err     error
	MovedTo string
}

// IngestInbox ingests every CSV waiting in inbox, in name order, and moves
// each file to processed/ or failed/. One file failing does not stop the rest.
func (s *Service) IngestInbox(ctx context.Context, inbox string, req Request) ([]InboxResult, error) {
	files, err := importer.Scan(inbox)
	if err != nil {
		return nil, err
	}

	results := make([]InboxResult, 0, len(files))
	for _, fi := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r := InboxResult{File: fi}
		fileReq := req
		fileReq.Name = fi.Name
		r.Summary, r.Err = s.IngestFile(ctx, fi.Path, fileReq, false)

		var moveErr error
		if r.Err != nil {
			r.MovedTo, moveErr = importer.MarkFailed(inbox, fi.Name)
		} else {
			r.MovedTo, moveErr = importer.MarkProcessed(inbox, fi.Name)
		}
		if moveErr != nil {
			return append(results, r), moveErr
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *Service) audit(ctx context.Context, action, accountID, source, details string) {
	if s.cfg.AuditRoot == "" {
		return
	}
	err := auditlog.Append(s.cfg.AuditRoot, auditlog.Entry{
		Timestamp: s.cfg.Now(),
		Actor:     s.cfg.Owner,
		Action:    action,
		AccountID: accountID,
		Source:    source,
		Details:   details,
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("writing audit log")
	}
}

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/accounts"
	"github.com/cleared-dev/tally/internal/auditlog"
	"github.com/cleared-dev/tally/internal/categorize"
	"github.com/cleared-dev/tally/internal/config"
	"github.com/cleared-dev/tally/internal/gitops"
	"github.com/cleared-dev/tally/internal/importer"
	"github.com/cleared-dev/tally/internal/ingest"
	"github.com/cleared-dev/tally/internal/journal"
	"github.com/cleared-dev/tally/internal/ledger"
	"github.com/cleared-dev/tally/internal/logger"
	"github.com/cleared-dev/tally/internal/store"
)

// ErrNotWorkspace is returned when --repo has no tally.yaml.
var ErrNotWorkspace = errors.New("not a tally workspace (run tally init)")

// workspace is an opened tally directory: its config and database.
type workspace struct {
	root string
	cfg  *config.Config
	db   *store.DB
	log  zerolog.Logger
}

// openWorkspace loads tally.yaml from --repo, applies environment
// overrides, opens the database and puts the configured logger on ctx.
func openWorkspace(cmd *cobra.Command, opts *globalOptions) (*workspace, context.Context, error) {
	root, err := filepath.Abs(opts.repo)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%s: %w", root, ErrNotWorkspace)
	}
	if err != nil {
		return nil, nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	ctx := cmd.Context()
	log := logger.FromContext(ctx)
	if opts.logLevel == "" {
		log = log.Level(logger.ParseLevel(cfg.Log.Level))
	}
	ctx = logger.WithContext(ctx, log)

	db, err := store.Open(ctx, resolve(root, cfg.Database.Path), cfg.Database.BusyTimeout)
	if err != nil {
		return nil, nil, err
	}
	return &workspace{root: root, cfg: cfg, db: db, log: log}, ctx, nil
}

func (w *workspace) Close() error {
	return w.db.Close()
}

func (w *workspace) accounts() *accounts.Service {
	return accounts.NewService(w.db, accounts.Options{
		Owner:           w.cfg.Owner,
		DefaultCurrency: w.cfg.Import.DefaultCurrency,
	})
}

func (w *workspace) ledger() *ledger.Service {
	return ledger.NewService(w.db, nil)
}

func (w *workspace) ingest() (*ingest.Service, error) {
	c, err := w.categorizer()
	if err != nil {
		return nil, err
	}
	policy := journal.PolicyLoose
	if w.cfg.Import.DedupPolicy == config.DedupStrict {
		policy = journal.PolicyStrict
	}
	return ingest.NewService(ingest.Config{
		Pipeline: importer.NewPipeline(importer.DefaultRegistry(), importer.Options{
			DateFallbackToToday: w.cfg.Import.DateFallbackToToday,
		}),
		Journal:           journal.NewService(w.db, journal.Options{Policy: policy}),
		Categorizer:       c,
		CategorizeOptions: w.categorizeOptions(),
		AuditRoot:         w.root,
		Owner:             w.cfg.Owner,
		DefaultCurrency:   w.cfg.Import.DefaultCurrency,
	}), nil
}

func (w *workspace) categorizeOptions() categorize.Options {
	return categorize.Options{
		Timeout:     w.cfg.Categorizer.Timeout,
		Concurrency: w.cfg.Categorizer.Concurrency,
	}
}

// categorizer builds the configured provider chain. It returns nil when no
// provider is usable, which leaves transactions Uncategorized.
func (w *workspace) categorizer() (categorize.Categorizer, error) {
	var chain categorize.Chain
	for _, p := range w.cfg.Categorizer.Providers {
		switch p {
		case "keyword":
			rules, err := categorize.LoadRules(resolve(w.root, w.cfg.Categorizer.RulesFile))
			if errors.Is(err, fs.ErrNotExist) {
				w.log.Debug().Msg("no rules file, using default keyword rules")
				rules = categorize.DefaultRules()
			} else if err != nil {
				return nil, err
			}
			chain = append(chain, categorize.NewKeyword(rules))
		case "openai":
			oc := w.cfg.Categorizer.OpenAI
			key := os.Getenv(oc.APIKeyEnv)
			if key == "" {
				w.log.Warn().Str("env", oc.APIKeyEnv).Msg("openai categorizer disabled: API key not set")
				continue
			}
			chain = append(chain, categorize.NewOpenAI(key, oc.BaseURL, oc.Model))
		}
	}
	switch len(chain) {
	case 0:
		return nil, nil
	case 1:
		return chain[0], nil
	}
	return chain, nil
}

// audit appends to the audit log. Failures are logged, not returned: the
// books have already changed by the time an entry is written.
func (w *workspace) audit(action, accountID, source, details string) {
	err := auditlog.Append(w.root, auditlog.Entry{
		Timestamp: time.Now(),
		Actor:     w.cfg.Owner,
		Action:    action,
		AccountID: accountID,
		Source:    source,
		Details:   details,
	})
	if err != nil {
		w.log.Error().Err(err).Msg("writing audit log")
	}
}

// autoCommit exports account definitions and commits the versioned
// workspace files when git.auto_commit is on.
func (w *workspace) autoCommit(ctx context.Context, message string) {
	if err := w.accounts().Save(ctx, w.root); err != nil {
		w.log.Error().Err(err).Msg("exporting accounts")
	}
	if !w.cfg.Git.AutoCommit || !gitops.IsRepo(w.root) {
		return
	}
	hash, err := gitops.CommitPaths(ctx, w.root, message,
		gitops.Author{Name: w.cfg.Git.AuthorName, Email: w.cfg.Git.AuthorEmail},
		config.FileName, auditlog.Path, accounts.ExportPath)
	switch {
	case errors.Is(err, gitops.ErrNothingToCommit):
	case err != nil:
		w.log.Warn().Err(err).Msg("auto-commit failed")
	default:
		w.log.Debug().Str("commit", hash).Msg("workspace committed")
	}
}

func resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

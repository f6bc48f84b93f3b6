package commands

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/categorize"
	"github.com/cleared-dev/tally/internal/config"
	"github.com/cleared-dev/tally/internal/gitops"
	"github.com/cleared-dev/tally/internal/logger"
	"github.com/cleared-dev/tally/internal/store"
)

const gitignore = "data/\n*.db\n*.db-wal\n*.db-shm\nimport/*.csv\nimport/processed/\nimport/failed/\n"

func newInitCommand(_ *globalOptions) *cobra.Command {
	var owner string
	var noGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new tally workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			if owner == "" {
				owner = defaultOwner()
			}

			return runInit(cmd.Context(), cmd, absDir, owner, noGit)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "workspace owner (defaults to the current user)")
	cmd.Flags().BoolVar(&noGit, "no-git", false, "do not create a git repository")

	return cmd
}

func runInit(ctx context.Context, cmd *cobra.Command, dir, owner string, noGit bool) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	cfg := config.Default(owner)
	dirs := []string{
		"accounts",
		"rules",
		"logs",
		filepath.Dir(cfg.Database.Path),
		cfg.Import.Dir,
		filepath.Join(cfg.Import.Dir, "processed"),
		filepath.Join(cfg.Import.Dir, "failed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}

	if err := categorize.SaveRules(filepath.Join(dir, cfg.Categorizer.RulesFile), categorize.DefaultRules()); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	gitkeep := filepath.Join(cfg.Import.Dir, ".gitkeep")
	if err := os.WriteFile(filepath.Join(dir, gitkeep), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	// Create the schema now so read-only commands work on a fresh workspace.
	db, err := store.Open(ctx, filepath.Join(dir, cfg.Database.Path), cfg.Database.BusyTimeout)
	if err != nil {
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}

	out := cmd.OutOrStdout()
	if noGit {
		fmt.Fprintf(out, "Initialized tally workspace at %s\n", dir)
		return nil
	}

	if err := gitops.Init(ctx, dir); err != nil {
		return err
	}
	hash, err := gitops.CommitPaths(ctx, dir, "init: tally workspace for "+owner,
		gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail},
		config.FileName, ".gitignore", cfg.Categorizer.RulesFile, gitkeep)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Debug().Str("commit", hash).Msg("workspace committed")

	fmt.Fprintf(out, "Initialized tally workspace at %s (%s)\n", dir, hash)
	return nil
}

func defaultOwner() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "me"
}

package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/buildinfo"
	"github.com/cleared-dev/tally/internal/logger"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	repo     string
	logLevel string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "tally",
		Short:   "Bank statement ingestion and personal ledger",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := opts.logLevel
			if level == "" {
				level = os.Getenv("TALLY_LOG_LEVEL")
			}
			log := logger.New().Level(logger.ParseLevel(level))
			cmd.SetContext(logger.WithContext(cmd.Context(), log))
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.repo, "repo", ".", "workspace directory")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to log.level in tally.yaml")

	rootCmd.AddCommand(
		newInitCommand(opts),
		newImportCommand(opts),
		newAccountsCommand(opts),
		newLedgerCommand(opts),
		newReconcileCommand(opts),
		newRecalculateCommand(opts),
		newSummaryCommand(opts),
		newCategorizeCommand(opts),
		newDialectsCommand(),
	)

	return rootCmd
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/auditlog"
	"github.com/cleared-dev/tally/internal/categorize"
)

func newCategorizeCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Categorize transactions",
	}
	cmd.AddCommand(
		newCategorizeSetCommand(opts),
		newCategorizeRunCommand(opts),
		newCategorizePendingCommand(opts),
		newCategorizeListCommand(),
	)
	return cmd
}

func newCategorizeSetCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <transaction-id> <category>",
		Short: "Set a transaction's category by hand",
		Long: `Set a transaction's category. Categories set by hand are never changed by
automatic categorization.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, ctx, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			if _, ok := categorize.Known(args[1]); !ok {
				ws.log.Warn().Str("category", args[1]).Msg("category is not in the standard list")
			}
			txn, err := categorize.Override(ctx, ws.db, args[0], args[1])
			if err != nil {
				return err
			}
			ws.audit(auditlog.ActionCategoryOverride, txn.AccountID, txn.ID, "category="+txn.Category)
			ws.autoCommit(ctx, "categorize: "+txn.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s\n", txn.ID, txn.Description, txn.Category)
			return nil
		},
	}
}

func newCategorizeRunCommand(opts *globalOptions) *cobra.Command {
	var scope categorize.Scope

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured categorizers over stored transactions",
		Long: `Run the configured categorizers over uncategorized transactions, or with
--all over every automatically categorized one too. Categories set by hand or
taken from the statement are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, ctx, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			c, err := ws.categorizer()
			if err != nil {
				return err
			}
			if c == nil {
				return fmt.Errorf("no categorizer configured (categorizer.providers is empty)")
			}
			scope.Owner = ws.cfg.Owner
			updated, outcome, err := categorize.Recategorize(ctx, ws.db, c, scope, ws.categorizeOptions())
			if err != nil {
				return err
			}
			if updated > 0 {
				ws.audit(auditlog.ActionRecategorize, scope.AccountID, "", fmt.Sprintf("updated=%d fallbacks=%d", updated, outcome.Fallbacks))
				ws.autoCommit(ctx, fmt.Sprintf("categorize: %d transaction(s)", updated))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Categorized %d transaction(s), %d left uncategorized\n", updated, outcome.Fallbacks)
			return nil
		},
	}

	cmd.Flags().StringVar(&scope.AccountID, "account", "", "limit to one account")
	cmd.Flags().BoolVar(&scope.All, "all", false, "also redo automatically categorized transactions")
	return cmd
}

func newCategorizePendingCommand(opts *globalOptions) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Count transactions waiting for a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, ctx, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			n, err := categorize.Pending(ctx, ws.db, ws.cfg.Owner, account)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d uncategorized\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "limit to one account")
	return cmd
}

func newCategorizeListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the standard categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, c := range categorize.Categories {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

package commands

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/auditlog"
	"github.com/cleared-dev/tally/internal/ledger"
	"github.com/cleared-dev/tally/internal/model"
)

// ErrUnbalanced is returned by reconcile when the stored balance and the
// transactions disagree.
var ErrUnbalanced = errors.New("account is not balanced")

func newLedgerCommand(opts *globalOptions) *cobra.Command {
	var page ledger.PageRequest
	var direction, since, until string
	var filter ledger.Filter
	var asCSV, asJSON bool

	cmd := &cobra.Command{
		Use:   "ledger <account-id>",
		Short: "Show an account's transactions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Direction = model.Direction(direction)
			if filter.Direction != "" && !filter.Direction.Valid() {
				return fmt.Errorf("invalid --direction %q (want credit or debit)", direction)
			}
			var err error
			if filter.Since, err = parseDateFlag("since", since); err != nil {
				return err
			}
			if filter.Until, err = parseDateFlag("until", until); err != nil {
				return err
			}

			ws, ctx, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			p, err := ws.ledger().BuildLedger(ctx, args[0], filter, page)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				if p.Entries == nil {
					p.Entries = []ledger.Entry{}
				}
				return writeJSON(out, p)
			case asCSV:
				return ledger.WriteEntries(out, p.Entries)
			}
			printLedger(out, p)
			return nil
		},
	}

	cmd.Flags().IntVar(&page.Number, "page", 1, "page number")
	cmd.Flags().IntVar(&page.Limit, "limit", ledger.DefaultLimit, fmt.Sprintf("rows per page (max %d)", ledger.MaxLimit))
	cmd.Flags().StringVar(&direction, "direction", "", "only credit or debit rows")
	cmd.Flags().StringVar(&since, "since", "", "only rows on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "only rows on or before this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filter.Category, "category", "", "only rows in this category")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "print as CSV")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.MarkFlagsMutuallyExclusive("csv", "json")

	return cmd
}

func parseDateFlag(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(model.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q (want YYYY-MM-DD)", name, v)
	}
	return t, nil
}

func printLedger(w io.Writer, p *ledger.Page) {
	fmt.Fprintf(w, "%s (%s) balance %s\n", p.Account.Name, p.Account.ID, p.Account.CurrentBalance.StringFixed(2))
	if len(p.Entries) == 0 {
		fmt.Fprintln(w, "No transactions.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "DATE\tDESCRIPTION\tCATEGORY\tCHANGE\tRUNNING\t")
	for _, e := range p.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			e.Transaction.Date.Format(model.DateLayout),
			e.Transaction.Description,
			e.Transaction.Category,
			e.Change.StringFixed(2),
			e.RunningBalance.StringFixed(2))
	}
	tw.Flush()
	pg := p.Pagination
	fmt.Fprintf(w, "page %d of %d (%d transactions)\n", pg.CurrentPage, pg.TotalPages, pg.TotalCount)
}

func newReconcileCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "reconcile <account-id>",
		Short: "Check an account's stored balance against its transactions",
		Long: `Compare the stored balance with the sum of the account's transactions.
Exits non-zero when they differ by 0.01 or more; run recalculate to repair.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, ctx, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			r, err := ws.ledger().Reconcile(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, r); err != nil {
					return err
				}
			} else {
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "transactions\t%d\n", r.TransactionCount)
				fmt.Fprintf(tw, "credits\t%s\n", r.TotalCredits.StringFixed(2))
				fmt.Fprintf(tw, "debits\t%s\n", r.TotalDebits.StringFixed(2))
				fmt.Fprintf(tw, "expected\t%s\n", r.ExpectedBalance.StringFixed(2))
				fmt.Fprintf(tw, "actual\t%s\n", r.ActualBalance.StringFixed(2))
				fmt.Fprintf(tw, "difference\t%s\n", r.Difference.StringFixed(2))
				fmt.Fprintf(tw, "balanced\t%t\n", r.IsBalanced)
				tw.Flush()
			}
			if !r.IsBalanced {
				return fmt.Errorf("%s: %w", args[0], ErrUnbalanced)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newRecalculateCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "recalculate <account-id>",
		Short: "Rewrite an account's stored balance from its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, ctx, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			r, err := ws.ledger().Recalculate(ctx, args[0])
			if err != nil {
				return err
			}
			if r.Changed() {
				ws.audit(auditlog.ActionRecalculate, r.AccountID, "", fmt.Sprintf("previous=%s calculated=%s",
					r.PreviousBalance.StringFixed(2), r.CalculatedBalance.StringFixed(2)))
				ws.autoCommit(ctx, "recalculate: "+r.AccountID)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, r)
			}
			if !r.Changed() {
				fmt.Fprintf(out, "Balance already correct: %s\n", r.CalculatedBalance.StringFixed(2))
				return nil
			}
			fmt.Fprintf(out, "Balance updated: %s -> %s\n", r.PreviousBalance.StringFixed(2), r.CalculatedBalance.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newSummaryCommand(opts *globalOptions) *cobra.Command {
	var period, account string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Income, expenses and net cash flow over a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := ledger.ParsePeriod(period)
			if err != nil {
				return err
			}

			ws, ctx, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			s, err := ws.ledger().Summarize(ctx, ledger.SummaryRequest{
				Owner:     ws.cfg.Owner,
				AccountID: account,
				Period:    p,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, s)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "period\t%s\n", s.Period)
			fmt.Fprintf(tw, "income\t%s\n", s.TotalIncome.StringFixed(2))
			fmt.Fprintf(tw, "expenses\t%s\n", s.TotalExpenses.StringFixed(2))
			fmt.Fprintf(tw, "net cash flow\t%s\n", s.NetCashFlow.StringFixed(2))
			fmt.Fprintf(tw, "transactions\t%d\n", s.TransactionCount)
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&period, "period", "30d", "7d, 30d, 90d, 1y or all")
	cmd.Flags().StringVar(&account, "account", "", "limit to one account")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

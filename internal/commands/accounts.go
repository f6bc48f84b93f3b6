package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/accounts"
	"github.com/cleared-dev/tally/internal/auditlog"
	"github.com/cleared-dev/tally/internal/model"
)

func newAccountsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage bank, card and cash accounts",
	}
	cmd.AddCommand(
		newAccountsCreateCommand(opts),
		newAccountsListCommand(opts),
		newAccountsShowCommand(opts),
		newAccountsDeactivateCommand(opts),
		newAccountsSummaryCommand(opts),
	)
	return cmd
}

func newAccountsCreateCommand(opts *globalOptions) *cobra.Command {
	var p accounts.CreateParams
	var accountType, limit, from string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account, or every account in a CSV file with --from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, ctx, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()
			svc := ws.accounts()
			out := cmd.OutOrStdout()

			var created []model.Account
			if from != "" {
				f, err := os.Open(from)
				if err != nil {
					return fmt.Errorf("opening %s: %w", from, err)
				}
				defs, err := accounts.ReadAccounts(f)
				f.Close()
				if err != nil {
					return err
				}
				created, err = svc.Import(ctx, defs)
				if err != nil {
					return err
				}
			} else {
				p.Type = model.AccountType(accountType)
				if limit != "" {
					if p.CreditLimit, err = decimal.NewFromString(limit); err != nil {
						return fmt.Errorf("%w: credit limit %q is not a number", accounts.ErrInvalid, limit)
					}
				}
				acct, err := svc.Create(ctx, p)
				if err != nil {
					return err
				}
				created = append(created, acct)
			}

			for _, a := range created {
				ws.audit(auditlog.ActionAccountCreate, a.ID, from, fmt.Sprintf("name=%q type=%s", a.Name, a.Type))
				fmt.Fprintf(out, "Created %s %s (%s)\n", a.ID, a.Name, a.Type)
			}
			if len(created) > 0 {
				ws.autoCommit(ctx, fmt.Sprintf("accounts: create %d account(s)", len(created)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&p.ID, "id", "", "account ID (generated when empty)")
	cmd.Flags().StringVar(&p.Name, "name", "", "account name")
	cmd.Flags().StringVar(&p.Institution, "institution", "", "bank or card issuer")
	cmd.Flags().StringVar(&accountType, "type", string(model.AccountTypeSavings), "savings, current, credit_card, cash or investment")
	cmd.Flags().StringVar(&p.Currency, "currency", "", "ISO currency code (defaults to import.default_currency)")
	cmd.Flags().StringVar(&p.AccountNumber, "number", "", "account number")
	cmd.Flags().StringVar(&limit, "limit", "", "credit limit (credit_card only)")
	cmd.Flags().StringVar(&from, "from", "", "create the accounts defined in this CSV file")
	cmd.MarkFlagsMutuallyExclusive("from", "name")

	return cmd
}

func newAccountsListCommand(opts *globalOptions) *cobra.Command {
	var all, asCSV, asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, ctx, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			list, err := ws.accounts().List(ctx, all)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				if list == nil {
					list = []accounts.Overview{}
				}
				return writeJSON(out, list)
			case asCSV:
				accts := make([]model.Account, len(list))
				for i, o := range list {
					accts[i] = o.Account
				}
				return accounts.WriteAccounts(out, accts)
			}
			printAccounts(out, list)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include deactivated accounts")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "print account definitions as CSV")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.MarkFlagsMutuallyExclusive("csv", "json")

	return cmd
}

func printAccounts(w io.Writer, list []accounts.Overview) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No accounts.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tCURRENCY\tBALANCE\tTXNS\tSTATUS")
	for _, o := range list {
		status := "ok"
		if !o.Active {
			status = "inactive"
		} else if o.Unreconciled {
			status = "unreconciled"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			o.ID, o.Name, o.Type, o.Currency, o.CurrentBalance.StringFixed(2), o.TransactionCount, status)
	}
	tw.Flush()
}

func newAccountsShowCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <account-id>",
		Short: "Show one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, ctx, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			a, err := ws.accounts().Get(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, a)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "id\t%s\n", a.ID)
			fmt.Fprintf(tw, "name\t%s\n", a.Name)
			fmt.Fprintf(tw, "institution\t%s\n", a.Institution)
			fmt.Fprintf(tw, "type\t%s\n", a.Type)
			fmt.Fprintf(tw, "currency\t%s\n", a.Currency)
			if a.AccountNumber != "" {
				fmt.Fprintf(tw, "number\t%s\n", a.AccountNumber)
			}
			fmt.Fprintf(tw, "balance\t%s\n", a.CurrentBalance.StringFixed(2))
			if a.IsCredit() {
				fmt.Fprintf(tw, "credit limit\t%s\n", a.CreditLimit.StringFixed(2))
			}
			fmt.Fprintf(tw, "active\t%t\n", a.Active)
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newAccountsDeactivateCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <account-id>",
		Short: "Deactivate an account that holds no transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, ctx, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			if err := ws.accounts().Deactivate(ctx, args[0]); err != nil {
				return err
			}
			ws.audit(auditlog.ActionAccountDeactive, args[0], "", "")
			ws.autoCommit(ctx, "accounts: deactivate "+args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %s\n", args[0])
			return nil
		},
	}
}

func newAccountsSummaryCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Total balances and net worth across active accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, ctx, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			s, err := ws.accounts().Summarize(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, s)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "accounts\t%d\n", s.Accounts)
			fmt.Fprintf(tw, "bank balance\t%s\n", s.BankBalance.StringFixed(2))
			fmt.Fprintf(tw, "credit card owed\t%s\n", s.CreditCardBalance.StringFixed(2))
			fmt.Fprintf(tw, "credit limit\t%s\n", s.CreditLimit.StringFixed(2))
			fmt.Fprintf(tw, "net worth\t%s\n", s.NetWorth.StringFixed(2))
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/ingest"
)

type importFlags struct {
	dialect string
	account string
	remove  bool
	json    bool
}

func newImportCommand(opts *globalOptions) *cobra.Command {
	var f importFlags

	cmd := &cobra.Command{
		Use:   "import [file.csv]",
		Short: "Import a bank or card statement",
		Long: `Import a CSV statement into the ledger. The statement format is detected
from its header unless --dialect is given. With no file argument, every CSV
waiting in the import directory is processed and moved to import/processed
or import/failed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, ctx, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			svc, err := ws.ingest()
			if err != nil {
				return err
			}
			req := ingest.Request{DialectHint: f.dialect, AccountID: f.account}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				sum, err := svc.IngestFile(ctx, args[0], req, f.remove)
				if sum != nil && sum.AccountID != "" {
					ws.autoCommit(ctx, "import: "+filepath.Base(args[0]))
				}
				if err != nil {
					return err
				}
				if f.json {
					return writeJSON(out, sum)
				}
				printSummary(out, filepath.Base(args[0]), sum)
				return nil
			}

			results, err := svc.IngestInbox(ctx, resolve(ws.root, ws.cfg.Import.Dir), req)
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}
			if len(results) > 0 {
				ws.autoCommit(ctx, fmt.Sprintf("import: %d statement(s) from inbox", len(results)-failed))
			}
			if err != nil {
				return err
			}

			if f.json {
				if err := writeJSON(out, inboxJSON(results)); err != nil {
					return err
				}
			} else {
				printInbox(out, results)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d statements failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.dialect, "dialect", "", "statement format (see tally dialects); detected when empty")
	cmd.Flags().StringVar(&f.account, "account", "", "account ID to import into; found or created from the statement when empty")
	cmd.Flags().BoolVar(&f.remove, "remove", false, "delete the file after importing, even if the import fails")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the result as JSON")

	return cmd
}

func printSummary(w io.Writer, name string, s *ingest.Summary) {
	fmt.Fprintf(w, "Imported %s (%s) into %s [%s]\n", name, s.Dialect, s.AccountName, s.AccountID)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  processed\t%d\n", s.Processed)
	fmt.Fprintf(tw, "  duplicates\t%d\n", s.Duplicates)
	fmt.Fprintf(tw, "  invalid\t%d\n", s.Invalid)
	fmt.Fprintf(tw, "  total\t%d\n", s.Total)
	if s.RowErrors > 0 {
		fmt.Fprintf(tw, "  skipped rows\t%d\n", s.RowErrors)
	}
	if s.ZeroAmountRows > 0 {
		fmt.Fprintf(tw, "  zero-amount rows\t%d\n", s.ZeroAmountRows)
	}
	if s.DateFallbacks > 0 {
		fmt.Fprintf(tw, "  dates set to today\t%d\n", s.DateFallbacks)
	}
	if s.CategoryFallbacks > 0 {
		fmt.Fprintf(tw, "  uncategorized (categorizer failed)\t%d\n", s.CategoryFallbacks)
	}
	fmt.Fprintf(tw, "  balance\t%s\n", s.Balance.StringFixed(2))
	tw.Flush()
}

func printInbox(w io.Writer, results []ingest.InboxResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No statements waiting in the import directory.")
		return
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "FAILED %s: %v\n", r.File.Name, r.Err)
			continue
		}
		printSummary(w, r.File.Name, r.Summary)
	}
}

type inboxResultJSON struct {
	File    string          `json:"file"`
	MovedTo string          `json:"moved_to"`
	Summary *ingest.Summary `json:"summary,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func inboxJSON(results []ingest.InboxResult) []inboxResultJSON {
	out := make([]inboxResultJSON, 0, len(results))
	for _, r := range results {
		j := inboxResultJSON{File: r.File.Name, MovedTo: r.MovedTo, Summary: r.Summary}
		if r.Err != nil {
			j.Error = r.Err.Error()
		}
		out = append(out, j)
	}
	return out
}

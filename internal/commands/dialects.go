package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/importer"
)

func newDialectsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "dialects",
		Short: "List supported statement formats in detection order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all := importer.DefaultRegistry().All()
			out := cmd.OutOrStdout()

			if asJSON {
				type dialectJSON struct {
					Key         string     `json:"key"`
					Name        string     `json:"name"`
					AccountType string     `json:"account_type"`
					HeaderSets  [][]string `json:"header_sets"`
				}
				list := make([]dialectJSON, 0, len(all))
				for _, d := range all {
					list = append(list, dialectJSON{Key: d.Key, Name: d.Name, AccountType: string(d.AccountType), HeaderSets: d.HeaderSets})
				}
				return writeJSON(out, list)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tNAME\tACCOUNT TYPE\tHEADERS")
			for _, d := range all {
				for i, hs := range d.HeaderSets {
					if i == 0 {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Key, d.Name, d.AccountType, strings.Join(hs, ", "))
						continue
					}
					fmt.Fprintf(tw, "\t\t\t%s\n", strings.Join(hs, ", "))
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

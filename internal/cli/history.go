package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newHistoryCommand(a *app) *cobra.Command {
	var (
		recordType string
		limit      int
		forget     []string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or edit the import ledger",
		Long: `History lists files recorded in the import ledger, newest first.
With --forget the named files are removed from the ledger so the next
import picks them up again.`,
		Example: `  jrdbload history --type SED --limit 10
  jrdbload history --forget SED220110.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			l, closeLedger, err := a.openLedger(ctx)
			if err != nil {
				return err
			}
			defer closeLedger()

			if len(forget) > 0 {
				for _, name := range forget {
					if err := l.Forget(ctx, name); err != nil {
						return err
					}
					fmt.Fprintf(w, "forgot %s\n", name)
				}
				return nil
			}

			entries, err := l.List(ctx, strings.ToUpper(recordType), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(w, "No imports recorded.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(w)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"File", "Type", "Rows", "Imported At"})
			for _, e := range entries {
				t.AppendRow(table.Row{e.FileName, e.RecordType, e.Rows, e.ImportedAt.Format("2006-01-02 15:04:05")})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&recordType, "type", "", "only show this record type")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum entries to show (0 shows all)")
	cmd.Flags().StringSliceVar(&forget, "forget", nil, "remove these file names from the ledger")

	return cmd
}

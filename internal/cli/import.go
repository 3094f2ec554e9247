package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/jrdbload/internal/config"
	"github.com/JonMunkholm/jrdbload/internal/core"
	"github.com/JonMunkholm/jrdbload/internal/ingest"
	"github.com/JonMunkholm/jrdbload/internal/source"
)

func newImportCommand(a *app) *cobra.Command {
	var opts ingest.Options

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import every data file below the data directory",
		Long: `Import parses each *.txt file below the data directory with the layout of
its record type (the first three letters of the file name) and writes one
table per record type.

Files already recorded in the import ledger are skipped unless --force is
given. A file that fails is reported and the remaining files continue.`,
		Example: `  # Import everything below ./data into the configured sink
  jrdbload import

  # Re-import SED files into a custom table
  jrdbload import --type SED --table sed_2022 --force

  # Parse only, without writing anything
  jrdbload import --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.RecordType = strings.ToUpper(opts.RecordType)
			opts.MaxConcurrent = a.cfg.Ingest.MaxConcurrent
			return a.runImport(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.RecordType, "type", "", "only import this record type, e.g. SED")
	cmd.Flags().StringVar(&opts.Table, "table", "", "destination table (requires --type)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "parse files without writing them")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "import files the ledger has already seen")

	return cmd
}

func (a *app) runImport(ctx context.Context, w io.Writer, opts ingest.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Ingest.Timeout)
	defer cancel()

	src := source.NewDir(a.cfg.Ingest.DataDir, a.logger)

	var imp *ingest.Importer
	if opts.DryRun {
		imp = ingest.New(a.parser(), src, nil, nil, a.logger)
	} else {
		b, err := a.openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.close()
		if strings.EqualFold(a.cfg.Ingest.Sink, config.SinkPostgres) {
			a.logger.Info("connected to database", "name", databaseName(a.cfg.Database.URL))
		}
		imp = ingest.New(a.parser(), src, b.sink, b.ledger, a.logger)
	}

	res, err := imp.Run(ctx, opts)
	if res != nil {
		renderResult(w, res)
	}
	if err != nil {
		return err
	}
	if n := len(res.Failed); n > 0 {
		// Surface the first failure so it gets a user-facing message.
		return fmt.Errorf("%d of %d files failed: %w", n, len(res.Files), res.Failed[0].Err)
	}
	return nil
}

func renderResult(w io.Writer, res *ingest.Result) {
	if len(res.Files) == 0 {
		fmt.Fprintln(w, "No data files found.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Type", "Table", "Rows", "Status"})

	for _, fr := range res.Files {
		t.AppendRow(table.Row{fr.File, fr.RecordType, fr.Destination, fr.Rows, fileStatus(fr)})
	}
	t.Render()

	fmt.Fprintf(w, "%d imported, %d skipped, %d failed, %d rows (run %s, %s)\n",
		res.Imported, res.Skipped, len(res.Failed), res.Rows, res.RunID, res.Duration.Round(time.Millisecond))
}

func fileStatus(fr ingest.FileResult) string {
	switch {
	case fr.Err != nil:
		u := core.NewUserError(fr.Err)
		return fmt.Sprintf("failed (%s): %v", u.User.Code, u.Technical)
	case fr.Skipped:
		return "skipped"
	}

	var notes []string
	if fr.Dropped > 0 {
		notes = append(notes, fmt.Sprintf("%d records dropped", fr.Dropped))
	}
	if len(fr.Fallbacks) > 0 {
		notes = append(notes, "raw: "+strings.Join(fr.Fallbacks, ", "))
	}
	if len(notes) == 0 {
		return "ok"
	}
	return "ok (" + strings.Join(notes, "; ") + ")"
}

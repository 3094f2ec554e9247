package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/jrdbload/internal/core"
	"github.com/JonMunkholm/jrdbload/internal/logging"
	"github.com/JonMunkholm/jrdbload/internal/source"
)

func newInspectCommand(a *app) *cobra.Command {
	var (
		recordType string
		rows       int
	)

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Parse one data file and print its first rows",
		Long: `Inspect parses a single data file without writing it anywhere and prints
the first rows as a table, followed by every recovery the parser applied:
dropped records, columns left unnormalized and values stored as null.`,
		Example: `  jrdbload inspect data/SED220110.txt
  jrdbload inspect --type SED --rows 5 ./sed.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInspect(cmd.Context(), cmd.OutOrStdout(), args[0], recordType, rows)
		},
	}

	cmd.Flags().StringVar(&recordType, "type", "", "record type (default: from the file name)")
	cmd.Flags().IntVarP(&rows, "rows", "n", 20, "number of rows to print (0 prints all)")

	return cmd
}

func (a *app) runInspect(ctx context.Context, w io.Writer, path, recordType string, limit int) error {
	if recordType == "" {
		recordType = source.RecordTypeOf(filepath.Base(path))
	}
	if recordType == "" {
		return fmt.Errorf("cannot tell the record type of %s; pass --type", path)
	}
	recordType = strings.ToUpper(recordType)

	logger := logging.WithFields(ctx, "file", filepath.Base(path), "record_type", recordType)
	records, err := source.ReadFile(ctx, path, logger)
	if err != nil {
		return err
	}

	tbl, report, err := a.parser().Parse(ctx, recordType, records)
	if err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	renderTable(w, tbl, limit)
	renderReport(w, report)
	return nil
}

func renderTable(w io.Writer, tbl *core.Table, limit int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	cols := tbl.ColumnNames()
	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	n := tbl.Len()
	if limit > 0 {
		n = min(n, limit)
	}
	for _, r := range tbl.Rows[:n] {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}

	t.Render()
	fmt.Fprintf(w, "(%d of %d rows)\n", n, tbl.Len())
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

func renderReport(w io.Writer, report *core.ParseReport) {
	if len(report.Dropped) == 0 && report.Format.Clean() {
		return
	}

	fmt.Fprintln(w)
	for _, d := range report.Dropped {
		fmt.Fprintf(w, "dropped: %v\n", d)
	}
	for _, fb := range report.Format.Fallbacks {
		fmt.Fprintf(w, "raw column %s: %s failed at row %d: %v\n", fb.Column, fb.Normalizer, fb.Row, fb.Err)
	}
	for _, cf := range report.Format.CoercionFailures {
		fmt.Fprintf(w, "null %s at row %d: %v\n", cf.Column, cf.Row, cf.Err)
	}
}

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newSpecsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "specs [TYPE]",
		Short: "List known record types or show one column layout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.listSpecs(cmd.OutOrStdout())
			}
			return a.showSpec(cmd.OutOrStdout(), strings.ToUpper(args[0]))
		},
	}
}

func (a *app) listSpecs(w io.Writer) error {
	types, err := a.specs().Types()
	if err != nil {
		return err
	}
	if len(types) == 0 {
		fmt.Fprintln(w, "No column layouts found.")
		return nil
	}
	for _, t := range types {
		fmt.Fprintln(w, t)
	}
	return nil
}

func (a *app) showSpec(w io.Writer, recordType string) error {
	spec, err := a.specs().Load(recordType)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(spec.Type)
	t.AppendHeader(table.Row{"Column", "Start", "End", "Normalizer", "Type"})
	for _, col := range spec.Columns {
		t.AppendRow(table.Row{col.Name, col.StartByte, col.EndByte, string(col.Normalizer), string(col.Type)})
	}
	t.Render()
	return nil
}

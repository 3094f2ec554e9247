// Package cli provides the jrdbload command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/jrdbload/internal/config"
	"github.com/JonMunkholm/jrdbload/internal/core"
	"github.com/JonMunkholm/jrdbload/internal/logging"
)

// Version is set at build time.
var Version = "dev"

// app is the state shared by all commands once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	// Flag overrides, applied on top of the environment.
	dataDir  string
	specDir  string
	sinkKind string
	isolate  bool
}

// NewRootCmd creates the root command and its subcommands.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "jrdbload",
		Short: "Parse JRDB fixed-width data files and load them into a database",
		Long: `jrdbload reads JRDB Shift_JIS fixed-width data files, converts every
record into typed columns using a per-type column layout, and writes the
result to PostgreSQL, SQLite or CSV.

Configuration comes from the environment (and a .env file if present).
Flags override the environment for a single run.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			return a.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.dataDir, "data-dir", "", "directory of data files (overrides INGEST_DATA_DIR)")
	flags.StringVar(&a.specDir, "spec-dir", "", "directory of column layouts (overrides INGEST_SPEC_DIR)")
	flags.StringVar(&a.sinkKind, "sink", "", "postgres, sqlite or csv (overrides INGEST_SINK)")
	flags.BoolVar(&a.isolate, "isolate", false, "drop undecodable records instead of failing the file")

	_ = root.RegisterFlagCompletionFunc("sink", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.SinkPostgres, config.SinkSQLite, config.SinkCSV}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newImportCommand(a),
		newInspectCommand(a),
		newSpecsCommand(a),
		newDownloadCommand(a),
		newHistoryCommand(a),
	)

	return root
}

// load reads the environment, applies flag overrides and sets up logging.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Read()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.Ingest.DataDir = a.dataDir
	}
	if flags.Changed("spec-dir") {
		cfg.Ingest.SpecDir = a.specDir
	}
	if flags.Changed("sink") {
		cfg.Ingest.Sink = a.sinkKind
	}
	if flags.Changed("isolate") {
		cfg.Ingest.StrictDecode = !a.isolate
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	a.cfg = cfg
	a.logger = logging.Setup(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	a.logger.Debug("configuration loaded", "config", cfg.String())
	return nil
}

// Execute runs the root command with args and returns the process exit code.
// Errors are printed to stderr as a user-facing message.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

func printError(w io.Writer, err error) {
	if core.IsUserFacing(err) {
		fmt.Fprintf(w, "Error: %s\n  %v\n", core.FormatUserError(err), err)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

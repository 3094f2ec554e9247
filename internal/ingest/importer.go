// Package ingest imports directories of JRDB data files into a sink.
//
// Each file is parsed into one table and written in one sink call. Files are
// independent: a file that fails is reported in Result.Failed and the rest of
// the run continues. Successful files are recorded in the ledger and skipped
// on later runs.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/jrdbload/internal/core"
	"github.com/JonMunkholm/jrdbload/internal/ledger"
	"github.com/JonMunkholm/jrdbload/internal/logging"
	"github.com/JonMunkholm/jrdbload/internal/sink"
	"github.com/JonMunkholm/jrdbload/internal/source"
)

// DefaultMaxConcurrent is the number of files imported at once.
const DefaultMaxConcurrent = 4

// Ledger tracks imported files. *ledger.Ledger implements it.
type Ledger interface {
	Seen(ctx context.Context, fileName string) (bool, error)
	Record(ctx context.Context, e ledger.Entry) error
}

// Options control one run.
type Options struct {
	RecordType    string // Only import this type; empty imports every type
	Table         string // Destination override; requires RecordType
	DryRun        bool   // Parse only, no sink writes or ledger updates
	Force         bool   // Import files the ledger has already seen
	MaxConcurrent int
}

// Validate checks option combinations.
func (o Options) Validate() error {
	if o.Table != "" && o.RecordType == "" {
		return errors.New("a destination table requires a record type")
	}
	return nil
}

// FileResult is the outcome of one file.
type FileResult struct {
	File        string
	RecordType  string
	Destination string
	Rows        int64
	Dropped     int      // Records dropped by isolation
	Fallbacks   []string // Columns left unnormalized
	Skipped     bool     // Already in the ledger
	Duration    time.Duration
	Err         error
}

// Result summarizes a run.
type Result struct {
	RunID    string
	Files    []FileResult // In path order
	Imported int
	Skipped  int
	Rows     int64
	Failed   []FileResult
	Duration time.Duration
}

// Importer wires a line source, parser, sink and ledger together.
type Importer struct {
	parser *core.Parser
	source *source.Dir
	sink   sink.Sink
	ledger Ledger
	logger *slog.Logger
}

// New creates an importer. sink may be nil for dry runs and ledger may be
// nil to import every file on every run.
func New(parser *core.Parser, src *source.Dir, snk sink.Sink, l Ledger, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Importer{parser: parser, source: src, sink: snk, ledger: l, logger: logger}
}

// Destination returns the table a record type is written to.
func Destination(recordType string, opts Options) string {
	if opts.Table != "" {
		return opts.Table
	}
	return strings.ToLower(recordType)
}

// Run imports every matching file below the source directory.
// The returned error covers the run as a whole; per-file errors are in Result.Failed.
func (imp *Importer) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if imp.sink == nil && !opts.DryRun {
		return nil, errors.New("no sink configured")
	}

	start := time.Now()
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.Enrich(ctx, imp.logger)

	files, err := imp.source.Files(opts.RecordType)
	if err != nil {
		return nil, err
	}

	logger.Info("import started",
		"dir", imp.source.Root(),
		"files", len(files),
		"record_type", opts.RecordType,
		"dry_run", opts.DryRun,
	)

	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}

	// Each goroutine owns one slot, so results stay in path order.
	results := make([]FileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range files {
		g.Go(func() error {
			results[i] = imp.importFile(gctx, logger, path, opts)
			return nil
		})
	}
	_ = g.Wait() // importFile never returns an error to the group

	res := &Result{RunID: runID, Files: results, Duration: time.Since(start)}
	for _, fr := range results {
		switch {
		case fr.Err != nil:
			res.Failed = append(res.Failed, fr)
		case fr.Skipped:
			res.Skipped++
		default:
			res.Imported++
			res.Rows += fr.Rows
		}
	}

	logger.Info("import finished",
		"imported", res.Imported,
		"skipped", res.Skipped,
		"failed", len(res.Failed),
		"rows", res.Rows,
		"duration", res.Duration,
	)

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("import cancelled: %w", err)
	}
	return res, nil
}

func (imp *Importer) importFile(ctx context.Context, logger *slog.Logger, path string, opts Options) (fr FileResult) {
	start := time.Now()
	name := filepath.Base(path)
	recordType := source.RecordTypeOf(name)

	fr = FileResult{
		File:        name,
		RecordType:  recordType,
		Destination: Destination(recordType, opts),
	}
	defer func() { fr.Duration = time.Since(start) }()

	logger = logger.With("file", name, "record_type", recordType)

	if err := ctx.Err(); err != nil {
		fr.Err = err
		return fr
	}

	if imp.ledger != nil && !opts.Force && !opts.DryRun {
		seen, err := imp.ledger.Seen(ctx, name)
		if err != nil {
			fr.Err = err
			logger.Error("ledger check failed", "error", err)
			return fr
		}
		if seen {
			fr.Skipped = true
			logger.Debug("already imported, skipping")
			return fr
		}
	}

	records, err := source.ReadFile(ctx, path, logger)
	if err != nil {
		fr.Err = err
		logger.Error("read failed", "error", err)
		return fr
	}

	table, report, err := imp.parser.Parse(ctx, recordType, records)
	if err != nil {
		fr.Err = fmt.Errorf("parse %s: %w", name, err)
		logger.Error("parse failed", "error", err)
		return fr
	}
	fr.Dropped = len(report.Dropped)
	for _, fb := range report.Format.Fallbacks {
		fr.Fallbacks = append(fr.Fallbacks, fb.Column)
	}

	if opts.DryRun {
		fr.Rows = int64(table.Len())
		logger.Info("file parsed", "rows", fr.Rows, "dropped", fr.Dropped)
		return fr
	}

	n, err := imp.sink.Write(ctx, fr.Destination, table)
	if err != nil {
		fr.Err = err
		logger.Error("write failed", "destination", fr.Destination, "error", err)
		return fr
	}
	fr.Rows = n

	if imp.ledger != nil {
		entry := ledger.Entry{FileName: name, RecordType: recordType, Rows: n}
		if err := imp.ledger.Record(ctx, entry); err != nil {
			// Rows are already written; the file will be imported again next run.
			fr.Err = err
			logger.Error("ledger update failed", "error", err)
			return fr
		}
	}

	logger.Info("file imported",
		"destination", fr.Destination,
		"rows", n,
		"dropped", fr.Dropped,
		"fallbacks", len(fr.Fallbacks),
	)
	return fr
}

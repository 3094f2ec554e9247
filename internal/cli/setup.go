package cli

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/JonMunkholm/jrdbload/internal/config"
	"github.com/JonMunkholm/jrdbload/internal/core"
	"github.com/JonMunkholm/jrdbload/internal/ledger"
	"github.com/JonMunkholm/jrdbload/internal/sink"
	"github.com/JonMunkholm/jrdbload/internal/specsource"
)

// specs returns the layout source: SpecDir first, built-in layouts after.
func (a *app) specs() specsource.Source {
	return specsource.Default(a.cfg.Ingest.SpecDir)
}

func (a *app) parser() *core.Parser {
	registry := core.NewSpecRegistry(a.specs())
	return core.NewParser(registry,
		core.WithRecordIsolation(!a.cfg.Ingest.StrictDecode),
		core.WithLogger(a.logger),
	)
}

// backend is an opened sink plus the ledger that tracks it.
type backend struct {
	sink   sink.Sink
	ledger *ledger.Ledger
	close  func()
}

// openBackend connects the configured sink and migrates the ledger.
// The ledger lives next to the data: in Postgres for the postgres sink and
// in the SQLite file otherwise.
func (a *app) openBackend(ctx context.Context) (*backend, error) {
	cfg := a.cfg
	opts := sink.Options{
		BatchSize:    cfg.Ingest.BatchSize,
		CreateTables: cfg.Ingest.CreateTables,
		CSVDir:       cfg.Ingest.CSVDir,
		Logger:       a.logger,
	}

	var (
		db      *sql.DB
		dialect string
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch strings.ToLower(cfg.Ingest.Sink) {
	case config.SinkPostgres:
		pool, err := newPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		closers = append(closers, pool.Close)
		opts.Pool = pool
		db = stdlib.OpenDBFromPool(pool)
		closers = append(closers, func() { _ = db.Close() })
		dialect = ledger.DialectPostgres
	default:
		var err error
		db, err = sink.OpenSQLite(cfg.Ingest.SQLitePath)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func() { _ = db.Close() })
		opts.DB = db
		dialect = ledger.DialectSQLite
	}

	snk, err := sink.New(cfg.Ingest.Sink, opts)
	if err != nil {
		closeAll()
		return nil, err
	}

	l, err := ledger.New(db, dialect)
	if err != nil {
		closeAll()
		return nil, err
	}
	if err := l.Migrate(ctx); err != nil {
		closeAll()
		return nil, err
	}

	return &backend{sink: snk, ledger: l, close: closeAll}, nil
}

// openLedger opens only the ledger, for commands that do not write data.
func (a *app) openLedger(ctx context.Context) (*ledger.Ledger, func(), error) {
	b, err := a.openBackend(ctx)
	if err != nil {
		return nil, nil, err
	}
	return b.ledger, b.close, nil
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// databaseName returns the database name of a connection URL for logging.
func databaseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

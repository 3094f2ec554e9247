package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/jrdbload/internal/core"
)

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres bulk loads tables with COPY, one transaction per table.
//
// Destination tables are created at most once per sink, each in its own
// committed transaction before any data transaction touches it.
type Postgres struct {
	db           TxBeginner
	createTables bool
	logger       *slog.Logger

	mu      sync.Mutex
	created map[string]bool
}

// NewPostgres creates a Postgres sink. logger may be nil.
func NewPostgres(db TxBeginner, createTables bool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Postgres{db: db, createTables: createTables, logger: logger, created: make(map[string]bool)}
}

// Write implements Sink.
func (p *Postgres) Write(ctx context.Context, destination string, table *core.Table) (int64, error) {
	if err := checkDestination(destination); err != nil {
		return 0, writeError(destination, err)
	}

	rows := make([][]any, 0, table.Len())
	for r, row := range table.Rows {
		converted, err := pgRow(row, table.Columns)
		if err != nil {
			return 0, writeError(destination, fmt.Errorf("row %d: %w", r, err))
		}
		rows = append(rows, converted)
	}

	if p.createTables {
		if err := p.ensureTable(ctx, destination, table.Columns); err != nil {
			return 0, writeError(destination, err)
		}
	}

	// All rows of a table are atomic
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, writeError(destination, fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback(ctx) // No-op if already committed

	n, err := tx.CopyFrom(ctx, pgx.Identifier{destination}, table.ColumnNames(), pgx.CopyFromRows(rows))
	if err != nil {
		return 0, writeError(destination, fmt.Errorf("copy: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, writeError(destination, fmt.Errorf("commit: %w", err))
	}

	p.logger.Debug("table written", "sink", KindPostgres, "destination", destination, "rows", n)
	return n, nil
}

// ensureTable creates destination unless this sink already has.
func (p *Postgres) ensureTable(ctx context.Context, destination string, columns []core.ColumnSpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.created[destination] {
		return nil
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, postgresDialect.createTableSQL(destination, columns)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("create table: commit: %w", err)
	}

	p.created[destination] = true
	return nil
}

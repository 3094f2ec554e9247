package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/jrdbload/internal/core"
)

// sqliteMaxVariables is SQLite's default limit on bound parameters per statement.
const sqliteMaxVariables = 32766

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}

// SQLite inserts tables in batches inside one transaction per table.
type SQLite struct {
	db           *sql.DB
	batchSize    int
	createTables bool
	logger       *slog.Logger
}

// NewSQLite creates a SQLite sink. batchSize <= 0 uses DefaultBatchSize.
func NewSQLite(db *sql.DB, batchSize int, createTables bool, logger *slog.Logger) *SQLite {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLite{db: db, batchSize: batchSize, createTables: createTables, logger: logger}
}

// Write implements Sink.
func (s *SQLite) Write(ctx context.Context, destination string, table *core.Table) (int64, error) {
	if err := checkDestination(destination); err != nil {
		return 0, writeError(destination, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, writeError(destination, fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	if s.createTables {
		if _, err := tx.ExecContext(ctx, sqliteDialect.createTableSQL(destination, table.Columns)); err != nil {
			return 0, writeError(destination, fmt.Errorf("create table: %w", err))
		}
	}

	batch := s.batchRows(len(table.Columns))
	var written int64
	for start := 0; start < table.Len(); start += batch {
		if err := ctx.Err(); err != nil {
			return 0, writeError(destination, err)
		}

		end := min(start+batch, table.Len())
		query, args := insertSQL(destination, table, start, end)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, writeError(destination, fmt.Errorf("insert rows %d-%d: %w", start, end-1, err))
		}
		n, _ := res.RowsAffected()
		written += n
	}

	if err := tx.Commit(); err != nil {
		return 0, writeError(destination, fmt.Errorf("commit: %w", err))
	}

	s.logger.Debug("table written", "sink", KindSQLite, "destination", destination, "rows", written)
	return written, nil
}

// batchRows caps the batch so a statement stays under the parameter limit.
func (s *SQLite) batchRows(columns int) int {
	if columns == 0 {
		return s.batchSize
	}
	return max(1, min(s.batchSize, sqliteMaxVariables/columns))
}

// insertSQL builds a multi-row INSERT for rows [start, end).
func insertSQL(destination string, table *core.Table, start, end int) (string, []any) {
	ncols := len(table.Columns)
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", ncols), ", ") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(quoteIdent(destination))
	b.WriteString(" (")
	b.WriteString(strings.Join(quotedColumns(table.Columns), ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, (end-start)*ncols)
	for r := start; r < end; r++ {
		if r > start {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		row := table.Rows[r]
		for c := 0; c < ncols; c++ {
			if c < len(row) {
				args = append(args, row[c])
			} else {
				args = append(args, nil)
			}
		}
	}
	return b.String(), args
}

// Package ledger remembers which data files have been imported so that
// re-runs skip them.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Supported dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Entry is one imported file.
type Entry struct {
	FileName   string
	RecordType string
	Rows       int64
	ImportedAt time.Time
}

// Ledger reads and writes the jrdb_imports table.
type Ledger struct {
	db      *sql.DB
	dialect string
}

// New wraps db. dialect is DialectPostgres or DialectSQLite.
func New(db *sql.DB, dialect string) (*Ledger, error) {
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported ledger dialect %q", dialect)
	}
	return &Ledger{db: db, dialect: dialect}, nil
}

// Migrate runs all pending migrations.
func (l *Ledger) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(l.dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, l.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Seen reports whether fileName has been imported.
func (l *Ledger) Seen(ctx context.Context, fileName string) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx,
		l.rebind(`SELECT 1 FROM jrdb_imports WHERE file_name = ?`), fileName).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check import %s: %w", fileName, err)
	}
	return true, nil
}

// Record marks a file as imported, replacing any previous entry.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	_, err := l.db.ExecContext(ctx, l.rebind(`
		INSERT INTO jrdb_imports (file_name, record_type, row_count)
		VALUES (?, ?, ?)
		ON CONFLICT (file_name) DO UPDATE SET
			record_type = excluded.record_type,
			row_count   = excluded.row_count,
			imported_at = CURRENT_TIMESTAMP`),
		e.FileName, e.RecordType, e.Rows)
	if err != nil {
		return fmt.Errorf("record import %s: %w", e.FileName, err)
	}
	return nil
}

// Forget removes a file's entry so the next run imports it again.
func (l *Ledger) Forget(ctx context.Context, fileName string) error {
	if _, err := l.db.ExecContext(ctx, l.rebind(`DELETE FROM jrdb_imports WHERE file_name = ?`), fileName); err != nil {
		return fmt.Errorf("forget import %s: %w", fileName, err)
	}
	return nil
}

// List returns imported files, newest first. An empty recordType lists all.
func (l *Ledger) List(ctx context.Context, recordType string, limit int) ([]Entry, error) {
	query := `SELECT file_name, record_type, row_count, imported_at FROM jrdb_imports`
	var args []any
	if recordType != "" {
		query += ` WHERE record_type = ?`
		args = append(args, recordType)
	}
	query += ` ORDER BY imported_at DESC, file_name`
	if limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(limit)
	}

	rows, err := l.db.QueryContext(ctx, l.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.FileName, &e.RecordType, &e.Rows, &e.ImportedAt); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (l *Ledger) rebind(query string) string {
	if l.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Package sink stores parsed tables in Postgres, SQLite or CSV files.
package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/jrdbload/internal/core"
)

// Sink writes a table to a named destination and returns the rows written.
// Errors are *core.SinkWriteError.
type Sink interface {
	Write(ctx context.Context, destination string, table *core.Table) (int64, error)
}

// Kinds accepted by New.
const (
	KindPostgres = "postgres"
	KindSQLite   = "sqlite"
	KindCSV      = "csv"
)

// DefaultBatchSize is the number of rows per INSERT statement for SQLite.
const DefaultBatchSize = 500

// Options carries what each sink kind needs. Only the fields for the chosen
// kind are read.
type Options struct {
	Pool         *pgxpool.Pool // postgres
	DB           *sql.DB       // sqlite
	CSVDir       string        // csv
	BatchSize    int
	CreateTables bool
	Logger       *slog.Logger
}

// New returns the sink for kind.
func New(kind string, opts Options) (Sink, error) {
	switch strings.ToLower(kind) {
	case KindPostgres:
		if opts.Pool == nil {
			return nil, fmt.Errorf("postgres sink requires a connection pool")
		}
		return NewPostgres(opts.Pool, opts.CreateTables, opts.Logger), nil
	case KindSQLite:
		if opts.DB == nil {
			return nil, fmt.Errorf("sqlite sink requires a database")
		}
		return NewSQLite(opts.DB, opts.BatchSize, opts.CreateTables, opts.Logger), nil
	case KindCSV:
		if opts.CSVDir == "" {
			return nil, fmt.Errorf("csv sink requires an output directory")
		}
		return NewCSV(opts.CSVDir), nil
	default:
		return nil, fmt.Errorf("unknown sink %q (want postgres, sqlite or csv)", kind)
	}
}

func writeError(destination string, err error) error {
	return &core.SinkWriteError{Destination: destination, Err: err}
}

func checkDestination(destination string) error {
	if strings.TrimSpace(destination) == "" {
		return fmt.Errorf("destination is empty")
	}
	return nil
}

// quoteIdent quotes a SQL identifier with double quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// dialect holds the SQL column types of one database.
type dialect struct {
	intType, floatType, textType string
}

var (
	postgresDialect = dialect{intType: "BIGINT", floatType: "DOUBLE PRECISION", textType: "TEXT"}
	sqliteDialect   = dialect{intType: "INTEGER", floatType: "REAL", textType: "TEXT"}
)

func (d dialect) columnType(t core.ValueType) string {
	switch storedType(t) {
	case core.TypeInt:
		return d.intType
	case core.TypeFloat:
		return d.floatType
	default:
		return d.textType
	}
}

// storedType resolves a declared type spelling such as "int64". Unknown
// spellings are stored as text.
func storedType(t core.ValueType) core.ValueType {
	vt, err := core.ParseValueType(string(t))
	if err != nil {
		return core.TypeText
	}
	return vt
}

// createTableSQL builds CREATE TABLE IF NOT EXISTS for the table's columns.
func (d dialect) createTableSQL(destination string, columns []core.ColumnSpec) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(quoteIdent(destination))
	b.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(col.Name))
		b.WriteByte(' ')
		b.WriteString(d.columnType(col.Type))
	}
	b.WriteString(")")
	return b.String()
}

func quotedColumns(columns []core.ColumnSpec) []string {
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = quoteIdent(col.Name)
	}
	return names
}

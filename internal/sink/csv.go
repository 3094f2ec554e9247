package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JonMunkholm/jrdbload/internal/core"
)

// CSV appends each table to <dir>/<destination>.csv. The header row is
// written when the file is created. Null cells are written empty.
type CSV struct {
	dir string
	mu  sync.Mutex // serializes appends
}

// NewCSV creates a CSV sink writing into dir.
func NewCSV(dir string) *CSV {
	return &CSV{dir: dir}
}

// Path returns the file a destination is written to.
func (c *CSV) Path(destination string) string {
	return filepath.Join(c.dir, destination+".csv")
}

// Write implements Sink.
func (c *CSV) Write(ctx context.Context, destination string, table *core.Table) (int64, error) {
	if err := checkDestination(destination); err != nil {
		return 0, writeError(destination, err)
	}
	if strings.ContainsAny(destination, `/\`) {
		return 0, writeError(destination, fmt.Errorf("destination must be a plain name"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return 0, writeError(destination, err)
	}

	f, err := os.OpenFile(c.Path(destination), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, writeError(destination, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, writeError(destination, err)
	}

	n, err := writeCSV(ctx, f, table, info.Size() == 0)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, writeError(destination, err)
	}
	return n, nil
}

func writeCSV(ctx context.Context, out io.Writer, table *core.Table, header bool) (int64, error) {
	w := csv.NewWriter(out)
	if header {
		if err := w.Write(table.ColumnNames()); err != nil {
			return 0, err
		}
	}

	record := make([]string, len(table.Columns))
	var n int64
	for i, row := range table.Rows {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		for c := range record {
			record[c] = ""
			if c < len(row) && row[c] != nil {
				record[c] = cellString(row[c])
			}
		}
		if err := w.Write(record); err != nil {
			return 0, err
		}
		n++
	}

	w.Flush()
	return n, w.Error()
}

package source

// reader.go splits JRDB text files into raw records.
//
// JRDB files are Shift_JIS text with CRLF line endings, sometimes terminated
// by a DOS EOF marker (0x1A). Records are returned as raw bytes; decoding is
// left to the parser, which needs the original byte offsets.

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/JonMunkholm/jrdbload/internal/core"
)

const eofMarker = 0x1A

// CountingReader wraps an io.Reader to track bytes read.
// Used for progress logging on large files.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // If known (0 if unknown)
}

// NewCountingReader creates a counting reader with optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{
		reader: r,
		Total:  total,
	}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *CountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead * 100 / r.Total)
}

// ReadRecords splits r into records on LF. A trailing CR and any EOF marker
// are removed, and blank lines are skipped.
func ReadRecords(r io.Reader) ([][]byte, error) {
	br := bufio.NewReader(r)
	var records [][]byte

	for {
		line, err := br.ReadBytes('\n')
		if rec := trimRecord(line); len(rec) > 0 {
			records = append(records, rec)
		}
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
	}
}

func trimRecord(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	line = bytes.TrimSuffix(line, []byte{'\r'})
	return bytes.TrimRight(line, string([]byte{eofMarker}))
}

// ReadFile returns the records of a single file.
// Missing or unreadable files yield *core.SourceUnavailableError.
func ReadFile(ctx context.Context, path string, logger *slog.Logger) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &core.SourceUnavailableError{Source: path, Err: err}
	}
	defer f.Close()

	var total int64
	if info, err := f.Stat(); err == nil {
		total = info.Size()
	}

	counter := NewCountingReader(f, total)
	records, err := ReadRecords(counter)
	if err != nil {
		return nil, &core.SourceUnavailableError{Source: path, Err: err}
	}

	logger.Debug("file read",
		"file", path,
		"bytes", counter.BytesRead,
		"progress", counter.Progress(),
		"records", len(records),
	)
	return records, nil
}

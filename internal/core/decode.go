package core

// decode.go splits fixed-width records into named fields.
//
// Column offsets in JRDB layouts count Shift_JIS bytes, not characters: a
// full-width character occupies two bytes, a half-width one byte. Slicing is
// therefore done on the encoded bytes and each slice is decoded on its own.
// A slice boundary that lands inside a double-byte character is a layout
// error and is reported as a *DecodeError instead of producing mojibake.

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
)

// errSplitCharacter is wrapped by DecodeError when a boundary falls inside a
// double-byte character.
var errSplitCharacter = errors.New("byte range splits a double-byte character")

// Decoder turns raw records into a string Table for one RecordSpec.
// A Decoder is not safe for concurrent use; create one per goroutine.
type Decoder struct {
	spec     RecordSpec
	enc      encoding.Encoding
	isolate  bool
	logger   *slog.Logger
	failures []*DecodeError
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithIsolation drops records that fail to decode instead of failing the
// whole batch. Dropped records are available from Failures.
func WithIsolation() DecoderOption {
	return func(d *Decoder) { d.isolate = true }
}

// WithDecoderLogger sets the logger used to report dropped records.
func WithDecoderLogger(logger *slog.Logger) DecoderOption {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDecoder creates a decoder for spec using Shift_JIS.
func NewDecoder(spec RecordSpec, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		spec:   spec,
		enc:    japanese.ShiftJIS,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Failures returns the records dropped by the last decode in isolating mode.
func (d *Decoder) Failures() []*DecodeError {
	return d.failures
}

// DecodeLines encodes each text line to Shift_JIS and decodes it.
// A rune that has no Shift_JIS representation is a DecodeError for that line.
func (d *Decoder) DecodeLines(lines []string) (*Table, error) {
	encoder := d.enc.NewEncoder()
	records := make([][]byte, len(lines))
	var encodeFailures []*DecodeError

	for i, line := range lines {
		b, err := encoder.Bytes([]byte(line))
		if err != nil {
			derr := &DecodeError{Record: i, Err: fmt.Errorf("encode line: %w", err)}
			if !d.isolate {
				return nil, derr
			}
			encodeFailures = append(encodeFailures, derr)
			records[i] = nil
			continue
		}
		records[i] = b
	}

	table, err := d.decode(records, encodeFailures)
	if err != nil {
		return nil, err
	}
	return table, nil
}

// DecodeRecords slices records that are already Shift_JIS encoded.
func (d *Decoder) DecodeRecords(records [][]byte) (*Table, error) {
	return d.decode(records, nil)
}

func (d *Decoder) decode(records [][]byte, preFailed []*DecodeError) (*Table, error) {
	d.failures = nil

	skip := make(map[int]*DecodeError, len(preFailed))
	for _, f := range preFailed {
		skip[f.Record] = f
	}

	table := &Table{
		RecordType:  d.spec.Type,
		Columns:     d.spec.Columns,
		Rows:        make([]Row, 0, len(records)),
		SourceLines: make([]int, 0, len(records)),
	}

	decoder := d.enc.NewDecoder()
	for i, record := range records {
		if f, ok := skip[i]; ok {
			d.drop(f)
			continue
		}

		row, err := d.decodeRecord(decoder, i, record)
		if err != nil {
			if !d.isolate {
				return nil, err
			}
			d.drop(err)
			continue
		}
		table.Rows = append(table.Rows, row)
		table.SourceLines = append(table.SourceLines, i)
	}

	return table, nil
}

func (d *Decoder) drop(err *DecodeError) {
	d.failures = append(d.failures, err)
	d.logger.Warn("record dropped",
		"record_type", d.spec.Type,
		"record", err.Record,
		"column", err.Column,
		"error", err.Err,
	)
}

func (d *Decoder) decodeRecord(decoder *encoding.Decoder, index int, record []byte) (Row, *DecodeError) {
	boundaries := sjisBoundaries(record)
	row := make(Row, len(d.spec.Columns))

	for c, col := range d.spec.Columns {
		start, end := clamp(col.StartByte, len(record)), clamp(col.EndByte, len(record))
		if !boundaries[start] || !boundaries[end] {
			return nil, &DecodeError{Record: index, Column: col.Name,
				Start: col.StartByte, End: col.EndByte, Err: errSplitCharacter}
		}

		text, err := decoder.Bytes(record[start:end])
		if err != nil {
			return nil, &DecodeError{Record: index, Column: col.Name,
				Start: col.StartByte, End: col.EndByte, Err: err}
		}
		if !utf8.Valid(text) || strings.ContainsRune(string(text), utf8.RuneError) {
			return nil, &DecodeError{Record: index, Column: col.Name,
				Start: col.StartByte, End: col.EndByte, Err: errors.New("invalid Shift_JIS sequence")}
		}
		row[c] = string(text)
	}

	return row, nil
}

// sjisBoundaries marks every offset in b that starts a character, plus len(b).
func sjisBoundaries(b []byte) []bool {
	marks := make([]bool, len(b)+1)
	for i := 0; i < len(b); {
		marks[i] = true
		if isSJISLeadByte(b[i]) && i+1 < len(b) {
			i += 2
		} else {
			i++
		}
	}
	marks[len(b)] = true
	return marks
}

// isSJISLeadByte reports whether c starts a double-byte Shift_JIS character.
// 0xA1-0xDF are single-byte half-width katakana.
func isSJISLeadByte(c byte) bool {
	return (c >= 0x81 && c <= 0x9F) || (c >= 0xE0 && c <= 0xFC)
}

func clamp(n, limit int) int {
	if n > limit {
		return limit
	}
	return n
}

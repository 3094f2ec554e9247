package core

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ColumnFallback records a column left unnormalized because a value failed.
type ColumnFallback struct {
	Column     string
	Normalizer NormalizerName
	Row        int // First row that failed
	Err        error
}

// CoercionFailure records a value that could not be converted to its
// declared type and was stored as null.
type CoercionFailure struct {
	Column string
	Row    int
	Err    error
}

// FormatReport lists every recovery the formatter applied to a table.
type FormatReport struct {
	Fallbacks        []ColumnFallback
	CoercionFailures []CoercionFailure
}

// FellBack reports whether the named column was left unnormalized.
func (r *FormatReport) FellBack(column string) bool {
	for _, f := range r.Fallbacks {
		if f.Column == column {
			return true
		}
	}
	return false
}

// Clean reports whether no recovery was needed.
func (r *FormatReport) Clean() bool {
	return len(r.Fallbacks) == 0 && len(r.CoercionFailures) == 0
}

// Formatter applies each column's normalizer and value type to a decoded table.
type Formatter struct {
	logger *slog.Logger
}

// NewFormatter creates a formatter. If logger is nil, a discard logger is used.
func NewFormatter(logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Formatter{logger: logger}
}

// Format normalizes and coerces table in place, column by column.
//
// If any value in a column fails to normalize, the whole column keeps its raw
// values and only type coercion is applied; other columns are unaffected.
// A fallen-back int or float column is coerced from raw text: a plain number
// such as "123" is stored as 123 (not the normalized 12.3), and text that is
// not a number once trimmed becomes null.
//
// Values that fail coercion become null. Both cases are logged and listed in
// the returned report. An error is returned only for an unusable spec.
func (f *Formatter) Format(table *Table) (*FormatReport, error) {
	report := &FormatReport{}
	scratch := make([]any, len(table.Rows))

	for c, col := range table.Columns {
		normalize, ok := lookupNormalizer(col.Normalizer)
		if !ok {
			return nil, fmt.Errorf("column %q: unknown normalizer %q", col.Name, col.Normalizer)
		}
		valueType, err := ParseValueType(string(col.Type))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}

		if fallback := normalizeColumn(table, c, normalize, scratch); fallback != nil {
			fallback.Column = col.Name
			fallback.Normalizer = col.Normalizer
			report.Fallbacks = append(report.Fallbacks, *fallback)
			f.logger.Warn("column left unnormalized",
				"record_type", table.RecordType,
				"column", col.Name,
				"normalizer", string(col.Normalizer),
				"row", fallback.Row,
				"error", fallback.Err,
			)
		} else {
			for r := range table.Rows {
				table.Rows[r][c] = scratch[r]
			}
		}

		failed := 0
		for r, row := range table.Rows {
			v, err := Coerce(row[c], valueType)
			if err != nil {
				report.CoercionFailures = append(report.CoercionFailures, CoercionFailure{
					Column: col.Name, Row: r, Err: err,
				})
				failed++
				v = nil
			}
			row[c] = v
		}
		if failed > 0 {
			f.logger.Warn("values stored as null after failed coercion",
				"record_type", table.RecordType,
				"column", col.Name,
				"type", string(valueType),
				"count", failed,
			)
		}
	}

	return report, nil
}

// normalizeColumn fills scratch with normalized values for column c.
// Returns a fallback describing the first failure, or nil on success.
func normalizeColumn(table *Table, c int, normalize normalizeFunc, scratch []any) (fallback *ColumnFallback) {
	defer func() {
		// A panicking normalizer is treated like a failing one.
		if p := recover(); p != nil {
			fallback = &ColumnFallback{Row: -1, Err: fmt.Errorf("%w: panic: %v", ErrNormalization, p)}
		}
	}()

	for r, row := range table.Rows {
		raw, ok := row[c].(string)
		if !ok {
			// Already formatted or null; leave untouched.
			scratch[r] = row[c]
			continue
		}
		v, err := normalize(raw)
		if err != nil {
			return &ColumnFallback{Row: r, Err: err}
		}
		scratch[r] = v
	}
	return nil
}

// Coerce converts v to t. A nil value is returned unchanged.
func Coerce(v any, t ValueType) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case TypeInt:
		switch x := v.(type) {
		case int64:
			return x, nil
		case float64:
			return int64(x), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, &CoercionError{Type: t, Value: v, Err: unwrapNumError(err)}
			}
			return n, nil
		}
	case TypeFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, &CoercionError{Type: t, Value: v, Err: unwrapNumError(err)}
			}
			return n, nil
		}
	case TypeText:
		switch x := v.(type) {
		case string:
			return x, nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		}
	}

	return nil, &CoercionError{Type: t, Value: v, Err: fmt.Errorf("unsupported value %T", v)}
}

func unwrapNumError(err error) error {
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return numErr.Err
	}
	return err
}

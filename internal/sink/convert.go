package sink

// convert.go turns table cells into pgtype values for COPY.
//
// Cells hold nil, int64, float64 or string after formatting. A nil cell
// becomes an invalid (NULL) value of the column's declared type. A cell whose
// column fell back to raw text keeps its string, so text columns accept any
// cell through fmt.

import (
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/jrdbload/internal/core"
)

// ToPgInt8 converts a cell to pgtype.Int8.
func ToPgInt8(v any) (pgtype.Int8, error) {
	switch x := v.(type) {
	case nil:
		return pgtype.Int8{Valid: false}, nil
	case int64:
		return pgtype.Int8{Int64: x, Valid: true}, nil
	default:
		return pgtype.Int8{}, fmt.Errorf("cannot store %T as BIGINT", v)
	}
}

// ToPgFloat8 converts a cell to pgtype.Float8.
func ToPgFloat8(v any) (pgtype.Float8, error) {
	switch x := v.(type) {
	case nil:
		return pgtype.Float8{Valid: false}, nil
	case float64:
		return pgtype.Float8{Float64: x, Valid: true}, nil
	case int64:
		return pgtype.Float8{Float64: float64(x), Valid: true}, nil
	default:
		return pgtype.Float8{}, fmt.Errorf("cannot store %T as DOUBLE PRECISION", v)
	}
}

// ToPgText converts a cell to pgtype.Text.
// Unlike the normalizers, blanks are preserved: a cell is NULL only when nil.
func ToPgText(v any) pgtype.Text {
	if v == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: cellString(v), Valid: true}
}

// cellString renders a non-nil cell the way it is written to CSV.
func cellString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// pgRow converts one table row for CopyFrom.
func pgRow(row core.Row, columns []core.ColumnSpec) ([]any, error) {
	out := make([]any, len(columns))
	for i, col := range columns {
		var v any
		if i < len(row) {
			v = row[i]
		}

		switch storedType(col.Type) {
		case core.TypeInt:
			pv, err := ToPgInt8(v)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name, err)
			}
			out[i] = pv
		case core.TypeFloat:
			pv, err := ToPgFloat8(v)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name, err)
			}
			out[i] = pv
		default:
			out[i] = ToPgText(v)
		}
	}
	return out, nil
}

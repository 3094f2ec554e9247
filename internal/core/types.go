package core

import (
	"fmt"
	"strings"
)

// ValueType is the declared storage type of a column after formatting.
type ValueType string

const (
	TypeInt   ValueType = "int"
	TypeFloat ValueType = "float"
	TypeText  ValueType = "str"
)

// ParseValueType accepts the spellings found in layout files
// ("int", "int64", "float", "float64", "str", "object", ...).
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int", "int32", "int64", "integer":
		return TypeInt, nil
	case "float", "float32", "float64", "double":
		return TypeFloat, nil
	case "", "str", "string", "object", "text":
		return TypeText, nil
	default:
		return "", fmt.Errorf("unknown value type %q", s)
	}
}

// ColumnSpec is the byte-range and conversion rule for one field of a record type.
type ColumnSpec struct {
	Name       string         // Column name, also used as the database column
	StartByte  int            // Inclusive offset into the Shift_JIS encoded line
	EndByte    int            // Exclusive offset
	Normalizer NormalizerName // Empty means identity
	Type       ValueType      // Target type after normalization
}

// Width returns the configured byte width of the column.
func (c ColumnSpec) Width() int {
	return c.EndByte - c.StartByte
}

// Validate checks the byte range, normalizer name and value type.
func (c ColumnSpec) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("column name is empty")
	}
	if c.StartByte < 0 {
		return fmt.Errorf("column %q: start byte %d is negative", c.Name, c.StartByte)
	}
	if c.StartByte >= c.EndByte {
		return fmt.Errorf("column %q: start byte %d must be less than end byte %d", c.Name, c.StartByte, c.EndByte)
	}
	if _, ok := lookupNormalizer(c.Normalizer); !ok {
		return fmt.Errorf("column %q: unknown normalizer %q", c.Name, c.Normalizer)
	}
	if _, err := ParseValueType(string(c.Type)); err != nil {
		return fmt.Errorf("column %q: %w", c.Name, err)
	}
	return nil
}

// RecordSpec is the ordered column layout of one record type (e.g. "SED").
type RecordSpec struct {
	Type    string
	Columns []ColumnSpec
}

// Validate checks every column and rejects duplicate names.
func (r RecordSpec) Validate() error {
	if r.Type == "" {
		return fmt.Errorf("record type is empty")
	}
	if len(r.Columns) == 0 {
		return fmt.Errorf("record type %s has no columns", r.Type)
	}
	seen := make(map[string]bool, len(r.Columns))
	for _, col := range r.Columns {
		if err := col.Validate(); err != nil {
			return fmt.Errorf("record type %s: %w", r.Type, err)
		}
		if seen[col.Name] {
			return fmt.Errorf("record type %s: duplicate column %q", r.Type, col.Name)
		}
		seen[col.Name] = true
	}
	return nil
}

// ColumnNames returns column names in declaration order.
func (r RecordSpec) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, col := range r.Columns {
		names[i] = col.Name
	}
	return names
}

// clone returns a deep copy so callers cannot mutate registry state.
func (r RecordSpec) clone() RecordSpec {
	cols := make([]ColumnSpec, len(r.Columns))
	copy(cols, r.Columns)
	return RecordSpec{Type: r.Type, Columns: cols}
}

// canonical returns a copy with every column type spelled as TypeInt,
// TypeFloat or TypeText. r must already be valid.
func (r RecordSpec) canonical() RecordSpec {
	c := r.clone()
	for i := range c.Columns {
		if t, err := ParseValueType(string(c.Columns[i].Type)); err == nil {
			c.Columns[i].Type = t
		}
	}
	return c
}

// Row holds one record's cells in column order.
// After decoding every cell is a string. After formatting a cell is nil,
// int64, float64 or string.
type Row []any

// Table is an ordered set of rows sharing one RecordSpec.
type Table struct {
	RecordType string
	Columns    []ColumnSpec
	Rows       []Row

	// SourceLines maps each row to the 0-based index of the record it was
	// decoded from. Differs from the row index only when records were dropped.
	SourceLines []int
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnNames returns column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at row for the named column.
// Returns nil if the row or column does not exist.
func (t *Table) Value(row int, name string) any {
	idx := t.ColumnIndex(name)
	if idx < 0 || row < 0 || row >= len(t.Rows) {
		return nil
	}
	return t.Rows[row][idx]
}

// Package model provides domain model for sqlfixture.
package model

import (
	"strings"
)

// TableName represents a validated table name.
type TableName struct {
	value string
}

// NewTableName creates a new TableName. The name is trimmed and must not be blank.
func NewTableName(name string) (TableName, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return TableName{}, ErrBlankIdentifier
	}
	return TableName{value: trimmed}, nil
}

// String returns the string representation of TableName.
func (tn TableName) String() string {
	return tn.value
}

// Equal compares two table names exactly.
func (tn TableName) Equal(other TableName) bool {
	return tn.value == other.value
}

// EqualFold compares two table names ignoring case.
func (tn TableName) EqualFold(other TableName) bool {
	return strings.EqualFold(tn.value, other.value)
}

// ColumnName represents a validated column name.
type ColumnName struct {
	value string
}

// NewColumnName creates a new ColumnName. The name is trimmed and must not be blank.
func NewColumnName(name string) (ColumnName, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ColumnName{}, ErrBlankIdentifier
	}
	return ColumnName{value: trimmed}, nil
}

// String returns the string representation of ColumnName.
func (cn ColumnName) String() string {
	return cn.value
}

// Equal compares two column names exactly.
func (cn ColumnName) Equal(other ColumnName) bool {
	return cn.value == other.value
}

// EqualFold compares two column names ignoring case.
func (cn ColumnName) EqualFold(other ColumnName) bool {
	return strings.EqualFold(cn.value, other.value)
}

// CellValue wraps a single nullable scalar value. The zero CellValue is NULL,
// so comparison logic never touches a raw nil.
type CellValue struct {
	value string
	set   bool
}

// nullCell is the canonical NULL value.
var nullCell = CellValue{}

// Null returns the canonical NULL CellValue.
func Null() CellValue {
	return nullCell
}

// NewCellValue creates a non-NULL CellValue holding v.
func NewCellValue(v string) CellValue {
	return CellValue{value: v, set: true}
}

// IsNull reports whether the value is NULL.
func (c CellValue) IsNull() bool {
	return !c.set
}

// String returns the scalar value; NULL renders as an empty string.
func (c CellValue) String() string {
	return c.value
}

// Equal compares two cell values. NULL equals only NULL.
func (c CellValue) Equal(other CellValue) bool {
	if c.set != other.set {
		return false
	}
	if !c.set {
		return true
	}
	return c.value == other.value
}

// Row is an immutable ordered mapping from ColumnName to CellValue.
type Row struct {
	columns []ColumnName
	values  []CellValue
	index   map[string]int
}

// NewRow creates a Row from parallel column and value slices. When values is
// shorter than columns the remaining cells are NULL.
func NewRow(columns []ColumnName, values []CellValue) Row {
	cols := make([]ColumnName, len(columns))
	copy(cols, columns)

	vals := make([]CellValue, len(columns))
	for i := range columns {
		if i < len(values) {
			vals[i] = values[i]
		} else {
			vals[i] = Null()
		}
	}

	index := make(map[string]int, len(cols))
	for i, col := range cols {
		index[strings.ToLower(col.String())] = i
	}

	return Row{columns: cols, values: vals, index: index}
}

// Columns returns the row's column list in declaration order.
func (r Row) Columns() []ColumnName {
	return r.columns
}

// Value returns the cell value for the given column. A column the row does
// not carry resolves to NULL rather than erroring.
func (r Row) Value(col ColumnName) CellValue {
	i, ok := r.index[strings.ToLower(col.String())]
	if !ok {
		return Null()
	}
	return r.values[i]
}

// Len returns the number of cells in the row.
func (r Row) Len() int {
	return len(r.values)
}

// IsBlank reports whether every cell in the row is NULL or an empty string.
func (r Row) IsBlank() bool {
	for _, v := range r.values {
		if !v.IsNull() && strings.TrimSpace(v.String()) != "" {
			return false
		}
	}
	return true
}

// Equal compares two rows column-by-column over this row's columns.
func (r Row) Equal(other Row) bool {
	if len(r.columns) != len(other.columns) {
		return false
	}
	for i, col := range r.columns {
		if !col.Equal(other.columns[i]) {
			return false
		}
		if !r.values[i].Equal(other.Value(col)) {
			return false
		}
	}
	return true
}

// Fingerprint renders the row over the given column list into a canonical
// string, used to deduplicate fully identical rows during UNION merges.
func (r Row) Fingerprint(columns []ColumnName) string {
	var sb strings.Builder
	for _, col := range columns {
		v := r.Value(col)
		if v.IsNull() {
			sb.WriteString("\x00N")
		} else {
			sb.WriteString("\x00V")
			sb.WriteString(v.String())
		}
		sb.WriteByte('\x1f')
	}
	return sb.String()
}

package model

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Table is an immutable triple of name, ordered columns and rows.
type Table struct {
	name    TableName
	columns []ColumnName
	rows    []Row
}

// NewTable creates a new Table. Every row's declared columns must be a subset
// of the table's column list.
func NewTable(name TableName, columns []ColumnName, rows []Row) (*Table, error) {
	known := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		known[strings.ToLower(col.String())] = struct{}{}
	}

	for i, row := range rows {
		for _, col := range row.Columns() {
			if _, ok := known[strings.ToLower(col.String())]; !ok {
				return nil, fmt.Errorf("table %s row %d: column %s not declared in header", name, i, col)
			}
		}
	}

	cols := make([]ColumnName, len(columns))
	copy(cols, columns)
	rws := make([]Row, len(rows))
	copy(rws, rows)

	return &Table{name: name, columns: cols, rows: rws}, nil
}

// Name returns the table name.
func (t *Table) Name() TableName {
	return t.name
}

// Columns returns the table columns in declaration order.
func (t *Table) Columns() []ColumnName {
	return t.columns
}

// Rows returns the table rows.
func (t *Table) Rows() []Row {
	return t.rows
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int {
	return len(t.rows)
}

// HasColumn reports whether the table declares the column, ignoring case.
func (t *Table) HasColumn(col ColumnName) bool {
	for _, c := range t.columns {
		if c.EqualFold(col) {
			return true
		}
	}
	return false
}

// Equal compares two tables by name, columns and rows.
func (t *Table) Equal(other *Table) bool {
	if !t.name.Equal(other.name) {
		return false
	}
	if len(t.columns) != len(other.columns) {
		return false
	}
	for i, col := range t.columns {
		if !col.Equal(other.columns[i]) {
			return false
		}
	}
	if len(t.rows) != len(other.rows) {
		return false
	}
	for i, row := range t.rows {
		if !row.Equal(other.rows[i]) {
			return false
		}
	}
	return true
}

// TableSet is an immutable, insertion-ordered collection of tables with
// unique names. The case-insensitive name index is built once at construction
// and only read afterwards.
type TableSet struct {
	tables []*Table
	index  map[string]int
}

// NewTableSet creates a TableSet. Table names must be unique within the set
// (compared ignoring case).
func NewTableSet(tables []*Table) (*TableSet, error) {
	index := make(map[string]int, len(tables))
	for i, table := range tables {
		key := strings.ToLower(table.Name().String())
		if _, exists := index[key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTable, table.Name())
		}
		index[key] = i
	}

	tbls := make([]*Table, len(tables))
	copy(tbls, tables)

	return &TableSet{tables: tbls, index: index}, nil
}

// Tables returns the tables in insertion order.
func (s *TableSet) Tables() []*Table {
	return s.tables
}

// Len returns the number of tables in the set.
func (s *TableSet) Len() int {
	return len(s.tables)
}

// Lookup returns the table with the given name, matching ignoring case.
func (s *TableSet) Lookup(name string) (*Table, bool) {
	i, ok := s.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return s.tables[i], true
}

// TableNames returns the table names in insertion order.
func (s *TableSet) TableNames() []TableName {
	names := make([]TableName, len(s.tables))
	for i, table := range s.tables {
		names[i] = table.Name()
	}
	return names
}

// SortedTableNames returns the table names sorted ascending, ignoring case.
func (s *TableSet) SortedTableNames() []TableName {
	names := s.TableNames()
	sort.SliceStable(names, func(i, j int) bool {
		return strings.ToLower(names[i].String()) < strings.ToLower(names[j].String())
	})
	return names
}

// TableFromFilePath derives a table name from a dataset file path by
// stripping compression extensions and then the format extension.
func TableFromFilePath(filePath string) string {
	fileName := filepath.Base(filePath)
	for _, ext := range []string{ExtGZ, ExtBZ2, ExtXZ, ExtZSTD} {
		if strings.HasSuffix(fileName, ext) {
			fileName = strings.TrimSuffix(fileName, ext)
			break
		}
	}
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}

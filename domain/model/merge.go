package model

import "strings"

// MergeStrategy is the rule for combining same-named tables loaded from
// multiple dataset sources into one.
type MergeStrategy int

const (
	// MergeFirst keeps only the first source's table when names collide.
	MergeFirst MergeStrategy = iota
	// MergeLast keeps only the last source's table.
	MergeLast
	// MergeUnion concatenates rows across sources, deduplicating rows that
	// are fully identical.
	MergeUnion
	// MergeUnionAll concatenates rows across sources without deduplication.
	MergeUnionAll
)

// String returns the strategy name.
func (s MergeStrategy) String() string {
	switch s {
	case MergeFirst:
		return "FIRST"
	case MergeLast:
		return "LAST"
	case MergeUnion:
		return "UNION"
	case MergeUnionAll:
		return "UNION_ALL"
	default:
		return "UNKNOWN"
	}
}

// MergeTableSets combines an ordered list of table sets into one. Tables
// unique to one source are carried through unchanged regardless of strategy.
// The result preserves first-seen table order.
func MergeTableSets(sets []*TableSet, strategy MergeStrategy) (*TableSet, error) {
	if len(sets) == 0 {
		return nil, ErrEmptyTableSetList
	}
	if len(sets) == 1 {
		return sets[0], nil
	}

	var order []string
	grouped := make(map[string][]*Table)
	for _, set := range sets {
		for _, table := range set.Tables() {
			key := strings.ToLower(table.Name().String())
			if _, seen := grouped[key]; !seen {
				order = append(order, key)
			}
			grouped[key] = append(grouped[key], table)
		}
	}

	merged := make([]*Table, 0, len(order))
	for _, key := range order {
		table, err := mergeTables(grouped[key], strategy)
		if err != nil {
			return nil, err
		}
		merged = append(merged, table)
	}

	return NewTableSet(merged)
}

func mergeTables(tables []*Table, strategy MergeStrategy) (*Table, error) {
	if len(tables) == 1 {
		return tables[0], nil
	}

	switch strategy {
	case MergeFirst:
		return tables[0], nil
	case MergeLast:
		return tables[len(tables)-1], nil
	case MergeUnion, MergeUnionAll:
		return unionTables(tables, strategy == MergeUnion)
	default:
		return tables[0], nil
	}
}

// unionTables concatenates rows of same-named tables. The column list is the
// first table's columns extended with columns the later sources introduce.
func unionTables(tables []*Table, dedup bool) (*Table, error) {
	var columns []ColumnName
	seenCols := make(map[string]struct{})
	for _, table := range tables {
		for _, col := range table.Columns() {
			key := strings.ToLower(col.String())
			if _, ok := seenCols[key]; ok {
				continue
			}
			seenCols[key] = struct{}{}
			columns = append(columns, col)
		}
	}

	var rows []Row
	seenRows := make(map[string]struct{})
	for _, table := range tables {
		for _, row := range table.Rows() {
			projected := projectRow(columns, row)
			if dedup {
				fp := projected.Fingerprint(columns)
				if _, dup := seenRows[fp]; dup {
					continue
				}
				seenRows[fp] = struct{}{}
			}
			rows = append(rows, projected)
		}
	}

	return NewTable(tables[0].Name(), columns, rows)
}

func projectRow(columns []ColumnName, row Row) Row {
	values := make([]CellValue, len(columns))
	for i, col := range columns {
		values[i] = row.Value(col)
	}
	return NewRow(columns, values)
}

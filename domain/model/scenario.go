package model

import "strings"

// DefaultScenarioMarker is the conventional marker column name used to tag
// rows with the test case that should load them.
const DefaultScenarioMarker = "[Scenario]"

// ScenarioFilter strips the scenario marker column from a table and keeps
// only rows tagged with one of the accepted scenario names. A filter with no
// accepted scenarios is inactive and passes every row through.
type ScenarioFilter struct {
	marker    string
	scenarios map[string]struct{}
}

// NewScenarioFilter creates a ScenarioFilter for the given marker column and
// accepted scenario names. Blank scenario names are ignored.
func NewScenarioFilter(marker string, scenarios []string) *ScenarioFilter {
	if strings.TrimSpace(marker) == "" {
		marker = DefaultScenarioMarker
	}

	accepted := make(map[string]struct{}, len(scenarios))
	for _, s := range scenarios {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		accepted[s] = struct{}{}
	}

	return &ScenarioFilter{marker: marker, scenarios: accepted}
}

// Marker returns the marker column name.
func (f *ScenarioFilter) Marker() string {
	return f.marker
}

// Active reports whether the filter has any accepted scenarios.
func (f *ScenarioFilter) Active() bool {
	return len(f.scenarios) > 0
}

// Apply produces a new Table with the marker column removed and only rows
// whose marker value is accepted. Tables without the marker column pass
// through with all rows. Independent of the marker, every surviving
// empty-string cell is normalized to NULL: delimited text cannot distinguish
// empty string from NULL.
func (f *ScenarioFilter) Apply(t *Table) (*Table, error) {
	markerIdx := -1
	for i, col := range t.Columns() {
		if strings.EqualFold(col.String(), f.marker) {
			markerIdx = i
			break
		}
	}

	columns := t.Columns()
	if markerIdx >= 0 {
		columns = make([]ColumnName, 0, len(t.Columns())-1)
		for i, col := range t.Columns() {
			if i != markerIdx {
				columns = append(columns, col)
			}
		}
	}

	rows := make([]Row, 0, t.RowCount())
	for _, row := range t.Rows() {
		if markerIdx >= 0 && f.Active() {
			tag := row.Value(t.Columns()[markerIdx])
			if _, ok := f.scenarios[tag.String()]; !ok {
				continue
			}
		}
		rows = append(rows, normalizeRow(columns, row))
	}

	return NewTable(t.Name(), columns, rows)
}

// ApplySet applies the filter to every table in the set.
func (f *ScenarioFilter) ApplySet(s *TableSet) (*TableSet, error) {
	tables := make([]*Table, 0, s.Len())
	for _, table := range s.Tables() {
		filtered, err := f.Apply(table)
		if err != nil {
			return nil, err
		}
		tables = append(tables, filtered)
	}
	return NewTableSet(tables)
}

// normalizeRow projects a row onto the given columns, turning empty strings
// into NULL.
func normalizeRow(columns []ColumnName, row Row) Row {
	values := make([]CellValue, len(columns))
	for i, col := range columns {
		v := row.Value(col)
		if !v.IsNull() && v.String() == "" {
			v = Null()
		}
		values[i] = v
	}
	return NewRow(columns, values)
}

package sqlfixture

import (
	"testing"

	"github.com/nao1215/sqlfixture/domain/model"
	"github.com/stretchr/testify/require"
)

// testTable builds a table from plain strings. An empty string cell becomes
// the NULL cell value.
func testTable(t *testing.T, name string, columns []string, rows ...[]string) *model.Table {
	t.Helper()

	tableName, err := model.NewTableName(name)
	require.NoError(t, err, "table name %q should be valid", name)

	cols := make([]model.ColumnName, len(columns))
	for i, c := range columns {
		col, err := model.NewColumnName(c)
		require.NoError(t, err, "column name %q should be valid", c)
		cols[i] = col
	}

	modelRows := make([]model.Row, 0, len(rows))
	for _, r := range rows {
		values := make([]model.CellValue, len(r))
		for i, v := range r {
			if v == "" {
				values[i] = model.Null()
			} else {
				values[i] = model.NewCellValue(v)
			}
		}
		modelRows = append(modelRows, model.NewRow(cols, values))
	}

	table, err := model.NewTable(tableName, cols, modelRows)
	require.NoError(t, err, "table %q should build", name)
	return table
}

func testSet(t *testing.T, tables ...*model.Table) *model.TableSet {
	t.Helper()
	set, err := model.NewTableSet(tables)
	require.NoError(t, err, "table set should build")
	return set
}

func testNames(t *testing.T, names ...string) []model.TableName {
	t.Helper()
	result := make([]model.TableName, len(names))
	for i, n := range names {
		name, err := model.NewTableName(n)
		require.NoError(t, err, "table name %q should be valid", n)
		result[i] = name
	}
	return result
}

// nameStrings flattens table names for order assertions.
func nameStrings(names []model.TableName) []string {
	result := make([]string, len(names))
	for i, n := range names {
		result[i] = n.String()
	}
	return result
}

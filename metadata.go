package sqlfixture

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nao1215/sqlfixture/domain/model"
)

// ColumnClass is the coarse value class of a database column, used to pick a
// binding coercion for text-sourced cell values.
type ColumnClass int

const (
	// ClassTextual covers CHAR/VARCHAR/TEXT/CLOB columns.
	ClassTextual ColumnClass = iota
	// ClassNumeric covers integer, decimal and floating point columns.
	ClassNumeric
	// ClassTemporal covers DATE/TIME/TIMESTAMP columns.
	ClassTemporal
	// ClassBoolean covers BOOLEAN/BIT columns.
	ClassBoolean
	// ClassBinary covers BLOB/BYTEA/VARBINARY columns.
	ClassBinary
)

// ColumnMetadata describes one database column as reported by the driver
// plus the dialect's key metadata.
type ColumnMetadata struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Ordinal    int
	Precision  int64
	Scale      int64
}

// Class classifies the column by its SQL type name.
func (m ColumnMetadata) Class() ColumnClass {
	t := strings.ToUpper(m.SQLType)
	switch {
	case strings.Contains(t, "INT") && !strings.Contains(t, "POINT"),
		strings.Contains(t, "DECIMAL"), strings.Contains(t, "NUMERIC"),
		strings.Contains(t, "FLOAT"), strings.Contains(t, "DOUBLE"),
		strings.Contains(t, "REAL"), strings.Contains(t, "NUMBER"):
		return ClassNumeric
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return ClassTemporal
	case strings.Contains(t, "BOOL"), t == "BIT":
		return ClassBoolean
	case strings.Contains(t, "BLOB"), strings.Contains(t, "BYTEA"),
		strings.Contains(t, "BINARY"):
		return ClassBinary
	default:
		return ClassTextual
	}
}

// tableMetadata is the per-table column metadata index, built once per
// executor call.
type tableMetadata struct {
	columns map[string]ColumnMetadata
	pk      []string
}

func (tm *tableMetadata) column(name string) (ColumnMetadata, bool) {
	if tm == nil {
		return ColumnMetadata{}, false
	}
	m, ok := tm.columns[strings.ToLower(name)]
	return m, ok
}

func (tm *tableMetadata) primaryKey() []string {
	if tm == nil {
		return nil
	}
	return tm.pk
}

// fetchTableMetadata resolves column metadata for a table from the live
// connection: driver-reported column types from a zero-row select, plus
// primary-key columns from the dialect.
func fetchTableMetadata(ctx context.Context, db *sql.DB, dialect Dialect, table model.TableName) (*tableMetadata, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE 1 = 0`, dialect.QuoteIdentifier(table.String()))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read column metadata of %s: %w", table, err)
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types of %s: %w", table, err)
	}

	pk, err := dialect.PrimaryKey(ctx, db, table)
	if err != nil {
		// Key metadata is a hint; keep going without it.
		pk = nil
	}
	pkSet := make(map[string]struct{}, len(pk))
	for _, col := range pk {
		pkSet[strings.ToLower(col)] = struct{}{}
	}

	columns := make(map[string]ColumnMetadata, len(columnTypes))
	for i, ct := range columnTypes {
		meta := ColumnMetadata{
			Name:    ct.Name(),
			SQLType: ct.DatabaseTypeName(),
			Ordinal: i + 1,
		}
		if nullable, ok := ct.Nullable(); ok {
			meta.Nullable = nullable
		}
		if precision, scale, ok := ct.DecimalSize(); ok {
			meta.Precision = precision
			meta.Scale = scale
		}
		if _, ok := pkSet[strings.ToLower(ct.Name())]; ok {
			meta.PrimaryKey = true
		}
		columns[strings.ToLower(ct.Name())] = meta
	}

	return &tableMetadata{columns: columns, pk: pk}, nil
}

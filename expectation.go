package sqlfixture

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/sqlfixture/domain/model"
)

// Diagnostic describes one cell-level mismatch found during verification.
type Diagnostic struct {
	Table    model.TableName
	Column   model.ColumnName
	RowIndex int
	Expected model.CellValue
	Actual   model.CellValue
	Strategy model.ComparisonStrategy
}

// String renders the diagnostic as one diff line.
func (d Diagnostic) String() string {
	return fmt.Sprintf("table %s row %d column %s [%s]: expected %s, got %s",
		d.Table, d.RowIndex, d.Column, d.Strategy, formatCell(d.Expected), formatCell(d.Actual))
}

// RowCountMismatch reports differing row counts for one table.
type RowCountMismatch struct {
	Table    model.TableName
	Expected int
	Actual   int
}

// String renders the mismatch as one diff line.
func (m RowCountMismatch) String() string {
	return fmt.Sprintf("table %s: expected %d rows, got %d", m.Table, m.Expected, m.Actual)
}

// VerificationError carries every mismatch of one verification call. The
// comparison never stops at the first difference, so a single run surfaces
// all discrepancies at once.
type VerificationError struct {
	RowCounts  []RowCountMismatch
	Mismatches []Diagnostic
}

// Error renders a diff-style message listing every mismatch.
func (e *VerificationError) Error() string {
	total := len(e.RowCounts) + len(e.Mismatches)

	var sb strings.Builder
	fmt.Fprintf(&sb, "sqlfixture: verification failed with %d mismatch(es):", total)
	for _, m := range e.RowCounts {
		sb.WriteString("\n  ")
		sb.WriteString(m.String())
	}
	for _, d := range e.Mismatches {
		sb.WriteString("\n  ")
		sb.WriteString(d.String())
	}
	return sb.String()
}

func formatCell(v model.CellValue) string {
	if v.IsNull() {
		return "NULL"
	}
	return strconv.Quote(v.String())
}

// Verifier is the built-in comparison engine. It fetches actual rows
// restricted to the expected columns, applies exclusions and per-column
// strategies, and accumulates diagnostics.
type Verifier struct{}

// NewVerifier creates a Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

func init() {
	RegisterExpectationProvider(DefaultExpectationProvider, NewVerifier())
}

// Verify implements ExpectationProvider. It returns a *VerificationError
// when the database state differs from the expected dataset, or a wrapped
// query error when the actual state cannot be read at all.
func (v *Verifier) Verify(ctx context.Context, db *sql.DB, dialect Dialect, expected *model.ExpectedTableSet) error {
	var failure VerificationError

	for _, table := range expected.TableSet().Tables() {
		if err := v.verifyTable(ctx, db, dialect, expected, table, &failure); err != nil {
			return err
		}
	}

	if len(failure.RowCounts) > 0 || len(failure.Mismatches) > 0 {
		return &failure
	}
	return nil
}

func (v *Verifier) verifyTable(ctx context.Context, db *sql.DB, dialect Dialect, expected *model.ExpectedTableSet, table *model.Table, failure *VerificationError) error {
	// Exclusion is applied before strategy lookup: an excluded column is
	// never evaluated even if it also has an assigned strategy. IGNORE
	// columns are dropped from the fetch as well.
	columns := make([]model.ColumnName, 0, len(table.Columns()))
	for _, col := range table.Columns() {
		if expected.Excluded(col) {
			continue
		}
		if expected.Strategy(col).Kind() == model.StrategyIgnore {
			continue
		}
		columns = append(columns, col)
	}

	actualRows, err := fetchActualRows(ctx, db, dialect, table.Name(), columns)
	if err != nil {
		return NewErrorContext("verification read", "").WithTable(table.Name().String()).Error(err)
	}

	if len(actualRows) != table.RowCount() {
		failure.RowCounts = append(failure.RowCounts, RowCountMismatch{
			Table:    table.Name(),
			Expected: table.RowCount(),
			Actual:   len(actualRows),
		})
	}

	count := table.RowCount()
	if len(actualRows) < count {
		count = len(actualRows)
	}

	for i := 0; i < count; i++ {
		expectedRow := table.Rows()[i]
		actualRow := actualRows[i]
		for _, col := range columns {
			strategy := expected.Strategy(col)
			exp := expectedRow.Value(col)
			act := actualRow.Value(col)
			if !strategy.Matches(exp, act) {
				failure.Mismatches = append(failure.Mismatches, Diagnostic{
					Table:    table.Name(),
					Column:   col,
					RowIndex: i,
					Expected: exp,
					Actual:   act,
					Strategy: strategy,
				})
			}
		}
	}
	return nil
}

// fetchActualRows reads the table's current contents restricted to the given
// columns, never more. Rows come back in primary read order: ordered by the
// primary key when the dialect can name one, driver order otherwise. When
// every column is excluded only the row count is still checked, through a
// COUNT query.
func fetchActualRows(ctx context.Context, db *sql.DB, dialect Dialect, table model.TableName, columns []model.ColumnName) ([]model.Row, error) {
	quotedTable := dialect.QuoteIdentifier(table.String())

	if len(columns) == 0 {
		query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quotedTable)
		var count int
		if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count rows of %s: %w", table, err)
		}
		return make([]model.Row, count), nil
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = dialect.QuoteIdentifier(col.String())
	}
	query := fmt.Sprintf(`SELECT %s FROM %s`, strings.Join(quoted, ", "), quotedTable)

	if pk, err := dialect.PrimaryKey(ctx, db, table); err == nil && len(pk) > 0 {
		orderCols := make([]string, len(pk))
		for i, col := range pk {
			orderCols[i] = dialect.QuoteIdentifier(col)
		}
		query += " ORDER BY " + strings.Join(orderCols, ", ")
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %s: %w", table, err)
	}
	defer rows.Close()

	var result []model.Row
	for rows.Next() {
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", table, err)
		}

		values := make([]model.CellValue, len(columns))
		for i, v := range raw {
			values[i] = cellFromDriverValue(v)
		}
		result = append(result, model.NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows of %s: %w", table, err)
	}
	return result, nil
}

// cellFromDriverValue renders a driver value into the dataset's string
// domain so the comparison strategies stay total over CellValue.
func cellFromDriverValue(v any) model.CellValue {
	switch value := v.(type) {
	case nil:
		return model.Null()
	case []byte:
		return model.NewCellValue(string(value))
	case string:
		return model.NewCellValue(value)
	case int64:
		return model.NewCellValue(strconv.FormatInt(value, 10))
	case float64:
		return model.NewCellValue(strconv.FormatFloat(value, 'f', -1, 64))
	case bool:
		return model.NewCellValue(strconv.FormatBool(value))
	case time.Time:
		return model.NewCellValue(value.UTC().Format("2006-01-02 15:04:05.999999999"))
	default:
		return model.NewCellValue(fmt.Sprintf("%v", value))
	}
}

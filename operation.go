package sqlfixture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nao1215/sqlfixture/domain/model"
)

// Operation is the write semantics applied during the preparation phase.
type Operation int

const (
	// OperationNone performs no database work. Used for expectation-phase
	// placeholders.
	OperationNone Operation = iota
	// OperationCleanInsert deletes all rows in reverse table order, then
	// inserts in forward order.
	OperationCleanInsert
	// OperationInsert inserts the dataset rows only.
	OperationInsert
	// OperationUpdate updates matching rows by primary key.
	OperationUpdate
	// OperationDelete deletes rows matching the dataset's key values.
	OperationDelete
	// OperationRefresh updates existing rows and inserts new ones.
	OperationRefresh
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OperationNone:
		return "NONE"
	case OperationCleanInsert:
		return "CLEAN_INSERT"
	case OperationInsert:
		return "INSERT"
	case OperationUpdate:
		return "UPDATE"
	case OperationDelete:
		return "DELETE"
	case OperationRefresh:
		return "REFRESH"
	default:
		return "UNKNOWN"
	}
}

func init() {
	RegisterOperationProvider(OperationNone, OperationFunc(executeNone))
	RegisterOperationProvider(OperationCleanInsert, OperationFunc(executeCleanInsert))
	RegisterOperationProvider(OperationInsert, OperationFunc(executeInsert))
	RegisterOperationProvider(OperationUpdate, OperationFunc(executeUpdate))
	RegisterOperationProvider(OperationDelete, OperationFunc(executeDelete))
	RegisterOperationProvider(OperationRefresh, OperationFunc(executeRefresh))
}

// tablePlan is the per-table execution plan: the table, its resolved column
// metadata and its key columns. Metadata resolution happens before the
// transaction opens so type coercion during binding is correct.
type tablePlan struct {
	table *model.Table
	meta  *tableMetadata
	keys  []model.ColumnName
}

func buildPlans(ctx context.Context, db *sql.DB, dialect Dialect, set *model.TableSet, order []model.TableName) []tablePlan {
	plans := make([]tablePlan, 0, len(order))
	for _, name := range order {
		table, ok := set.Lookup(name.String())
		if !ok {
			continue
		}

		// Metadata is a binding hint; a table we cannot describe still
		// loads with plain string parameters.
		meta, err := fetchTableMetadata(ctx, db, dialect, name)
		if err != nil {
			meta = nil
		}

		plans = append(plans, tablePlan{
			table: table,
			meta:  meta,
			keys:  keyColumns(table, meta),
		})
	}
	return plans
}

// keyColumns returns the table's primary-key columns restricted to columns
// the dataset declares. Without key metadata the first declared column
// serves as the key.
func keyColumns(table *model.Table, meta *tableMetadata) []model.ColumnName {
	var keys []model.ColumnName
	for _, pk := range meta.primaryKey() {
		for _, col := range table.Columns() {
			if strings.EqualFold(col.String(), pk) {
				keys = append(keys, col)
			}
		}
	}
	if len(keys) == 0 && len(table.Columns()) > 0 {
		keys = table.Columns()[:1]
	}
	return keys
}

func executeNone(context.Context, *sql.DB, Dialect, *model.TableSet, []model.TableName) error {
	return nil
}

func executeCleanInsert(ctx context.Context, db *sql.DB, dialect Dialect, set *model.TableSet, order []model.TableName) error {
	plans := buildPlans(ctx, db, dialect, set, order)

	return withTransaction(ctx, db, func(tx *sql.Tx) error {
		for i := len(plans) - 1; i >= 0; i-- {
			if err := deleteAllRows(ctx, tx, dialect, plans[i].table); err != nil {
				return err
			}
		}
		for _, plan := range plans {
			if err := insertTable(ctx, tx, dialect, plan); err != nil {
				return err
			}
		}
		return nil
	})
}

func executeInsert(ctx context.Context, db *sql.DB, dialect Dialect, set *model.TableSet, order []model.TableName) error {
	plans := buildPlans(ctx, db, dialect, set, order)

	return withTransaction(ctx, db, func(tx *sql.Tx) error {
		for _, plan := range plans {
			if err := insertTable(ctx, tx, dialect, plan); err != nil {
				return err
			}
		}
		return nil
	})
}

func executeUpdate(ctx context.Context, db *sql.DB, dialect Dialect, set *model.TableSet, order []model.TableName) error {
	plans := buildPlans(ctx, db, dialect, set, order)

	return withTransaction(ctx, db, func(tx *sql.Tx) error {
		for _, plan := range plans {
			if err := updateTable(ctx, tx, dialect, plan); err != nil {
				return err
			}
		}
		return nil
	})
}

func executeDelete(ctx context.Context, db *sql.DB, dialect Dialect, set *model.TableSet, order []model.TableName) error {
	plans := buildPlans(ctx, db, dialect, set, order)

	return withTransaction(ctx, db, func(tx *sql.Tx) error {
		for i := len(plans) - 1; i >= 0; i-- {
			if err := deleteRows(ctx, tx, dialect, plans[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func executeRefresh(ctx context.Context, db *sql.DB, dialect Dialect, set *model.TableSet, order []model.TableName) error {
	plans := buildPlans(ctx, db, dialect, set, order)

	return withTransaction(ctx, db, func(tx *sql.Tx) error {
		for _, plan := range plans {
			if err := refreshTable(ctx, tx, dialect, plan); err != nil {
				return err
			}
		}
		return nil
	})
}

// withTransaction runs fn inside one transaction. The whole preparation call
// is a single unit of work; any failure rolls everything back.
func withTransaction(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlfixture: failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlfixture: failed to commit transaction: %w", err)
	}
	return nil
}

func deleteAllRows(ctx context.Context, tx *sql.Tx, dialect Dialect, table *model.Table) error {
	query := fmt.Sprintf(`DELETE FROM %s`, dialect.QuoteIdentifier(table.Name().String()))
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return &DatabaseOperationError{Op: OperationDelete, Table: table.Name(), SQL: query, Err: err}
	}
	return nil
}

// insertTable inserts all rows of one table through a single prepared
// statement. A table with zero rows is a no-op.
func insertTable(ctx context.Context, tx *sql.Tx, dialect Dialect, plan tablePlan) error {
	table := plan.table
	if table.RowCount() == 0 {
		return nil
	}

	columns := table.Columns()
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = dialect.QuoteIdentifier(col.String())
		placeholders[i] = dialect.Placeholder(i + 1)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s)`,
		dialect.QuoteIdentifier(table.Name().String()),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return &DatabaseOperationError{Op: OperationInsert, Table: table.Name(), SQL: query, Err: err}
	}
	defer stmt.Close()

	for _, row := range table.Rows() {
		args := make([]any, len(columns))
		for i, col := range columns {
			args[i] = bindValue(row.Value(col), plan.meta, col)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return &DatabaseOperationError{Op: OperationInsert, Table: table.Name(), SQL: query, Err: err}
		}
	}
	return nil
}

func updateTable(ctx context.Context, tx *sql.Tx, dialect Dialect, plan tablePlan) error {
	table := plan.table
	if table.RowCount() == 0 {
		return nil
	}

	setCols, query := buildUpdateQuery(dialect, plan)
	if len(setCols) == 0 {
		// Every dataset column is part of the key; nothing to update.
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return &DatabaseOperationError{Op: OperationUpdate, Table: table.Name(), SQL: query, Err: err}
	}
	defer stmt.Close()

	for _, row := range table.Rows() {
		args := updateArgs(plan, setCols, row)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return &DatabaseOperationError{Op: OperationUpdate, Table: table.Name(), SQL: query, Err: err}
		}
	}
	return nil
}

func buildUpdateQuery(dialect Dialect, plan tablePlan) ([]model.ColumnName, string) {
	table := plan.table

	setCols := make([]model.ColumnName, 0, len(table.Columns()))
	for _, col := range table.Columns() {
		if !containsColumn(plan.keys, col) {
			setCols = append(setCols, col)
		}
	}
	if len(setCols) == 0 {
		return nil, ""
	}

	assignments := make([]string, len(setCols))
	ordinal := 0
	for i, col := range setCols {
		ordinal++
		assignments[i] = fmt.Sprintf("%s = %s", dialect.QuoteIdentifier(col.String()), dialect.Placeholder(ordinal))
	}
	conditions := make([]string, len(plan.keys))
	for i, col := range plan.keys {
		ordinal++
		conditions[i] = fmt.Sprintf("%s = %s", dialect.QuoteIdentifier(col.String()), dialect.Placeholder(ordinal))
	}

	query := fmt.Sprintf(
		`UPDATE %s SET %s WHERE %s`,
		dialect.QuoteIdentifier(table.Name().String()),
		strings.Join(assignments, ", "),
		strings.Join(conditions, " AND "),
	)
	return setCols, query
}

func updateArgs(plan tablePlan, setCols []model.ColumnName, row model.Row) []any {
	args := make([]any, 0, len(setCols)+len(plan.keys))
	for _, col := range setCols {
		args = append(args, bindValue(row.Value(col), plan.meta, col))
	}
	for _, col := range plan.keys {
		args = append(args, bindValue(row.Value(col), plan.meta, col))
	}
	return args
}

func deleteRows(ctx context.Context, tx *sql.Tx, dialect Dialect, plan tablePlan) error {
	table := plan.table
	if table.RowCount() == 0 || len(plan.keys) == 0 {
		return nil
	}

	conditions := make([]string, len(plan.keys))
	for i, col := range plan.keys {
		conditions[i] = fmt.Sprintf("%s = %s", dialect.QuoteIdentifier(col.String()), dialect.Placeholder(i+1))
	}
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE %s`,
		dialect.QuoteIdentifier(table.Name().String()),
		strings.Join(conditions, " AND "),
	)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return &DatabaseOperationError{Op: OperationDelete, Table: table.Name(), SQL: query, Err: err}
	}
	defer stmt.Close()

	for _, row := range table.Rows() {
		args := make([]any, len(plan.keys))
		for i, col := range plan.keys {
			args[i] = bindValue(row.Value(col), plan.meta, col)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return &DatabaseOperationError{Op: OperationDelete, Table: table.Name(), SQL: query, Err: err}
		}
	}
	return nil
}

// refreshTable updates each row by key and inserts the ones not yet present.
// A zero-affected update is not proof of absence: key-only tables have
// nothing to update, and MySQL reports changed rows rather than matched
// rows. Such rows are probed by key before the insert.
func refreshTable(ctx context.Context, tx *sql.Tx, dialect Dialect, plan tablePlan) error {
	table := plan.table
	if table.RowCount() == 0 {
		return nil
	}

	setCols, updateQuery := buildUpdateQuery(dialect, plan)

	columns := table.Columns()
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = dialect.QuoteIdentifier(col.String())
		placeholders[i] = dialect.Placeholder(i + 1)
	}
	insertQuery := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s)`,
		dialect.QuoteIdentifier(table.Name().String()),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)

	conditions := make([]string, len(plan.keys))
	for i, col := range plan.keys {
		conditions[i] = fmt.Sprintf("%s = %s", dialect.QuoteIdentifier(col.String()), dialect.Placeholder(i+1))
	}
	existsQuery := fmt.Sprintf(
		`SELECT 1 FROM %s WHERE %s`,
		dialect.QuoteIdentifier(table.Name().String()),
		strings.Join(conditions, " AND "),
	)

	for _, row := range table.Rows() {
		if len(setCols) > 0 {
			result, err := tx.ExecContext(ctx, updateQuery, updateArgs(plan, setCols, row)...)
			if err != nil {
				return &DatabaseOperationError{Op: OperationRefresh, Table: table.Name(), SQL: updateQuery, Err: err}
			}
			if affected, err := result.RowsAffected(); err == nil && affected > 0 {
				continue
			}
		}

		keyArgs := make([]any, len(plan.keys))
		for i, col := range plan.keys {
			keyArgs[i] = bindValue(row.Value(col), plan.meta, col)
		}
		var one int
		err := tx.QueryRowContext(ctx, existsQuery, keyArgs...).Scan(&one)
		if err == nil {
			// Row exists; the update either changed nothing or had no
			// columns to set. Leave it in place.
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return &DatabaseOperationError{Op: OperationRefresh, Table: table.Name(), SQL: existsQuery, Err: err}
		}

		args := make([]any, len(columns))
		for i, col := range columns {
			args[i] = bindValue(row.Value(col), plan.meta, col)
		}
		if _, err := tx.ExecContext(ctx, insertQuery, args...); err != nil {
			return &DatabaseOperationError{Op: OperationRefresh, Table: table.Name(), SQL: insertQuery, Err: err}
		}
	}
	return nil
}

// bindValue converts a cell into a driver argument. Column metadata steers
// coercion so numeric strings land in DECIMAL columns as numbers.
func bindValue(cell model.CellValue, meta *tableMetadata, col model.ColumnName) any {
	if cell.IsNull() {
		return nil
	}

	s := cell.String()
	m, ok := meta.column(col.String())
	if !ok {
		return s
	}

	switch m.Class() {
	case ClassNumeric:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case ClassBoolean:
		if b, err := strconv.ParseBool(strings.ToLower(s)); err == nil {
			return b
		}
	}
	return s
}

func containsColumn(cols []model.ColumnName, col model.ColumnName) bool {
	for _, c := range cols {
		if c.EqualFold(col) {
			return true
		}
	}
	return false
}

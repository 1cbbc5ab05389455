package sqlfixture

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/nao1215/sqlfixture/domain/model"
)

// ForeignKey describes one foreign-key edge between two tables.
type ForeignKey struct {
	Table     string
	Column    string
	RefTable  string
	RefColumn string
}

// Dialect abstracts the per-database pieces the engine needs: identifier
// quoting, parameter placeholders, and metadata queries for foreign and
// primary keys. The engine drives everything else through generic
// parameterized SQL.
type Dialect interface {
	// Name returns the dialect identifier ("sqlite", "postgres", "mysql").
	Name() string
	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier(name string) string
	// Placeholder returns the parameter placeholder for the 1-based ordinal.
	Placeholder(ordinal int) string
	// ForeignKeys returns the FK edges among the given tables.
	ForeignKeys(ctx context.Context, db *sql.DB, tables []model.TableName) ([]ForeignKey, error)
	// PrimaryKey returns the primary-key column names of the table in
	// ordinal position order.
	PrimaryKey(ctx context.Context, db *sql.DB, table model.TableName) ([]string, error)
}

var (
	dialectMu sync.RWMutex
	dialects  = make(map[string]Dialect)
)

// RegisterDialect registers a dialect under its name. Later registrations
// overwrite earlier ones.
func RegisterDialect(d Dialect) {
	dialectMu.Lock()
	defer dialectMu.Unlock()
	dialects[strings.ToLower(d.Name())] = d
}

// DialectFor returns the dialect registered under the name.
func DialectFor(name string) (Dialect, error) {
	dialectMu.RLock()
	defer dialectMu.RUnlock()
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDialect, name)
	}
	return d, nil
}

func init() {
	RegisterDialect(sqliteDialect{})
	RegisterDialect(postgresDialect{})
	RegisterDialect(mysqlDialect{})
}

// sqliteDialect reads key metadata through PRAGMA statements.
type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (sqliteDialect) Placeholder(_ int) string { return "?" }

func (d sqliteDialect) ForeignKeys(ctx context.Context, db *sql.DB, tables []model.TableName) ([]ForeignKey, error) {
	var fks []ForeignKey
	for _, table := range tables {
		query := fmt.Sprintf(`PRAGMA foreign_key_list(%s)`, d.QuoteIdentifier(table.String()))
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to query foreign keys of %s: %w", table, err)
		}

		for rows.Next() {
			var (
				id, seq            int
				refTable           string
				from               string
				to                 sql.NullString
				onUpdate, onDelete string
				match              string
			)
			if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan foreign key of %s: %w", table, err)
			}
			fks = append(fks, ForeignKey{
				Table:     table.String(),
				Column:    from,
				RefTable:  refTable,
				RefColumn: to.String,
			})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return filterForeignKeys(fks, tables), nil
}

func (d sqliteDialect) PrimaryKey(ctx context.Context, db *sql.DB, table model.TableName) ([]string, error) {
	query := fmt.Sprintf(`PRAGMA table_info(%s)`, d.QuoteIdentifier(table.String()))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query table info of %s: %w", table, err)
	}
	defer rows.Close()

	type pkCol struct {
		name string
		rank int
	}
	var pk []pkCol
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pkRank  int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pkRank); err != nil {
			return nil, fmt.Errorf("failed to scan table info of %s: %w", table, err)
		}
		if pkRank > 0 {
			pk = append(pk, pkCol{name: name, rank: pkRank})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	names := make([]string, len(pk))
	for _, col := range pk {
		if col.rank-1 < len(names) {
			names[col.rank-1] = col.name
		}
	}
	return names, nil
}

// postgresDialect reads key metadata from information_schema.
type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (postgresDialect) Placeholder(ordinal int) string {
	return fmt.Sprintf("$%d", ordinal)
}

func (postgresDialect) ForeignKeys(ctx context.Context, db *sql.DB, tables []model.TableName) ([]ForeignKey, error) {
	const query = `
		SELECT
			tc.table_name,
			kcu.column_name,
			ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = current_schema()`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute foreign key detection query: %w", err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Table, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key info: %w", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return filterForeignKeys(fks, tables), nil
}

func (postgresDialect) PrimaryKey(ctx context.Context, db *sql.DB, table model.TableName) ([]string, error) {
	const query = `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = current_schema()
			AND lower(tc.table_name) = lower($1)
		ORDER BY kcu.ordinal_position`

	return queryStringColumn(ctx, db, query, table.String())
}

// mysqlDialect reads key metadata from information_schema.
type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) Placeholder(_ int) string { return "?" }

func (mysqlDialect) ForeignKeys(ctx context.Context, db *sql.DB, tables []model.TableName) ([]ForeignKey, error) {
	const query = `
		SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = DATABASE()
			AND REFERENCED_TABLE_NAME IS NOT NULL`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute foreign key detection query: %w", err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Table, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key info: %w", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return filterForeignKeys(fks, tables), nil
}

func (mysqlDialect) PrimaryKey(ctx context.Context, db *sql.DB, table model.TableName) ([]string, error) {
	const query = `
		SELECT COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = DATABASE()
			AND TABLE_NAME = ?
			AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION`

	return queryStringColumn(ctx, db, query, table.String())
}

// filterForeignKeys keeps only edges where both endpoints are among the
// involved tables, matching ignoring case. Self references are dropped since
// they cannot influence a linear order.
func filterForeignKeys(fks []ForeignKey, tables []model.TableName) []ForeignKey {
	involved := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		involved[strings.ToLower(t.String())] = struct{}{}
	}

	filtered := make([]ForeignKey, 0, len(fks))
	for _, fk := range fks {
		if strings.EqualFold(fk.Table, fk.RefTable) {
			continue
		}
		if _, ok := involved[strings.ToLower(fk.Table)]; !ok {
			continue
		}
		if _, ok := involved[strings.ToLower(fk.RefTable)]; !ok {
			continue
		}
		filtered = append(filtered, fk)
	}
	return filtered
}

func queryStringColumn(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

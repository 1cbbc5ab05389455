package sqlfixture

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStrategy_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AUTOMATIC", OrderAutomatic.String())
	assert.Equal(t, "ORDER_FILE", OrderFile.String())
	assert.Equal(t, "FOREIGN_KEYS", OrderForeignKeys.String())
	assert.Equal(t, "ALPHABETICAL", OrderAlphabetical.String())
	assert.Equal(t, "UNKNOWN", OrderStrategy(99).String())
}

func TestTableOrderResolver_Resolve_orderFile(t *testing.T) {
	t.Parallel()

	set := testSet(t,
		testTable(t, "USERS", []string{"ID"}),
		testTable(t, "ORDERS", []string{"ID"}),
		testTable(t, "PAYMENTS", []string{"ID"}),
	)

	t.Run("listed names win, unlisted tables keep declared order", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		content := "# schema order\nORDERS\n\nusers\nUNKNOWN_TABLE\norders\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultOrderFileName), []byte(content), 0o600))

		resolver := NewTableOrderResolver(dir, "", nil)
		order, err := resolver.Resolve(context.Background(), nil, set, OrderFile)
		require.NoError(t, err, "Resolve() should read the order file")

		// ORDERS first, users matched ignoring case, the duplicate and the
		// unknown name ignored, PAYMENTS appended.
		assert.Equal(t, []string{"ORDERS", "USERS", "PAYMENTS"}, nameStrings(order))
	})

	t.Run("missing file is a hard error for the explicit strategy", func(t *testing.T) {
		t.Parallel()

		resolver := NewTableOrderResolver(t.TempDir(), "", nil)
		_, err := resolver.Resolve(context.Background(), nil, set, OrderFile)
		assert.ErrorIs(t, err, ErrOrderFileNotFound, "Resolve() should fail when the file is absent")
	})

	t.Run("custom file name", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "tables.txt"), []byte("PAYMENTS\n"), 0o600))

		resolver := NewTableOrderResolver(dir, "tables.txt", nil)
		order, err := resolver.Resolve(context.Background(), nil, set, OrderFile)
		require.NoError(t, err)
		assert.Equal(t, []string{"PAYMENTS", "USERS", "ORDERS"}, nameStrings(order))
	})
}

func TestTableOrderResolver_Resolve_alphabetical(t *testing.T) {
	t.Parallel()

	set := testSet(t,
		testTable(t, "payments", []string{"ID"}),
		testTable(t, "ORDERS", []string{"ID"}),
		testTable(t, "Users", []string{"ID"}),
	)

	resolver := NewTableOrderResolver(t.TempDir(), "", nil)
	order, err := resolver.Resolve(context.Background(), nil, set, OrderAlphabetical)
	require.NoError(t, err)
	assert.Equal(t, []string{"ORDERS", "payments", "Users"}, nameStrings(order), "sort should ignore case")
}

func TestTableOrderResolver_Resolve_automatic(t *testing.T) {
	t.Parallel()

	set := testSet(t,
		testTable(t, "USERS", []string{"ID"}),
		testTable(t, "ORDERS", []string{"ID"}),
	)

	t.Run("order file wins when present", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultOrderFileName), []byte("USERS\nORDERS\n"), 0o600))

		resolver := NewTableOrderResolver(dir, "", nil)
		order, err := resolver.Resolve(context.Background(), nil, set, OrderAutomatic)
		require.NoError(t, err)
		assert.Equal(t, []string{"USERS", "ORDERS"}, nameStrings(order))
	})

	t.Run("no file and no connection falls back to alphabetical", func(t *testing.T) {
		t.Parallel()

		resolver := NewTableOrderResolver(t.TempDir(), "", nil)
		order, err := resolver.Resolve(context.Background(), nil, set, OrderAutomatic)
		require.NoError(t, err)
		assert.Equal(t, []string{"ORDERS", "USERS"}, nameStrings(order))
	})

	t.Run("unreadable key metadata falls back to alphabetical", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer db.Close() //nolint:errcheck

		dialect, err := DialectFor("sqlite")
		require.NoError(t, err)

		// No PRAGMA expectations: every metadata query fails.
		resolver := NewTableOrderResolver(t.TempDir(), "", dialect)
		order, err := resolver.Resolve(context.Background(), db, set, OrderAutomatic)
		require.NoError(t, err, "metadata failure should never error automatic mode")
		assert.Equal(t, []string{"ORDERS", "USERS"}, nameStrings(order))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTableOrderResolver_Resolve_foreignKeys(t *testing.T) {
	t.Parallel()

	// Declared child-first so the sort has something to do.
	set := testSet(t,
		testTable(t, "ORDERS", []string{"ID", "USER_ID"}),
		testTable(t, "USERS", []string{"ID"}),
	)

	fkColumns := []string{"id", "seq", "table", "from", "to", "on_update", "on_delete", "match"}

	t.Run("parents precede dependents", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer db.Close() //nolint:errcheck

		mock.ExpectQuery(`PRAGMA foreign_key_list("ORDERS")`).
			WillReturnRows(sqlmock.NewRows(fkColumns).
				AddRow(0, 0, "USERS", "USER_ID", "ID", "NO ACTION", "NO ACTION", "NONE"))
		mock.ExpectQuery(`PRAGMA foreign_key_list("USERS")`).
			WillReturnRows(sqlmock.NewRows(fkColumns))

		dialect, err := DialectFor("sqlite")
		require.NoError(t, err)

		resolver := NewTableOrderResolver(t.TempDir(), "", dialect)
		order, err := resolver.Resolve(context.Background(), db, set, OrderForeignKeys)
		require.NoError(t, err)
		assert.Equal(t, []string{"USERS", "ORDERS"}, nameStrings(order))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("metadata failure falls back to declared order", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer db.Close() //nolint:errcheck

		mock.ExpectQuery(`PRAGMA foreign_key_list("ORDERS")`).
			WillReturnError(assert.AnError)

		dialect, err := DialectFor("sqlite")
		require.NoError(t, err)

		resolver := NewTableOrderResolver(t.TempDir(), "", dialect)
		order, err := resolver.Resolve(context.Background(), db, set, OrderForeignKeys)
		require.NoError(t, err, "metadata failure should never error the operation")
		assert.Equal(t, []string{"ORDERS", "USERS"}, nameStrings(order))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTopologicalOrder(t *testing.T) {
	t.Parallel()

	t.Run("chain of dependencies", func(t *testing.T) {
		t.Parallel()

		names := testNames(t, "ITEMS", "ORDERS", "USERS")
		fks := []ForeignKey{
			{Table: "ORDERS", Column: "USER_ID", RefTable: "USERS", RefColumn: "ID"},
			{Table: "ITEMS", Column: "ORDER_ID", RefTable: "ORDERS", RefColumn: "ID"},
		}

		order, ok := topologicalOrder(names, fks)
		require.True(t, ok, "acyclic edges should sort")
		assert.Equal(t, []string{"USERS", "ORDERS", "ITEMS"}, nameStrings(order))
	})

	t.Run("no edges keeps declared order", func(t *testing.T) {
		t.Parallel()

		names := testNames(t, "B", "A", "C")
		order, ok := topologicalOrder(names, nil)
		require.True(t, ok)
		assert.Equal(t, []string{"B", "A", "C"}, nameStrings(order))
	})

	t.Run("duplicate edges count once", func(t *testing.T) {
		t.Parallel()

		names := testNames(t, "ORDERS", "USERS")
		fks := []ForeignKey{
			{Table: "ORDERS", Column: "USER_ID", RefTable: "USERS", RefColumn: "ID"},
			{Table: "orders", Column: "OWNER_ID", RefTable: "users", RefColumn: "ID"},
		}

		order, ok := topologicalOrder(names, fks)
		require.True(t, ok)
		assert.Equal(t, []string{"USERS", "ORDERS"}, nameStrings(order))
	})

	t.Run("cycle reports not ok", func(t *testing.T) {
		t.Parallel()

		names := testNames(t, "A", "B")
		fks := []ForeignKey{
			{Table: "A", RefTable: "B"},
			{Table: "B", RefTable: "A"},
		}

		_, ok := topologicalOrder(names, fks)
		assert.False(t, ok, "a cycle cannot be linearized")
	})
}

func TestTableOrderResolver_EnsureOrderFile(t *testing.T) {
	t.Parallel()

	set := testSet(t,
		testTable(t, "USERS", []string{"ID"}),
		testTable(t, "ORDERS", []string{"ID"}),
	)

	t.Run("writes alphabetical default", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		resolver := NewTableOrderResolver(dir, "", nil)

		path, err := resolver.EnsureOrderFile(set)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, DefaultOrderFileName), path)

		content, err := os.ReadFile(path) //nolint:gosec // test-owned path
		require.NoError(t, err)
		assert.Equal(t, "# One table name per line. Lines starting with '#' are ignored.\nORDERS\nUSERS\n", string(content))
	})

	t.Run("existing file is left untouched", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, DefaultOrderFileName)
		require.NoError(t, os.WriteFile(path, []byte("USERS\n"), 0o600))

		resolver := NewTableOrderResolver(dir, "", nil)
		got, err := resolver.EnsureOrderFile(set)
		require.NoError(t, err)
		assert.Equal(t, path, got)

		content, err := os.ReadFile(path) //nolint:gosec // test-owned path
		require.NoError(t, err)
		assert.Equal(t, "USERS\n", string(content), "an existing file must not be overwritten")
	})
}

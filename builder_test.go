package sqlfixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/sqlfixture/domain/model"
)

// writeDataset materializes a dataset directory from file name to content.
func writeDataset(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o750))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
}

func TestNewFixtureBuilder(t *testing.T) {
	t.Parallel()

	b := NewFixtureBuilder()
	require.NotNil(t, b, "NewFixtureBuilder() should not return nil")
	assert.Empty(t, b.sources, "should start without sources")
	assert.Equal(t, model.DefaultScenarioMarker, b.marker)
	assert.Equal(t, model.MergeUnionAll, b.mergeStrategy)
	assert.Equal(t, DefaultExpectedSuffix, b.expectedSuffix)
	assert.Equal(t, DefaultOrderFileName, b.orderFileName)
	assert.Equal(t, OrderAutomatic, b.orderStrategy)
	assert.Equal(t, "sqlite", b.dialectName)
	assert.Equal(t, OperationCleanInsert, b.prepareOp)
	assert.Equal(t, OperationNone, b.expectationOp)
}

func TestFixtureBuilder_Build_validation(t *testing.T) {
	t.Parallel()

	t.Run("no sources", func(t *testing.T) {
		t.Parallel()

		_, err := NewFixtureBuilder().Build()
		assert.ErrorIs(t, err, ErrNoSources)
	})

	t.Run("unknown dialect", func(t *testing.T) {
		t.Parallel()

		_, err := NewFixtureBuilder().AddSource(t.TempDir()).WithDialect("oracle").Build()
		assert.ErrorIs(t, err, ErrUnknownDialect)
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()

		_, err := NewFixtureBuilder().AddSource(filepath.Join(t.TempDir(), "nope")).Build()
		assert.ErrorIs(t, err, ErrDirectoryNotFound)
	})

	t.Run("directory without dataset files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeDataset(t, dir, map[string]string{"README.md": "not a dataset"})

		_, err := NewFixtureBuilder().AddSource(dir).Build()
		assert.ErrorIs(t, err, ErrNoDataset)
	})
}

func TestFixtureBuilder_Build(t *testing.T) {
	t.Parallel()

	t.Run("loads, filters and strips the marker", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeDataset(t, dir, map[string]string{
			"USERS.csv":  "[Scenario],ID,NAME\ncaseA,1,Alice\ncaseB,2,Bob\ncaseA,3,Carol\n",
			"ORDERS.csv": "ID,USER_ID\n10,1\n",
		})

		fixture, err := NewFixtureBuilder().
			AddSource(dir).
			WithScenarios("caseA").
			Build()
		require.NoError(t, err, "Build() should succeed")

		users, ok := fixture.Dataset().Lookup("USERS")
		require.True(t, ok)
		assert.Equal(t, 2, users.RowCount(), "only caseA rows should load")
		for _, col := range users.Columns() {
			assert.NotEqual(t, model.DefaultScenarioMarker, col.String(), "marker column must not persist")
		}

		orders, ok := fixture.Dataset().Lookup("ORDERS")
		require.True(t, ok)
		assert.Equal(t, 1, orders.RowCount(), "tables without a marker pass through")

		assert.Nil(t, fixture.Expected(), "no expected directory means no expectation")
	})

	t.Run("picks up the expected subdirectory", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeDataset(t, dir, map[string]string{
			"USERS.csv": "ID,NAME\n1,Alice\n",
		})
		writeDataset(t, filepath.Join(dir, DefaultExpectedSuffix), map[string]string{
			"USERS.csv": "ID,NAME\n1,Alice\n",
		})

		fixture, err := NewFixtureBuilder().AddSource(dir).Build()
		require.NoError(t, err)
		require.NotNil(t, fixture.Expected())

		users, ok := fixture.Expected().TableSet().Lookup("USERS")
		require.True(t, ok)
		assert.Equal(t, 1, users.RowCount())
	})

	t.Run("custom expected suffix", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeDataset(t, dir, map[string]string{"USERS.csv": "ID\n1\n"})
		writeDataset(t, filepath.Join(dir, "after"), map[string]string{"USERS.csv": "ID\n1\n"})

		fixture, err := NewFixtureBuilder().AddSource(dir).WithExpectedSuffix("after").Build()
		require.NoError(t, err)
		assert.NotNil(t, fixture.Expected())
	})

	t.Run("merges multiple sources with UNION_ALL", func(t *testing.T) {
		t.Parallel()

		dirA := t.TempDir()
		dirB := t.TempDir()
		writeDataset(t, dirA, map[string]string{"USERS.csv": "ID,NAME\n1,Alice\n"})
		writeDataset(t, dirB, map[string]string{"USERS.csv": "ID,NAME\n2,Bob\n"})

		fixture, err := NewFixtureBuilder().AddSources(dirA, dirB).Build()
		require.NoError(t, err)

		users, ok := fixture.Dataset().Lookup("USERS")
		require.True(t, ok)
		assert.Equal(t, 2, users.RowCount(), "UNION_ALL should keep rows from both sources")
	})

	t.Run("FIRST merge keeps the first source's table", func(t *testing.T) {
		t.Parallel()

		dirA := t.TempDir()
		dirB := t.TempDir()
		writeDataset(t, dirA, map[string]string{"USERS.csv": "ID,NAME\n1,Alice\n"})
		writeDataset(t, dirB, map[string]string{"USERS.csv": "ID,NAME\n2,Bob\n3,Carol\n"})

		fixture, err := NewFixtureBuilder().
			AddSources(dirA, dirB).
			WithMergeStrategy(model.MergeFirst).
			Build()
		require.NoError(t, err)

		users, ok := fixture.Dataset().Lookup("USERS")
		require.True(t, ok)
		assert.Equal(t, 1, users.RowCount())
	})

	t.Run("tab-separated source", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeDataset(t, dir, map[string]string{"USERS.tsv": "ID\tNAME\n1\tAlice\n"})

		fixture, err := NewFixtureBuilder().AddSource(dir).Build()
		require.NoError(t, err)

		users, ok := fixture.Dataset().Lookup("USERS")
		require.True(t, ok)
		assert.Equal(t, 1, users.RowCount())
		assert.Len(t, users.Columns(), 2)
	})

	t.Run("load-order file is not a table", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeDataset(t, dir, map[string]string{
			"USERS.csv":          "ID\n1\n",
			DefaultOrderFileName: "USERS\n",
		})

		fixture, err := NewFixtureBuilder().AddSource(dir).Build()
		require.NoError(t, err)
		assert.Equal(t, 1, fixture.Dataset().Len(), "the order file must not load as a table")
	})
}

func TestDatasetLoader_Load(t *testing.T) {
	t.Parallel()

	t.Run("reads files in lexicographic order", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeDataset(t, dir, map[string]string{
			"b_ORDERS.csv": "ID\n10\n",
			"a_USERS.csv":  "ID\n1\n",
		})

		set, err := NewDatasetLoader(model.DefaultDelimiterConfig()).Load(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"a_USERS", "b_ORDERS"}, nameStrings(set.TableNames()))
	})

	t.Run("skips subdirectories", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeDataset(t, dir, map[string]string{"USERS.csv": "ID\n1\n"})
		writeDataset(t, filepath.Join(dir, "expected"), map[string]string{"USERS.csv": "ID\n1\n"})

		set, err := NewDatasetLoader(model.DefaultDelimiterConfig()).Load(dir)
		require.NoError(t, err)
		assert.Equal(t, 1, set.Len())
	})

	t.Run("wraps parse failures with the file path", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeDataset(t, dir, map[string]string{"USERS.csv": ""})

		_, err := NewDatasetLoader(model.DefaultDelimiterConfig()).Load(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "USERS.csv", "the offending path should be in the message")
	})
}

func TestFormatExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".csv", formatExtension("USERS.csv"))
	assert.Equal(t, ".csv", formatExtension("USERS.CSV"))
	assert.Equal(t, ".csv", formatExtension("USERS.csv.gz"))
	assert.Equal(t, ".tsv", formatExtension("USERS.tsv.zst"))
	assert.Equal(t, ".parquet", formatExtension("USERS.parquet.xz"))
	assert.Equal(t, ".txt", formatExtension("load-order.txt"))
	assert.Equal(t, "", formatExtension("README"))
}

package sqlfixture

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/sqlfixture/domain/model"
)

// Defaults used when the builder is not told otherwise.
const (
	// DefaultExpectedSuffix is the subdirectory holding the post-condition
	// dataset.
	DefaultExpectedSuffix = "expected"
)

// FixtureBuilder configures a database fixture before building it. Callers
// chain setters and finish with Build; the host test framework resolves
// which directories and scenarios apply and hands the values in here.
//
// The typical usage pattern is:
//
//	fixture, err := sqlfixture.NewFixtureBuilder().
//		AddSource("testdata/orders").
//		WithScenarios("caseA").
//		WithDialect("postgres").
//		Build()
//	if err != nil {
//		return err
//	}
//	if err := fixture.Prepare(ctx, provider); err != nil {
//		return err
//	}
type FixtureBuilder struct {
	sources        []string
	delimiters     model.DelimiterConfig
	marker         string
	scenarios      []string
	mergeStrategy  model.MergeStrategy
	expectedSuffix string
	orderFileName  string
	orderStrategy  OrderStrategy
	dialectName    string
	exclusions     []string
	strategies     map[string]model.ComparisonStrategy
	prepareOp      Operation
	expectationOp  Operation
}

// NewFixtureBuilder creates a builder with the conventional defaults:
// CSV/TSV delimiters, the "[Scenario]" marker, UNION_ALL merging, the
// "expected" suffix, automatic table ordering, the sqlite dialect,
// CLEAN_INSERT preparation and no expectation-phase operation.
func NewFixtureBuilder() *FixtureBuilder {
	return &FixtureBuilder{
		delimiters:     model.DefaultDelimiterConfig(),
		marker:         model.DefaultScenarioMarker,
		mergeStrategy:  model.MergeUnionAll,
		expectedSuffix: DefaultExpectedSuffix,
		orderFileName:  DefaultOrderFileName,
		orderStrategy:  OrderAutomatic,
		dialectName:    "sqlite",
		strategies:     make(map[string]model.ComparisonStrategy),
		prepareOp:      OperationCleanInsert,
		expectationOp:  OperationNone,
	}
}

// AddSource adds a dataset directory. Sources are merged in the order they
// were added.
func (b *FixtureBuilder) AddSource(dir string) *FixtureBuilder {
	b.sources = append(b.sources, dir)
	return b
}

// AddSources adds multiple dataset directories at once.
func (b *FixtureBuilder) AddSources(dirs ...string) *FixtureBuilder {
	b.sources = append(b.sources, dirs...)
	return b
}

// WithDelimiters overrides the delimited-file configuration.
func (b *FixtureBuilder) WithDelimiters(cfg model.DelimiterConfig) *FixtureBuilder {
	b.delimiters = cfg
	return b
}

// WithMarker overrides the scenario marker column name.
func (b *FixtureBuilder) WithMarker(marker string) *FixtureBuilder {
	b.marker = marker
	return b
}

// WithScenarios sets the accepted scenario names. Without scenarios the
// filter is inactive and every row loads.
func (b *FixtureBuilder) WithScenarios(names ...string) *FixtureBuilder {
	b.scenarios = append(b.scenarios, names...)
	return b
}

// WithMergeStrategy sets how same-named tables from multiple sources merge.
func (b *FixtureBuilder) WithMergeStrategy(strategy model.MergeStrategy) *FixtureBuilder {
	b.mergeStrategy = strategy
	return b
}

// WithExpectedSuffix overrides the expected-dataset subdirectory name.
func (b *FixtureBuilder) WithExpectedSuffix(suffix string) *FixtureBuilder {
	b.expectedSuffix = suffix
	return b
}

// WithOrderFileName overrides the load-order file name.
func (b *FixtureBuilder) WithOrderFileName(name string) *FixtureBuilder {
	b.orderFileName = name
	return b
}

// WithOrderStrategy selects the table order resolution strategy.
func (b *FixtureBuilder) WithOrderStrategy(strategy OrderStrategy) *FixtureBuilder {
	b.orderStrategy = strategy
	return b
}

// WithDialect selects the database dialect by name.
func (b *FixtureBuilder) WithDialect(name string) *FixtureBuilder {
	b.dialectName = name
	return b
}

// WithExclusions adds columns excluded from verification, matched ignoring
// case across all tables.
func (b *FixtureBuilder) WithExclusions(columns ...string) *FixtureBuilder {
	b.exclusions = append(b.exclusions, columns...)
	return b
}

// WithStrategy assigns a comparison strategy to a column, matched ignoring
// case across all tables.
func (b *FixtureBuilder) WithStrategy(column string, strategy model.ComparisonStrategy) *FixtureBuilder {
	b.strategies[column] = strategy
	return b
}

// WithStrategies assigns comparison strategies in bulk.
func (b *FixtureBuilder) WithStrategies(strategies map[string]model.ComparisonStrategy) *FixtureBuilder {
	for column, strategy := range strategies {
		b.strategies[column] = strategy
	}
	return b
}

// WithPrepareOperation overrides the preparation-phase operation.
func (b *FixtureBuilder) WithPrepareOperation(op Operation) *FixtureBuilder {
	b.prepareOp = op
	return b
}

// WithExpectationOperation overrides the expectation-phase operation,
// executed right before verification.
func (b *FixtureBuilder) WithExpectationOperation(op Operation) *FixtureBuilder {
	b.expectationOp = op
	return b
}

// Build loads and filters every source, merges them and returns the
// immutable Fixture. Configuration problems surface here, before any
// database I/O.
func (b *FixtureBuilder) Build() (*Fixture, error) {
	if len(b.sources) == 0 {
		return nil, ErrNoSources
	}

	dialect, err := DialectFor(b.dialectName)
	if err != nil {
		return nil, err
	}
	if _, err := OperationProviderFor(b.prepareOp); err != nil {
		return nil, err
	}
	if _, err := OperationProviderFor(b.expectationOp); err != nil {
		return nil, err
	}

	loader := NewDatasetLoader(b.delimiters)
	filter := model.NewScenarioFilter(b.marker, b.scenarios)

	dataset, err := b.loadSources(loader, filter, b.sources)
	if err != nil {
		return nil, err
	}

	expected, err := b.loadExpected(loader, filter)
	if err != nil {
		return nil, err
	}

	return &Fixture{
		dataset:       dataset,
		expected:      expected,
		resolver:      NewTableOrderResolver(b.sources[0], b.orderFileName, dialect),
		dialect:       dialect,
		orderStrategy: b.orderStrategy,
		prepareOp:     b.prepareOp,
		expectationOp: b.expectationOp,
	}, nil
}

func (b *FixtureBuilder) loadSources(loader *DatasetLoader, filter *model.ScenarioFilter, dirs []string) (*model.TableSet, error) {
	sets := make([]*model.TableSet, 0, len(dirs))
	for _, dir := range dirs {
		set, err := loader.Load(dir)
		if err != nil {
			return nil, err
		}
		filtered, err := filter.ApplySet(set)
		if err != nil {
			return nil, fmt.Errorf("sqlfixture: scenario filtering of %s failed: %w", dir, err)
		}
		sets = append(sets, filtered)
	}
	return model.MergeTableSets(sets, b.mergeStrategy)
}

// loadExpected loads the post-condition dataset from the expected
// subdirectories of the sources. A fixture without any expected directory
// has no expectation and cannot be verified.
func (b *FixtureBuilder) loadExpected(loader *DatasetLoader, filter *model.ScenarioFilter) (*model.ExpectedTableSet, error) {
	var dirs []string
	for _, dir := range b.sources {
		expectedDir := filepath.Join(dir, b.expectedSuffix)
		if info, err := os.Stat(expectedDir); err == nil && info.IsDir() {
			dirs = append(dirs, expectedDir)
		}
	}
	if len(dirs) == 0 {
		return nil, nil
	}

	set, err := b.loadSources(loader, filter, dirs)
	if err != nil {
		return nil, err
	}
	return model.NewExpectedTableSet(set, b.exclusions, b.strategies), nil
}

package sqlfixture

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nao1215/sqlfixture/domain/model"
)

// FormatProvider converts one dataset file into a table. Implementations are
// registered per file extension and must be safe for concurrent reuse.
type FormatProvider interface {
	// Extensions lists the file extensions the provider handles, without
	// compression suffixes (".csv", ".xlsx", ...).
	Extensions() []string
	// Parse reads the file into a table.
	Parse(path string, cfg model.DelimiterConfig) (*model.Table, error)
}

// OperationProvider applies a table set to a database connection with a
// given write semantics.
type OperationProvider interface {
	// Apply writes the tables in the given processing order.
	Apply(ctx context.Context, db *sql.DB, dialect Dialect, set *model.TableSet, order []model.TableName) error
}

// OperationFunc adapts a function to the OperationProvider interface.
type OperationFunc func(ctx context.Context, db *sql.DB, dialect Dialect, set *model.TableSet, order []model.TableName) error

// Apply implements OperationProvider.
func (f OperationFunc) Apply(ctx context.Context, db *sql.DB, dialect Dialect, set *model.TableSet, order []model.TableName) error {
	return f(ctx, db, dialect, set, order)
}

// ExpectationProvider verifies a table set against a live connection.
type ExpectationProvider interface {
	// Verify compares the expected dataset against the database state.
	Verify(ctx context.Context, db *sql.DB, dialect Dialect, expected *model.ExpectedTableSet) error
}

// Registries are populated once at startup (init functions or explicit
// Register* calls before first use) and only read afterwards, so concurrent
// test executions share them without per-call state.
var (
	registryMu           sync.RWMutex
	formatProviders      = make(map[string]FormatProvider)
	operationProviders   = make(map[Operation]OperationProvider)
	expectationProviders = make(map[string]ExpectationProvider)
)

// DefaultExpectationProvider is the capability key of the built-in
// comparison engine.
const DefaultExpectationProvider = "default"

// RegisterFormatProvider registers a provider for its extensions. Later
// registrations overwrite earlier ones for the same extension.
func RegisterFormatProvider(p FormatProvider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, ext := range p.Extensions() {
		formatProviders[strings.ToLower(ext)] = p
	}
}

// FormatProviderFor returns the provider registered for the extension.
func FormatProviderFor(ext string) (FormatProvider, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := formatProviders[strings.ToLower(ext)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, ext)
	}
	return p, nil
}

// RegisteredExtensions returns the extensions with a format provider, sorted.
func RegisteredExtensions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	exts := make([]string, 0, len(formatProviders))
	for ext := range formatProviders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// RegisterOperationProvider registers a provider for an operation kind.
func RegisterOperationProvider(op Operation, p OperationProvider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	operationProviders[op] = p
}

// OperationProviderFor returns the provider registered for the operation.
func OperationProviderFor(op Operation) (OperationProvider, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := operationProviders[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	return p, nil
}

// RegisterExpectationProvider registers a verification engine under a
// capability key.
func RegisterExpectationProvider(name string, p ExpectationProvider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	expectationProviders[strings.ToLower(name)] = p
}

// ExpectationProviderFor returns the verification engine registered under
// the capability key.
func ExpectationProviderFor(name string) (ExpectationProvider, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := expectationProviders[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("sqlfixture: no expectation provider named %q", name)
	}
	return p, nil
}

// fileFormatProvider is the built-in provider backed by model.File. One
// instance serves CSV, TSV, XLSX and Parquet including compressed variants.
type fileFormatProvider struct{}

// Extensions implements FormatProvider.
func (fileFormatProvider) Extensions() []string {
	return []string{model.ExtCSV, model.ExtTSV, model.ExtXLSX, model.ExtParquet}
}

// Parse implements FormatProvider.
func (fileFormatProvider) Parse(path string, cfg model.DelimiterConfig) (*model.Table, error) {
	return model.NewFile(path).ToTable(cfg)
}

func init() {
	RegisterFormatProvider(fileFormatProvider{})
}

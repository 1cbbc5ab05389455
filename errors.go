package sqlfixture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/sqlfixture/domain/model"
)

// Standard error values for consistency across the package
var (
	// ErrDirectoryNotFound indicates the dataset directory does not exist
	ErrDirectoryNotFound = errors.New("sqlfixture: dataset directory not found")

	// ErrNoDataset indicates a dataset directory contains no loadable files
	ErrNoDataset = errors.New("sqlfixture: no dataset files found")

	// ErrUnknownFormat indicates no format provider is registered for an extension
	ErrUnknownFormat = errors.New("sqlfixture: no format provider for extension")

	// ErrUnknownOperation indicates no provider is registered for an operation
	ErrUnknownOperation = errors.New("sqlfixture: no provider for operation")

	// ErrOrderFileNotFound indicates a required load-order file is missing
	ErrOrderFileNotFound = errors.New("sqlfixture: load order file not found")

	// ErrUnknownDialect indicates no dialect is registered under the name
	ErrUnknownDialect = errors.New("sqlfixture: unknown database dialect")

	// ErrNilConnection indicates the connection provider returned no handle
	ErrNilConnection = errors.New("sqlfixture: connection provider returned nil")

	// ErrNoSources indicates the builder was given no dataset sources
	ErrNoSources = errors.New("sqlfixture: no dataset sources configured")
)

// ErrorContext provides context for where an error occurred
type ErrorContext struct {
	Operation string
	FilePath  string
	TableName string
	Details   string
}

// NewErrorContext creates a new error context
func NewErrorContext(operation, filePath string) *ErrorContext {
	return &ErrorContext{
		Operation: operation,
		FilePath:  filePath,
	}
}

// WithTable adds table context to the error
func (ec *ErrorContext) WithTable(tableName string) *ErrorContext {
	ec.TableName = tableName
	return ec
}

// WithDetails adds details to the error context
func (ec *ErrorContext) WithDetails(details string) *ErrorContext {
	ec.Details = details
	return ec
}

// Error creates a formatted error with context
func (ec *ErrorContext) Error(baseErr error) error {
	var parts []string
	parts = append(parts, fmt.Sprintf("sqlfixture: %s failed", ec.Operation))

	if ec.FilePath != "" {
		parts = append(parts, "file: "+ec.FilePath)
	}
	if ec.TableName != "" {
		parts = append(parts, "table: "+ec.TableName)
	}
	if ec.Details != "" {
		parts = append(parts, ec.Details)
	}

	return fmt.Errorf("%s: %w", strings.Join(parts, ", "), baseErr)
}

// DatabaseOperationError wraps a driver error with the operation, table and
// generated SQL for diagnosis.
type DatabaseOperationError struct {
	Op    Operation
	Table model.TableName
	SQL   string
	Err   error
}

// Error implements the error interface.
func (e *DatabaseOperationError) Error() string {
	return fmt.Sprintf("sqlfixture: %s failed on table %s (sql: %s): %v", e.Op, e.Table, e.SQL, e.Err)
}

// Unwrap returns the underlying driver error.
func (e *DatabaseOperationError) Unwrap() error {
	return e.Err
}

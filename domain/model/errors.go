package model

import "errors"

// ErrDuplicateColumnName is returned when a file contains duplicate column names
var ErrDuplicateColumnName = errors.New("duplicate column name")

var (
	// ErrBlankIdentifier is returned when a table or column name is empty after trimming.
	ErrBlankIdentifier = errors.New("model: blank identifier")

	// ErrEmptyFile is returned when a dataset file has no header row.
	ErrEmptyFile = errors.New("model: empty dataset file")

	// ErrUnsupportedFileType is returned for files with no known extension.
	ErrUnsupportedFileType = errors.New("model: unsupported file type")

	// ErrDuplicateTable is returned when a table set already contains the name.
	ErrDuplicateTable = errors.New("model: duplicate table name")

	// ErrRowShape is returned when a data row carries more cells than the header.
	ErrRowShape = errors.New("model: row has more cells than header")

	// ErrEmptyPattern is returned when a regex strategy is built without a pattern.
	ErrEmptyPattern = errors.New("model: regex strategy requires a non-empty pattern")

	// ErrEmptyTableSetList is returned when merging zero table sets.
	ErrEmptyTableSetList = errors.New("model: no table sets to merge")
)

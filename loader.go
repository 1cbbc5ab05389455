package sqlfixture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nao1215/sqlfixture/domain/model"
)

// DatasetLoader reads a dataset directory into a table set through the
// format provider registry. It is stateless and safe for concurrent reuse
// across many directories.
type DatasetLoader struct {
	delimiters model.DelimiterConfig
}

// NewDatasetLoader creates a loader with the given delimiter configuration.
func NewDatasetLoader(delimiters model.DelimiterConfig) *DatasetLoader {
	return &DatasetLoader{delimiters: delimiters}
}

// Load reads every supported file in the directory, in lexicographic file
// name order, into one table set. Each file becomes one table named after
// the file. Subdirectories and files without a registered format provider
// are skipped.
func (l *DatasetLoader) Load(dir string) (*model.TableSet, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, NewErrorContext("dataset load", dir).Error(err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, NewErrorContext("dataset load", dir).Error(err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	tables := make([]*model.Table, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		provider, err := FormatProviderFor(formatExtension(name))
		if err != nil {
			if errors.Is(err, ErrUnknownFormat) {
				continue
			}
			return nil, err
		}

		table, err := provider.Parse(path, l.delimiters)
		if err != nil {
			return nil, NewErrorContext("dataset load", path).Error(err)
		}
		tables = append(tables, table)
	}

	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDataset, dir)
	}
	return model.NewTableSet(tables)
}

// formatExtension returns the file's format extension with compression
// suffixes stripped, lowercased.
func formatExtension(fileName string) string {
	fileName = strings.ToLower(fileName)
	for _, ext := range []string{model.ExtGZ, model.ExtBZ2, model.ExtXZ, model.ExtZSTD} {
		if strings.HasSuffix(fileName, ext) {
			fileName = strings.TrimSuffix(fileName, ext)
			break
		}
	}
	return filepath.Ext(fileName)
}

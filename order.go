package sqlfixture

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/sqlfixture/domain/model"
)

// DefaultOrderFileName is the conventional load-order file name.
const DefaultOrderFileName = "load-order.txt"

// OrderStrategy selects how the table processing order is produced.
type OrderStrategy int

const (
	// OrderAutomatic cascades through file, foreign keys and alphabetical.
	OrderAutomatic OrderStrategy = iota
	// OrderFile reads the order from the load-order file; missing file is a
	// hard error.
	OrderFile
	// OrderForeignKeys topologically sorts tables along FK edges.
	OrderForeignKeys
	// OrderAlphabetical sorts table names ascending, ignoring case.
	OrderAlphabetical
)

// String returns the strategy name.
func (s OrderStrategy) String() string {
	switch s {
	case OrderAutomatic:
		return "AUTOMATIC"
	case OrderFile:
		return "ORDER_FILE"
	case OrderForeignKeys:
		return "FOREIGN_KEYS"
	case OrderAlphabetical:
		return "ALPHABETICAL"
	default:
		return "UNKNOWN"
	}
}

// TableOrderResolver computes a processing order for a table set that is
// consistent with referential-integrity constraints. The resolved order
// governs inserts; it is reversed for delete-style cleanup.
type TableOrderResolver struct {
	dir      string
	fileName string
	dialect  Dialect
}

// NewTableOrderResolver creates a resolver rooted at the dataset directory.
// An empty fileName falls back to DefaultOrderFileName.
func NewTableOrderResolver(dir, fileName string, dialect Dialect) *TableOrderResolver {
	if strings.TrimSpace(fileName) == "" {
		fileName = DefaultOrderFileName
	}
	return &TableOrderResolver{dir: dir, fileName: fileName, dialect: dialect}
}

// OrderFilePath returns the path of the load-order file.
func (r *TableOrderResolver) OrderFilePath() string {
	return filepath.Join(r.dir, r.fileName)
}

// Resolve produces the table processing order using the given strategy.
func (r *TableOrderResolver) Resolve(ctx context.Context, db *sql.DB, set *model.TableSet, strategy OrderStrategy) ([]model.TableName, error) {
	switch strategy {
	case OrderFile:
		order, err := r.resolveFromFile(set)
		if err != nil {
			return nil, err
		}
		return order, nil
	case OrderForeignKeys:
		return r.resolveFromForeignKeys(ctx, db, set, true), nil
	case OrderAlphabetical:
		return set.SortedTableNames(), nil
	default:
		return r.resolveAutomatic(ctx, db, set)
	}
}

// resolveAutomatic tries the order file, then foreign keys, then
// alphabetical, using the first strategy that succeeds.
func (r *TableOrderResolver) resolveAutomatic(ctx context.Context, db *sql.DB, set *model.TableSet) ([]model.TableName, error) {
	if _, err := os.Stat(r.OrderFilePath()); err == nil {
		return r.resolveFromFile(set)
	}

	if db != nil && r.dialect != nil {
		if order := r.resolveFromForeignKeys(ctx, db, set, false); order != nil {
			return order, nil
		}
	}

	return set.SortedTableNames(), nil
}

// resolveFromFile reads the order file: one table name per line, blank lines
// and lines starting with '#' ignored, matched against actual table names
// ignoring case. Tables missing from the file keep their declared order
// after the listed ones.
func (r *TableOrderResolver) resolveFromFile(set *model.TableSet) ([]model.TableName, error) {
	path := r.OrderFilePath()
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrOrderFileNotFound, path)
		}
		return nil, NewErrorContext("order file read", path).Error(err)
	}
	defer file.Close()

	ordered := make([]model.TableName, 0, set.Len())
	seen := make(map[string]struct{}, set.Len())

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		table, ok := set.Lookup(line)
		if !ok {
			// Names not present in the dataset are ignored; the file may
			// list the whole schema.
			continue
		}
		key := strings.ToLower(table.Name().String())
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ordered = append(ordered, table.Name())
	}
	if err := scanner.Err(); err != nil {
		return nil, NewErrorContext("order file read", path).Error(err)
	}

	for _, name := range set.TableNames() {
		if _, ok := seen[strings.ToLower(name.String())]; !ok {
			ordered = append(ordered, name)
		}
	}
	return ordered, nil
}

// resolveFromForeignKeys sorts tables so every referenced parent precedes
// its dependents. Cycles fall back to the set's declared order. When
// metadata cannot be read the behavior depends on the caller: the explicit
// strategy falls back to declared order, the automatic cascade moves on to
// the next strategy (nil return).
func (r *TableOrderResolver) resolveFromForeignKeys(ctx context.Context, db *sql.DB, set *model.TableSet, declaredOnFailure bool) []model.TableName {
	names := set.TableNames()
	if r.dialect == nil || db == nil {
		if declaredOnFailure {
			return names
		}
		return nil
	}

	fks, err := r.dialect.ForeignKeys(ctx, db, names)
	if err != nil {
		if declaredOnFailure {
			return names
		}
		return nil
	}

	order, ok := topologicalOrder(names, fks)
	if !ok {
		// Cycle among the tables; never fail the operation for this.
		return names
	}
	return order
}

// topologicalOrder runs Kahn's algorithm over the FK edges, parent tables
// first. The declared order breaks ties so the result is deterministic.
// Returns ok=false when the edges contain a cycle.
func topologicalOrder(names []model.TableName, fks []ForeignKey) ([]model.TableName, bool) {
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[strings.ToLower(name.String())] = i
	}

	inDegree := make([]int, len(names))
	dependents := make([][]int, len(names))
	edgeSeen := make(map[[2]int]struct{}, len(fks))
	for _, fk := range fks {
		child, okChild := index[strings.ToLower(fk.Table)]
		parent, okParent := index[strings.ToLower(fk.RefTable)]
		if !okChild || !okParent || child == parent {
			continue
		}
		key := [2]int{parent, child}
		if _, dup := edgeSeen[key]; dup {
			continue
		}
		edgeSeen[key] = struct{}{}
		dependents[parent] = append(dependents[parent], child)
		inDegree[child]++
	}

	order := make([]model.TableName, 0, len(names))
	ready := make([]int, 0, len(names))
	for i := range names {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, names[i])
		for _, child := range dependents[i] {
			inDegree[child]--
			if inDegree[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	if len(order) != len(names) {
		return nil, false
	}
	return order, true
}

// EnsureOrderFile writes a default load-order file, sorted alphabetically by
// table name, next to the dataset when none exists. It returns the file path.
func (r *TableOrderResolver) EnsureOrderFile(set *model.TableSet) (string, error) {
	path := r.OrderFilePath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", NewErrorContext("order file stat", path).Error(err)
	}

	var sb strings.Builder
	sb.WriteString("# One table name per line. Lines starting with '#' are ignored.\n")
	for _, name := range set.SortedTableNames() {
		sb.WriteString(name.String())
		sb.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return "", NewErrorContext("order file write", path).Error(err)
	}
	return path, nil
}

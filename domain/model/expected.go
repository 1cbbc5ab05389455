package model

import "strings"

// ExpectedTableSet pairs a TableSet with excluded column names and per-column
// comparison strategies. It is built once per verification call by combining
// the global and per-call exclusion and strategy maps.
type ExpectedTableSet struct {
	set        *TableSet
	exclusions map[string]struct{}
	strategies map[string]ComparisonStrategy
}

// NewExpectedTableSet creates an ExpectedTableSet. Exclusion and strategy
// column names match ignoring case.
func NewExpectedTableSet(set *TableSet, exclusions []string, strategies map[string]ComparisonStrategy) *ExpectedTableSet {
	excluded := make(map[string]struct{}, len(exclusions))
	for _, col := range exclusions {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		excluded[strings.ToLower(col)] = struct{}{}
	}

	strat := make(map[string]ComparisonStrategy, len(strategies))
	for col, s := range strategies {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		strat[strings.ToLower(col)] = s
	}

	return &ExpectedTableSet{set: set, exclusions: excluded, strategies: strat}
}

// TableSet returns the expected dataset.
func (e *ExpectedTableSet) TableSet() *TableSet {
	return e.set
}

// Excluded reports whether the column is excluded from verification.
// Exclusion wins over any assigned strategy.
func (e *ExpectedTableSet) Excluded(col ColumnName) bool {
	_, ok := e.exclusions[strings.ToLower(col.String())]
	return ok
}

// Strategy returns the comparison strategy for the column, Strict when none
// is assigned.
func (e *ExpectedTableSet) Strategy(col ColumnName) ComparisonStrategy {
	if s, ok := e.strategies[strings.ToLower(col.String())]; ok {
		return s
	}
	return Strict
}

package model

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
)

// StrategyKind enumerates the per-column comparison rules.
type StrategyKind int

const (
	// StrategyStrict compares values exactly after canonicalizing NULL.
	StrategyStrict StrategyKind = iota
	// StrategyIgnore skips the column entirely.
	StrategyIgnore
	// StrategyNumeric compares both sides by numeric value.
	StrategyNumeric
	// StrategyCaseInsensitive compares strings ignoring case.
	StrategyCaseInsensitive
	// StrategyTimestampFlexible compares timestamps in UTC ignoring
	// sub-second precision.
	StrategyTimestampFlexible
	// StrategyNotNull passes when the actual value is non-NULL.
	StrategyNotNull
	// StrategyRegex passes when the actual value matches a pattern.
	StrategyRegex
)

// String returns the strategy kind name.
func (k StrategyKind) String() string {
	switch k {
	case StrategyStrict:
		return "STRICT"
	case StrategyIgnore:
		return "IGNORE"
	case StrategyNumeric:
		return "NUMERIC"
	case StrategyCaseInsensitive:
		return "CASE_INSENSITIVE"
	case StrategyTimestampFlexible:
		return "TIMESTAMP_FLEXIBLE"
	case StrategyNotNull:
		return "NOT_NULL"
	case StrategyRegex:
		return "REGEX"
	default:
		return "UNKNOWN"
	}
}

// ComparisonStrategy is a per-column comparison rule. Only the REGEX variant
// carries a payload: its compiled pattern.
type ComparisonStrategy struct {
	kind    StrategyKind
	pattern *regexp.Regexp
}

// Predefined strategies without payload.
var (
	Strict            = ComparisonStrategy{kind: StrategyStrict}
	Ignore            = ComparisonStrategy{kind: StrategyIgnore}
	Numeric           = ComparisonStrategy{kind: StrategyNumeric}
	CaseInsensitive   = ComparisonStrategy{kind: StrategyCaseInsensitive}
	TimestampFlexible = ComparisonStrategy{kind: StrategyTimestampFlexible}
	NotNull           = ComparisonStrategy{kind: StrategyNotNull}
)

// NewRegexStrategy creates a REGEX strategy. The pattern must be non-empty
// and must compile.
func NewRegexStrategy(pattern string) (ComparisonStrategy, error) {
	if strings.TrimSpace(pattern) == "" {
		return ComparisonStrategy{}, ErrEmptyPattern
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return ComparisonStrategy{}, fmt.Errorf("model: invalid regex strategy pattern %q: %w", pattern, err)
	}
	return ComparisonStrategy{kind: StrategyRegex, pattern: compiled}, nil
}

// Kind returns the strategy kind.
func (s ComparisonStrategy) Kind() StrategyKind {
	return s.kind
}

// String returns the strategy name; REGEX includes the pattern.
func (s ComparisonStrategy) String() string {
	if s.kind == StrategyRegex && s.pattern != nil {
		return fmt.Sprintf("REGEX(%s)", s.pattern.String())
	}
	return s.kind.String()
}

// Matches reports whether the actual value satisfies the strategy against
// the expected value. NULL handling is total: both NULL compares equal under
// value strategies, one-sided NULL does not.
func (s ComparisonStrategy) Matches(expected, actual CellValue) bool {
	switch s.kind {
	case StrategyIgnore:
		return true
	case StrategyNotNull:
		return !actual.IsNull()
	case StrategyRegex:
		if actual.IsNull() || s.pattern == nil {
			return false
		}
		return s.pattern.MatchString(actual.String())
	}

	if expected.IsNull() || actual.IsNull() {
		return expected.IsNull() == actual.IsNull()
	}

	switch s.kind {
	case StrategyNumeric:
		return numericEqual(expected.String(), actual.String())
	case StrategyCaseInsensitive:
		return strings.EqualFold(expected.String(), actual.String())
	case StrategyTimestampFlexible:
		return timestampEqual(expected.String(), actual.String())
	default:
		return expected.Equal(actual)
	}
}

// numericEqual compares two decimal strings by value, tolerating differing
// representations such as "1" vs "1.0".
func numericEqual(a, b string) bool {
	ra, okA := new(big.Rat).SetString(strings.TrimSpace(a))
	rb, okB := new(big.Rat).SetString(strings.TrimSpace(b))
	if !okA || !okB {
		return false
	}
	return ra.Cmp(rb) == 0
}

// timestampPatterns lists the accepted timestamp shapes. Each regexp guards
// one or more time.Parse layouts for the same shape.
var timestampPatterns = []struct {
	pattern *regexp.Regexp
	formats []string
}{
	// ISO8601 with timezone
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`),
		[]string{time.RFC3339Nano, time.RFC3339},
	},
	// ISO8601 without timezone
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"},
	},
	// Date and time with space, the common SQL shape
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(\.\d+)?( ?(Z|[+-]\d{2}:?\d{2}))?$`),
		[]string{
			"2006-01-02 15:04:05.999999999Z07:00",
			"2006-01-02 15:04:05.999999999 Z07:00",
			"2006-01-02 15:04:05.999999999-0700",
			"2006-01-02 15:04:05.999999999",
			"2006-01-02 15:04:05",
		},
	},
	// Date only
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		[]string{"2006-01-02"},
	},
}

// parseTimestamp parses v against the known timestamp shapes. Values without
// a zone are interpreted as UTC.
func parseTimestamp(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, tp := range timestampPatterns {
		if !tp.pattern.MatchString(v) {
			continue
		}
		for _, format := range tp.formats {
			if t, err := time.Parse(format, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// timestampEqual compares two timestamp strings in UTC, ignoring sub-second
// precision.
func timestampEqual(a, b string) bool {
	ta, okA := parseTimestamp(a)
	tb, okB := parseTimestamp(b)
	if !okA || !okB {
		return false
	}
	return ta.UTC().Truncate(time.Second).Equal(tb.UTC().Truncate(time.Second))
}

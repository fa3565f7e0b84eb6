package scoring

import (
	"strconv"
	"strings"
)

// Comparator decides whether a product attribute value satisfies the value
// requested in the query.
type Comparator interface {
	Match(queryValue, productValue string) bool
}

// ComparatorFunc adapts a function to the Comparator interface.
type ComparatorFunc func(queryValue, productValue string) bool

func (f ComparatorFunc) Match(queryValue, productValue string) bool {
	return f(queryValue, productValue)
}

// Built-in comparator names accepted in tenant attribute rules.
const (
	ComparatorExact        = "exact"
	ComparatorNumericRange = "numeric_range"
	ComparatorSetOverlap   = "set_overlap"
)

// exactMatch compares case-insensitively after trimming whitespace.
func exactMatch(queryValue, productValue string) bool {
	return strings.EqualFold(strings.TrimSpace(queryValue), strings.TrimSpace(productValue))
}

// numericRangeMatch treats the query value as "min-max" (or a single number)
// and matches when the product value parses into that range.
func numericRangeMatch(queryValue, productValue string) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(productValue), 64)
	if err != nil {
		return false
	}

	q := strings.TrimSpace(queryValue)
	if lo, hi, ok := strings.Cut(q, "-"); ok && lo != "" {
		min, errLo := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		max, errHi := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if errLo != nil || errHi != nil {
			return false
		}
		return v >= min && v <= max
	}

	n, err := strconv.ParseFloat(q, 64)
	if err != nil {
		return false
	}
	return v == n
}

// setOverlapMatch matches when the comma-separated value sets intersect.
func setOverlapMatch(queryValue, productValue string) bool {
	query := splitSet(queryValue)
	if len(query) == 0 {
		return false
	}
	for pv := range splitSet(productValue) {
		if _, ok := query[pv]; ok {
			return true
		}
	}
	return false
}

func splitSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out[part] = struct{}{}
		}
	}
	return out
}

// Registry resolves comparator names from tenant attribute rules. Unknown or
// empty names fall back to exact matching.
type Registry struct {
	comparators map[string]Comparator
}

// NewRegistry returns a registry with the built-in comparators.
func NewRegistry() *Registry {
	return &Registry{comparators: map[string]Comparator{
		ComparatorExact:        ComparatorFunc(exactMatch),
		ComparatorNumericRange: ComparatorFunc(numericRangeMatch),
		ComparatorSetOverlap:   ComparatorFunc(setOverlapMatch),
	}}
}

// Register adds or replaces a named comparator.
func (r *Registry) Register(name string, c Comparator) {
	r.comparators[name] = c
}

// Lookup returns the comparator for name, defaulting to exact.
func (r *Registry) Lookup(name string) Comparator {
	if c, ok := r.comparators[name]; ok {
		return c
	}
	return r.comparators[ComparatorExact]
}

// Package query defines the structured half of a parsed search request:
// predicates over profiled attributes plus the semantic residual.
package query

import "fmt"

// MaxPredicates bounds the number of predicates per parsed query.
const MaxPredicates = 32

// Predicate is a single structured filter clause. The operator is implied by
// the constructor: equality/IN for text, range for numeric, set-overlap for
// multi-valued attributes.
type Predicate struct {
	attribute string
	values    []string
	overlap   bool
	gte       *float64
	lte       *float64
}

// NewMatch creates an equality/IN predicate on a scalar text attribute.
func NewMatch(attribute string, values ...string) (Predicate, error) {
	if attribute == "" {
		return Predicate{}, fmt.Errorf("predicate attribute is required")
	}
	if len(values) == 0 {
		return Predicate{}, fmt.Errorf("match predicate on %q requires at least one value", attribute)
	}
	return Predicate{attribute: attribute, values: values}, nil
}

// NewOverlap creates a set-overlap predicate on a multi-valued attribute:
// it matches when the item's value set and the given set intersect.
// Plain membership is semantically wrong for multi-valued columns, so
// overlap is a distinct predicate, never folded into NewMatch.
func NewOverlap(attribute string, values ...string) (Predicate, error) {
	if attribute == "" {
		return Predicate{}, fmt.Errorf("predicate attribute is required")
	}
	if len(values) == 0 {
		return Predicate{}, fmt.Errorf("overlap predicate on %q requires at least one value", attribute)
	}
	return Predicate{attribute: attribute, values: values, overlap: true}, nil
}

// NewRange creates an inclusive numeric range predicate. At least one bound
// is required.
func NewRange(attribute string, gte, lte *float64) (Predicate, error) {
	if attribute == "" {
		return Predicate{}, fmt.Errorf("predicate attribute is required")
	}
	if gte == nil && lte == nil {
		return Predicate{}, fmt.Errorf("range predicate on %q requires at least one bound", attribute)
	}
	if gte != nil && lte != nil && *gte > *lte {
		return Predicate{}, fmt.Errorf("range predicate on %q has gte > lte", attribute)
	}
	return Predicate{attribute: attribute, gte: gte, lte: lte}, nil
}

// Attribute returns the attribute name.
func (p Predicate) Attribute() string { return p.attribute }

// Values returns the match or overlap values.
func (p Predicate) Values() []string { return p.values }

// GTE returns the inclusive lower bound.
func (p Predicate) GTE() *float64 { return p.gte }

// LTE returns the inclusive upper bound.
func (p Predicate) LTE() *float64 { return p.lte }

// IsMatch reports whether this is an equality/IN predicate.
func (p Predicate) IsMatch() bool { return len(p.values) > 0 && !p.overlap }

// IsOverlap reports whether this is a set-overlap predicate.
func (p Predicate) IsOverlap() bool { return p.overlap }

// IsRange reports whether this is a numeric range predicate.
func (p Predicate) IsRange() bool { return p.gte != nil || p.lte != nil }

// Parsed is the output of query understanding: validated structured filters
// plus the free-text semantic residual. The residual is never empty for a
// non-empty input query.
type Parsed struct {
	Filters  []Predicate
	Semantic string
}

// HasFilters reports whether any structured predicates survived validation.
func (p Parsed) HasFilters() bool { return len(p.Filters) > 0 }

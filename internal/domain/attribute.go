package domain

import (
	"sort"
	"time"
)

// Kind classifies the value shape of a catalog attribute.
type Kind string

const (
	// KindText is a scalar string attribute.
	KindText Kind = "text"
	// KindNumeric is a scalar numeric attribute.
	KindNumeric Kind = "numeric"
	// KindArrayText is a multi-valued string attribute (e.g. tags).
	KindArrayText Kind = "array_text"
)

// CardinalityClass classifies an attribute by its distinct-value count.
type CardinalityClass string

const (
	// CardinalityLow marks attributes whose distinct values fit an enumeration.
	CardinalityLow CardinalityClass = "low"
	// CardinalityHigh marks attributes searched semantically instead.
	CardinalityHigh CardinalityClass = "high"
)

// CombinedField is the synthesized embedding field concatenating the salient
// attributes of an item.
const CombinedField = "combined"

// Descriptor profiles a single catalog attribute.
// DistinctValues is populated iff Class is CardinalityLow; Min/Max are
// populated iff Kind is KindNumeric.
type Descriptor struct {
	Name           string           `json:"name"`
	Kind           Kind             `json:"kind"`
	Cardinality    int              `json:"cardinality"`
	Class          CardinalityClass `json:"class"`
	DistinctValues []string         `json:"distinct_values,omitempty"`
	Min            *float64         `json:"min,omitempty"`
	Max            *float64         `json:"max,omitempty"`
}

// Embeddable reports whether the attribute carries per-item embeddings:
// high-cardinality attributes bearing text.
func (d Descriptor) Embeddable() bool {
	if d.Class != CardinalityHigh {
		return false
	}
	return d.Kind == KindText || d.Kind == KindArrayText
}

// MetadataTable is the profiled schema of one tenant's catalog.
// It is immutable between re-profiles and replaced wholesale, never merged.
type MetadataTable struct {
	Attributes map[string]Descriptor `json:"attributes"`
	ItemCount  int                   `json:"item_count"`
	ProfiledAt time.Time             `json:"profiled_at"`
	// Partial flags a table built from a non-exhaustive scan.
	Partial bool `json:"partial,omitempty"`
}

// Descriptor returns the descriptor for an attribute name.
func (m MetadataTable) Descriptor(name string) (Descriptor, bool) {
	d, ok := m.Attributes[name]
	return d, ok
}

// EmbeddingFields returns the embedding field names in deterministic order:
// the embeddable attributes sorted by name, then the combined field.
func (m MetadataTable) EmbeddingFields() []string {
	fields := make([]string, 0, len(m.Attributes)+1)
	for name, d := range m.Attributes {
		if d.Embeddable() {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return append(fields, CombinedField)
}

// FilterableAttributes returns the attributes usable in structured predicates,
// sorted by name: every numeric attribute plus low-cardinality text/array ones.
func (m MetadataTable) FilterableAttributes() []Descriptor {
	out := make([]Descriptor, 0, len(m.Attributes))
	for _, d := range m.Attributes {
		if d.Kind == KindNumeric || d.Class == CardinalityLow {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

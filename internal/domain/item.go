package domain

import (
	"strconv"
	"strings"
)

// Value is one attribute value of a catalog item: a tagged union over the
// three attribute kinds. Items are shaped only by the metadata table, so
// values are validated against it at read time rather than at compile time.
type Value struct {
	kind Kind
	text string
	num  float64
	list []string
}

// TextValue creates a scalar text value.
func TextValue(s string) Value { return Value{kind: KindText, text: s} }

// NumericValue creates a scalar numeric value.
func NumericValue(f float64) Value { return Value{kind: KindNumeric, num: f} }

// ListValue creates a multi-valued text value.
func ListValue(items ...string) Value { return Value{kind: KindArrayText, list: items} }

// Kind returns the value kind.
func (v Value) Kind() Kind { return v.kind }

// Text returns the scalar text.
func (v Value) Text() string { return v.text }

// Number returns the scalar number.
func (v Value) Number() float64 { return v.num }

// List returns the multi-valued strings.
func (v Value) List() []string { return v.list }

// IsZero reports whether the value is unset.
func (v Value) IsZero() bool { return v.kind == "" }

// String renders the value as embedding text.
func (v Value) String() string {
	switch v.kind {
	case KindNumeric:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindArrayText:
		return strings.Join(v.list, " ")
	default:
		return v.text
	}
}

// Item is a catalog item: an opaque identifier plus an open attribute
// mapping. The engine only reads items; the catalog store owns them.
type Item struct {
	ID    string
	Attrs map[string]Value
}

// Attr returns the named attribute value.
func (it Item) Attr(name string) (Value, bool) {
	v, ok := it.Attrs[name]
	return v, ok
}

// AttrText returns the named attribute rendered as text, or "" when absent.
func (it Item) AttrText(name string) string {
	v, ok := it.Attrs[name]
	if !ok {
		return ""
	}
	return v.String()
}

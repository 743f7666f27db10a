package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopgrep/shopgrep/internal/domain"
)

const systemPrompt = `You extract structured filters from a shopping request.

You are given the catalog schema: the filterable attributes, their kinds,
and their allowed values or numeric bounds. Split the user's request into:
1. "filters": structured predicates on listed attributes only.
2. "semantic_query": the remaining free-text intent, for similarity search.

Rules:
- Only use attributes from the schema. Never invent attributes or values.
- For text and multi-valued attributes, set "values" to one or more of the
  allowed values.
- For numeric attributes, set "min" and/or "max" (inclusive bounds).
- Everything not expressible as a filter belongs in "semantic_query".

Respond with a JSON object:
{"filters": [{"attribute": "...", "values": ["..."], "min": 0, "max": 0}], "semantic_query": "..."}
Omit "values" for numeric filters and "min"/"max" for text filters.`

// userPrompt renders the schema and the raw request for the model.
func userPrompt(text string, meta *domain.MetadataTable) string {
	var b strings.Builder
	b.WriteString("Catalog schema:\n")

	for _, d := range meta.FilterableAttributes() {
		b.WriteString("- ")
		b.WriteString(d.Name)
		b.WriteString(" (")
		b.WriteString(string(d.Kind))
		b.WriteString(")")
		switch {
		case d.Kind == domain.KindNumeric && d.Min != nil && d.Max != nil:
			fmt.Fprintf(&b, " range [%s, %s]",
				strconv.FormatFloat(*d.Min, 'f', -1, 64),
				strconv.FormatFloat(*d.Max, 'f', -1, 64))
		case len(d.DistinctValues) > 0:
			b.WriteString(" values: ")
			b.WriteString(strings.Join(d.DistinctValues, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nRequest: ")
	b.WriteString(text)
	return b.String()
}

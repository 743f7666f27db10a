package index

import (
	"regexp"
	"strings"

	"github.com/shopgrep/shopgrep/internal/domain"
)

// Combined-text synthesis limits.
const (
	// maxCombinedLen caps the synthesized text passed to the embedder.
	maxCombinedLen = 8000
	// minCombinedLen is the shortest text still worth a vector; shorter
	// items carry no usable semantic signal.
	minCombinedLen = 20
)

// combinedDelimiter joins the combined-text parts.
const combinedDelimiter = " | "

// combinedGroups lists, in fixed order, the attribute names contributing to
// the combined text. Within a group the first attribute the item actually
// carries wins.
var combinedGroups = [][]string{
	{"title", "name", "product_name"},
	{"category", "product_type", "type"},
	{"tags"},
	{"vendor", "brand"},
	{"options", "material"},
	{"description", "body", "body_html"},
}

var markupRe = regexp.MustCompile(`<[^>]*>`)

// combinedText synthesizes the per-item embedding text. The part order and
// delimiter are stable, so the same item always yields the same text.
func combinedText(item domain.Item) string {
	parts := make([]string, 0, len(combinedGroups))
	for _, group := range combinedGroups {
		for _, name := range group {
			v, ok := item.Attr(name)
			if !ok || v.IsZero() {
				continue
			}
			if text := cleanText(v.String()); text != "" {
				parts = append(parts, text)
			}
			break
		}
	}

	combined := strings.Join(parts, combinedDelimiter)
	if len(combined) > maxCombinedLen {
		combined = combined[:maxCombinedLen]
	}
	return combined
}

// cleanText strips markup and collapses whitespace.
func cleanText(s string) string {
	s = markupRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

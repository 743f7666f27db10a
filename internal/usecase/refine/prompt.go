package refine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopgrep/shopgrep/internal/domain"
)

const systemPrompt = `You judge which retrieved products actually satisfy a
shopping request.

You are given the request and the top retrieved candidates with full
details. Select only the items that genuinely fit, order them best first,
and give each a one-sentence reason grounded in its details.

Rules:
- Only select items from the given candidates. Never invent item ids.
- Return at most the requested number of items.
- An empty selection is valid when nothing fits.

Respond with a JSON object:
{"results": [{"item_id": "...", "reason": "..."}]}`

// userPrompt renders the request, the cap, and the candidate details.
func userPrompt(originalQuery string, maxResults int, items []domain.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\nSelect at most %d items.\n\nCandidates:\n", originalQuery, maxResults)

	for _, item := range items {
		fmt.Fprintf(&b, "- item_id: %s\n", item.ID)
		names := make([]string, 0, len(item.Attrs))
		for name := range item.Attrs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: %s\n", name, item.Attrs[name].String())
		}
	}
	return b.String()
}

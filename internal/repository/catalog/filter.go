package catalog

import (
	"strings"

	"github.com/shopgrep/shopgrep/internal/db"
	"github.com/shopgrep/shopgrep/internal/domain/query"
)

// BuildQuery translates structured predicates into an FT.SEARCH query
// expression. Clauses are conjunctive. Match and overlap predicates both
// become TAG clauses: a TAG field over a JSON array indexes every element,
// so `@tags:{a|b}` already matches items whose tag set intersects {a, b}.
func BuildQuery(preds []query.Predicate) string {
	if len(preds) == 0 {
		return "*"
	}

	clauses := make([]string, 0, len(preds))
	for _, p := range preds {
		switch {
		case p.IsRange():
			clauses = append(clauses, db.NumericClause(p.Attribute(), p.GTE(), p.LTE()))
		default:
			clauses = append(clauses, db.TagClause(p.Attribute(), p.Values()))
		}
	}
	return strings.Join(clauses, " ")
}

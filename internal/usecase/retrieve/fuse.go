package retrieve

import (
	"sort"

	"github.com/shopgrep/shopgrep/internal/domain"
)

// fuse merges the SQL-matched set and the semantic hits into one ranking:
// one candidate per item, scored
//
//	sql_matched: sqlWeight + similarity*semWeight
//	otherwise:   similarity*semWeight
//
// with the best per-item similarity across embedding fields. Ordering is
// descending by combined score, ties broken by ascending item id so a
// fixed input always yields identical output.
func fuse(sqlIDs []string, hits []domain.FieldHit, sqlWeight, semWeight float64, limit int) []domain.Candidate {
	byID := make(map[string]*domain.Candidate, len(sqlIDs)+len(hits))

	for _, id := range sqlIDs {
		byID[id] = &domain.Candidate{ItemID: id, SQLMatched: true}
	}

	for _, hit := range hits {
		c := byID[hit.ItemID]
		if c == nil {
			c = &domain.Candidate{ItemID: hit.ItemID}
			byID[hit.ItemID] = c
		}
		if c.Semantic == nil || hit.Similarity > *c.Semantic {
			sim := hit.Similarity
			c.Semantic = &sim
		}
	}

	candidates := make([]domain.Candidate, 0, len(byID))
	for _, c := range byID {
		c.Combined = c.SemanticOr(0) * semWeight
		if c.SQLMatched {
			c.Combined += sqlWeight
		}
		candidates = append(candidates, *c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Combined != candidates[j].Combined {
			return candidates[i].Combined > candidates[j].Combined
		}
		return candidates[i].ItemID < candidates[j].ItemID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

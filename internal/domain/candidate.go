package domain

// Candidate is one fused retrieval hit. Exactly one candidate exists per
// item id in a Ranking; Semantic is nil when the item had no usable
// embedding signal, which scores as zero rather than erroring.
type Candidate struct {
	ItemID     string
	SQLMatched bool
	Semantic   *float64
	Combined   float64
}

// SemanticOr returns the semantic score, or def when absent.
func (c Candidate) SemanticOr(def float64) float64 {
	if c.Semantic == nil {
		return def
	}
	return *c.Semantic
}

// Funnel records the retrieval funnel sizes for one search, for
// observability: catalog, SQL-matched, semantic hits, fused.
type Funnel struct {
	CatalogSize  int
	SQLMatched   int
	SemanticHits int
	Fused        int
}

// Ranking is the ordered, deduplicated output of hybrid retrieval.
// Degraded marks a best-effort result produced with one backend down.
type Ranking struct {
	Candidates []Candidate
	Degraded   bool
	Funnel     Funnel
}

// FinalResult is one item of the precision-filtered answer.
type FinalResult struct {
	Item      Item
	Rank      int
	Rationale string
}

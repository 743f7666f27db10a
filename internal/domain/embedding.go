package domain

import (
	"context"
	"time"
)

// EmbeddingRecord is one persisted vector, keyed by (item, field).
// A missing record means "no semantic signal for that field" and is simply
// excluded from scoring, never an error.
type EmbeddingRecord struct {
	ItemID    string
	Field     string
	Vector    []float32
	UpdatedAt time.Time
}

// EmbeddingResult is the provider response for a batch of texts:
// one vector per input, in input order, plus token usage.
type EmbeddingResult struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes batches of texts.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) (EmbeddingResult, error)
}

// FieldHit is a single vector-search hit: one (item, field) pair with its
// similarity in [0,1]. An item with embeddings on several fields produces
// several hits; deduplication keeps the best one per item.
type FieldHit struct {
	ItemID     string
	Field      string
	Similarity float64
}

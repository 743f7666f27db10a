package retrieve

import (
	"context"

	"github.com/shopgrep/shopgrep/internal/domain"
	"github.com/shopgrep/shopgrep/internal/domain/query"
)

// CatalogSearcher serves the structured leg of retrieval.
type CatalogSearcher interface {
	SearchIDs(ctx context.Context, preds []query.Predicate, limit int) ([]string, error)
}

// EmbeddingSearcher serves the semantic leg of retrieval.
type EmbeddingSearcher interface {
	SearchKNN(ctx context.Context, vector []float32, fields, restrictIDs []string, k int) ([]domain.FieldHit, error)
}

// Embedder vectorizes the semantic residual.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) (domain.EmbeddingResult, error)
}

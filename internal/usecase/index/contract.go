package index

import (
	"context"

	"github.com/shopgrep/shopgrep/internal/domain"
)

// EmbeddingWriter persists computed vector records.
type EmbeddingWriter interface {
	UpsertRecords(ctx context.Context, records []domain.EmbeddingRecord) error
}

// Embedder vectorizes batches of texts.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) (domain.EmbeddingResult, error)
}

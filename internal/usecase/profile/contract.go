package profile

import (
	"context"

	"github.com/shopgrep/shopgrep/internal/domain"
)

// CatalogReader loads the full catalog for profiling.
type CatalogReader interface {
	ListAll(ctx context.Context) ([]domain.Item, error)
}

// MetadataWriter persists the profiled table atomically.
type MetadataWriter interface {
	Save(ctx context.Context, table *domain.MetadataTable) error
}

// CatalogIndexer rebuilds the structured search index from a new table.
type CatalogIndexer interface {
	EnsureIndex(ctx context.Context, meta *domain.MetadataTable) error
}

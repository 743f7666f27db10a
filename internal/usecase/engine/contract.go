package engine

import (
	"context"

	"github.com/shopgrep/shopgrep/internal/domain"
	"github.com/shopgrep/shopgrep/internal/domain/query"
	"github.com/shopgrep/shopgrep/internal/usecase/index"
)

// Parser turns free text into validated predicates plus a residual.
type Parser interface {
	Parse(ctx context.Context, text string, meta *domain.MetadataTable) (query.Parsed, error)
}

// Retriever runs hybrid retrieval over a parsed query.
type Retriever interface {
	Retrieve(ctx context.Context, parsed query.Parsed, meta *domain.MetadataTable) (domain.Ranking, error)
}

// Refiner applies the precision pass to a ranking.
type Refiner interface {
	Refine(ctx context.Context, ranking domain.Ranking, originalQuery string) ([]domain.FinalResult, error)
}

// Profiler rebuilds the metadata table from the catalog.
type Profiler interface {
	Profile(ctx context.Context) (*domain.MetadataTable, error)
}

// Indexer embeds catalog items per the metadata table.
type Indexer interface {
	Index(ctx context.Context, items []domain.Item, meta *domain.MetadataTable) (*index.Report, error)
}

// MetadataReader loads the current metadata table.
type MetadataReader interface {
	Load(ctx context.Context) (*domain.MetadataTable, error)
}

// CatalogReader loads the full catalog for indexing runs.
type CatalogReader interface {
	ListAll(ctx context.Context) ([]domain.Item, error)
}

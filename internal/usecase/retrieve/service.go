// Package retrieve runs hybrid retrieval: the structured and semantic legs
// execute concurrently against the same parsed query, then fuse into one
// deduplicated ranking.
package retrieve

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shopgrep/shopgrep/internal/domain"
	"github.com/shopgrep/shopgrep/internal/domain/query"
)

const (
	// maxSQLMatches bounds the structured leg's result set.
	maxSQLMatches = 1000
	// knnOverfetch widens KNN beyond the candidate limit so multi-field
	// duplicates still leave enough distinct items after deduplication.
	knnOverfetch = 3
	// maxPrefilterIDs is the largest SQL-matched set still inlined into
	// the KNN pre-filter expression.
	maxPrefilterIDs = 200
)

// Config holds retrieval settings.
type Config struct {
	CandidateLimit int
	SQLWeight      float64
	SemanticWeight float64
	// Prefilter restricts KNN to the SQL-matched set when that set is
	// small enough, trading recall outside the filters for precision.
	Prefilter bool
	// Timeout bounds both legs together; a leg cut off by expiry is
	// treated like any other leg failure. Zero disables the bound.
	Timeout time.Duration
}

// Service executes hybrid retrieval.
type Service struct {
	catalog   CatalogSearcher
	embedding EmbeddingSearcher
	embedder  Embedder
	cfg       Config
	logger    *zap.Logger
}

// New creates a retrieval service.
func New(cfg Config, catalog CatalogSearcher, embedding EmbeddingSearcher, embedder Embedder, logger *zap.Logger) *Service {
	return &Service{
		catalog:   catalog,
		embedding: embedding,
		embedder:  embedder,
		cfg:       cfg,
		logger:    logger,
	}
}

// Retrieve runs both legs and fuses their results. One failed leg degrades
// the ranking instead of failing it; both legs failing surfaces
// domain.ErrSearchUnavailable so callers can tell "unavailable" from
// "matched nothing".
func (s *Service) Retrieve(ctx context.Context, parsed query.Parsed, meta *domain.MetadataTable) (domain.Ranking, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	var (
		sqlIDs []string
		sqlErr error
	)

	sqlDone := make(chan struct{})
	go func() {
		defer close(sqlDone)
		if !parsed.HasFilters() {
			return
		}
		sqlIDs, sqlErr = s.catalog.SearchIDs(ctx, parsed.Filters, maxSQLMatches)
	}()

	// The semantic leg waits for the SQL leg only when prefiltering may
	// apply; otherwise both legs run fully in parallel.
	var restrictIDs []string
	if s.cfg.Prefilter && parsed.HasFilters() {
		<-sqlDone
		if sqlErr == nil && len(sqlIDs) > 0 && len(sqlIDs) <= maxPrefilterIDs {
			restrictIDs = sqlIDs
		}
	}

	hits, semErr := s.searchSemantic(ctx, parsed.Semantic, meta, restrictIDs)
	<-sqlDone

	if sqlErr != nil && semErr != nil {
		return domain.Ranking{}, fmt.Errorf("%w: sql: %w; semantic: %w",
			domain.ErrSearchUnavailable, sqlErr, semErr)
	}

	degraded := false
	if sqlErr != nil {
		s.logger.Warn("structured leg unavailable, degrading to semantic-only", zap.Error(sqlErr))
		sqlIDs = nil
		degraded = true
	}
	if semErr != nil {
		if !parsed.HasFilters() {
			// Nothing left to rank from: the request was purely semantic.
			return domain.Ranking{}, fmt.Errorf("%w: semantic: %w", domain.ErrSearchUnavailable, semErr)
		}
		s.logger.Warn("semantic leg unavailable, degrading to structured-only", zap.Error(semErr))
		hits = nil
		degraded = true
	}

	candidates := fuse(sqlIDs, hits, s.cfg.SQLWeight, s.cfg.SemanticWeight, s.cfg.CandidateLimit)

	return domain.Ranking{
		Candidates: candidates,
		Degraded:   degraded,
		Funnel: domain.Funnel{
			CatalogSize:  meta.ItemCount,
			SQLMatched:   len(sqlIDs),
			SemanticHits: len(hits),
			Fused:        len(candidates),
		},
	}, nil
}

// searchSemantic embeds the residual and runs KNN over every embedding
// field. An empty restriction searches the full catalog.
func (s *Service) searchSemantic(
	ctx context.Context, residual string, meta *domain.MetadataTable, restrictIDs []string,
) ([]domain.FieldHit, error) {
	result, err := s.embedder.EmbedBatch(ctx, []string{residual})
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	if len(result.Vectors) != 1 {
		return nil, fmt.Errorf("%d vectors for the query text: %w",
			len(result.Vectors), domain.ErrEmbeddingProvider)
	}

	k := s.cfg.CandidateLimit * knnOverfetch
	hits, err := s.embedding.SearchKNN(ctx, result.Vectors[0], meta.EmbeddingFields(), restrictIDs, k)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return hits, nil
}

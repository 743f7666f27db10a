// Package engine composes the retrieval pipeline: parse, retrieve, refine
// for queries; profile and index for catalog maintenance.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shopgrep/shopgrep/internal/domain"
	"github.com/shopgrep/shopgrep/internal/domain/query"
	"github.com/shopgrep/shopgrep/internal/metrics"
	"github.com/shopgrep/shopgrep/internal/usecase/index"
)

// Service is the hybrid retrieval engine facade.
type Service struct {
	parser    Parser
	retriever Retriever
	refiner   Refiner
	profiler  Profiler
	indexer   Indexer
	metadata  MetadataReader
	catalog   CatalogReader
	logger    *zap.Logger
}

// New creates the engine.
func New(
	parser Parser, retriever Retriever, refiner Refiner,
	profiler Profiler, indexer Indexer,
	metadata MetadataReader, catalog CatalogReader,
	logger *zap.Logger,
) *Service {
	return &Service{
		parser:    parser,
		retriever: retriever,
		refiner:   refiner,
		profiler:  profiler,
		indexer:   indexer,
		metadata:  metadata,
		catalog:   catalog,
		logger:    logger,
	}
}

// SearchResponse is the final answer to one search request.
type SearchResponse struct {
	Results  []domain.FinalResult
	Parsed   query.Parsed
	Degraded bool
	Funnel   domain.Funnel
}

// Search answers a natural-language product request end to end.
func (s *Service) Search(ctx context.Context, text string) (SearchResponse, error) {
	total := time.Now()

	meta, err := s.metadata.Load(ctx)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return SearchResponse{}, fmt.Errorf("load metadata: %w", err)
	}

	parsed, ranking, err := s.parseAndRetrieve(ctx, text, meta)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return SearchResponse{}, err
	}

	start := time.Now()
	results, err := s.refiner.Refine(ctx, ranking, text)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return SearchResponse{}, fmt.Errorf("refine: %w", err)
	}
	metrics.SearchDuration.WithLabelValues("refine").Observe(time.Since(start).Seconds())

	status := "ok"
	if ranking.Degraded {
		status = "degraded"
	}
	metrics.SearchRequestsTotal.WithLabelValues(status).Inc()
	metrics.SearchDuration.WithLabelValues("total").Observe(time.Since(total).Seconds())
	metrics.SearchFunnelSize.WithLabelValues("final").Observe(float64(len(results)))

	s.logger.Info("search completed",
		zap.Int("filters", len(parsed.Filters)),
		zap.Int("candidates", ranking.Funnel.Fused),
		zap.Int("results", len(results)),
		zap.Bool("degraded", ranking.Degraded),
	)

	return SearchResponse{
		Results:  results,
		Parsed:   parsed,
		Degraded: ranking.Degraded,
		Funnel:   ranking.Funnel,
	}, nil
}

// ExplainResponse exposes the intermediate pipeline stages of one query.
type ExplainResponse struct {
	Parsed   query.Parsed
	Ranking  domain.Ranking
	Degraded bool
}

// Explain runs parse and retrieve without the precision pass, for
// inspecting what a query resolves to.
func (s *Service) Explain(ctx context.Context, text string) (ExplainResponse, error) {
	meta, err := s.metadata.Load(ctx)
	if err != nil {
		return ExplainResponse{}, fmt.Errorf("load metadata: %w", err)
	}

	parsed, ranking, err := s.parseAndRetrieve(ctx, text, meta)
	if err != nil {
		return ExplainResponse{}, err
	}

	return ExplainResponse{Parsed: parsed, Ranking: ranking, Degraded: ranking.Degraded}, nil
}

// Reindex re-profiles the catalog and rebuilds its embeddings.
func (s *Service) Reindex(ctx context.Context) (*index.Report, error) {
	meta, err := s.profiler.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}

	items, err := s.catalog.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	report, err := s.indexer.Index(ctx, items, meta)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	return report, nil
}

func (s *Service) parseAndRetrieve(
	ctx context.Context, text string, meta *domain.MetadataTable,
) (query.Parsed, domain.Ranking, error) {
	start := time.Now()
	parsed, err := s.parser.Parse(ctx, text, meta)
	if err != nil {
		return query.Parsed{}, domain.Ranking{}, fmt.Errorf("parse: %w", err)
	}
	metrics.SearchDuration.WithLabelValues("parse").Observe(time.Since(start).Seconds())

	start = time.Now()
	ranking, err := s.retriever.Retrieve(ctx, parsed, meta)
	if err != nil {
		return query.Parsed{}, domain.Ranking{}, fmt.Errorf("retrieve: %w", err)
	}
	metrics.SearchDuration.WithLabelValues("retrieve").Observe(time.Since(start).Seconds())

	metrics.SearchFunnelSize.WithLabelValues("sql").Observe(float64(ranking.Funnel.SQLMatched))
	metrics.SearchFunnelSize.WithLabelValues("semantic").Observe(float64(ranking.Funnel.SemanticHits))
	metrics.SearchFunnelSize.WithLabelValues("fused").Observe(float64(ranking.Funnel.Fused))

	return parsed, ranking, nil
}

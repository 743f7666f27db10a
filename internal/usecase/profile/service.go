// Package profile infers the schema of an arbitrary catalog: per-attribute
// kind, cardinality class, distinct values, and numeric bounds.
package profile

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shopgrep/shopgrep/internal/domain"
)

// Config holds profiling settings.
type Config struct {
	// CardinalityThreshold is the largest distinct-value count still
	// classified low-cardinality.
	CardinalityThreshold int
}

// Service profiles the catalog into a metadata table.
type Service struct {
	catalog   CatalogReader
	metadata  MetadataWriter
	indexer   CatalogIndexer
	threshold int
	logger    *zap.Logger
}

// New creates a profiling service.
func New(cfg Config, catalog CatalogReader, metadata MetadataWriter, indexer CatalogIndexer, logger *zap.Logger) *Service {
	return &Service{
		catalog:   catalog,
		metadata:  metadata,
		indexer:   indexer,
		threshold: cfg.CardinalityThreshold,
		logger:    logger,
	}
}

// Profile scans the full catalog, builds a fresh metadata table, persists
// it, and rebuilds the structured index to match. An empty catalog yields
// an empty table, not an error.
func (s *Service) Profile(ctx context.Context) (*domain.MetadataTable, error) {
	items, err := s.catalog.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	table := buildTable(items, s.threshold)

	if err := s.metadata.Save(ctx, table); err != nil {
		return nil, fmt.Errorf("persist metadata: %w", err)
	}
	if err := s.indexer.EnsureIndex(ctx, table); err != nil {
		return nil, fmt.Errorf("rebuild catalog index: %w", err)
	}

	s.logger.Info("catalog profiled",
		zap.Int("items", table.ItemCount),
		zap.Int("attributes", len(table.Attributes)),
	)
	return table, nil
}

// attrStats accumulates observations for one attribute across the catalog.
type attrStats struct {
	textSeen    bool
	numericSeen bool
	arraySeen   bool
	distinct    map[string]struct{}
	min         float64
	max         float64
	hasBounds   bool
}

func buildTable(items []domain.Item, threshold int) *domain.MetadataTable {
	stats := make(map[string]*attrStats)

	for _, item := range items {
		for name, v := range item.Attrs {
			st := stats[name]
			if st == nil {
				st = &attrStats{distinct: make(map[string]struct{})}
				stats[name] = st
			}
			observe(st, v)
		}
	}

	table := &domain.MetadataTable{
		Attributes: make(map[string]domain.Descriptor, len(stats)),
		ItemCount:  len(items),
		ProfiledAt: time.Now().UTC(),
	}

	for name, st := range stats {
		table.Attributes[name] = describe(name, st, threshold)
	}
	return table
}

func observe(st *attrStats, v domain.Value) {
	switch v.Kind() {
	case domain.KindNumeric:
		st.numericSeen = true
		n := v.Number()
		if !st.hasBounds || n < st.min {
			st.min = n
		}
		if !st.hasBounds || n > st.max {
			st.max = n
		}
		st.hasBounds = true
		st.distinct[strconv.FormatFloat(n, 'f', -1, 64)] = struct{}{}
	case domain.KindArrayText:
		st.arraySeen = true
		for _, el := range v.List() {
			st.distinct[el] = struct{}{}
		}
	default:
		st.textSeen = true
		st.distinct[v.Text()] = struct{}{}
	}
}

// describe resolves the final descriptor. An attribute with mixed scalar
// kinds (numbers in some items, text in others) is classified text, so a
// stray unparseable value never fails the profile.
func describe(name string, st *attrStats, threshold int) domain.Descriptor {
	d := domain.Descriptor{
		Name:        name,
		Kind:        resolveKind(st),
		Cardinality: len(st.distinct),
	}

	if d.Cardinality <= threshold {
		d.Class = domain.CardinalityLow
		values := make([]string, 0, len(st.distinct))
		for v := range st.distinct {
			values = append(values, v)
		}
		sort.Strings(values)
		d.DistinctValues = values
	} else {
		d.Class = domain.CardinalityHigh
	}

	if d.Kind == domain.KindNumeric && st.hasBounds {
		minV, maxV := st.min, st.max
		d.Min = &minV
		d.Max = &maxV
	}
	return d
}

func resolveKind(st *attrStats) domain.Kind {
	switch {
	case st.arraySeen && !st.textSeen && !st.numericSeen:
		return domain.KindArrayText
	case st.numericSeen && !st.textSeen && !st.arraySeen:
		return domain.KindNumeric
	default:
		return domain.KindText
	}
}

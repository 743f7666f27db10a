// Package parse turns a free-text shopping request into validated
// structured predicates plus a semantic residual. Language understanding is
// delegated to a chat provider; every returned predicate is re-validated
// against the metadata table before use.
package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/shopgrep/shopgrep/internal/domain"
	"github.com/shopgrep/shopgrep/internal/domain/query"
)

// maxAttempts bounds re-asks on malformed provider JSON.
const maxAttempts = 3

// Service parses search requests.
type Service struct {
	chat   ChatProvider
	logger *zap.Logger
}

// New creates a parsing service.
func New(chat ChatProvider, logger *zap.Logger) *Service {
	return &Service{chat: chat, logger: logger}
}

// rawResponse is the provider's JSON shape before validation.
type rawResponse struct {
	Filters []rawFilter `json:"filters"`
	// SemanticQuery is the residual free-text intent.
	SemanticQuery string `json:"semantic_query"`
}

type rawFilter struct {
	Attribute string   `json:"attribute"`
	Values    []string `json:"values"`
	Min       *float64 `json:"min"`
	Max       *float64 `json:"max"`
}

// Parse extracts structured filters and the semantic residual from text.
// Provider failures and persistently malformed output are fatal for the
// request and surface as domain.ErrParseFailed; invalid individual
// predicates are dropped silently, never failing the parse.
func (s *Service) Parse(ctx context.Context, text string, meta *domain.MetadataTable) (query.Parsed, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return query.Parsed{}, fmt.Errorf("empty query: %w", domain.ErrParseFailed)
	}

	raw, err := s.complete(ctx, text, meta)
	if err != nil {
		return query.Parsed{}, err
	}

	parsed := query.Parsed{
		Filters:  s.validateFilters(raw.Filters, meta),
		Semantic: strings.TrimSpace(raw.SemanticQuery),
	}

	// Semantic search must always have input; fall back to the raw text
	// when the provider returns no residual.
	if parsed.Semantic == "" {
		parsed.Semantic = text
	}
	return parsed, nil
}

// complete asks the provider, re-asking on malformed JSON up to maxAttempts.
func (s *Service) complete(ctx context.Context, text string, meta *domain.MetadataTable) (rawResponse, error) {
	user := userPrompt(text, meta)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		content, err := s.chat.CompleteJSON(ctx, "parse", systemPrompt, user)
		if err != nil {
			return rawResponse{}, fmt.Errorf("query parse: %w: %w", domain.ErrParseFailed, err)
		}

		var raw rawResponse
		if err := json.Unmarshal([]byte(content), &raw); err != nil {
			lastErr = err
			s.logger.Warn("malformed parse response",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}
		return raw, nil
	}
	return rawResponse{}, fmt.Errorf("query parse: malformed response after %d attempts: %w: %w",
		maxAttempts, domain.ErrParseFailed, lastErr)
}

// validateFilters keeps only predicates consistent with the metadata table:
// known attribute, operator compatible with the attribute kind, and for
// numeric ranges a non-vacuous intersection with the attribute's bounds.
func (s *Service) validateFilters(raw []rawFilter, meta *domain.MetadataTable) []query.Predicate {
	preds := make([]query.Predicate, 0, len(raw))
	for _, f := range raw {
		if len(preds) == query.MaxPredicates {
			break
		}

		d, ok := meta.Descriptor(f.Attribute)
		if !ok {
			s.logger.Debug("dropping predicate on unknown attribute", zap.String("attribute", f.Attribute))
			continue
		}

		p, ok := s.buildPredicate(f, d)
		if !ok {
			continue
		}
		preds = append(preds, p)
	}
	return preds
}

func (s *Service) buildPredicate(f rawFilter, d domain.Descriptor) (query.Predicate, bool) {
	switch d.Kind {
	case domain.KindNumeric:
		if f.Min == nil && f.Max == nil {
			s.logger.Debug("dropping non-range predicate on numeric attribute", zap.String("attribute", d.Name))
			return query.Predicate{}, false
		}
		if vacuousRange(f, d) {
			s.logger.Debug("dropping vacuous range predicate",
				zap.String("attribute", d.Name))
			return query.Predicate{}, false
		}
		p, err := query.NewRange(d.Name, f.Min, f.Max)
		if err != nil {
			s.logger.Debug("dropping invalid range predicate", zap.String("attribute", d.Name), zap.Error(err))
			return query.Predicate{}, false
		}
		return p, true

	case domain.KindArrayText:
		if len(f.Values) == 0 {
			s.logger.Debug("dropping valueless predicate on array attribute", zap.String("attribute", d.Name))
			return query.Predicate{}, false
		}
		p, err := query.NewOverlap(d.Name, f.Values...)
		if err != nil {
			return query.Predicate{}, false
		}
		return p, true

	default:
		if len(f.Values) == 0 || f.Min != nil || f.Max != nil {
			s.logger.Debug("dropping kind-incompatible predicate on text attribute", zap.String("attribute", d.Name))
			return query.Predicate{}, false
		}
		p, err := query.NewMatch(d.Name, f.Values...)
		if err != nil {
			return query.Predicate{}, false
		}
		return p, true
	}
}

// vacuousRange reports whether the requested range cannot match any stored
// value of the attribute.
func vacuousRange(f rawFilter, d domain.Descriptor) bool {
	if d.Max != nil && f.Min != nil && *f.Min > *d.Max {
		return true
	}
	if d.Min != nil && f.Max != nil && *f.Max < *d.Min {
		return true
	}
	return false
}

// Package refine is the precision pass over the head of the fused ranking:
// a judgment call selects and orders a small final subset with a rationale
// per item. Failures never propagate; the deterministic fallback returns
// the top candidates by combined score instead.
package refine

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/shopgrep/shopgrep/internal/domain"
)

// maxAttempts bounds re-asks on malformed provider JSON.
const maxAttempts = 3

// Config holds precision-filter settings.
type Config struct {
	// Window is how many top candidates are judged.
	Window int
	// MaxResults caps the final selection.
	MaxResults int
	// Timeout bounds the provider call; expiry triggers the fallback.
	Timeout time.Duration
}

// Service applies the precision filter.
type Service struct {
	chat   ChatProvider
	items  ItemReader
	cfg    Config
	logger *zap.Logger
}

// New creates a refinement service.
func New(cfg Config, chat ChatProvider, items ItemReader, logger *zap.Logger) *Service {
	return &Service{chat: chat, items: items, cfg: cfg, logger: logger}
}

type rawResponse struct {
	Results []rawResult `json:"results"`
}

type rawResult struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

// Refine judges the top-window candidates against the original request.
// Provider output is constrained to the judged window: hallucinated ids
// are rejected and oversized selections clamped. Any provider failure
// falls back to the top candidates by combined score, without rationales.
func (s *Service) Refine(ctx context.Context, ranking domain.Ranking, originalQuery string) ([]domain.FinalResult, error) {
	window := ranking.Candidates
	if len(window) > s.cfg.Window {
		window = window[:s.cfg.Window]
	}
	if len(window) == 0 {
		return nil, nil
	}

	ids := make([]string, len(window))
	for i, c := range window {
		ids[i] = c.ItemID
	}

	items, err := s.items.GetItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	raw, ok := s.judge(ctx, originalQuery, items)
	if !ok {
		return s.fallback(window, byID), nil
	}

	results := make([]domain.FinalResult, 0, s.cfg.MaxResults)
	seen := make(map[string]struct{}, s.cfg.MaxResults)
	for _, r := range raw.Results {
		if len(results) == s.cfg.MaxResults {
			break
		}
		item, known := byID[r.ItemID]
		if !known {
			s.logger.Warn("rejecting hallucinated item id", zap.String("item_id", r.ItemID))
			continue
		}
		if _, dup := seen[r.ItemID]; dup {
			s.logger.Warn("rejecting duplicate item id", zap.String("item_id", r.ItemID))
			continue
		}
		seen[r.ItemID] = struct{}{}
		results = append(results, domain.FinalResult{
			Item:      item,
			Rank:      len(results) + 1,
			Rationale: r.Reason,
		})
	}
	return results, nil
}

// judge runs the bounded provider call, re-asking on malformed JSON.
func (s *Service) judge(ctx context.Context, originalQuery string, items []domain.Item) (rawResponse, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	user := userPrompt(originalQuery, s.cfg.MaxResults, items)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		content, err := s.chat.CompleteJSON(ctx, "refine", systemPrompt, user)
		if err != nil {
			s.logger.Warn("refinement call failed, using fallback", zap.Error(err))
			return rawResponse{}, false
		}

		var raw rawResponse
		if err := json.Unmarshal([]byte(content), &raw); err != nil {
			s.logger.Warn("malformed refinement response",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}
		return raw, true
	}
	return rawResponse{}, false
}

// fallback returns the top candidates by combined score with no rationale.
func (s *Service) fallback(window []domain.Candidate, byID map[string]domain.Item) []domain.FinalResult {
	results := make([]domain.FinalResult, 0, s.cfg.MaxResults)
	for _, c := range window {
		if len(results) == s.cfg.MaxResults {
			break
		}
		item, ok := byID[c.ItemID]
		if !ok {
			continue
		}
		results = append(results, domain.FinalResult{
			Item: item,
			Rank: len(results) + 1,
		})
	}
	return results
}

// Package index computes and persists item embeddings: per embeddable
// attribute plus the synthesized combined text, batched and processed
// concurrently.
package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/shopgrep/shopgrep/internal/domain"
)

// Config holds indexing settings.
type Config struct {
	BatchSize    int
	Concurrency  int
	MaxRetries   int
	RetryBackoff time.Duration
}

// Service embeds and persists catalog items.
type Service struct {
	embedder Embedder
	writer   EmbeddingWriter
	cfg      Config
	logger   *zap.Logger
}

// New creates an indexing service.
func New(cfg Config, embedder Embedder, writer EmbeddingWriter, logger *zap.Logger) *Service {
	return &Service{
		embedder: embedder,
		writer:   writer,
		cfg:      cfg,
		logger:   logger,
	}
}

// Report summarizes one indexing run. Failed holds the batches that
// exhausted their retries; their items keep any previously stored vectors.
type Report struct {
	Items    int
	Records  int
	Failed   []domain.BatchIndexError
	Duration time.Duration
}

// task is one (item, field, text) embedding unit.
type task struct {
	itemID string
	text   string
}

// Index embeds the given items for every embedding field the metadata
// table names. Batches are independent: a batch that exhausts its retries
// is reported in the returned Report without aborting the rest, and
// already-persisted batches are never rolled back.
func (s *Service) Index(ctx context.Context, items []domain.Item, meta *domain.MetadataTable) (*Report, error) {
	start := time.Now()

	pool, err := ants.NewPool(s.cfg.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	report := &Report{Items: len(items)}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, field := range meta.EmbeddingFields() {
		tasks := collectTasks(items, field)
		for offset := 0; offset < len(tasks); offset += s.cfg.BatchSize {
			end := min(offset+s.cfg.BatchSize, len(tasks))
			batch := tasks[offset:end]

			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()

				n, err := s.processBatch(ctx, field, batch)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					report.Failed = append(report.Failed, domain.BatchIndexError{
						Field:  field,
						Offset: offset,
						Size:   len(batch),
						Err:    err,
					})
					return
				}
				report.Records += n
			})
			if submitErr != nil {
				wg.Done()
				return nil, fmt.Errorf("submit batch: %w", submitErr)
			}
		}
	}

	wg.Wait()

	report.Duration = time.Since(start)
	s.logger.Info("indexing finished",
		zap.Int("items", report.Items),
		zap.Int("records", report.Records),
		zap.Int("failed_batches", len(report.Failed)),
		zap.Duration("duration", report.Duration),
	)
	return report, ctx.Err()
}

// collectTasks gathers the texts to embed for one field, in item order.
// Items without the attribute, or whose text is too short to carry signal,
// are skipped.
func collectTasks(items []domain.Item, field string) []task {
	tasks := make([]task, 0, len(items))
	for _, item := range items {
		var text string
		if field == domain.CombinedField {
			text = combinedText(item)
		} else {
			text = cleanText(item.AttrText(field))
			if len(text) > maxCombinedLen {
				text = text[:maxCombinedLen]
			}
		}
		if len(text) < minCombinedLen {
			continue
		}
		tasks = append(tasks, task{itemID: item.ID, text: text})
	}
	return tasks
}

// processBatch embeds one batch with retry and persists the vectors.
func (s *Service) processBatch(ctx context.Context, field string, batch []task) (int, error) {
	texts := make([]string, len(batch))
	for i, t := range batch {
		texts[i] = t.text
	}

	var result domain.EmbeddingResult
	err := retryWithBackoff(ctx, func() error {
		var embErr error
		result, embErr = s.embedder.EmbedBatch(ctx, texts)
		return embErr
	}, s.cfg.MaxRetries, s.cfg.RetryBackoff)
	if err != nil {
		s.logger.Warn("embedding batch failed",
			zap.String("field", field),
			zap.Int("size", len(batch)),
			zap.Error(err),
		)
		return 0, err
	}

	if len(result.Vectors) != len(batch) {
		return 0, fmt.Errorf("%d vectors for %d texts: %w",
			len(result.Vectors), len(batch), domain.ErrEmbeddingProvider)
	}

	now := time.Now().UTC()
	records := make([]domain.EmbeddingRecord, len(batch))
	for i, t := range batch {
		records[i] = domain.EmbeddingRecord{
			ItemID:    t.itemID,
			Field:     field,
			Vector:    result.Vectors[i],
			UpdatedAt: now,
		}
	}

	if err := s.writer.UpsertRecords(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

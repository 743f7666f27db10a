// Package embedding persists per-(item, field) vectors as hashes and serves
// the semantic half of hybrid retrieval via a single HNSW index.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopgrep/shopgrep/internal/db"
	"github.com/shopgrep/shopgrep/internal/domain"
	"github.com/shopgrep/shopgrep/internal/repository"
)

// Hash field names of one embedding record.
const (
	fieldItem    = "item"
	fieldField   = "field"
	fieldVector  = "vector"
	fieldUpdated = "updated_at"
)

// store is the consumer interface for embedding persistence and search (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements the embedding store consumed by the indexer and retriever.
type Repo struct {
	store store
	keys  repository.Keys
}

// New creates an embedding repository.
func New(s store, keys repository.Keys) *Repo {
	return &Repo{store: s, keys: keys}
}

// IndexParams holds the HNSW settings of the embedding index.
type IndexParams struct {
	Dimensions  int
	M           int
	EFConstruct int
}

// EnsureIndex creates the embedding FT index if absent. Unlike the catalog
// index its schema never depends on the metadata table, so an existing
// index is left alone.
func (r *Repo) EnsureIndex(ctx context.Context, params IndexParams) error {
	name := r.keys.EmbeddingIndex()

	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check embedding index: %w", err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(name).
		Prefix(r.keys.EmbeddingPrefix()).
		Tag(fieldItem, "").
		Tag(fieldField, "").
		VectorHNSW(fieldVector, params.Dimensions, db.DistanceCosine, params.M, params.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build embedding index: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create embedding index: %w", err)
	}
	return nil
}

// DropIndex removes the embedding index, keeping the records.
func (r *Repo) DropIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.keys.EmbeddingIndex()); err != nil {
		return fmt.Errorf("drop embedding index: %w", err)
	}
	return nil
}

// UpsertRecords writes vector records in one pipelined round trip.
// Re-indexing an item overwrites its prior record for the same field.
func (r *Repo) UpsertRecords(ctx context.Context, records []domain.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(records))
	for _, rec := range records {
		updated := rec.UpdatedAt
		if updated.IsZero() {
			updated = time.Now().UTC()
		}
		items = append(items, db.HashSetItem{
			Key: r.keys.Embedding(rec.Field, rec.ItemID),
			Fields: map[string]string{
				fieldItem:    rec.ItemID,
				fieldField:   rec.Field,
				fieldVector:  db.VectorToBytes(rec.Vector),
				fieldUpdated: updated.Format(time.RFC3339),
			},
		})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert embeddings: %w", err)
	}
	return nil
}

// DeleteItemRecords removes the vectors of one item across the given fields.
func (r *Repo) DeleteItemRecords(ctx context.Context, itemID string, fields []string) error {
	for _, field := range fields {
		if err := r.store.Del(ctx, r.keys.Embedding(field, itemID)); err != nil {
			return fmt.Errorf("delete embedding %s/%s: %w", field, itemID, err)
		}
	}
	return nil
}

// Count returns the number of stored embedding records.
func (r *Repo) Count(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, r.keys.EmbeddingPrefix()+"*")
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return len(keys), nil
}

// SearchKNN returns the nearest (item, field) records to the query vector,
// restricted to the given embedding fields and, when restrictIDs is
// non-empty, to records of those items.
func (r *Repo) SearchKNN(
	ctx context.Context, vector []float32, fields, restrictIDs []string, k int,
) ([]domain.FieldHit, error) {
	// The score field must be requested explicitly: a RETURN clause limits
	// the response to the named fields, distance included.
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.keys.EmbeddingIndex(),
		Filter:       buildPrefilter(fields, restrictIDs),
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldItem, fieldField, db.VectorScoreField},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding search: %w", err)
	}

	hits := make([]domain.FieldHit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		itemID := entry.Fields[fieldItem]
		if itemID == "" {
			continue
		}
		hits = append(hits, domain.FieldHit{
			ItemID:     itemID,
			Field:      entry.Fields[fieldField],
			Similarity: entry.Score,
		})
	}
	return hits, nil
}

// buildPrefilter combines the field restriction with the optional item-id
// restriction into one conjunctive TAG expression.
func buildPrefilter(fields, restrictIDs []string) string {
	var clauses []string
	if len(fields) > 0 {
		clauses = append(clauses, db.TagClause(fieldField, fields))
	}
	if len(restrictIDs) > 0 {
		clauses = append(clauses, db.TagClause(fieldItem, restrictIDs))
	}
	return strings.Join(clauses, " ")
}

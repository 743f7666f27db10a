// Package catalog persists catalog items as JSON documents and serves the
// structured half of hybrid retrieval via an FT index shaped by the
// metadata table.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopgrep/shopgrep/internal/db"
	"github.com/shopgrep/shopgrep/internal/domain"
	"github.com/shopgrep/shopgrep/internal/domain/query"
	"github.com/shopgrep/shopgrep/internal/repository"
)

// jsonGetBatch bounds keys per pipelined JSON.GET round trip.
const jsonGetBatch = 500

// store is the consumer interface for catalog operations (ISP).
type store interface {
	JSONSet(ctx context.Context, key string, data []byte) error
	JSONGet(ctx context.Context, key string) ([]byte, error)
	JSONGetMulti(ctx context.Context, keys []string) ([][]byte, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo implements the catalog repositories consumed by the usecases.
type Repo struct {
	store store
	keys  repository.Keys
}

// New creates a catalog repository.
func New(s store, keys repository.Keys) *Repo {
	return &Repo{store: s, keys: keys}
}

// UpsertItems writes items as JSON documents, overwriting prior versions.
func (r *Repo) UpsertItems(ctx context.Context, items []domain.Item) error {
	for _, item := range items {
		data, err := encodeItem(item)
		if err != nil {
			return fmt.Errorf("encode item %s: %w", item.ID, err)
		}
		if err := r.store.JSONSet(ctx, r.keys.Item(item.ID), data); err != nil {
			return fmt.Errorf("upsert item %s: %w", item.ID, err)
		}
	}
	return nil
}

// GetItem loads one item by id.
func (r *Repo) GetItem(ctx context.Context, id string) (domain.Item, error) {
	data, err := r.store.JSONGet(ctx, r.keys.Item(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Item{}, domain.ErrItemNotFound
		}
		return domain.Item{}, fmt.Errorf("get item %s: %w", id, err)
	}
	return decodeItem(data)
}

// GetItems loads items by id, preserving input order. Ids with no stored
// document are skipped, not errored.
func (r *Repo) GetItems(ctx context.Context, ids []string) ([]domain.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.keys.Item(id)
	}

	docs, err := r.store.JSONGetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}

	items := make([]domain.Item, 0, len(ids))
	for i, data := range docs {
		if data == nil {
			continue
		}
		item, err := decodeItem(data)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", ids[i], err)
		}
		items = append(items, item)
	}
	return items, nil
}

// ListAll loads the full catalog, ordered by item id. Intended for
// profiling and indexing runs, not queries.
func (r *Repo) ListAll(ctx context.Context) ([]domain.Item, error) {
	keys, err := r.store.Scan(ctx, r.keys.ItemPrefix()+"*")
	if err != nil {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}
	sort.Strings(keys)

	items := make([]domain.Item, 0, len(keys))
	for start := 0; start < len(keys); start += jsonGetBatch {
		end := min(start+jsonGetBatch, len(keys))
		docs, err := r.store.JSONGetMulti(ctx, keys[start:end])
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		for i, data := range docs {
			if data == nil {
				continue
			}
			item, err := decodeItem(data)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", keys[start+i], err)
			}
			items = append(items, item)
		}
	}
	return items, nil
}

// Count returns the number of stored items.
func (r *Repo) Count(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, r.keys.ItemPrefix()+"*")
	if err != nil {
		return 0, fmt.Errorf("count catalog: %w", err)
	}
	return len(keys), nil
}

// DeleteItem removes one item document.
func (r *Repo) DeleteItem(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.keys.Item(id)); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}

// EnsureIndex rebuilds the catalog FT index from the metadata table:
// drop-then-create, since FT schemas cannot be altered in place. Documents
// survive the drop and are re-indexed in the background.
func (r *Repo) EnsureIndex(ctx context.Context, meta *domain.MetadataTable) error {
	name := r.keys.CatalogIndex()

	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check catalog index: %w", err)
	}
	if exists {
		if err := r.store.DropIndex(ctx, name); err != nil {
			return fmt.Errorf("drop catalog index: %w", err)
		}
	}

	def, err := buildIndexDefinition(name, r.keys.ItemPrefix(), meta)
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create catalog index: %w", err)
	}
	return nil
}

// SearchIDs runs the structured predicates against the catalog index and
// returns matching item ids in ascending id order.
func (r *Repo) SearchIDs(ctx context.Context, preds []query.Predicate, limit int) ([]string, error) {
	sr, err := r.store.SearchFilter(ctx, &db.FilterQuery{
		IndexName:    r.keys.CatalogIndex(),
		Query:        BuildQuery(preds),
		Limit:        limit,
		ReturnFields: []string{idField},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}

	ids := make([]string, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		if id := entry.Fields[idField]; id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// buildIndexDefinition maps profiled attributes to FT schema fields:
// numeric attributes to NUMERIC, filterable text to TAG, multi-valued text
// to TAG over the array elements.
func buildIndexDefinition(name, prefix string, meta *domain.MetadataTable) (*db.IndexDefinition, error) {
	b := db.NewIndex(name).
		OnJSON().
		Prefix(prefix).
		Tag("$."+idField, idField)

	for _, d := range meta.FilterableAttributes() {
		switch d.Kind {
		case domain.KindNumeric:
			b = b.Numeric("$."+d.Name, d.Name)
		case domain.KindArrayText:
			b = b.Tag("$."+d.Name+"[*]", d.Name)
		default:
			b = b.Tag("$."+d.Name, d.Name)
		}
	}

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build catalog index: %w", err)
	}
	return def, nil
}

// Package metadata persists the profiled schema. The whole table is one
// JSON value written with a single SET, so concurrent readers observe
// either the previous table or the new one, never a mix.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopgrep/shopgrep/internal/db"
	"github.com/shopgrep/shopgrep/internal/domain"
	"github.com/shopgrep/shopgrep/internal/repository"
)

// store is the consumer interface for metadata persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Repo implements metadata table persistence.
type Repo struct {
	store store
	keys  repository.Keys
}

// New creates a metadata repository.
func New(s store, keys repository.Keys) *Repo {
	return &Repo{store: s, keys: keys}
}

// Save replaces the persisted metadata table.
func (r *Repo) Save(ctx context.Context, table *domain.MetadataTable) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := r.store.Set(ctx, r.keys.Metadata(), data); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

// Load reads the persisted metadata table. A catalog that was never
// profiled returns domain.ErrMetadataNotFound.
func (r *Repo) Load(ctx context.Context) (*domain.MetadataTable, error) {
	data, err := r.store.Get(ctx, r.keys.Metadata())
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrMetadataNotFound
		}
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	var table domain.MetadataTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &table, nil
}

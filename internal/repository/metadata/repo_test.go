package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopgrep/shopgrep/internal/db"
	"github.com/shopgrep/shopgrep/internal/domain"
	"github.com/shopgrep/shopgrep/internal/repository"
)

type mockKV struct {
	values map[string][]byte
	sets   int
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.values[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) Set(_ context.Context, key string, value []byte) error {
	if m.values == nil {
		m.values = map[string][]byte{}
	}
	m.values[key] = value
	m.sets++
	return nil
}

func TestRepo_SaveLoad_RoundTrip(t *testing.T) {
	kv := &mockKV{}
	repo := New(kv, repository.Keys{Prefix: "test:", Tenant: "t1"})

	lo, hi := 1.0, 9.0
	in := &domain.MetadataTable{
		Attributes: map[string]domain.Descriptor{
			"price": {Name: "price", Kind: domain.KindNumeric, Cardinality: 9, Class: domain.CardinalityLow, Min: &lo, Max: &hi},
		},
		ItemCount:  3,
		ProfiledAt: time.Now().UTC().Truncate(time.Second),
	}

	if err := repo.Save(context.Background(), in); err != nil {
		t.Fatalf("save: %v", err)
	}
	// the whole table is one key written once
	if kv.sets != 1 {
		t.Errorf("expected a single SET, got %d", kv.sets)
	}

	out, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.ItemCount != 3 {
		t.Errorf("expected item count 3, got %d", out.ItemCount)
	}
	d, ok := out.Descriptor("price")
	if !ok || d.Min == nil || *d.Min != 1.0 {
		t.Errorf("unexpected descriptor: %+v", d)
	}
}

func TestRepo_Load_Missing(t *testing.T) {
	repo := New(&mockKV{}, repository.Keys{Prefix: "test:", Tenant: "t1"})

	_, err := repo.Load(context.Background())
	if !errors.Is(err, domain.ErrMetadataNotFound) {
		t.Fatalf("expected ErrMetadataNotFound, got %v", err)
	}
}

package embedding

import (
	"context"
	"testing"

	"github.com/shopgrep/shopgrep/internal/db"
	"github.com/shopgrep/shopgrep/internal/domain"
	"github.com/shopgrep/shopgrep/internal/repository"
)

type mockStore struct {
	hashes map[string]map[string]string

	knnResult *db.SearchResult
	knnErr    error
	lastKNN   *db.KNNQuery

	indexExists  bool
	createdIndex *db.IndexDefinition
}

func newMockStore() *mockStore {
	return &mockStore{hashes: map[string]map[string]string{}}
}

func (m *mockStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	for _, it := range items {
		m.hashes[it.Key] = it.Fields
	}
	return nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	delete(m.hashes, key)
	return nil
}

func (m *mockStore) Scan(_ context.Context, _ string) ([]string, error) {
	keys := make([]string, 0, len(m.hashes))
	for key := range m.hashes {
		keys = append(keys, key)
	}
	return keys, nil
}

func (m *mockStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	m.createdIndex = def
	return nil
}

func (m *mockStore) DropIndex(_ context.Context, _ string) error { return nil }

func (m *mockStore) IndexExists(_ context.Context, _ string) (bool, error) {
	return m.indexExists, nil
}

func (m *mockStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.lastKNN = q
	if m.knnErr != nil {
		return nil, m.knnErr
	}
	return m.knnResult, nil
}

func testKeys() repository.Keys {
	return repository.Keys{Prefix: "test:", Tenant: "t1"}
}

func TestRepo_UpsertRecords_KeysAndFields(t *testing.T) {
	store := newMockStore()
	repo := New(store, testKeys())

	err := repo.UpsertRecords(context.Background(), []domain.EmbeddingRecord{
		{ItemID: "a", Field: "combined", Vector: []float32{0.5, 0.5}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	fields, ok := store.hashes["test:t1:emb:combined:a"]
	if !ok {
		t.Fatalf("expected record key, got %v", store.hashes)
	}
	if fields["item"] != "a" || fields["field"] != "combined" {
		t.Errorf("unexpected tag fields: %v", fields)
	}
	if len(fields["vector"]) != 8 {
		t.Errorf("expected 8-byte vector blob, got %d bytes", len(fields["vector"]))
	}
	if fields["updated_at"] == "" {
		t.Error("expected updated_at to be set")
	}
}

func TestRepo_EnsureIndex_SkipsExisting(t *testing.T) {
	store := newMockStore()
	store.indexExists = true
	repo := New(store, testKeys())

	if err := repo.EnsureIndex(context.Background(), IndexParams{Dimensions: 4}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if store.createdIndex != nil {
		t.Error("existing index must not be recreated")
	}
}

func TestRepo_EnsureIndex_CreatesHNSW(t *testing.T) {
	store := newMockStore()
	repo := New(store, testKeys())

	err := repo.EnsureIndex(context.Background(), IndexParams{Dimensions: 4, M: 32, EFConstruct: 400})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if store.createdIndex == nil {
		t.Fatal("expected index creation")
	}
	if store.createdIndex.Name != "test:t1:emb-idx" {
		t.Errorf("unexpected index name: %q", store.createdIndex.Name)
	}
	last := store.createdIndex.Fields[len(store.createdIndex.Fields)-1]
	if last.Type != db.IndexFieldVector || last.VectorDim != 4 {
		t.Errorf("unexpected vector field: %+v", last)
	}
}

func TestRepo_SearchKNN_BuildsPrefilter(t *testing.T) {
	store := newMockStore()
	store.knnResult = &db.SearchResult{
		Total: 2,
		Entries: []db.SearchEntry{
			{Key: "test:t1:emb:combined:a", Score: 0.9, Fields: map[string]string{"item": "a", "field": "combined"}},
			{Key: "test:t1:emb:title:a", Score: 0.7, Fields: map[string]string{"item": "a", "field": "title"}},
		},
	}
	repo := New(store, testKeys())

	hits, err := repo.SearchKNN(
		context.Background(),
		[]float32{0.1},
		[]string{"title", "combined"},
		[]string{"a", "b"},
		10,
	)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	wantFilter := "@field:{title|combined} @item:{a|b}"
	if store.lastKNN.Filter != wantFilter {
		t.Errorf("expected filter %q, got %q", wantFilter, store.lastKNN.Filter)
	}
	// without the score field in RETURN, every hit comes back scoreless
	wantReturn := []string{"item", "field", db.VectorScoreField}
	if len(store.lastKNN.ReturnFields) != len(wantReturn) {
		t.Fatalf("expected return fields %v, got %v", wantReturn, store.lastKNN.ReturnFields)
	}
	for i, f := range wantReturn {
		if store.lastKNN.ReturnFields[i] != f {
			t.Fatalf("expected return fields %v, got %v", wantReturn, store.lastKNN.ReturnFields)
		}
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ItemID != "a" || hits[0].Field != "combined" || hits[0].Similarity != 0.9 {
		t.Errorf("unexpected first hit: %+v", hits[0])
	}
}

func TestRepo_SearchKNN_NoRestriction(t *testing.T) {
	store := newMockStore()
	store.knnResult = &db.SearchResult{}
	repo := New(store, testKeys())

	_, err := repo.SearchKNN(context.Background(), []float32{0.1}, []string{"combined"}, nil, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if store.lastKNN.Filter != "@field:{combined}" {
		t.Errorf("unexpected filter: %q", store.lastKNN.Filter)
	}
}

func TestRepo_DeleteItemRecords(t *testing.T) {
	store := newMockStore()
	store.hashes["test:t1:emb:combined:a"] = map[string]string{"item": "a"}
	store.hashes["test:t1:emb:title:a"] = map[string]string{"item": "a"}
	repo := New(store, testKeys())

	err := repo.DeleteItemRecords(context.Background(), "a", []string{"combined", "title"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.hashes) != 0 {
		t.Errorf("expected all records removed, got %v", store.hashes)
	}
}

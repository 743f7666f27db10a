package retrieve

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shopgrep/shopgrep/internal/domain"
	"github.com/shopgrep/shopgrep/internal/domain/query"
)

type mockCatalog struct {
	ids   []string
	err   error
	calls int
}

func (m *mockCatalog) SearchIDs(_ context.Context, _ []query.Predicate, _ int) ([]string, error) {
	m.calls++
	return m.ids, m.err
}

type mockEmbeddingSearch struct {
	hits            []domain.FieldHit
	err             error
	lastRestrictIDs []string
	lastK           int
}

func (m *mockEmbeddingSearch) SearchKNN(_ context.Context, _ []float32, _, restrictIDs []string, k int) ([]domain.FieldHit, error) {
	m.lastRestrictIDs = restrictIDs
	m.lastK = k
	return m.hits, m.err
}

type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{0.1, 0.2}
	}
	return domain.EmbeddingResult{Vectors: vectors}, nil
}

func testConfig() Config {
	return Config{CandidateLimit: 20, SQLWeight: 0.7, SemanticWeight: 0.3}
}

func testMeta() *domain.MetadataTable {
	return &domain.MetadataTable{
		Attributes: map[string]domain.Descriptor{
			"category": {Name: "category", Kind: domain.KindText, Class: domain.CardinalityLow},
		},
		ItemCount: 100,
	}
}

func parsedWithFilter(t *testing.T) query.Parsed {
	t.Helper()
	p, err := query.NewMatch("category", "rings")
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	return query.Parsed{Filters: []query.Predicate{p}, Semantic: "silver rings"}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRetrieve_FusionScoring(t *testing.T) {
	catalog := &mockCatalog{ids: []string{"a", "b"}}
	emb := &mockEmbeddingSearch{hits: []domain.FieldHit{
		{ItemID: "a", Field: "combined", Similarity: 0.8},
		{ItemID: "c", Field: "combined", Similarity: 0.9},
	}}
	svc := New(testConfig(), catalog, emb, &mockEmbedder{}, zap.NewNop())

	ranking, err := svc.Retrieve(context.Background(), parsedWithFilter(t), testMeta())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if ranking.Degraded {
		t.Error("unexpected degraded flag")
	}
	if len(ranking.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(ranking.Candidates))
	}

	// a: 0.7 + 0.8*0.3 = 0.94; b: 0.7; c: 0.9*0.3 = 0.27
	first := ranking.Candidates[0]
	if first.ItemID != "a" || !approx(first.Combined, 0.94) {
		t.Errorf("unexpected top candidate: %+v", first)
	}
	if ranking.Candidates[1].ItemID != "b" || !approx(ranking.Candidates[1].Combined, 0.7) {
		t.Errorf("unexpected second candidate: %+v", ranking.Candidates[1])
	}
	if ranking.Candidates[2].ItemID != "c" || !approx(ranking.Candidates[2].Combined, 0.27) {
		t.Errorf("unexpected third candidate: %+v", ranking.Candidates[2])
	}

	f := ranking.Funnel
	if f.CatalogSize != 100 || f.SQLMatched != 2 || f.SemanticHits != 2 || f.Fused != 3 {
		t.Errorf("unexpected funnel: %+v", f)
	}
}

func TestRetrieve_DedupKeepsBestFieldHit(t *testing.T) {
	emb := &mockEmbeddingSearch{hits: []domain.FieldHit{
		{ItemID: "a", Field: "description", Similarity: 0.4},
		{ItemID: "a", Field: "combined", Similarity: 0.9},
		{ItemID: "a", Field: "title", Similarity: 0.6},
	}}
	svc := New(testConfig(), &mockCatalog{}, emb, &mockEmbedder{}, zap.NewNop())

	ranking, err := svc.Retrieve(context.Background(), query.Parsed{Semantic: "rings"}, testMeta())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(ranking.Candidates) != 1 {
		t.Fatalf("expected 1 deduplicated candidate, got %d", len(ranking.Candidates))
	}
	c := ranking.Candidates[0]
	if c.Semantic == nil || *c.Semantic != 0.9 {
		t.Errorf("expected best similarity 0.9, got %+v", c.Semantic)
	}
	if !approx(c.Combined, 0.27) {
		t.Errorf("unexpected combined score: %v", c.Combined)
	}
}

func TestRetrieve_TieBreakByItemID(t *testing.T) {
	catalog := &mockCatalog{ids: []string{"z", "m", "a"}}
	emb := &mockEmbeddingSearch{}
	svc := New(testConfig(), catalog, emb, &mockEmbedder{}, zap.NewNop())

	ranking, err := svc.Retrieve(context.Background(), parsedWithFilter(t), testMeta())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	got := []string{ranking.Candidates[0].ItemID, ranking.Candidates[1].ItemID, ranking.Candidates[2].ItemID}
	if got[0] != "a" || got[1] != "m" || got[2] != "z" {
		t.Errorf("expected id order [a m z], got %v", got)
	}
}

func TestRetrieve_CandidateLimit(t *testing.T) {
	hits := make([]domain.FieldHit, 50)
	for i := range hits {
		hits[i] = domain.FieldHit{ItemID: string(rune('a' + i%26)), Field: "combined", Similarity: float64(i) / 50}
	}
	cfg := testConfig()
	cfg.CandidateLimit = 5
	svc := New(cfg, &mockCatalog{}, &mockEmbeddingSearch{hits: hits}, &mockEmbedder{}, zap.NewNop())

	ranking, err := svc.Retrieve(context.Background(), query.Parsed{Semantic: "rings"}, testMeta())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(ranking.Candidates) != 5 {
		t.Errorf("expected 5 candidates, got %d", len(ranking.Candidates))
	}
}

func TestRetrieve_SemanticDownDegradesToStructured(t *testing.T) {
	catalog := &mockCatalog{ids: []string{"a"}}
	emb := &mockEmbeddingSearch{err: errors.New("vector store down")}
	svc := New(testConfig(), catalog, emb, &mockEmbedder{}, zap.NewNop())

	ranking, err := svc.Retrieve(context.Background(), parsedWithFilter(t), testMeta())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !ranking.Degraded {
		t.Error("expected degraded ranking")
	}
	if len(ranking.Candidates) != 1 {
		t.Fatalf("expected SQL-only candidates, got %+v", ranking.Candidates)
	}
	if !approx(ranking.Candidates[0].Combined, 0.7) {
		t.Errorf("SQL-only candidates score the structured weight, got %v", ranking.Candidates[0].Combined)
	}
}

func TestRetrieve_StructuredDownDegradesToSemantic(t *testing.T) {
	catalog := &mockCatalog{err: errors.New("catalog index missing")}
	emb := &mockEmbeddingSearch{hits: []domain.FieldHit{{ItemID: "a", Field: "combined", Similarity: 0.5}}}
	svc := New(testConfig(), catalog, emb, &mockEmbedder{}, zap.NewNop())

	ranking, err := svc.Retrieve(context.Background(), parsedWithFilter(t), testMeta())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !ranking.Degraded {
		t.Error("expected degraded ranking")
	}
	if len(ranking.Candidates) != 1 || ranking.Candidates[0].SQLMatched {
		t.Errorf("expected semantic-only candidates, got %+v", ranking.Candidates)
	}
}

func TestRetrieve_BothLegsDown(t *testing.T) {
	catalog := &mockCatalog{err: errors.New("sql down")}
	emb := &mockEmbeddingSearch{err: errors.New("vector down")}
	svc := New(testConfig(), catalog, emb, &mockEmbedder{}, zap.NewNop())

	_, err := svc.Retrieve(context.Background(), parsedWithFilter(t), testMeta())
	if !errors.Is(err, domain.ErrSearchUnavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}
}

func TestRetrieve_SemanticOnlyQuerySemanticDown(t *testing.T) {
	emb := &mockEmbeddingSearch{err: errors.New("vector down")}
	svc := New(testConfig(), &mockCatalog{}, emb, &mockEmbedder{}, zap.NewNop())

	_, err := svc.Retrieve(context.Background(), query.Parsed{Semantic: "rings"}, testMeta())
	if !errors.Is(err, domain.ErrSearchUnavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}
}

func TestRetrieve_NoFiltersSkipsStructuredLeg(t *testing.T) {
	catalog := &mockCatalog{}
	emb := &mockEmbeddingSearch{hits: []domain.FieldHit{{ItemID: "a", Field: "combined", Similarity: 0.5}}}
	svc := New(testConfig(), catalog, emb, &mockEmbedder{}, zap.NewNop())

	ranking, err := svc.Retrieve(context.Background(), query.Parsed{Semantic: "rings"}, testMeta())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if catalog.calls != 0 {
		t.Errorf("structured leg must be skipped without filters, got %d calls", catalog.calls)
	}
	if ranking.Degraded {
		t.Error("unexpected degraded flag")
	}
}

func TestRetrieve_PrefilterPassesSQLIDs(t *testing.T) {
	catalog := &mockCatalog{ids: []string{"a", "b"}}
	emb := &mockEmbeddingSearch{}
	cfg := testConfig()
	cfg.Prefilter = true
	svc := New(cfg, catalog, emb, &mockEmbedder{}, zap.NewNop())

	if _, err := svc.Retrieve(context.Background(), parsedWithFilter(t), testMeta()); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(emb.lastRestrictIDs) != 2 {
		t.Errorf("expected KNN restricted to SQL matches, got %v", emb.lastRestrictIDs)
	}
}

func TestRetrieve_PrefilterSkippedForEmptySQLSet(t *testing.T) {
	catalog := &mockCatalog{}
	emb := &mockEmbeddingSearch{hits: []domain.FieldHit{{ItemID: "a", Field: "combined", Similarity: 0.5}}}
	cfg := testConfig()
	cfg.Prefilter = true
	svc := New(cfg, catalog, emb, &mockEmbedder{}, zap.NewNop())

	ranking, err := svc.Retrieve(context.Background(), parsedWithFilter(t), testMeta())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	// an empty SQL set must not restrict the semantic leg to nothing
	if emb.lastRestrictIDs != nil {
		t.Errorf("expected unrestricted KNN, got %v", emb.lastRestrictIDs)
	}
	if len(ranking.Candidates) != 1 {
		t.Errorf("expected semantic candidates, got %+v", ranking.Candidates)
	}
}

func TestRetrieve_KNNOverfetch(t *testing.T) {
	emb := &mockEmbeddingSearch{}
	svc := New(testConfig(), &mockCatalog{}, emb, &mockEmbedder{}, zap.NewNop())

	if _, err := svc.Retrieve(context.Background(), query.Parsed{Semantic: "rings"}, testMeta()); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if emb.lastK != 60 {
		t.Errorf("expected k=60, got %d", emb.lastK)
	}
}

type stalledEmbedder struct{}

func (stalledEmbedder) EmbedBatch(ctx context.Context, _ []string) (domain.EmbeddingResult, error) {
	<-ctx.Done()
	return domain.EmbeddingResult{}, ctx.Err()
}

func TestRetrieve_TimeoutDegradesStalledSemanticLeg(t *testing.T) {
	catalog := &mockCatalog{ids: []string{"a"}}
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	svc := New(cfg, catalog, &mockEmbeddingSearch{}, stalledEmbedder{}, zap.NewNop())

	ranking, err := svc.Retrieve(context.Background(), parsedWithFilter(t), testMeta())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !ranking.Degraded {
		t.Error("expected degraded ranking when the semantic leg times out")
	}
	if len(ranking.Candidates) != 1 || ranking.Candidates[0].ItemID != "a" {
		t.Errorf("expected structured-only candidates, got %+v", ranking.Candidates)
	}
}

func TestRetrieve_EmbedderFailureCountsAsSemanticLeg(t *testing.T) {
	catalog := &mockCatalog{ids: []string{"a"}}
	svc := New(testConfig(), catalog, &mockEmbeddingSearch{}, &mockEmbedder{err: errors.New("quota")}, zap.NewNop())

	ranking, err := svc.Retrieve(context.Background(), parsedWithFilter(t), testMeta())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !ranking.Degraded || len(ranking.Candidates) != 1 {
		t.Errorf("expected degraded structured-only ranking, got %+v", ranking)
	}
}

package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shopgrep/shopgrep/internal/domain"
)

type mockEmbedder struct {
	mu      sync.Mutex
	calls   int
	batches [][]string
	failFor string
	dim     int
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.batches = append(m.batches, texts)

	if m.failFor != "" {
		for _, t := range texts {
			if strings.Contains(t, m.failFor) {
				return domain.EmbeddingResult{}, errors.New("provider unavailable")
			}
		}
	}

	dim := m.dim
	if dim == 0 {
		dim = 2
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = make([]float32, dim)
	}
	return domain.EmbeddingResult{Vectors: vectors}, nil
}

type mockWriter struct {
	mu      sync.Mutex
	records []domain.EmbeddingRecord
}

func (m *mockWriter) UpsertRecords(_ context.Context, records []domain.EmbeddingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

func testMeta() *domain.MetadataTable {
	return &domain.MetadataTable{
		Attributes: map[string]domain.Descriptor{
			"description": {Name: "description", Kind: domain.KindText, Class: domain.CardinalityHigh},
			"category":    {Name: "category", Kind: domain.KindText, Class: domain.CardinalityLow},
		},
	}
}

func testConfig() Config {
	return Config{BatchSize: 2, Concurrency: 2, MaxRetries: 1, RetryBackoff: time.Millisecond}
}

func makeItem(id, desc string) domain.Item {
	return domain.Item{ID: id, Attrs: map[string]domain.Value{
		"title":       domain.TextValue("A reasonably long product title"),
		"description": domain.TextValue(desc),
	}}
}

func TestIndex_BatchesPerField(t *testing.T) {
	emb := &mockEmbedder{}
	writer := &mockWriter{}
	svc := New(testConfig(), emb, writer, zap.NewNop())

	items := []domain.Item{
		makeItem("a", "handmade sterling silver ring with moonstone"),
		makeItem("b", "gold plated hoop earrings for everyday wear"),
		makeItem("c", "minimalist leather bracelet with brass clasp"),
	}

	report, err := svc.Index(context.Background(), items, testMeta())
	if err != nil {
		t.Fatalf("index: %v", err)
	}

	// 3 description tasks + 3 combined tasks, batch size 2: 2 batches each.
	if emb.calls != 4 {
		t.Errorf("expected 4 batches, got %d", emb.calls)
	}
	if report.Records != 6 {
		t.Errorf("expected 6 records, got %d", report.Records)
	}
	if len(report.Failed) != 0 {
		t.Errorf("expected no failures, got %+v", report.Failed)
	}
	if report.Items != 3 {
		t.Errorf("expected 3 items, got %d", report.Items)
	}

	fields := map[string]int{}
	for _, rec := range writer.records {
		fields[rec.Field]++
		if len(rec.Vector) != 2 {
			t.Fatalf("unexpected vector length: %d", len(rec.Vector))
		}
	}
	if fields["description"] != 3 || fields[domain.CombinedField] != 3 {
		t.Errorf("unexpected field distribution: %v", fields)
	}
}

func TestIndex_SkipsShortTexts(t *testing.T) {
	emb := &mockEmbedder{}
	writer := &mockWriter{}
	svc := New(testConfig(), emb, writer, zap.NewNop())

	items := []domain.Item{
		{ID: "a", Attrs: map[string]domain.Value{"description": domain.TextValue("tiny")}},
	}

	report, err := svc.Index(context.Background(), items, testMeta())
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if report.Records != 0 {
		t.Errorf("short texts must be skipped, got %d records", report.Records)
	}
	if emb.calls != 0 {
		t.Errorf("expected no embedding calls, got %d", emb.calls)
	}
}

func TestIndex_FailedBatchDoesNotAbortOthers(t *testing.T) {
	emb := &mockEmbedder{failFor: "poison"}
	writer := &mockWriter{}
	cfg := testConfig()
	cfg.BatchSize = 1
	svc := New(cfg, emb, writer, zap.NewNop())

	items := []domain.Item{
		{ID: "a", Attrs: map[string]domain.Value{"description": domain.TextValue("a perfectly ordinary description")}},
		{ID: "b", Attrs: map[string]domain.Value{"description": domain.TextValue("poison text that always fails to embed")}},
	}
	meta := &domain.MetadataTable{Attributes: map[string]domain.Descriptor{
		"description": {Name: "description", Kind: domain.KindText, Class: domain.CardinalityHigh},
	}}

	report, err := svc.Index(context.Background(), items, meta)
	if err != nil {
		t.Fatalf("index: %v", err)
	}

	if len(report.Failed) != 1 {
		t.Fatalf("expected 1 failed batch, got %d", len(report.Failed))
	}
	fail := report.Failed[0]
	if fail.Size != 1 {
		t.Errorf("unexpected failed batch: %+v", fail)
	}
	if report.Records == 0 {
		t.Error("surviving batches must still be persisted")
	}
}

func TestIndex_RetriesBeforeFailing(t *testing.T) {
	emb := &failNTimesEmbedder{failures: 2}
	writer := &mockWriter{}
	cfg := Config{BatchSize: 10, Concurrency: 1, MaxRetries: 3, RetryBackoff: time.Millisecond}
	svc := New(cfg, emb, writer, zap.NewNop())

	items := []domain.Item{makeItem("a", "a description long enough to embed")}
	meta := &domain.MetadataTable{Attributes: map[string]domain.Descriptor{
		"description": {Name: "description", Kind: domain.KindText, Class: domain.CardinalityHigh},
	}}

	report, err := svc.Index(context.Background(), items, meta)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	// description + combined, each recovering after 2 transient failures
	if len(report.Failed) != 0 {
		t.Errorf("expected retries to recover, got failures %+v", report.Failed)
	}
	if report.Records != 2 {
		t.Errorf("expected 2 records, got %d", report.Records)
	}
}

type failNTimesEmbedder struct {
	mu       sync.Mutex
	failures int
	counts   map[string]int
}

func (m *failNTimesEmbedder) EmbedBatch(_ context.Context, texts []string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	key := fmt.Sprint(texts)
	m.counts[key]++
	if m.counts[key] <= m.failures {
		return domain.EmbeddingResult{}, errors.New("transient")
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{1}
	}
	return domain.EmbeddingResult{Vectors: vectors}, nil
}

func TestCombinedText_OrderAndDelimiter(t *testing.T) {
	item := domain.Item{ID: "a", Attrs: map[string]domain.Value{
		"description": domain.TextValue("<p>Hand made</p> in  small batches"),
		"title":       domain.TextValue("Silver Ring"),
		"tags":        domain.ListValue("silver", "rings"),
		"vendor":      domain.TextValue("Acme"),
	}}

	got := combinedText(item)
	want := "Silver Ring | silver rings | Acme | Hand made in small batches"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestCombinedText_GroupFallback(t *testing.T) {
	// product_name fills in for a missing title, brand for a missing vendor.
	item := domain.Item{ID: "a", Attrs: map[string]domain.Value{
		"product_name": domain.TextValue("Gold Hoops"),
		"brand":        domain.TextValue("Acme"),
	}}

	got := combinedText(item)
	if got != "Gold Hoops | Acme" {
		t.Errorf("unexpected combined text: %q", got)
	}
}

func TestCombinedText_Truncation(t *testing.T) {
	item := domain.Item{ID: "a", Attrs: map[string]domain.Value{
		"description": domain.TextValue(strings.Repeat("very long description ", 1000)),
	}}

	got := combinedText(item)
	if len(got) != maxCombinedLen {
		t.Errorf("expected truncation to %d, got %d", maxCombinedLen, len(got))
	}
}

func TestCleanText_StripsMarkup(t *testing.T) {
	got := cleanText("<div>Hello <b>world</b></div>\n\ttabs   and spaces")
	if got != "Hello world tabs and spaces" {
		t.Errorf("unexpected cleaned text: %q", got)
	}
}

func TestRetryWithBackoff_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retryWithBackoff(ctx, func() error {
		calls++
		return errors.New("always")
	}, 5, time.Millisecond)

	if err == nil {
		t.Fatal("expected error")
	}
	if calls > 1 {
		t.Errorf("cancelled context must stop retries, got %d calls", calls)
	}
}

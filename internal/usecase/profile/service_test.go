package profile

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/shopgrep/shopgrep/internal/domain"
)

type mockCatalog struct {
	items []domain.Item
	err   error
}

func (m *mockCatalog) ListAll(_ context.Context) ([]domain.Item, error) {
	return m.items, m.err
}

type mockMetadata struct {
	saved *domain.MetadataTable
}

func (m *mockMetadata) Save(_ context.Context, table *domain.MetadataTable) error {
	m.saved = table
	return nil
}

type mockIndexer struct {
	ensured *domain.MetadataTable
}

func (m *mockIndexer) EnsureIndex(_ context.Context, meta *domain.MetadataTable) error {
	m.ensured = meta
	return nil
}

func newService(items []domain.Item, threshold int) (*Service, *mockMetadata, *mockIndexer) {
	meta := &mockMetadata{}
	idx := &mockIndexer{}
	svc := New(Config{CardinalityThreshold: threshold}, &mockCatalog{items: items}, meta, idx, zap.NewNop())
	return svc, meta, idx
}

func TestProfile_EmptyCatalog(t *testing.T) {
	svc, meta, idx := newService(nil, 40)

	table, err := svc.Profile(context.Background())
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if table.ItemCount != 0 || len(table.Attributes) != 0 {
		t.Errorf("expected empty table, got %+v", table)
	}
	if meta.saved == nil {
		t.Error("empty table must still be persisted")
	}
	if idx.ensured == nil {
		t.Error("index must still be rebuilt")
	}
}

func TestProfile_CardinalityBoundary(t *testing.T) {
	// 40 distinct values stays low, 41 tips into high.
	makeItems := func(n int) []domain.Item {
		items := make([]domain.Item, n)
		for i := range items {
			items[i] = domain.Item{
				ID:    fmt.Sprintf("item-%d", i),
				Attrs: map[string]domain.Value{"color": domain.TextValue(fmt.Sprintf("color-%02d", i))},
			}
		}
		return items
	}

	svc, _, _ := newService(makeItems(40), 40)
	table, err := svc.Profile(context.Background())
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	d := table.Attributes["color"]
	if d.Class != domain.CardinalityLow {
		t.Errorf("40 distinct values should be low cardinality, got %v", d.Class)
	}
	if len(d.DistinctValues) != 40 {
		t.Errorf("expected 40 distinct values, got %d", len(d.DistinctValues))
	}
	if d.DistinctValues[0] != "color-00" {
		t.Errorf("distinct values must be sorted, got %v", d.DistinctValues[:3])
	}

	svc, _, _ = newService(makeItems(41), 40)
	table, err = svc.Profile(context.Background())
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	d = table.Attributes["color"]
	if d.Class != domain.CardinalityHigh {
		t.Errorf("41 distinct values should be high cardinality, got %v", d.Class)
	}
	if d.DistinctValues != nil {
		t.Error("high-cardinality attributes carry no distinct value list")
	}
	if d.Cardinality != 41 {
		t.Errorf("expected cardinality 41, got %d", d.Cardinality)
	}
}

func TestProfile_NumericBounds(t *testing.T) {
	items := []domain.Item{
		{ID: "a", Attrs: map[string]domain.Value{"price": domain.NumericValue(49.5)}},
		{ID: "b", Attrs: map[string]domain.Value{"price": domain.NumericValue(12)}},
		{ID: "c", Attrs: map[string]domain.Value{"price": domain.NumericValue(99)}},
	}
	svc, _, _ := newService(items, 40)

	table, err := svc.Profile(context.Background())
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	d := table.Attributes["price"]
	if d.Kind != domain.KindNumeric {
		t.Fatalf("expected numeric kind, got %v", d.Kind)
	}
	if d.Min == nil || d.Max == nil || *d.Min != 12 || *d.Max != 99 {
		t.Errorf("unexpected bounds: min=%v max=%v", d.Min, d.Max)
	}
}

func TestProfile_MixedKindsBecomeText(t *testing.T) {
	items := []domain.Item{
		{ID: "a", Attrs: map[string]domain.Value{"size": domain.NumericValue(8)}},
		{ID: "b", Attrs: map[string]domain.Value{"size": domain.TextValue("one size")}},
	}
	svc, _, _ := newService(items, 40)

	table, err := svc.Profile(context.Background())
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	d := table.Attributes["size"]
	if d.Kind != domain.KindText {
		t.Errorf("mixed scalar kinds should resolve to text, got %v", d.Kind)
	}
	if d.Min != nil || d.Max != nil {
		t.Error("text attributes carry no numeric bounds")
	}
}

func TestProfile_ArrayDistinctElements(t *testing.T) {
	items := []domain.Item{
		{ID: "a", Attrs: map[string]domain.Value{"tags": domain.ListValue("silver", "rings")}},
		{ID: "b", Attrs: map[string]domain.Value{"tags": domain.ListValue("silver", "hoops")}},
	}
	svc, _, _ := newService(items, 40)

	table, err := svc.Profile(context.Background())
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	d := table.Attributes["tags"]
	if d.Kind != domain.KindArrayText {
		t.Fatalf("expected array kind, got %v", d.Kind)
	}
	// distinct elements, not distinct lists
	if d.Cardinality != 3 {
		t.Errorf("expected 3 distinct elements, got %d", d.Cardinality)
	}
	want := []string{"hoops", "rings", "silver"}
	for i, v := range want {
		if d.DistinctValues[i] != v {
			t.Fatalf("expected %v, got %v", want, d.DistinctValues)
		}
	}
}

func TestProfile_SparseAttribute(t *testing.T) {
	items := []domain.Item{
		{ID: "a", Attrs: map[string]domain.Value{"vendor": domain.TextValue("acme")}},
		{ID: "b", Attrs: map[string]domain.Value{}},
	}
	svc, _, _ := newService(items, 40)

	table, err := svc.Profile(context.Background())
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if table.ItemCount != 2 {
		t.Errorf("expected item count 2, got %d", table.ItemCount)
	}
	d := table.Attributes["vendor"]
	if d.Cardinality != 1 {
		t.Errorf("absent attributes must not contribute values, got %d", d.Cardinality)
	}
}

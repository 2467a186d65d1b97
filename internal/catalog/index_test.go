package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"
)

// stubSource returns a fixed product list and counts fetches.
type stubSource struct {
	mu       sync.Mutex
	products []Product
	err      error
	fetches  atomic.Int64
	delay    time.Duration
}

func (s *stubSource) Fetch(ctx context.Context) ([]Product, error) {
	s.fetches.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *stubSource) set(products []Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = products
}

func (s *stubSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// fakeClock is an injectable clock for staleness tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestIndex(t *testing.T, src Source, clock *fakeClock) *Index {
	t.Helper()
	opts := IndexOpts{Source: src, TTL: DefaultTTL}
	if clock != nil {
		opts.Now = clock.Now
	}
	ix, err := NewIndex(opts)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return ix
}

func TestNewIndexRequiresSource(t *testing.T) {
	if _, err := NewIndex(IndexOpts{}); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestWarmWithinTTLFetchesOnce(t *testing.T) {
	src := &stubSource{products: []Product{{Name: "iPhone 15", Category: "iPhone 15 / 15 Pro"}}}
	ix := newTestIndex(t, src, nil)

	if err := ix.Warm(context.Background(), false); err != nil {
		t.Fatalf("first warm: %v", err)
	}
	if err := ix.Warm(context.Background(), false); err != nil {
		t.Fatalf("second warm: %v", err)
	}
	if got := src.fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1 (second warm within TTL must be a no-op)", got)
	}
}

func TestWarmAfterTTLRebuilds(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	src := &stubSource{products: []Product{{Name: "AirPods Pro", Category: "AirPods"}}}
	ix := newTestIndex(t, src, clock)

	if err := ix.Warm(context.Background(), false); err != nil {
		t.Fatalf("warm: %v", err)
	}
	clock.Advance(DefaultTTL + time.Second)
	if err := ix.Warm(context.Background(), false); err != nil {
		t.Fatalf("warm after ttl: %v", err)
	}
	if got := src.fetches.Load(); got != 2 {
		t.Errorf("fetches = %d, want 2 (ttl expiry must trigger exactly one rebuild)", got)
	}
}

func TestWarmForceBypassesTTL(t *testing.T) {
	src := &stubSource{products: []Product{{Name: "Pixel 9", Category: "Pixel / One Plus"}}}
	ix := newTestIndex(t, src, nil)

	ix.Warm(context.Background(), false)
	ix.Warm(context.Background(), true)
	if got := src.fetches.Load(); got != 2 {
		t.Errorf("fetches = %d, want 2", got)
	}
}

func TestWarmFailureKeepsServingStaleSnapshot(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	src := &stubSource{products: []Product{{Name: "Dyson V15", Category: "Dyson"}}}
	ix := newTestIndex(t, src, clock)

	if err := ix.Warm(context.Background(), false); err != nil {
		t.Fatalf("warm: %v", err)
	}

	src.setErr(fmt.Errorf("sheets: 503"))
	clock.Advance(DefaultTTL + time.Second)
	if err := ix.Warm(context.Background(), false); err == nil {
		t.Fatal("expected fetch error to propagate")
	}

	// Stale-but-available: the old snapshot still serves reads.
	if cats := ix.Categories(); len(cats) != 1 || cats[0] != "Dyson" {
		t.Errorf("Categories() after failed warm = %v, want [Dyson]", cats)
	}
}

func TestConcurrentWarmsCollapse(t *testing.T) {
	src := &stubSource{
		products: []Product{{Name: "JBL Flip 6", Category: "Яндекс / JBL"}},
		delay:    20 * time.Millisecond,
	}
	ix := newTestIndex(t, src, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ix.Warm(context.Background(), false); err != nil {
				t.Errorf("warm: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := src.fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1 (concurrent stale triggers must collapse)", got)
	}
}

func TestCategoriesOrderingMiscLast(t *testing.T) {
	src := &stubSource{products: []Product{
		{Name: "z1", Category: "Zeta"},
		{Name: "m1", Category: "Прочее"},
		{Name: "a1", Category: "Alpha"},
	}}
	ix := newTestIndex(t, src, nil)
	ix.Warm(context.Background(), false)

	got := ix.Categories()
	want := []string{"Alpha", "Zeta", "Прочее"}
	if len(got) != len(want) {
		t.Fatalf("Categories() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Categories() = %v, want %v", got, want)
		}
	}
}

func TestCategoriesCaseInsensitive(t *testing.T) {
	src := &stubSource{products: []Product{
		{Name: "b", Category: "beta"},
		{Name: "a", Category: "Alpha"},
	}}
	ix := newTestIndex(t, src, nil)
	ix.Warm(context.Background(), false)

	got := ix.Categories()
	if got[0] != "Alpha" || got[1] != "beta" {
		t.Errorf("Categories() = %v, want [Alpha beta]", got)
	}
}

func TestUncategorizedFallsIntoMisc(t *testing.T) {
	src := &stubSource{products: []Product{{Name: "орфан", Price: "100 ₽"}}}
	ix := newTestIndex(t, src, nil)
	ix.Warm(context.Background(), false)

	views := ix.ViewsFor(CategoryMisc)
	if len(views) != 1 || views[0].ItemCount() != 1 {
		t.Fatalf("ViewsFor(%q) = %v, want one view with one item", CategoryMisc, views)
	}
}

func TestViewsForUnknownCategory(t *testing.T) {
	src := &stubSource{products: []Product{{Name: "x", Category: "A"}}}
	ix := newTestIndex(t, src, nil)
	ix.Warm(context.Background(), false)

	if views := ix.ViewsFor("нет такой"); len(views) != 0 {
		t.Errorf("ViewsFor(unknown) = %v, want empty", views)
	}
}

func TestNestedGroupingOrderAndTrailingBlock(t *testing.T) {
	src := &stubSource{products: []Product{
		{Name: "iPhone 15 Pro 256", Category: "iPhone", Subcategory: "15 Pro"},
		{Name: "кабель", Category: "iPhone"}, // no subcategory
		{Name: "iPhone 15 128", Category: "iPhone", Subcategory: "15"},
		{Name: "iPhone 15 Pro 512", Category: "iPhone", Subcategory: "15 Pro"},
	}}
	ix := newTestIndex(t, src, nil)
	ix.Warm(context.Background(), false)

	views := ix.ViewsFor("iPhone")
	if len(views) != 3 {
		t.Fatalf("len(views) = %d, want 3", len(views))
	}
	if views[0].Subcategory != "15 Pro" || views[1].Subcategory != "15" {
		t.Errorf("subcategory order = [%q %q], want first-appearance order", views[0].Subcategory, views[1].Subcategory)
	}
	if views[2].Subcategory != "" {
		t.Errorf("last view subcategory = %q, want unlabeled trailing block", views[2].Subcategory)
	}
	if views[0].ItemCount() != 2 {
		t.Errorf("15 Pro block items = %d, want 2", views[0].ItemCount())
	}
}

func TestItemOrderStableAcrossRebuilds(t *testing.T) {
	products := []Product{
		{Name: "первый", Category: "A"},
		{Name: "второй", Category: "A"},
		{Name: "третий", Category: "A"},
	}
	src := &stubSource{products: products}
	ix := newTestIndex(t, src, nil)
	ix.Warm(context.Background(), false)

	before := ix.ViewsFor("A")[0]
	ix.Warm(context.Background(), true)
	after := ix.ViewsFor("A")[0]

	for i := range products {
		if before.Items[i].Name != after.Items[i].Name {
			t.Fatalf("item %d changed position across rebuilds: %q vs %q",
				i, before.Items[i].Name, after.Items[i].Name)
		}
	}
}

func TestResolveAndStaleAfterRebuild(t *testing.T) {
	src := &stubSource{products: []Product{{Name: "товар", Category: "A"}}}
	ix := newTestIndex(t, src, nil)
	ix.Warm(context.Background(), false)

	ref := ix.ViewsFor("A")[0].Ref
	items, err := ix.Resolve(ref)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(items) != 1 || items[0].Name != "товар" {
		t.Fatalf("Resolve items = %v", items)
	}

	// A rebuild bumps the generation; the old ref must go stale.
	ix.Warm(context.Background(), true)
	if _, err := ix.Resolve(ref); err != ErrStaleView {
		t.Errorf("Resolve(old ref) err = %v, want ErrStaleView", err)
	}
}

func TestResolveCategoryWithSlash(t *testing.T) {
	src := &stubSource{products: []Product{
		{Name: "кроссовки", Category: "Одежда/Обувь", Subcategory: "Обувь"},
		{Name: "футболка", Category: "Одежда/Обувь"},
	}}
	ix := newTestIndex(t, src, nil)
	ix.Warm(context.Background(), false)

	views := ix.ViewsFor("Одежда/Обувь")
	if len(views) != 2 {
		t.Fatalf("len(views) = %d, want 2", len(views))
	}
	for _, v := range views {
		items, err := ix.Resolve(v.Ref)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", v.Ref, err)
		}
		if len(items) != 1 {
			t.Fatalf("Resolve(%q) items = %v, want 1", v.Ref, items)
		}
	}

	ix.Warm(context.Background(), true)
	if _, err := ix.Resolve(views[0].Ref); err != ErrStaleView {
		t.Errorf("Resolve(old ref) err = %v, want ErrStaleView", err)
	}
}

func TestResolveGarbageRef(t *testing.T) {
	src := &stubSource{products: []Product{{Name: "x", Category: "A"}}}
	ix := newTestIndex(t, src, nil)
	ix.Warm(context.Background(), false)

	for _, ref := range []string{"", "junk", "1/A"} {
		if _, err := ix.Resolve(ref); err != ErrStaleView {
			t.Errorf("Resolve(%q) err = %v, want ErrStaleView", ref, err)
		}
	}
}

func TestViewTextNumberingAndFields(t *testing.T) {
	src := &stubSource{products: []Product{
		{Name: "iPhone 15", Color: "Black", Price: "75 000 ₽", Category: "iPhone"},
		{Name: "iPhone 15 Plus", Category: "iPhone"},
	}}
	ix := newTestIndex(t, src, nil)
	ix.Warm(context.Background(), false)

	text := ix.ViewsFor("iPhone")[0].Text
	lines := strings.Split(text, "\n")
	if len(lines) != 2 {
		t.Fatalf("text lines = %d, want 2:\n%s", len(lines), text)
	}
	if lines[0] != "1) iPhone 15 — Black — 75 000 ₽" {
		t.Errorf("line 1 = %q", lines[0])
	}
	if lines[1] != "2) iPhone 15 Plus" {
		t.Errorf("line 2 = %q", lines[1])
	}
}

func TestViewTextTruncation(t *testing.T) {
	var products []Product
	for i := 0; i < 200; i++ {
		products = append(products, Product{
			Name:     fmt.Sprintf("товар с длинным названием номер %d", i),
			Spec:     strings.Repeat("x", 40),
			Category: "A",
		})
	}
	src := &stubSource{products: products}
	ix := newTestIndex(t, src, nil)
	ix.Warm(context.Background(), false)

	text := ix.ViewsFor("A")[0].Text
	if len(text) > MaxViewTextLen {
		t.Errorf("len(text) = %d, want <= %d", len(text), MaxViewTextLen)
	}
	if !strings.HasSuffix(text, "…") {
		t.Error("truncated text must end with ellipsis")
	}
}

func TestViewTextTruncationKeepsRunesWhole(t *testing.T) {
	// A single oversized line forces the cut to land mid-line, where a
	// byte-offset slice could split a Cyrillic rune in half.
	src := &stubSource{products: []Product{{
		Name:     "товар",
		Spec:     strings.Repeat("ж", MaxViewTextLen),
		Category: "A",
	}}}
	ix := newTestIndex(t, src, nil)
	ix.Warm(context.Background(), false)

	text := ix.ViewsFor("A")[0].Text
	if len(text) > MaxViewTextLen {
		t.Errorf("len(text) = %d, want <= %d", len(text), MaxViewTextLen)
	}
	if !utf8.ValidString(text) {
		t.Error("truncated text must stay valid UTF-8")
	}
	if !strings.HasSuffix(text, "…") {
		t.Error("truncated text must end with ellipsis")
	}
}

func TestEmptyIndexReads(t *testing.T) {
	src := &stubSource{}
	ix := newTestIndex(t, src, nil)

	if cats := ix.Categories(); len(cats) != 0 {
		t.Errorf("Categories() on empty index = %v", cats)
	}
	if !ix.BuiltAt().IsZero() {
		t.Error("BuiltAt() on empty index should be zero")
	}
	if c, p := ix.Stats(); c != 0 || p != 0 {
		t.Errorf("Stats() = (%d, %d), want (0, 0)", c, p)
	}
}

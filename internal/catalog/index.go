package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is the staleness window after which a non-forced Warm rebuilds
// the index.
const DefaultTTL = 10 * time.Minute

// ErrStaleView is returned when a view reference points at an index
// generation that has since been replaced by a rebuild.
var ErrStaleView = errors.New("catalog: view reference is stale")

// Source supplies the current flat product list. Implementations may cache
// with their own TTL and must be safe for concurrent use.
type Source interface {
	Fetch(ctx context.Context) ([]Product, error)
}

// snapshot is one complete, immutable build of the catalog. Readers always
// see either the previous snapshot or the next one, never a partial mix.
type snapshot struct {
	views      map[string][]View
	byRef      map[string][]Product
	categories []string
	products   int
	builtAt    time.Time
	gen        uint64
}

// Index is the process-wide catalog cache: category → rendered view blocks,
// rebuilt wholesale from the Source when stale or forced.
type Index struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	// warmMu serializes rebuilds so concurrent stale triggers collapse
	// into a single fetch. mu guards the snapshot pointer swap.
	warmMu sync.Mutex
	mu     sync.RWMutex
	snap   *snapshot
	gen    uint64
}

// IndexOpts holds parameters for creating an Index.
type IndexOpts struct {
	Source Source
	TTL    time.Duration    // defaults to DefaultTTL
	Now    func() time.Time // defaults to time.Now; injectable for tests
}

// NewIndex creates an empty Index. The first Warm populates it.
func NewIndex(opts IndexOpts) (*Index, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("catalog: index: source is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Index{source: opts.Source, ttl: ttl, now: now}, nil
}

// Warm rebuilds the index if forced, empty, or older than the TTL. The
// rebuild fetches from the Source, groups and renders all views, and swaps
// the snapshot atomically. On fetch failure the previous snapshot (if any)
// keeps serving reads and the error propagates to the caller; retry policy
// belongs to the background refresh job.
func (ix *Index) Warm(ctx context.Context, force bool) error {
	if !force && !ix.stale() {
		return nil
	}

	ix.warmMu.Lock()
	defer ix.warmMu.Unlock()

	// A concurrent Warm may have rebuilt while we waited for the lock.
	if !force && !ix.stale() {
		return nil
	}

	products, err := ix.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("catalog: fetch products: %w", err)
	}

	ix.gen++
	views, catOrder := buildViews(products, ix.gen)
	byRef := make(map[string][]Product)
	for _, blocks := range views {
		for _, v := range blocks {
			byRef[v.Ref] = v.Items
		}
	}
	snap := &snapshot{
		views:      views,
		byRef:      byRef,
		categories: sortCategories(catOrder),
		products:   len(products),
		builtAt:    ix.now(),
		gen:        ix.gen,
	}

	ix.mu.Lock()
	ix.snap = snap
	ix.mu.Unlock()
	return nil
}

// stale reports whether the index needs a rebuild: never built, empty view
// map, or past the TTL.
func (ix *Index) stale() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.snap == nil || len(ix.snap.views) == 0 {
		return true
	}
	return ix.now().Sub(ix.snap.builtAt) > ix.ttl
}

// Categories returns the current category keys: the miscellaneous sentinel
// last, everything else case-insensitive alphabetical.
func (ix *Index) Categories() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.snap == nil {
		return nil
	}
	out := make([]string, len(ix.snap.categories))
	copy(out, ix.snap.categories)
	return out
}

// ViewsFor returns the cached view blocks for a category, or nil if the
// category is unknown. An empty category is not an error; the presentation
// layer renders it as "no items".
func (ix *Index) ViewsFor(category string) []View {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.snap == nil {
		return nil
	}
	views := ix.snap.views[category]
	out := make([]View, len(views))
	copy(out, views)
	return out
}

// Resolve maps a view reference back to its item list. Refs are matched
// exactly against the current snapshot, so the category name never has to
// be parsed back out of the ref. References from an older generation fail
// with ErrStaleView: the catalog was rebuilt and the numbering the user
// saw no longer holds.
func (ix *Index) Resolve(ref string) ([]Product, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.snap == nil {
		return nil, ErrStaleView
	}
	items, ok := ix.snap.byRef[ref]
	if !ok {
		return nil, ErrStaleView
	}
	return items, nil
}

// BuiltAt returns when the current snapshot was built (zero if never).
func (ix *Index) BuiltAt() time.Time {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.snap == nil {
		return time.Time{}
	}
	return ix.snap.builtAt
}

// Stats returns category and product counts for the current snapshot.
func (ix *Index) Stats() (categories, products int) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.snap == nil {
		return 0, 0
	}
	return len(ix.snap.categories), ix.snap.products
}

// sortCategories orders category names case-insensitively with the
// miscellaneous sentinel pinned last.
func sortCategories(cats []string) []string {
	out := make([]string, len(cats))
	copy(out, cats)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i] == CategoryMisc {
			return false
		}
		if out[j] == CategoryMisc {
			return true
		}
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

package catalog

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxViewTextLen caps the rendered text of a single view block. Longer
// blocks are truncated with an ellipsis marker; the truncation is lossy
// and accepted, not an error.
const MaxViewTextLen = 4000

// View is one rendered block of a category: an ordered sequence of products
// plus the pre-built display text shown to users. Item order is the source
// insertion order and stays stable until the next index rebuild, so "item
// #3" keeps meaning the same product for the lifetime of the view.
type View struct {
	Category    string
	Subcategory string // empty for the unlabeled trailing block
	Items       []Product
	Text        string
	Ref         string // selection handle; invalidated by a rebuild
}

// ItemCount returns the number of products in the view.
func (v View) ItemCount() int { return len(v.Items) }

// buildViews groups products into per-category view blocks. Grouping is
// nested: one block per (category, subcategory) in order of first
// appearance, with products lacking a subcategory collected into a single
// unlabeled block at the end of their category.
func buildViews(products []Product, gen uint64) (map[string][]View, []string) {
	type bucket struct {
		sub   string
		items []Product
	}
	perCat := make(map[string][]*bucket)
	var catOrder []string

	for _, p := range products {
		cat := normalizeCategory(p.Category)
		if _, ok := perCat[cat]; !ok {
			catOrder = append(catOrder, cat)
		}
		sub := strings.TrimSpace(p.Subcategory)
		var b *bucket
		for _, existing := range perCat[cat] {
			if existing.sub == sub {
				b = existing
				break
			}
		}
		if b == nil {
			b = &bucket{sub: sub}
			perCat[cat] = append(perCat[cat], b)
		}
		b.items = append(b.items, p)
	}

	views := make(map[string][]View, len(perCat))
	for _, cat := range catOrder {
		buckets := perCat[cat]
		// The unlabeled block trails its category.
		ordered := make([]*bucket, 0, len(buckets))
		var unlabeled *bucket
		for _, b := range buckets {
			if b.sub == "" {
				unlabeled = b
				continue
			}
			ordered = append(ordered, b)
		}
		if unlabeled != nil {
			ordered = append(ordered, unlabeled)
		}

		blocks := make([]View, 0, len(ordered))
		for i, b := range ordered {
			blocks = append(blocks, View{
				Category:    cat,
				Subcategory: b.sub,
				Items:       b.items,
				Text:        renderViewText(b.sub, b.items),
				Ref:         viewRef(gen, cat, i),
			})
		}
		views[cat] = blocks
	}
	return views, catOrder
}

// renderViewText builds the display text for a view: an optional
// subcategory header followed by one 1-based numbered line per item.
func renderViewText(sub string, items []Product) string {
	var b strings.Builder
	if sub != "" {
		b.WriteString(sub)
		b.WriteString("\n")
	}
	for i, p := range items {
		fmt.Fprintf(&b, "%d) %s\n", i+1, p.FormatLine())
	}
	return truncateText(strings.TrimRight(b.String(), "\n"), MaxViewTextLen)
}

// truncateText cuts s to at most maxLen bytes, appending an ellipsis and
// preferring to break at a line boundary so no half-rendered item shows.
// The cut never splits a multi-byte rune.
func truncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen-1]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r != utf8.RuneError || size > 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return cut + "…"
}

// viewRef builds the selection handle for a view. The generation prefix
// ties the ref to the index build that produced it; the trailing block
// index keeps refs unique even when category names contain the separator.
// Refs are opaque to callers: Resolve matches them exactly against the
// current snapshot, never by parsing segments back out.
func viewRef(gen uint64, cat string, block int) string {
	return fmt.Sprintf("%d/%s/%d", gen, cat, block)
}

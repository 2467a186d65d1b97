// Package catalog holds the product model and the TTL-cached catalog index.
package catalog

import (
	"strings"
)

// CategoryMisc is the sentinel category for products whose source row
// carried no category. It always sorts last in category listings.
const CategoryMisc = "Прочее"

// Product is a single catalog item as fetched from the product source.
// Products are immutable snapshots: a cache rebuild replaces them wholesale
// and never patches a fetched product in place.
type Product struct {
	Name        string // required; rows without a name are dropped by sources
	Category    string // defaults to CategoryMisc
	Subcategory string
	Brand       string
	Color       string
	Model       string
	Spec        string // free-text strength/characteristics
	Description string
	Quantity    string
	Price       string // string-formatted currency, may be empty
	PhotoURL    string

	// Extra holds unrecognized source columns so downstream formatting
	// stays type-safe without losing data.
	Extra map[string]string
}

// Clone returns a deep copy of the product. Cart entries store clones so a
// later catalog refresh cannot retroactively alter an added item.
func (p Product) Clone() Product {
	cp := p
	if p.Extra != nil {
		cp.Extra = make(map[string]string, len(p.Extra))
		for k, v := range p.Extra {
			cp.Extra[k] = v
		}
	}
	return cp
}

// Key approximates product identity. The source guarantees no stable
// primary key, so (name, price) is the closest thing to one.
func (p Product) Key() string {
	return p.Name + "\x00" + p.Price
}

// FormatLine renders the product as a single display line: non-empty
// attributes joined by " — " in fixed priority order.
func (p Product) FormatLine() string {
	parts := make([]string, 0, 6)
	for _, s := range []string{p.Name, p.Brand, p.Color, p.Spec, p.Description, p.Price} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " — ")
}

// PriceMinor coerces a string-formatted price to an integer by stripping
// everything that is not an ASCII digit. "12 300 ₽" → 12300, "9,200₽" →
// 9200. Non-ASCII digit runes are stripped like any other noise so they
// cannot skew the value. Absent or unparseable prices coerce to 0.
func PriceMinor(price string) int {
	total := 0
	seen := false
	for _, r := range price {
		if r >= '0' && r <= '9' {
			total = total*10 + int(r-'0')
			seen = true
		}
	}
	if !seen {
		return 0
	}
	return total
}

// normalizeCategory maps an empty category to the sentinel.
func normalizeCategory(cat string) string {
	cat = strings.TrimSpace(cat)
	if cat == "" {
		return CategoryMisc
	}
	return cat
}

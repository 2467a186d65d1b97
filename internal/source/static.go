package source

import (
	"context"

	"github.com/msaseller/storefront/internal/catalog"
)

// Static is a fixed in-memory product source, used for local development
// and as a test double.
type Static struct {
	Products []catalog.Product
}

// Fetch returns a copy of the configured product list.
func (s *Static) Fetch(ctx context.Context) ([]catalog.Product, error) {
	return copyProducts(s.Products), nil
}

// Package storefront exposes the bot's user-facing operations: catalog
// browsing, pagination, item selection, cart, and checkout. It binds the
// catalog index to per-user session state and the order log.
package storefront

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/msaseller/storefront/internal/catalog"
	"github.com/msaseller/storefront/internal/session"
	"gorm.io/gorm"
)

// RenderBlock is one displayable catalog block: pre-rendered text plus the
// metadata the transport needs for follow-up actions.
type RenderBlock struct {
	Text      string
	ItemCount int
	ViewRef   string
}

// PageBlock is one product card in a paginated category walk.
type PageBlock struct {
	Text    string
	Index   int
	Total   int
	HasPrev bool
	HasNext bool
}

// Sink receives the rendered order text at checkout. In production this is
// the chat adapter posting to the manager channel.
type Sink interface {
	Deliver(ctx context.Context, orderText string) error
}

// Service wires the catalog index, session store, and order log together.
type Service struct {
	index    *catalog.Index
	sessions *session.Store
	db       *gorm.DB // optional; order log disabled when nil
	sink     Sink     // optional; checkout still succeeds without one
	out      io.Writer
}

// ServiceOpts holds parameters for creating a Service.
type ServiceOpts struct {
	Index    *catalog.Index
	Sessions *session.Store // defaults to a fresh store
	DB       *gorm.DB       // optional order log
	Sink     Sink           // optional checkout notification sink
	Out      io.Writer      // defaults to os.Stdout
}

// New creates a Service.
func New(opts ServiceOpts) (*Service, error) {
	if opts.Index == nil {
		return nil, fmt.Errorf("storefront: index is required")
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewStore()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Service{
		index:    opts.Index,
		sessions: sessions,
		db:       opts.DB,
		sink:     opts.Sink,
		out:      out,
	}, nil
}

// WarmCatalog rebuilds the catalog if forced or stale. Source failures
// propagate; an existing snapshot keeps serving reads.
func (s *Service) WarmCatalog(ctx context.Context, force bool) error {
	return s.index.Warm(ctx, force)
}

// ListCategories returns the current category names, miscellaneous last.
func (s *Service) ListCategories() []string {
	return s.index.Categories()
}

// OpenCategory returns the rendered view blocks for a category. An unknown
// or empty category yields no blocks; the presentation layer shows a
// "no items" message.
func (s *Service) OpenCategory(category string) []RenderBlock {
	views := s.index.ViewsFor(category)
	blocks := make([]RenderBlock, 0, len(views))
	for _, v := range views {
		blocks = append(blocks, RenderBlock{
			Text:      v.Text,
			ItemCount: v.ItemCount(),
			ViewRef:   v.Ref,
		})
	}
	return blocks
}

// OpenPage starts a card-by-card walk of a category at page 0. Opening a
// category is a navigate-away: any pending selection is discarded.
func (s *Service) OpenPage(user, category string) (PageBlock, bool) {
	s.sessions.EndSelection(user)
	items := s.categoryItems(category)
	idx := s.sessions.OpenCursor(user, category)
	return s.pageAt(items, idx)
}

// Page advances the user's cursor for a category and returns the resulting
// card. Moving past either bound returns the current page unchanged.
func (s *Service) Page(user, category string, dir session.Direction) (PageBlock, bool) {
	items := s.categoryItems(category)
	idx := s.sessions.AdvanceCursor(user, category, dir, len(items))
	return s.pageAt(items, idx)
}

// categoryItems flattens a category's view blocks into one ordered list,
// matching the order the rendered views present.
func (s *Service) categoryItems(category string) []catalog.Product {
	var items []catalog.Product
	for _, v := range s.index.ViewsFor(category) {
		items = append(items, v.Items...)
	}
	return items
}

// pageAt renders the card at idx. ok is false for an empty category.
func (s *Service) pageAt(items []catalog.Product, idx int) (PageBlock, bool) {
	if len(items) == 0 {
		return PageBlock{}, false
	}
	if idx > len(items)-1 {
		idx = len(items) - 1
	}
	return PageBlock{
		Text:    items[idx].FormatLine(),
		Index:   idx,
		Total:   len(items),
		HasPrev: idx > 0,
		HasNext: idx < len(items)-1,
	}, true
}

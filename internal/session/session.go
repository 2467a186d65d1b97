// Package session tracks per-user interaction state: cart contents, page
// cursors, and the pending-selection state machine. One aggregate per user
// replaces the separate cart/page/selection maps the data would otherwise
// drift across.
package session

import (
	"sync"

	"github.com/msaseller/storefront/internal/catalog"
)

// Direction moves a page cursor.
type Direction int

const (
	Prev Direction = iota
	Next
)

// Phase is the user's navigation phase.
type Phase int

const (
	// Idle: no selection prompt outstanding.
	Idle Phase = iota
	// AwaitingSelection: the user was shown a numbered list and asked to
	// reply with item numbers.
	AwaitingSelection
)

// NavState is the per-user navigation state. ViewRef and PromptRef are only
// meaningful in the AwaitingSelection phase.
type NavState struct {
	Phase     Phase
	ViewRef   string // the view whose numbering the reply is parsed against
	PromptRef string // the prompt message anchoring the reply
}

// Session is one user's interaction state. All access goes through the
// Store, which serializes operations per user; two overlapping events on
// the same user resolve last-write-wins.
type Session struct {
	mu      sync.Mutex
	cart    []catalog.Product
	cursors map[string]int // category → current page index
	nav     NavState
}

// Store holds sessions keyed by user id. Sessions are created lazily on
// first interaction and live until process exit; operations on different
// users never block each other.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// session returns the user's session, creating it if needed.
func (s *Store) session(user string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[user]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[user]; ok {
		return sess
	}
	sess = &Session{cursors: make(map[string]int)}
	s.sessions[user] = sess
	return sess
}

// AddToCart appends a deep copy of the product to the user's cart.
// Unconditional: repeated adds of the same item produce repeated lines.
func (s *Store) AddToCart(user string, p catalog.Product) {
	sess := s.session(user)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.cart = append(sess.cart, p.Clone())
}

// CartSnapshot returns a copy of the user's cart contents, empty if none.
func (s *Store) CartSnapshot(user string) []catalog.Product {
	sess := s.session(user)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]catalog.Product, len(sess.cart))
	for i, p := range sess.cart {
		out[i] = p.Clone()
	}
	return out
}

// ClearCart empties the user's cart. Used after checkout.
func (s *Store) ClearCart(user string) {
	sess := s.session(user)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.cart = nil
}

// CartTotal sums the coerced integer prices of the user's cart.
func (s *Store) CartTotal(user string) int {
	return CartTotal(s.CartSnapshot(user))
}

// CartTotal sums the coerced integer prices of a cart snapshot.
// Unparseable prices count as 0.
func CartTotal(items []catalog.Product) int {
	total := 0
	for _, p := range items {
		total += catalog.PriceMinor(p.Price)
	}
	return total
}

// OpenCursor resets the user's cursor for a category to page 0 and
// returns it.
func (s *Store) OpenCursor(user, category string) int {
	sess := s.session(user)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.cursors[category] = 0
	return 0
}

// AdvanceCursor moves the user's cursor for a category by one page in the
// given direction, clamped to [0, count-1]. Moving past either bound is a
// no-op, not an error. Returns the resulting index.
func (s *Store) AdvanceCursor(user, category string, dir Direction, count int) int {
	sess := s.session(user)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	idx := sess.cursors[category]
	switch dir {
	case Next:
		idx++
	case Prev:
		idx--
	}
	if idx < 0 {
		idx = 0
	}
	if max := count - 1; idx > max {
		if max < 0 {
			max = 0
		}
		idx = max
	}
	sess.cursors[category] = idx
	return idx
}

// Cursor returns the user's current page index for a category.
func (s *Store) Cursor(user, category string) int {
	sess := s.session(user)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.cursors[category]
}

// StartSelection moves the user to AwaitingSelection, recording which
// view's numbering replies will be parsed against. A new StartSelection
// supersedes any pending one.
func (s *Store) StartSelection(user, viewRef, promptRef string) {
	sess := s.session(user)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.nav = NavState{Phase: AwaitingSelection, ViewRef: viewRef, PromptRef: promptRef}
}

// Nav returns the user's current navigation state.
func (s *Store) Nav(user string) NavState {
	sess := s.session(user)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.nav
}

// EndSelection returns the user to Idle, discarding any pending prompt.
// Called on successful picks, stale views, and navigate-away.
func (s *Store) EndSelection(user string) {
	sess := s.session(user)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.nav = NavState{}
}

// Users returns the ids of all sessions created so far.
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for u := range s.sessions {
		out = append(out, u)
	}
	return out
}

package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/msaseller/storefront/internal/catalog"
)

func TestCartIsolationBetweenUsers(t *testing.T) {
	s := NewStore()
	s.AddToCart("u1", catalog.Product{Name: "iPhone 15", Price: "75 000 ₽"})

	if got := s.CartSnapshot("u2"); len(got) != 0 {
		t.Errorf("u2 cart = %v, want empty", got)
	}
	if got := s.CartSnapshot("u1"); len(got) != 1 {
		t.Errorf("u1 cart len = %d, want 1", len(got))
	}
}

func TestCartAppendsAreCopies(t *testing.T) {
	s := NewStore()
	p := catalog.Product{Name: "x", Extra: map[string]string{"k": "v"}}
	s.AddToCart("u", p)
	p.Extra["k"] = "mutated"

	snap := s.CartSnapshot("u")
	if snap[0].Extra["k"] != "v" {
		t.Error("cart must hold deep copies, not references")
	}
}

func TestRepeatedAddsProduceRepeatedLines(t *testing.T) {
	s := NewStore()
	p := catalog.Product{Name: "AirPods", Price: "20 000 ₽"}
	s.AddToCart("u", p)
	s.AddToCart("u", p)
	if got := len(s.CartSnapshot("u")); got != 2 {
		t.Errorf("cart len = %d, want 2", got)
	}
}

func TestCartTotalCoercesPrices(t *testing.T) {
	s := NewStore()
	s.AddToCart("u", catalog.Product{Name: "a", Price: "12 300 ₽"})
	s.AddToCart("u", catalog.Product{Name: "b", Price: "9,200₽"})
	s.AddToCart("u", catalog.Product{Name: "c", Price: ""})
	if got := s.CartTotal("u"); got != 21500 {
		t.Errorf("CartTotal = %d, want 21500", got)
	}
}

func TestClearCart(t *testing.T) {
	s := NewStore()
	s.AddToCart("u", catalog.Product{Name: "x"})
	s.ClearCart("u")
	if got := s.CartSnapshot("u"); len(got) != 0 {
		t.Errorf("cart after clear = %v, want empty", got)
	}
}

func TestCursorOpenResetsToZero(t *testing.T) {
	s := NewStore()
	s.OpenCursor("u", "iPhone")
	s.AdvanceCursor("u", "iPhone", Next, 5)
	if got := s.OpenCursor("u", "iPhone"); got != 0 {
		t.Errorf("OpenCursor = %d, want 0", got)
	}
}

func TestCursorClampsAtBounds(t *testing.T) {
	s := NewStore()
	s.OpenCursor("u", "cat")

	// Advance past the last page: stays on the last page, no error.
	for i := 0; i < 10; i++ {
		s.AdvanceCursor("u", "cat", Next, 3)
	}
	if got := s.Cursor("u", "cat"); got != 2 {
		t.Errorf("cursor after over-advance = %d, want 2", got)
	}

	for i := 0; i < 10; i++ {
		s.AdvanceCursor("u", "cat", Prev, 3)
	}
	if got := s.Cursor("u", "cat"); got != 0 {
		t.Errorf("cursor after over-retreat = %d, want 0", got)
	}
}

func TestCursorEmptyList(t *testing.T) {
	s := NewStore()
	if got := s.AdvanceCursor("u", "cat", Next, 0); got != 0 {
		t.Errorf("advance on empty list = %d, want 0", got)
	}
}

func TestCursorsPerCategory(t *testing.T) {
	s := NewStore()
	s.OpenCursor("u", "a")
	s.AdvanceCursor("u", "a", Next, 5)
	s.OpenCursor("u", "b")
	if got := s.Cursor("u", "a"); got != 1 {
		t.Errorf("cursor a = %d, want 1 (opening b must not touch a)", got)
	}
}

func TestSelectionStateMachine(t *testing.T) {
	s := NewStore()
	if nav := s.Nav("u"); nav.Phase != Idle {
		t.Fatalf("fresh session phase = %v, want Idle", nav.Phase)
	}

	s.StartSelection("u", "1/iPhone/15 Pro", "msg-42")
	nav := s.Nav("u")
	if nav.Phase != AwaitingSelection || nav.ViewRef != "1/iPhone/15 Pro" || nav.PromptRef != "msg-42" {
		t.Fatalf("nav after StartSelection = %+v", nav)
	}

	s.EndSelection("u")
	if nav := s.Nav("u"); nav.Phase != Idle || nav.ViewRef != "" {
		t.Fatalf("nav after EndSelection = %+v, want Idle", nav)
	}
}

func TestStartSelectionSupersedesPending(t *testing.T) {
	s := NewStore()
	s.StartSelection("u", "ref-old", "p1")
	s.StartSelection("u", "ref-new", "p2")
	if nav := s.Nav("u"); nav.ViewRef != "ref-new" {
		t.Errorf("ViewRef = %q, want ref-new", nav.ViewRef)
	}
}

func TestConcurrentUsersDoNotInterfere(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", n)
			for j := 0; j < 50; j++ {
				s.AddToCart(user, catalog.Product{Name: "x", Price: "100"})
				s.AdvanceCursor(user, "cat", Next, 10)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		user := fmt.Sprintf("u%d", i)
		if got := len(s.CartSnapshot(user)); got != 50 {
			t.Errorf("%s cart len = %d, want 50", user, got)
		}
	}
}

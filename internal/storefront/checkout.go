package storefront

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/msaseller/storefront/internal/catalog"
	"github.com/msaseller/storefront/internal/orders"
	"github.com/msaseller/storefront/internal/session"
)

// ErrEmptyCart is returned by Checkout when the user's cart has nothing in
// it. No state changes.
var ErrEmptyCart = errors.New("storefront: cart is empty")

// CartSnapshot returns the user's current cart contents.
func (s *Service) CartSnapshot(user string) []catalog.Product {
	return s.sessions.CartSnapshot(user)
}

// CartTotal returns the coerced integer sum of the user's cart prices.
func (s *Service) CartTotal(user string) int {
	return s.sessions.CartTotal(user)
}

// CartText renders the user's cart as numbered lines with a total footer,
// or an empty-cart notice.
func (s *Service) CartText(user string) string {
	cart := s.sessions.CartSnapshot(user)
	if len(cart) == 0 {
		return "🛒 Ваша корзина пока пуста."
	}
	var b strings.Builder
	b.WriteString("🛒 Ваша корзина:\n\n")
	writeCartLines(&b, cart)
	fmt.Fprintf(&b, "\nИтого: %s ₽", groupDigits(session.CartTotal(cart)))
	return b.String()
}

// Checkout turns the cart into an order: renders the order text, logs it,
// and hands it to the notification sink. The cart is cleared only after
// both the log write and the handoff succeed; a failed downstream step
// leaves the cart intact so the user can retry.
func (s *Service) Checkout(ctx context.Context, user, userName, platform string) (orderText string, cleared bool, err error) {
	cart := s.sessions.CartSnapshot(user)
	if len(cart) == 0 {
		return "", false, ErrEmptyCart
	}

	orderText = renderOrderText(user, userName, cart)

	if s.db != nil {
		order, err := orders.Log(s.db, user, userName, platform, cart)
		if err != nil {
			return "", false, err
		}
		log.Printf("storefront: order %d logged [user=%s items=%d total=%d]",
			order.ID, user, len(cart), order.TotalMinor)
	}

	if s.sink != nil {
		if err := s.sink.Deliver(ctx, orderText); err != nil {
			return "", false, fmt.Errorf("storefront: deliver order: %w", err)
		}
	}

	s.sessions.ClearCart(user)
	return orderText, true, nil
}

// renderOrderText builds the order summary sent to the manager channel.
func renderOrderText(user, userName string, cart []catalog.Product) string {
	var b strings.Builder
	b.WriteString("🧾 Новый заказ\n")
	fmt.Fprintf(&b, "Дата: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	name := userName
	if name == "" {
		name = "—"
	}
	fmt.Fprintf(&b, "Клиент: %s, id=%s\n\n", name, user)
	writeCartLines(&b, cart)
	fmt.Fprintf(&b, "\nИтого: %s ₽", groupDigits(session.CartTotal(cart)))
	return b.String()
}

// writeCartLines appends "N. name — color — spec — price" lines, skipping
// empty fields.
func writeCartLines(b *strings.Builder, cart []catalog.Product) {
	for i, p := range cart {
		parts := []string{p.Name}
		for _, s := range []string{p.Color, p.Spec, p.Price} {
			if s != "" {
				parts = append(parts, s)
			}
		}
		fmt.Fprintf(b, "%d. %s\n", i+1, strings.Join(parts, " — "))
	}
}

// groupDigits formats n with a space as the thousands separator.
func groupDigits(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

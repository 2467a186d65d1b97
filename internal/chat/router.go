package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/msaseller/storefront/internal/session"
	"github.com/msaseller/storefront/internal/storefront"
)

// helpText is sent for messages the router cannot classify.
const helpText = "Я бот-магазин. Команды:\n" +
	"• меню — список категорий\n" +
	"• <название категории> — открыть категорию\n" +
	"• выбрать [N] — выбрать товары из блока N\n" +
	"• карточки — листать товары по одному (вперёд / назад)\n" +
	"• корзина — показать корзину\n" +
	"• заказать — оформить заказ\n" +
	"• обновить — перечитать каталог"

// Refresher forces a catalog rebuild past the source cache. Satisfied by
// refresh.Job; optional.
type Refresher interface {
	RunOnce(ctx context.Context) error
}

// Router classifies inbound chat messages and routes them to storefront
// operations. It keeps only presentation state (the last category each
// user opened); cart and selection state live in the storefront service.
type Router struct {
	svc       *storefront.Service
	adapter   Adapter
	refresher Refresher
	botUserID string // the bot's own user ID (to filter self-messages)
	out       io.Writer

	mu           sync.RWMutex
	lastCategory map[string]string // user ID → last opened category
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Service   *storefront.Service
	Adapter   Adapter
	Refresher Refresher // optional; enables the "обновить" command
	BotUserID string    // bot's user ID for self-message filtering
	Out       io.Writer // defaults to os.Stdout
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("chat: router: service is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("chat: router: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Router{
		svc:          opts.Service,
		adapter:      opts.Adapter,
		refresher:    opts.Refresher,
		botUserID:    opts.BotUserID,
		out:          out,
		lastCategory: make(map[string]string),
	}, nil
}

// Pump consumes inbound messages from the adapter until ctx is cancelled
// or the adapter closes its channel. Listen must be possible, so the
// adapter has to be connected first.
func (r *Router) Pump(ctx context.Context) error {
	ch, err := r.adapter.Listen(ctx)
	if err != nil {
		return fmt.Errorf("chat: router: listen: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.Handle(ctx, msg)
		}
	}
}

// Handle classifies and routes a single inbound message. Routing paths:
//  1. Bot self-message → ignore
//  2. Menu / cart / checkout / refresh commands → dedicated handlers
//  3. "выбрать [N]" → start selection against a block of the last category
//  4. Category name → open that category
//  5. Anything else → pending selection reply, or help
func (r *Router) Handle(ctx context.Context, msg InboundMessage) {
	if r.isSelfMessage(msg) {
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	fmt.Fprintf(r.out, "chat: router: recv [ch=%s user=%s] %q\n",
		msg.ChannelID, msg.UserName, truncate(text, 80))

	lower := strings.ToLower(strings.TrimPrefix(text, "/"))
	switch lower {
	case "start", "menu", "меню", "📂 меню", "catalog", "категории":
		r.handleMenu(ctx, msg)
		return
	case "cart", "корзина", "🛒 корзина":
		r.send(ctx, msg.ChannelID, r.svc.CartText(msg.UserID))
		return
	case "checkout", "заказать", "оформить", "оформить заказ":
		r.handleCheckout(ctx, msg)
		return
	case "refresh", "обновить":
		r.handleRefresh(ctx, msg)
		return
	case "help", "помощь":
		r.send(ctx, msg.ChannelID, helpText)
		return
	case "cards", "карточки":
		r.handleCards(ctx, msg)
		return
	case "next", "вперёд", "вперед":
		r.handlePage(ctx, msg, session.Next)
		return
	case "prev", "назад":
		r.handlePage(ctx, msg, session.Prev)
		return
	}

	if arg, ok := selectArg(lower); ok {
		r.handleSelect(ctx, msg, arg)
		return
	}

	if cat, ok := r.matchCategory(text); ok {
		r.handleOpenCategory(ctx, msg, cat)
		return
	}

	// Free text: either a reply to a pending selection prompt, or noise.
	_, reply, err := r.svc.SubmitSelection(msg.UserID, text)
	if errors.Is(err, storefront.ErrNoSelectionPending) {
		fmt.Fprintf(r.out, "chat: router: → help (no command, no pending selection)\n")
		r.send(ctx, msg.ChannelID, helpText)
		return
	}
	fmt.Fprintf(r.out, "chat: router: → selection reply\n")
	r.send(ctx, msg.ChannelID, reply)
}

// handleMenu warms the catalog and sends the category list. The first load
// can be slow (cold sheet fetch), so an ack goes out before warming.
func (r *Router) handleMenu(ctx context.Context, msg InboundMessage) {
	if len(r.svc.ListCategories()) == 0 {
		r.send(ctx, msg.ChannelID, "⏳ Загружаю каталог...")
	}
	if err := r.svc.WarmCatalog(ctx, false); err != nil {
		log.Printf("chat: router: warm catalog: %v", err)
	}
	cats := r.svc.ListCategories()
	if len(cats) == 0 {
		r.send(ctx, msg.ChannelID, "⚠️ Каталог временно недоступен, попробуйте позже.")
		return
	}
	var b strings.Builder
	b.WriteString("📂 Категории:\n")
	for _, c := range cats {
		fmt.Fprintf(&b, "• %s\n", c)
	}
	b.WriteString("\nОтправьте название категории, чтобы открыть её.")
	r.send(ctx, msg.ChannelID, b.String())
}

// handleOpenCategory renders the category's blocks and, when the category
// fits a single block, immediately starts selection against it. Opening a
// category discards any pending selection prompt.
func (r *Router) handleOpenCategory(ctx context.Context, msg InboundMessage, category string) {
	fmt.Fprintf(r.out, "chat: router: → open category %q\n", category)
	r.svc.NavigateAway(msg.UserID)
	if err := r.svc.WarmCatalog(ctx, false); err != nil {
		log.Printf("chat: router: warm catalog: %v", err)
	}

	blocks := r.svc.OpenCategory(category)
	if len(blocks) == 0 {
		r.send(ctx, msg.ChannelID, "В этой категории пока нет товаров.")
		return
	}
	r.setLastCategory(msg.UserID, category)

	for _, b := range blocks {
		r.send(ctx, msg.ChannelID, b.Text)
	}

	if len(blocks) == 1 {
		prompt, err := r.svc.StartSelection(msg.UserID, blocks[0].ViewRef)
		if err != nil {
			log.Printf("chat: router: start selection: %v", err)
			return
		}
		r.send(ctx, msg.ChannelID, prompt)
		return
	}
	r.send(ctx, msg.ChannelID,
		fmt.Sprintf("Чтобы выбрать товары, ответьте: выбрать <номер блока> (1–%d)", len(blocks)))
}

// handleSelect starts selection against block arg (1-based) of the user's
// last opened category. An empty arg targets the first block.
func (r *Router) handleSelect(ctx context.Context, msg InboundMessage, arg string) {
	category, ok := r.getLastCategory(msg.UserID)
	if !ok {
		r.send(ctx, msg.ChannelID, "Сначала откройте категорию.")
		return
	}
	blocks := r.svc.OpenCategory(category)
	if len(blocks) == 0 {
		r.send(ctx, msg.ChannelID, "⚠️ Список устарел, откройте категорию заново.")
		return
	}

	n := 1
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 || v > len(blocks) {
			r.send(ctx, msg.ChannelID,
				fmt.Sprintf("Укажите номер блока от 1 до %d.", len(blocks)))
			return
		}
		n = v
	}

	prompt, err := r.svc.StartSelection(msg.UserID, blocks[n-1].ViewRef)
	if err != nil {
		r.send(ctx, msg.ChannelID, "⚠️ Список устарел, откройте категорию заново.")
		return
	}
	fmt.Fprintf(r.out, "chat: router: → selection started [user=%s block=%d]\n", msg.UserID, n)
	r.send(ctx, msg.ChannelID, prompt)
}

// handleCards opens a card-by-card walk of the last opened category.
func (r *Router) handleCards(ctx context.Context, msg InboundMessage) {
	category, ok := r.getLastCategory(msg.UserID)
	if !ok {
		r.send(ctx, msg.ChannelID, "Сначала откройте категорию.")
		return
	}
	page, ok := r.svc.OpenPage(msg.UserID, category)
	if !ok {
		r.send(ctx, msg.ChannelID, "В этой категории пока нет товаров.")
		return
	}
	r.send(ctx, msg.ChannelID, renderPage(page))
}

// handlePage advances the card walk for the last opened category.
func (r *Router) handlePage(ctx context.Context, msg InboundMessage, dir session.Direction) {
	category, ok := r.getLastCategory(msg.UserID)
	if !ok {
		r.send(ctx, msg.ChannelID, "Сначала откройте категорию.")
		return
	}
	page, ok := r.svc.Page(msg.UserID, category, dir)
	if !ok {
		r.send(ctx, msg.ChannelID, "В этой категории пока нет товаров.")
		return
	}
	r.send(ctx, msg.ChannelID, renderPage(page))
}

// handleCheckout turns the cart into an order. The service posts the order
// to the manager channel through its sink; the user gets a confirmation.
func (r *Router) handleCheckout(ctx context.Context, msg InboundMessage) {
	_, _, err := r.svc.Checkout(ctx, msg.UserID, msg.UserName, msg.Platform)
	if errors.Is(err, storefront.ErrEmptyCart) {
		r.send(ctx, msg.ChannelID, "🛒 Ваша корзина пока пуста.")
		return
	}
	if err != nil {
		log.Printf("chat: router: checkout: %v", err)
		r.send(ctx, msg.ChannelID, "⚠️ Не удалось оформить заказ, попробуйте позже.")
		return
	}
	fmt.Fprintf(r.out, "chat: router: → checkout complete [user=%s]\n", msg.UserID)
	r.send(ctx, msg.ChannelID, "✅ Заказ принят! Менеджер скоро свяжется с вами.")
}

// handleRefresh forces a catalog rebuild past the source cache.
func (r *Router) handleRefresh(ctx context.Context, msg InboundMessage) {
	if r.refresher == nil {
		r.send(ctx, msg.ChannelID, "Обновление каталога здесь не настроено.")
		return
	}
	if err := r.refresher.RunOnce(ctx); err != nil {
		log.Printf("chat: router: refresh: %v", err)
		r.send(ctx, msg.ChannelID, "⚠️ Не удалось обновить каталог.")
		return
	}
	r.send(ctx, msg.ChannelID, "🔄 Каталог обновлён.")
}

// matchCategory resolves text to a current category name, case-insensitively.
func (r *Router) matchCategory(text string) (string, bool) {
	for _, c := range r.svc.ListCategories() {
		if strings.EqualFold(text, c) {
			return c, true
		}
	}
	return "", false
}

// selectArg extracts the block-number argument from a "выбрать [N]" or
// "select [N]" command. ok is false when the text is not a select command.
func selectArg(lower string) (string, bool) {
	for _, prefix := range []string{"выбрать", "select"} {
		if lower == prefix {
			return "", true
		}
		if strings.HasPrefix(lower, prefix+" ") {
			return strings.TrimSpace(lower[len(prefix):]), true
		}
	}
	return "", false
}

// renderPage formats one product card with its position footer.
func renderPage(p storefront.PageBlock) string {
	return fmt.Sprintf("%s\n\n(%d/%d)", p.Text, p.Index+1, p.Total)
}

func (r *Router) setLastCategory(user, category string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastCategory[user] = category
}

func (r *Router) getLastCategory(user string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.lastCategory[user]
	return c, ok
}

// send delivers text to a channel, logging delivery failures.
func (r *Router) send(ctx context.Context, channelID, text string) {
	if err := r.adapter.Send(ctx, OutboundMessage{ChannelID: channelID, Text: text}); err != nil {
		log.Printf("chat: router: send: %v", err)
	}
}

// isSelfMessage returns true if the message is from the bot itself.
func (r *Router) isSelfMessage(msg InboundMessage) bool {
	return r.botUserID != "" && msg.UserID == r.botUserID
}

// truncate returns s truncated to maxLen with "..." appended if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

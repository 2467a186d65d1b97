package storefront

import (
	"errors"
	"fmt"

	"github.com/msaseller/storefront/internal/catalog"
	"github.com/msaseller/storefront/internal/session"
)

// User-facing selection messages. The shop's audience is Russian-speaking,
// matching the product data.
const (
	msgSelectionPrompt  = "Введите номера товаров через запятую, например: 1, 3-5, 8"
	msgSelectionRetry   = "Не распознал номера. Введите их через запятую, например: 1, 3-5, 8"
	msgSelectionExpired = "⚠️ Список устарел, откройте категорию заново."
	msgNoPending        = "Сначала откройте категорию и нажмите «Выбрать»."
)

// ErrNoSelectionPending is returned by SubmitSelection when the user has no
// outstanding selection prompt.
var ErrNoSelectionPending = errors.New("storefront: no selection pending")

// StartSelection records the view whose numbering the user's next reply is
// parsed against and returns the prompt text to show. The view ref must
// resolve against the current catalog generation.
func (s *Service) StartSelection(user, viewRef string) (string, error) {
	if _, err := s.index.Resolve(viewRef); err != nil {
		return "", err
	}
	s.sessions.StartSelection(user, viewRef, viewRef)
	return msgSelectionPrompt, nil
}

// SubmitSelection parses the user's free-text picks against the pending
// view. Valid picks are copied into the cart and the session returns to
// Idle. Zero valid picks keep the selection pending with a retry message.
// A view ref invalidated by a catalog rebuild resets to Idle with an
// "expired" message.
func (s *Service) SubmitSelection(user, rawText string) (added []catalog.Product, message string, err error) {
	nav := s.sessions.Nav(user)
	if nav.Phase != session.AwaitingSelection {
		return nil, msgNoPending, ErrNoSelectionPending
	}

	items, err := s.index.Resolve(nav.ViewRef)
	if err != nil {
		s.sessions.EndSelection(user)
		return nil, msgSelectionExpired, nil
	}

	picks := session.ParseSelection(rawText, len(items))
	if len(picks) == 0 {
		// Stay in AwaitingSelection so the user can retry.
		return nil, msgSelectionRetry, nil
	}

	for _, i := range picks {
		s.sessions.AddToCart(user, items[i])
		added = append(added, items[i])
	}
	s.sessions.EndSelection(user)
	return added, fmt.Sprintf("✅ Добавлено в корзину: %d", len(added)), nil
}

// NavigateAway discards any pending selection prompt. Called whenever the
// user opens a different category or an action supersedes the prompt.
func (s *Service) NavigateAway(user string) {
	s.sessions.EndSelection(user)
}

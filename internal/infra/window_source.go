package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// WindowSourceImpl implements domain.WindowSource on top of an OS lister.
type WindowSourceImpl struct {
	lister domain.WindowLister
}

// NewWindowSource creates a window source for lister.
func NewWindowSource(lister domain.WindowLister) domain.WindowSource {
	return &WindowSourceImpl{lister: lister}
}

// Enumerate lists windows and applies FilterWindows.
func (s *WindowSourceImpl) Enumerate(ctx context.Context, ignored []string) ([]domain.WindowHandle, error) {
	raw, err := s.lister.ListWindows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list windows: %w", err)
	}
	return FilterWindows(raw, ignored), nil
}

// FilterWindows trims titles, drops empty ones, keeps the first window per
// title and removes any title containing an ignored keyword (case-sensitive).
// Enumeration order is preserved.
func FilterWindows(raw []domain.WindowHandle, ignored []string) []domain.WindowHandle {
	seen := make(map[string]bool, len(raw))
	out := make([]domain.WindowHandle, 0, len(raw))

	for _, w := range raw {
		w.Title = strings.TrimSpace(w.Title)
		if w.Title == "" || seen[w.Title] {
			continue
		}
		if containsAny(w.Title, ignored) {
			continue
		}
		seen[w.Title] = true
		out = append(out, w)
	}
	return out
}

func containsAny(title string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(title, k) {
			return true
		}
	}
	return false
}

// Ensure WindowSourceImpl implements domain.WindowSource.
var _ domain.WindowSource = (*WindowSourceImpl)(nil)

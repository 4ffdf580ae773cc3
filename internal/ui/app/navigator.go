package app

import tea "github.com/charmbracelet/bubbletea"

// RedirectMsg sends the operator back to the entry view.
type RedirectMsg struct{ Reason string }

// Navigator lets code outside the Bubble Tea loop request a redirect to the
// entry view. Pending redirects coalesce; only the latest reason is kept.
type Navigator struct {
	redirects chan string
}

func NewNavigator() *Navigator {
	return &Navigator{redirects: make(chan string, 1)}
}

func (n *Navigator) ToEntry(reason string) {
	select {
	case <-n.redirects:
	default:
	}
	select {
	case n.redirects <- reason:
	default:
	}
}

// Pending takes the queued redirect, if any, without blocking.
func (n *Navigator) Pending() (string, bool) {
	select {
	case reason := <-n.redirects:
		return reason, true
	default:
		return "", false
	}
}

func (n *Navigator) wait() tea.Cmd {
	return func() tea.Msg {
		return RedirectMsg{Reason: <-n.redirects}
	}
}

package login

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	sessiondto "dispatchdesk/internal/modules/session/dto"
	apperrors "dispatchdesk/internal/platform/errors"
)

type fakeLogin struct {
	email, password string
	err             error
}

func (f *fakeLogin) Login(_ context.Context, email, password string) (sessiondto.SessionOutput, error) {
	f.email, f.password = email, password
	if f.err != nil {
		return sessiondto.SessionOutput{}, f.err
	}
	return sessiondto.SessionOutput{Status: sessiondto.StatusAuthenticated}, nil
}

func typeText(m Model, text string) Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

// run executes cmd and returns the first DoneMsg it produces.
func run(t *testing.T, cmd tea.Cmd) DoneMsg {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	switch msg := cmd().(type) {
	case DoneMsg:
		return msg
	case tea.BatchMsg:
		for _, c := range msg {
			if c == nil {
				continue
			}
			if done, ok := c().(DoneMsg); ok {
				return done
			}
		}
	}
	t.Fatalf("no login result produced")
	return DoneMsg{}
}

func TestSubmitSendsCredentials(t *testing.T) {
	t.Parallel()
	port := &fakeLogin{}
	m := New(port)
	m.Reset("")
	m = typeText(m, " admin@dispatchdesk.test ")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = typeText(m, "secret")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.Pending() {
		t.Fatalf("expected pending login")
	}
	done := run(t, cmd)
	if done.Err != nil || port.email != "admin@dispatchdesk.test" || port.password != "secret" {
		t.Fatalf("unexpected login: %+v %q %q", done, port.email, port.password)
	}
	m, _ = m.Update(done)
	if m.Pending() {
		t.Fatalf("login still pending")
	}
}

func TestEmptyFieldsAreNotSubmitted(t *testing.T) {
	t.Parallel()
	port := &fakeLogin{}
	m := New(port)
	m.Reset("")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || m.Pending() {
		t.Fatalf("empty form was submitted")
	}
	if m.errText == "" {
		t.Fatalf("expected a validation message")
	}
}

func TestRejectedLoginShowsMessage(t *testing.T) {
	t.Parallel()
	m := New(&fakeLogin{})
	m.Reset("")
	m, _ = m.Update(DoneMsg{Err: apperrors.ErrRoleNotAllowed})
	if m.errText != "this account may not use the console" {
		t.Fatalf("unexpected error text %q", m.errText)
	}
	m, _ = m.Update(DoneMsg{Err: apperrors.ErrLoginRejected})
	if m.errText != "Username or password does not exist" {
		t.Fatalf("unexpected error text %q", m.errText)
	}
}

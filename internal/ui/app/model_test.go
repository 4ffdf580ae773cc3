package app

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	dashboarddto "dispatchdesk/internal/modules/dashboard/dto"
	sessiondto "dispatchdesk/internal/modules/session/dto"
	"dispatchdesk/internal/ui/gate"
)

type fakeSession struct {
	changes   chan sessiondto.SessionOutput
	loggedOut int
}

func (f *fakeSession) Restore(context.Context) (sessiondto.SessionOutput, error) {
	return sessiondto.SessionOutput{}, nil
}

func (f *fakeSession) Login(context.Context, string, string) (sessiondto.SessionOutput, error) {
	return sessiondto.SessionOutput{Status: sessiondto.StatusAuthenticated}, nil
}

func (f *fakeSession) Logout(context.Context) error {
	f.loggedOut++
	return nil
}

func (f *fakeSession) Watch() (<-chan sessiondto.SessionOutput, func()) {
	return f.changes, func() {}
}

type fakeDashboard struct {
	unmounts int
	changes  chan struct{}
}

func (f *fakeDashboard) Mount(context.Context) error   { return nil }
func (f *fakeDashboard) Unmount()                      { f.unmounts++ }
func (f *fakeDashboard) Refresh(context.Context) error { return nil }
func (f *fakeDashboard) Resize(int)                    {}
func (f *fakeDashboard) View() dashboarddto.ViewOutput { return dashboarddto.ViewOutput{} }
func (f *fakeDashboard) Changes() <-chan struct{}      { return f.changes }

func newModel() (Model, *fakeDashboard) {
	dash := &fakeDashboard{changes: make(chan struct{}, 1)}
	m := NewModel(&fakeSession{changes: make(chan sessiondto.SessionOutput, 1)}, dash, NewNavigator())
	return m, dash
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestGateDrivesShownView(t *testing.T) {
	t.Parallel()
	m, dash := newModel()
	m = step(t, m, sessionChangedMsg{session: sessiondto.SessionOutput{Status: sessiondto.StatusRestoring}})
	if m.Shown() != gate.ViewNone {
		t.Fatalf("expected nothing shown while restoring, got %q", m.Shown())
	}

	m = step(t, m, sessionChangedMsg{session: sessiondto.SessionOutput{Status: sessiondto.StatusAnonymous}})
	if m.Shown() != gate.ViewLogin {
		t.Fatalf("expected login, got %q", m.Shown())
	}

	authed := sessiondto.SessionOutput{Status: sessiondto.StatusAuthenticated, Role: 2, SubjectID: "7"}
	m = step(t, m, sessionChangedMsg{session: authed})
	if m.Shown() != gate.ViewDashboard {
		t.Fatalf("expected dashboard, got %q", m.Shown())
	}

	m = step(t, m, sessionChangedMsg{session: sessiondto.SessionOutput{Status: sessiondto.StatusAnonymous}})
	if m.Shown() != gate.ViewLogin {
		t.Fatalf("expected login after session end, got %q", m.Shown())
	}
	if dash.unmounts != 1 {
		t.Fatalf("expected dashboard unmounted once, got %d", dash.unmounts)
	}
}

func TestRedirectShowsLogin(t *testing.T) {
	t.Parallel()
	m, _ := newModel()
	m = step(t, m, sessionChangedMsg{session: sessiondto.SessionOutput{Status: sessiondto.StatusAuthenticated, Role: 1}})
	m = step(t, m, sessionChangedMsg{session: sessiondto.SessionOutput{Status: sessiondto.StatusAnonymous}})
	m = step(t, m, RedirectMsg{Reason: "session expired"})
	if m.Shown() != gate.ViewLogin || m.status != "session expired" {
		t.Fatalf("unexpected state after redirect: %q %q", m.Shown(), m.status)
	}
}

func TestNavigationRespectsRole(t *testing.T) {
	t.Parallel()
	m, _ := newModel()
	m = step(t, m, sessionChangedMsg{session: sessiondto.SessionOutput{Status: sessiondto.StatusAuthenticated, Role: 2}})
	for _, item := range m.nav {
		if item.View == gate.ViewAdmins {
			t.Fatalf("admin sees Manage Admin")
		}
	}
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.Shown() != gate.ViewBookings {
		t.Fatalf("expected bookings notice, got %q", m.Shown())
	}
}

func TestNavigatorCoalesces(t *testing.T) {
	t.Parallel()
	n := NewNavigator()
	n.ToEntry("first")
	n.ToEntry("second")
	msg := n.wait()().(RedirectMsg)
	if msg.Reason != "second" {
		t.Fatalf("expected latest reason, got %q", msg.Reason)
	}
}

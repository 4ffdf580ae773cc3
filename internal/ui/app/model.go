package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	sessiondto "dispatchdesk/internal/modules/session/dto"
	"dispatchdesk/internal/ui/components"
	"dispatchdesk/internal/ui/gate"
	"dispatchdesk/internal/ui/theme"
	dashboardview "dispatchdesk/internal/ui/views/dashboard"
	loginview "dispatchdesk/internal/ui/views/login"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type sessionPort interface {
	Restore(ctx context.Context) (sessiondto.SessionOutput, error)
	Login(ctx context.Context, email, password string) (sessiondto.SessionOutput, error)
	Logout(ctx context.Context) error
	Watch() (<-chan sessiondto.SessionOutput, func())
}

// ─── async messages ───────────────────────────────────────────────────────────

type sessionChangedMsg struct {
	session sessiondto.SessionOutput
	closed  bool
}

type restoredMsg struct{ err error }

type loggedOutMsg struct{ err error }

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Next    key.Binding
	Prev    key.Binding
	Open    key.Binding
	Refresh key.Binding
	Logout  key.Binding
	Help    key.Binding
	Palette key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Next:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next item")),
		Prev:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous item")),
		Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Logout:  key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "logout")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette: key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Open, k.Refresh, k.Logout, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Open},
		{k.Refresh, k.Logout},
		{k.Help, k.Palette, k.Quit},
	}
}

var paletteHints = []string{
	"go dashboard",
	"go account",
	"go bookings",
	"go riders",
	"go customers",
	"go admins",
	"refresh",
	"logout",
	"quit",
}

const sidebarWidth = 22

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root Bubble Tea model. It follows the session, asks the gate
// which view to show and delegates rendering to the sub-views.
type Model struct {
	session   sessionPort
	navigator *Navigator
	changes   <-chan sessiondto.SessionOutput
	stop      func()

	loginView loginview.Model
	dashView  dashboardview.Model

	current   sessiondto.SessionOutput
	requested gate.View
	shown     gate.View
	nav       []gate.NavItem
	cursor    int

	keys     keyMap
	help     help.Model
	showHelp bool
	palette  components.Palette
	status   string
	width    int
	height   int
}

func NewModel(session sessionPort, dashboard dashboardview.DashboardPort, navigator *Navigator) Model {
	if navigator == nil {
		navigator = NewNavigator()
	}
	changes, stop := session.Watch()
	return Model{
		session:   session,
		navigator: navigator,
		changes:   changes,
		stop:      stop,
		loginView: loginview.New(session),
		dashView:  dashboardview.New(dashboard),
		requested: gate.ViewDashboard,
		keys:      defaultKeys(),
		help:      help.New(),
		palette:   components.NewPalette(paletteHints),
		status:    "restoring session…",
	}
}

// Close stops following the session. The program must have exited.
func (m Model) Close() {
	m.stop()
	m.dashView.Stop()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.restoreCmd(), m.waitSession(), m.navigator.wait())
}

// Shown is the view currently on screen; empty while the session restores.
func (m Model) Shown() gate.View { return m.shown }

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 64))
		m.help.Width = m.width
		m.propagateSize()
		return m, nil

	case sessionChangedMsg:
		if msg.closed {
			return m, nil
		}
		m.current = msg.session
		m.nav = gate.NavItems(msg.session.Role)
		m.cursor = max(min(m.cursor, len(m.nav)-1), 0)
		cmd := m.route(m.requested)
		return m, tea.Batch(cmd, m.waitSession())

	case RedirectMsg:
		m.status = msg.Reason
		m.requested = gate.ViewLogin
		cmd := m.route(gate.ViewLogin)
		return m, tea.Batch(cmd, m.navigator.wait())

	case restoredMsg:
		if msg.err != nil {
			m.status = "restore failed: " + msg.err.Error()
		} else {
			m.status = "ready"
		}
		return m, nil

	case loginview.DoneMsg:
		if msg.Err == nil {
			m.status = "signed in as " + msg.Session.RoleLabel
			m.requested = gate.ViewDashboard
		}
		var cmd tea.Cmd
		m.loginView, cmd = m.loginView.Update(msg)
		return m, cmd

	case loggedOutMsg:
		if msg.err != nil {
			m.status = "logout: " + msg.err.Error()
		} else {
			m.status = "signed out"
		}
		return m, nil

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.shown == gate.ViewLogin {
			break
		}
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
			return m, nil
		case key.Matches(msg, m.keys.Palette):
			return m, m.palette.Open()
		case key.Matches(msg, m.keys.Next):
			if len(m.nav) > 0 {
				m.cursor = (m.cursor + 1) % len(m.nav)
			}
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			if len(m.nav) > 0 {
				m.cursor = (m.cursor + len(m.nav) - 1) % len(m.nav)
			}
			return m, nil
		case key.Matches(msg, m.keys.Open):
			if m.cursor >= 0 && m.cursor < len(m.nav) {
				return m, m.navigate(m.nav[m.cursor].View)
			}
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			if m.shown == gate.ViewDashboard {
				return m, m.dashView.Refresh()
			}
			return m, nil
		case key.Matches(msg, m.keys.Logout):
			return m, m.logoutCmd()
		}
	}

	var cmd tea.Cmd
	switch m.shown {
	case gate.ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case gate.ViewDashboard:
		m.dashView, cmd = m.dashView.Update(msg)
	default:
		// Dashboard messages still arrive after it was left.
		if _, ok := msg.(dashboardview.ChangedMsg); ok {
			m.dashView, cmd = m.dashView.Update(msg)
		}
	}
	return m, cmd
}

func (m *Model) navigate(view gate.View) tea.Cmd {
	m.requested = view
	return m.route(view)
}

// route asks the gate for requested and switches views, mounting or
// unmounting the dashboard on the way.
func (m *Model) route(requested gate.View) tea.Cmd {
	decision := gate.Decide(m.current, requested)
	next := decision.Target
	if decision.Outcome == gate.Loading {
		next = gate.ViewNone
	}
	prev := m.shown
	m.shown = next
	if prev == next {
		return nil
	}
	if prev == gate.ViewDashboard {
		m.dashView.Stop()
	}
	switch next {
	case gate.ViewDashboard:
		return m.dashView.Start()
	case gate.ViewLogin:
		notice := ""
		if prev != gate.ViewNone {
			notice = m.status
		}
		return m.loginView.Reset(notice)
	}
	return nil
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	switch m.shown {
	case gate.ViewNone:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			theme.Muted.Render("restoring session…"))
	case gate.ViewLogin:
		return m.loginView.View()
	}

	header := m.renderHeader()
	statusBar := m.renderStatusBar()
	contentH := max(m.height-lipgloss.Height(header)-lipgloss.Height(statusBar), 1)
	contentW := max(m.width-sidebarWidth, 20)

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(contentW).Height(contentH).Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(contentW, contentH, lipgloss.Center, lipgloss.Center, m.palette.View())
	default:
		content = lipgloss.NewStyle().Width(contentW).Height(contentH).Render(m.activeView())
	}

	sidebar := lipgloss.NewStyle().Width(sidebarWidth).Height(contentH).Render(m.renderSidebar())
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, statusBar)
}

func (m Model) activeView() string {
	switch m.shown {
	case gate.ViewDashboard:
		return m.dashView.View()
	case gate.ViewAccount:
		return m.renderAccount()
	}
	for _, item := range m.nav {
		if item.View == m.shown {
			return theme.Pane.Render(theme.Title.Render(item.Label) + "\n\n" +
				theme.Muted.Render(item.Label+" is managed in the web back office."))
		}
	}
	return ""
}

func (m Model) renderHeader() string {
	left := theme.Hot.Render("Dispatch Desk")
	right := theme.Muted.Render(fmt.Sprintf("%s #%s  L:logout", m.current.RoleLabel, m.current.SubjectID))
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(left+strings.Repeat(" ", gap)+right) + "\n"
}

func (m Model) renderSidebar() string {
	var sb strings.Builder
	for i, item := range m.nav {
		label := "  " + item.Label
		switch {
		case i == m.cursor:
			label = theme.Hot.Render("› " + item.Label)
		case item.View == m.shown:
			label = theme.Title.Render(label)
		}
		sb.WriteString(label + "\n")
	}
	return sb.String()
}

func (m Model) renderAccount() string {
	expires := "unknown"
	if !m.current.TokenExpiresAt.IsZero() {
		expires = m.current.TokenExpiresAt.Local().Format("2006-01-02 15:04")
	}
	body := fmt.Sprintf("%s\n\nUser ID      %s\nRole         %s (%d)\nToken until  %s",
		theme.Title.Render("Account"), m.current.SubjectID, m.current.RoleLabel, m.current.Role, expires)
	return theme.Pane.Render(body)
}

func (m Model) renderStatusBar() string {
	left := m.status
	right := theme.Muted.Render("?:help  tab:move  enter:open  :::palette  q:quit")
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── palette execution ────────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	switch parts[0] {
	case "go":
		if len(parts) < 2 {
			m.status = "usage: go <view>"
			return m, nil
		}
		return m, m.navigate(gate.View(parts[1]))
	case "refresh":
		if m.shown != gate.ViewDashboard {
			m.status = "refresh only applies to the dashboard"
			return m, nil
		}
		return m, m.dashView.Refresh()
	case "logout":
		return m, m.logoutCmd()
	case "quit":
		return m, tea.Quit
	default:
		m.status = "unknown command: " + parts[0]
	}
	return m, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (m *Model) propagateSize() {
	m.loginView, _ = m.loginView.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
	m.dashView, _ = m.dashView.Update(tea.WindowSizeMsg{
		Width:  max(m.width-sidebarWidth, 20),
		Height: max(m.height-3, 1),
	})
}

// ─── async commands ───────────────────────────────────────────────────────────

func (m Model) waitSession() tea.Cmd {
	changes := m.changes
	return func() tea.Msg {
		s, ok := <-changes
		return sessionChangedMsg{session: s, closed: !ok}
	}
}

func (m Model) restoreCmd() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		_, err := session.Restore(context.Background())
		return restoredMsg{err: err}
	}
}

func (m Model) logoutCmd() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		return loggedOutMsg{err: session.Logout(context.Background())}
	}
}

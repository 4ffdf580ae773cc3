package login

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	sessiondto "dispatchdesk/internal/modules/session/dto"
	apperrors "dispatchdesk/internal/platform/errors"
	"dispatchdesk/internal/ui/theme"
)

type LoginPort interface {
	Login(ctx context.Context, email, password string) (sessiondto.SessionOutput, error)
}

// DoneMsg carries the outcome of a submitted login.
type DoneMsg struct {
	Session sessiondto.SessionOutput
	Err     error
}

const (
	fieldEmail = iota
	fieldPassword
)

type Model struct {
	port    LoginPort
	inputs  [2]textinput.Model
	focus   int
	spinner spinner.Model
	pending bool
	errText string
	notice  string
	width   int
	height  int
}

func New(port LoginPort) Model {
	email := textinput.New()
	email.Placeholder = "email"
	email.CharLimit = 254
	email.Prompt = "Email    "

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 128
	password.Prompt = "Password "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	return Model{port: port, inputs: [2]textinput.Model{email, password}, spinner: sp}
}

// Reset clears the password and focuses the form, showing notice above it.
func (m *Model) Reset(notice string) tea.Cmd {
	m.pending = false
	m.errText = ""
	m.notice = notice
	m.inputs[fieldPassword].SetValue("")
	return m.setFocus(fieldEmail)
}

func (m *Model) setFocus(field int) tea.Cmd {
	m.focus = field
	var cmd tea.Cmd
	for i := range m.inputs {
		if i == field {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return cmd
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case DoneMsg:
		m.pending = false
		if msg.Err != nil {
			m.errText = describe(msg.Err)
			m.inputs[fieldPassword].SetValue("")
			return m, m.setFocus(fieldPassword)
		}
		m.errText = ""
		m.notice = ""
		m.inputs[fieldPassword].SetValue("")
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.pending {
			return m, nil
		}
		switch msg.String() {
		case "tab", "down":
			return m, m.setFocus((m.focus + 1) % len(m.inputs))
		case "shift+tab", "up":
			return m, m.setFocus((m.focus + len(m.inputs) - 1) % len(m.inputs))
		case "enter":
			if m.focus == fieldEmail {
				return m, m.setFocus(fieldPassword)
			}
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) submit() (Model, tea.Cmd) {
	email := strings.TrimSpace(m.inputs[fieldEmail].Value())
	password := m.inputs[fieldPassword].Value()
	if email == "" || password == "" {
		m.errText = "email and password are required"
		return m, nil
	}
	m.pending = true
	m.errText = ""
	port := m.port
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		out, err := port.Login(context.Background(), email, password)
		return DoneMsg{Session: out, Err: err}
	})
}

// Pending reports whether a login request is in flight.
func (m Model) Pending() bool { return m.pending }

func describe(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrRoleNotAllowed):
		return "this account may not use the console"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "email and password are required"
	case err == apperrors.ErrLoginRejected:
		return "Username or password does not exist"
	default:
		return err.Error()
	}
}

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Dispatch Desk") + "\n")
	sb.WriteString(theme.Muted.Render("Sign in with an admin account") + "\n\n")
	if m.notice != "" {
		sb.WriteString(theme.Hot.Render(m.notice) + "\n\n")
	}
	for _, in := range m.inputs {
		sb.WriteString(in.View() + "\n")
	}
	sb.WriteString("\n")
	switch {
	case m.pending:
		sb.WriteString(m.spinner.View() + " signing in…")
	case m.errText != "":
		sb.WriteString(theme.Error.Render(m.errText))
	default:
		sb.WriteString(theme.Muted.Render("enter: sign in  tab: next field"))
	}
	form := theme.PaneActive.Width(48).Render(sb.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, form)
}

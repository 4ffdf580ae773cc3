package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	dashboarddto "dispatchdesk/internal/modules/dashboard/dto"
	"dispatchdesk/internal/ui/theme"
)

type DashboardPort interface {
	Mount(ctx context.Context) error
	Unmount()
	Refresh(ctx context.Context) error
	Resize(height int)
	View() dashboarddto.ViewOutput
	Changes() <-chan struct{}
}

// ChangedMsg means the dashboard state changed and should be re-read.
type ChangedMsg struct{}

type MountedMsg struct{ Err error }

type RefreshedMsg struct{ Err error }

// chrome is the height taken by cards, verification panel and footer.
const chrome = 12

type Model struct {
	port      DashboardPort
	table     table.Model
	spinner   spinner.Model
	view      dashboarddto.ViewOutput
	listening bool
	errText   string
	width     int
	height    int
}

func New(port DashboardPort) Model {
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(6),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.BorderForeground(theme.Surface1).Bold(true).Foreground(theme.Sapphire)
	styles.Selected = styles.Selected.Foreground(theme.Base).Background(theme.Lavender)
	t.SetStyles(styles)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	return Model{port: port, table: t, spinner: sp}
}

func columns(width int) []table.Column {
	name := max((width-40)/2, 12)
	return []table.Column{
		{Title: "Ride", Width: 8},
		{Title: "Customer", Width: name},
		{Title: "Rider", Width: name},
		{Title: "Status", Width: 10},
		{Title: "Fare", Width: 8},
		{Title: "Created", Width: 12},
	}
}

// Start mounts the dashboard and begins following its changes.
func (m *Model) Start() tea.Cmd {
	port := m.port
	cmds := []tea.Cmd{m.spinner.Tick, func() tea.Msg {
		return MountedMsg{Err: port.Mount(context.Background())}
	}}
	if !m.listening {
		m.listening = true
		cmds = append(cmds, m.waitChange())
	}
	return tea.Batch(cmds...)
}

// Stop unmounts the dashboard. It is safe to call when not mounted.
func (m *Model) Stop() {
	m.port.Unmount()
	m.view = m.port.View()
}

// Refresh pulls the dashboard again.
func (m Model) Refresh() tea.Cmd {
	port := m.port
	return func() tea.Msg {
		return RefreshedMsg{Err: port.Refresh(context.Background())}
	}
}

func (m Model) waitChange() tea.Cmd {
	changes := m.port.Changes()
	return func() tea.Msg {
		<-changes
		return ChangedMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case MountedMsg:
		if msg.Err != nil {
			m.errText = msg.Err.Error()
			m.sync()
			return m, nil
		}
		m.errText = ""
		m.resize()
		m.sync()
		cmds := []tea.Cmd{m.spinner.Tick}
		if !m.listening {
			m.listening = true
			cmds = append(cmds, m.waitChange())
		}
		return m, tea.Batch(cmds...)

	case RefreshedMsg:
		if msg.Err != nil {
			m.errText = msg.Err.Error()
		}
		return m, nil

	case ChangedMsg:
		m.sync()
		if !m.view.Mounted {
			m.listening = false
			return m, nil
		}
		return m, m.waitChange()

	case spinner.TickMsg:
		if !m.view.InitialLoading && !m.view.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) resize() {
	rows := max(m.height-chrome, 1)
	m.port.Resize(rows)
	m.table.SetColumns(columns(m.width))
	m.table.SetWidth(max(m.width-2, 40))
	m.table.SetHeight(rows)
}

func (m *Model) sync() {
	m.view = m.port.View()
	rows := make([]table.Row, len(m.view.Bookings))
	for i, b := range m.view.Bookings {
		rows[i] = table.Row{b.RideID, b.Customer, b.Rider, b.Status, b.Fare, shortTime(b.CreatedAt)}
	}
	m.table.SetRows(rows)
}

// Current returns the view state last read from the dashboard.
func (m Model) Current() dashboarddto.ViewOutput { return m.view }

func shortTime(raw string) string {
	if len(raw) >= 16 && strings.Contains(raw, "T") {
		return strings.Replace(raw[5:16], "T", " ", 1)
	}
	return raw
}

func (m Model) View() string {
	if m.view.InitialLoading {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Loading dashboard…")
	}
	if !m.view.Mounted && m.errText != "" {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			theme.Error.Render(m.errText))
	}

	sections := []string{m.renderCards(), m.renderVerification()}
	sections = append(sections, theme.Title.Render(fmt.Sprintf("Recent bookings (%d of %d)", len(m.view.Bookings), m.view.TotalBookings)))
	sections = append(sections, m.table.View(), m.renderTones(), m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderCards() string {
	if len(m.view.Cards) == 0 {
		return theme.Muted.Render("no counts yet")
	}
	width := 20
	if m.width > 0 {
		width = max(m.width/len(m.view.Cards)-2, 14)
	}
	cards := make([]string, len(m.view.Cards))
	for i, c := range m.view.Cards {
		body := theme.Muted.Render(c.Title) + "\n" + theme.Hot.Render(fmt.Sprint(c.Value))
		cards[i] = theme.Card.Width(width).Render(body)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (m Model) renderVerification() string {
	v := m.view.Verification
	const barWidth = 30
	filled := v.VerifiedPct * barWidth / 100
	bar := lipgloss.NewStyle().Foreground(theme.Green).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(theme.Yellow).Render(strings.Repeat("░", barWidth-filled))
	text := fmt.Sprintf("Rider verification  %s  verified %d (%d%%)  pending %d (%d%%)",
		bar, v.Verified, v.VerifiedPct, v.Pending, v.PendingPct)
	return theme.Pane.Render(text)
}

func (m Model) renderTones() string {
	counts := map[string]int{}
	for _, b := range m.view.Bookings {
		counts[b.Tone]++
	}
	parts := make([]string, 0, 3)
	for _, tone := range []string{"pending", "done", "canceled"} {
		parts = append(parts, theme.Tone(tone).Render(fmt.Sprintf("● %d %s", counts[tone], tone)))
	}
	return strings.Join(parts, "   ")
}

func (m Model) renderFooter() string {
	parts := []string{"live: " + m.view.Live}
	if m.view.Source != "" {
		parts = append(parts, fmt.Sprintf("source: %s #%d", m.view.Source, m.view.Seq))
	}
	if !m.view.UpdatedAt.IsZero() {
		parts = append(parts, "updated "+m.view.UpdatedAt.Local().Format("15:04:05"))
	}
	line := theme.Muted.Render(strings.Join(parts, "  "))
	if m.view.Loading {
		line += "  " + m.spinner.View() + " refreshing"
	}
	if m.view.LastError != "" {
		line += "  " + theme.Error.Render(m.view.LastError)
	}
	return line
}

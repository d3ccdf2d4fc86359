// Package tui renders the usage state in the terminal, standing in for a tray
// indicator on machines without one.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ternarybob/usagebar/internal/models"
	"github.com/ternarybob/usagebar/internal/services/presentation"
)

// Source is the usage state the view follows
type Source interface {
	State() models.UsageState
	Refresh(ctx context.Context) models.UsageState
}

// messages

type stateMsg models.UsageState

type pollMsg time.Time

// styles

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	labelStyle = lipgloss.NewStyle().
			Width(16).
			Foreground(lipgloss.Color("252"))

	resetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			MarginLeft(16)

	percentStyle = lipgloss.NewStyle().
			Width(7).
			Align(lipgloss.Right).
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(1, 2)
)

type bar struct {
	label  string
	window string
	model  progress.Model
}

// Model is the bubbletea model for `usagebar watch`
type Model struct {
	source  Source
	state   models.UsageState
	bars    []bar
	spinner spinner.Model
	poll    time.Duration
	now     func() time.Time
	width   int
}

// New creates a model polling source every poll interval
func New(source Source, poll time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))

	if poll <= 0 {
		poll = time.Second
	}

	return Model{
		source: source,
		state:  source.State(),
		bars: []bar{
			{label: "Session (5h)", window: models.WindowFiveHour, model: newBar(30)},
			{label: "Weekly (7d)", window: models.WindowSevenDay, model: newBar(30)},
			{label: "Opus (7d)", window: models.WindowSevenDayOpus, model: newBar(30)},
		},
		spinner: s,
		poll:    poll,
		now:     time.Now,
	}
}

func newBar(width int) progress.Model {
	return progress.New(
		progress.WithScaledGradient("#76EEC6", "#FF6347"),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.pollCmd())
}

func (m Model) pollCmd() tea.Cmd {
	return tea.Tick(m.poll, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

func (m Model) refreshCmd() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		return stateMsg(source.Refresh(context.Background()))
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			// joins any fetch already in flight
			if m.state.InFlight {
				return m, m.refreshCmd()
			}
			m.state.InFlight = true
			return m, tea.Batch(m.spinner.Tick, m.refreshCmd())
		}

	case pollMsg:
		cmd := m.applyState(m.source.State())
		return m, tea.Batch(cmd, m.pollCmd())

	case stateMsg:
		return m, m.applyState(models.UsageState(msg))

	case tea.WindowSizeMsg:
		m.width = msg.Width
		barWidth := max(20, min(msg.Width-40, 40))
		for i := range m.bars {
			m.bars[i].model.Width = barWidth
		}
		return m, nil

	case spinner.TickMsg:
		if !m.state.InFlight {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		var cmds []tea.Cmd
		for i := range m.bars {
			pm, cmd := m.bars[i].model.Update(msg)
			m.bars[i].model = pm.(progress.Model)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// applyState adopts a new state and animates the bars toward it
func (m *Model) applyState(state models.UsageState) tea.Cmd {
	wasInFlight := m.state.InFlight
	m.state = state

	var cmds []tea.Cmd
	if state.InFlight && !wasInFlight {
		cmds = append(cmds, m.spinner.Tick)
	}
	if state.Snapshot != nil {
		for i := range m.bars {
			pct := state.Snapshot.Utilization(m.bars[i].window) / 100
			cmds = append(cmds, m.bars[i].model.SetPercent(pct))
		}
	}
	return tea.Batch(cmds...)
}

func (m Model) View() string {
	var b strings.Builder
	now := m.now()
	display := presentation.Render(m.state, now)

	title := titleStyle.Render("usagebar") + "  " + display.Title
	if m.state.InFlight {
		title += "  " + m.spinner.View()
	}
	b.WriteString(title + "\n\n")

	switch {
	case m.state.NeedsSettings():
		b.WriteString(hintStyle.Render("  No credentials saved. Run `usagebar set-curl` with a copied curl command.") + "\n\n")

	case m.state.Error != "":
		b.WriteString(errorStyle.Render("  "+m.state.Error) + "\n\n")

	case m.state.Snapshot != nil:
		for _, bar := range m.bars {
			window, ok := m.state.Snapshot.Window(bar.window)
			if !ok && bar.window == models.WindowSevenDayOpus {
				continue
			}
			b.WriteString(renderBar(bar, window, now))
		}
	}

	footer := "r refresh  •  q quit"
	if !m.state.UpdatedAt.IsZero() {
		footer = "updated " + presentation.FormatTime(m.state.UpdatedAt) + "  •  " + footer
	}
	b.WriteString(footerStyle.Render(footer))

	return borderStyle.Render(b.String())
}

func renderBar(bar bar, window models.UsageWindow, now time.Time) string {
	line := labelStyle.Render(bar.label) + bar.model.View() + " " +
		percentStyle.Render(presentation.FormatPercent(window.Utilization)) + "\n"
	reset := resetStyle.Render("resets in "+presentation.FormatReset(window.ResetsAt, now)) + "\n"
	return line + reset + "\n"
}

// Run blocks until the user quits
func Run(source Source, poll time.Duration) error {
	_, err := tea.NewProgram(New(source, poll), tea.WithAltScreen()).Run()
	return err
}

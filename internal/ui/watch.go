package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Mohsinsiddi/w3sale/internal/state"
)

// RefreshFunc produces one dashboard report.
type RefreshFunc func(ctx context.Context) (*state.Report, error)

// WatchModel is the Bubble Tea model for the auto-refreshing sale view.
// The next refresh is scheduled only after the previous one completes, so
// refreshes never overlap.
type WatchModel struct {
	Title    string
	Currency string
	Interval time.Duration

	ctx      context.Context
	refresh  RefreshFunc
	report   *state.Report
	err      error
	inFlight bool
	count    int
	frame    int
	quitting bool
}

type (
	watchSpinMsg    struct{}
	watchRefreshMsg struct{}
	watchReportMsg  struct {
		report *state.Report
		err    error
	}
)

// NewWatchModel returns a model that calls refresh every interval.
func NewWatchModel(ctx context.Context, title, currency string, interval time.Duration, refresh RefreshFunc) WatchModel {
	return WatchModel{
		Title:    title,
		Currency: currency,
		Interval: interval,
		ctx:      ctx,
		refresh:  refresh,
		inFlight: true,
	}
}

// NewWatchProgram wraps m in a Bubble Tea program.
func NewWatchProgram(m WatchModel, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(m, opts...)
}

func watchSpinTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg { return watchSpinMsg{} })
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), watchSpinTick())
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if !m.inFlight {
				m.inFlight = true
				return m, m.fetch()
			}
		}

	case watchSpinMsg:
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, watchSpinTick()

	case watchRefreshMsg:
		if m.inFlight {
			return m, nil
		}
		m.inFlight = true
		return m, m.fetch()

	case watchReportMsg:
		m.inFlight = false
		m.count++
		if msg.err != nil {
			// Keep showing the last good report.
			m.err = msg.err
		} else {
			m.report, m.err = msg.report, nil
		}
		return m, tea.Tick(m.Interval, func(time.Time) tea.Msg { return watchRefreshMsg{} })
	}
	return m, nil
}

func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(StyleTitle.Render(m.Title) + "\n")

	switch {
	case m.inFlight:
		sb.WriteString(StyleInfo.Render(spinnerFrames[m.frame]+" refreshing…") + "\n")
	case m.err != nil:
		sb.WriteString(Err(m.err.Error()) + "\n")
	default:
		sb.WriteString(StyleMeta.Render(fmt.Sprintf("  next refresh in %s", m.Interval)) + "\n")
	}

	sb.WriteString(ReportView(m.report, m.Currency) + "\n")
	sb.WriteString(StyleMeta.Render("[ r ] refresh   [ q ] quit") + "\n")
	return sb.String()
}

// Refreshing reports whether a refresh is in flight.
func (m WatchModel) Refreshing() bool { return m.inFlight }

// Report returns the last successful report.
func (m WatchModel) Report() *state.Report { return m.report }

// Refreshes counts completed refreshes, failed or not.
func (m WatchModel) Refreshes() int { return m.count }

func (m WatchModel) fetch() tea.Cmd {
	ctx, refresh := m.ctx, m.refresh
	return func() tea.Msg {
		r, err := refresh(ctx)
		return watchReportMsg{report: r, err: err}
	}
}

package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pengelbrecht/cascade/internal/ghost"
)

// Layout constants
const (
	activityHeight = 8
	minHeight      = 10
)

// Color palette
var (
	primaryColor   = lipgloss.Color("205") // Pink
	secondaryColor = lipgloss.Color("86")  // Cyan
	mutedColor     = lipgloss.Color("241") // Gray
	successColor   = lipgloss.Color("78")  // Green
	warningColor   = lipgloss.Color("214") // Orange
	errorColor     = lipgloss.Color("196") // Red
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	statusItemStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	statusLabelStyle = lipgloss.NewStyle().
				Foreground(mutedColor)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondaryColor).
			Padding(0, 1)

	activityPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(mutedColor)

	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	runningStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	blockedStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	endedStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 || m.height == 0 {
		return "Loading...\n"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderStatusBar(),
		m.renderCanvas(),
		m.renderActivityPanel(),
		m.renderFooter(),
	)
}

// renderHeader renders the cascade title with the session status pinned to
// the right edge.
func (m Model) renderHeader() string {
	title := m.cascadeName
	if title == "" {
		title = m.sessionID
	}
	left := titleStyle.Render(fmt.Sprintf("⚡ cascade: %s", title))

	var status string
	switch {
	case m.ended:
		status = endedStyle.Render("■ " + m.endStatus)
	case m.snap.Session.PendingCheckpoint != nil:
		status = blockedStyle.Render("⏸ CHECKPOINT")
	case m.snap.Session.Running():
		status = runningStyle.Render("● " + string(m.snap.Session.Status))
	default:
		status = statusLabelStyle.Render("○ waiting")
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(status) - 2
	if padding < 0 {
		padding = 0
	}
	return headerStyle.Width(m.width).Render(
		left + lipgloss.NewStyle().Width(padding).Render("") + status,
	)
}

// renderStatusBar renders session, mode, cost, and elapsed time.
func (m Model) renderStatusBar() string {
	session := fmt.Sprintf("%s %s",
		statusLabelStyle.Render("Session:"),
		statusItemStyle.Render(truncate(m.sessionID, 24)),
	)
	mode := fmt.Sprintf("%s %s",
		statusLabelStyle.Render("Mode:"),
		statusItemStyle.Render(m.mode.String()),
	)
	cost := fmt.Sprintf("%s %s",
		statusLabelStyle.Render("Cost:"),
		statusItemStyle.Render(fmt.Sprintf("$%.2f", m.snap.Session.TotalCost)),
	)
	elapsed := fmt.Sprintf("%s %s",
		statusLabelStyle.Render("Time:"),
		statusItemStyle.Render(formatDuration(time.Since(m.startAt))),
	)

	line := lipgloss.JoinHorizontal(lipgloss.Center,
		session, " │ ", mode, " │ ", cost, " │ ", elapsed,
	)
	if m.snap.Session.Error != "" {
		line = lipgloss.JoinVertical(lipgloss.Left, line,
			endedStyle.Render(truncate(m.snap.Session.Error, m.width-4)))
	}
	return statusBarStyle.Width(m.width).Render(line)
}

// renderActivityPanel renders the ghost message feed.
func (m Model) renderActivityPanel() string {
	title := panelTitleStyle.Render("Activity")
	return activityPanelStyle.
		Width(m.width - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, m.activity.View()))
}

// renderActivity formats the live ghost window, oldest first.
func renderActivity(ghosts []ghost.Message) string {
	if len(ghosts) == 0 {
		return statusLabelStyle.Render("(quiet)")
	}
	var lines []string
	for _, g := range ghosts {
		var icon string
		switch g.Kind {
		case ghost.KindToolCall:
			icon = statusItemStyle.Render("⚙")
		case ghost.KindToolResult:
			icon = runningStyle.Render("→")
		default:
			icon = statusLabelStyle.Render("…")
		}
		lines = append(lines, fmt.Sprintf("%s %s", icon, g.Payload))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderFooter renders the keybinding help line.
func (m Model) renderFooter() string {
	return footerStyle.Width(m.width).Render(m.help.View(m.keys))
}

// formatDuration formats a duration as MM:SS or HH:MM:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	min := d / time.Minute
	d -= min * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, min, s)
	}
	return fmt.Sprintf("%d:%02d", min, s)
}

func truncate(s string, max int) string {
	if max < 4 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

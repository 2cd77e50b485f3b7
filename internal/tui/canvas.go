package tui

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/pengelbrecht/cascade/internal/layout"
	"github.com/pengelbrecht/cascade/internal/pipeline"
	"github.com/pengelbrecht/cascade/internal/reconcile"
)

const stageBoxBaseWidth = 16

// Band border colors. The cost band tints the box border.
var bandColors = map[layout.ColorBand]lipgloss.Color{
	layout.BandHot:     errorColor,
	layout.BandWarm:    warningColor,
	layout.BandCool:    secondaryColor,
	layout.BandNeutral: mutedColor,
}

// Stage status icons
var (
	iconPending   = lipgloss.NewStyle().Foreground(mutedColor).Render("○")
	iconRunning   = lipgloss.NewStyle().Foreground(warningColor).Render("◐")
	iconCompleted = lipgloss.NewStyle().Foreground(successColor).Render("●")
	iconError     = lipgloss.NewStyle().Foreground(errorColor).Render("⊘")
)

func statusIcon(s reconcile.StageStatus) string {
	switch s {
	case reconcile.StageRunning:
		return iconRunning
	case reconcile.StageCompleted:
		return iconCompleted
	case reconcile.StageError:
		return iconError
	default:
		return iconPending
	}
}

// renderCanvas renders the laid-out cascade: one column of stage boxes per
// layer, followed by the classified edge list.
func (m Model) renderCanvas() string {
	l := m.snap.Layout
	if l == nil || len(l.Nodes) == 0 {
		return statusBarStyle.Width(m.width).Render("No pipeline loaded")
	}

	// Group placed nodes by layer, preserving layout order within a layer.
	byLayer := make(map[int][]*layout.Node)
	maxLayer := 0
	for _, n := range l.Nodes {
		byLayer[n.Layer] = append(byLayer[n.Layer], n)
		if n.Layer > maxLayer {
			maxLayer = n.Layer
		}
	}

	var columns []string
	for col := 0; col <= maxLayer; col++ {
		var boxes []string
		for _, n := range byLayer[col] {
			boxes = append(boxes, m.renderStageBox(n))
		}
		if len(boxes) == 0 {
			continue
		}
		columns = append(columns, lipgloss.JoinVertical(lipgloss.Left, boxes...))
		if col < maxLayer {
			columns = append(columns, statusLabelStyle.Render(" ─▶ "))
		}
	}
	canvas := lipgloss.JoinHorizontal(lipgloss.Center, columns...)

	parts := []string{canvas, m.renderEdges(l)}
	if len(l.Unplaced) > 0 {
		parts = append(parts, blockedStyle.Render(
			fmt.Sprintf("unplaced (cycle): %v", l.Unplaced)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderStageBox renders one stage with its status, cost, and band color.
// The cost scale widens the box so expensive stages read larger.
func (m Model) renderStageBox(n *layout.Node) string {
	agg := m.snap.Stages[n.Name]

	label := fmt.Sprintf("%s %s", statusIcon(agg.Status), truncate(n.Name, stageBoxBaseWidth-4))
	detail := ""
	if agg.Cost > 0 {
		detail = fmt.Sprintf("$%.2f · %d turns", agg.Cost, agg.Turns)
	}

	width := int(float64(stageBoxBaseWidth) * n.Scale)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(bandColors[n.Band]).
		Width(width).
		Padding(0, 1)

	content := label
	if detail != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, label,
			statusLabelStyle.Render(truncate(detail, width-2)))
	}
	return box.Render(content)
}

// renderEdges renders the classified edge list under the canvas, colored the
// same way the positioned paths are.
func (m Model) renderEdges(l *layout.Layout) string {
	if len(l.Edges) == 0 {
		return ""
	}

	edges := make([]*layout.Edge, len(l.Edges))
	copy(edges, l.Edges)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	var lines []string
	for _, e := range edges {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(e.Color))
		suffix := e.Kind.String()
		if e.Emphasis != pipeline.EmphasisNone {
			suffix += "/" + e.Emphasis.String()
		}
		lines = append(lines, style.Render(
			fmt.Sprintf("  %s ─▶ %s (%s)", e.Source, e.Target, suffix)))
	}
	for _, c := range l.Connectors {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color))
		for _, t := range c.Targets {
			lines = append(lines, style.Render(
				fmt.Sprintf("  input.%s ┄▶ %s", c.Input, t.Stage)))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

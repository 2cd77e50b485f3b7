// Package layout positions a cascade dependency graph on a 2-D canvas. The
// computation is a pure function of the graph and the polled cost metrics:
// identical inputs always produce identical positions and edge paths.
package layout

import (
	"fmt"

	"github.com/pengelbrecht/cascade/internal/pipeline"
)

// Strategy selects how stages are arranged.
type Strategy int

const (
	// StrategyGraph arranges stages in topological layers, one column per
	// layer.
	StrategyGraph Strategy = iota
	// StrategyLinear arranges all stages in a single row in declaration
	// order.
	StrategyLinear
)

func (s Strategy) String() string {
	if s == StrategyLinear {
		return "linear"
	}
	return "graph"
}

// Options controls box geometry. Zero values take defaults.
type Options struct {
	BoxWidth  float64
	BoxHeight float64
	HGap      float64
	VGap      float64
	Padding   float64

	// SlotSpacing is the vertical distance between input-parameter slots on
	// the left margin.
	SlotSpacing float64
}

// Layout geometry defaults.
const (
	DefaultBoxWidth    = 180.0
	DefaultBoxHeight   = 80.0
	DefaultHGap        = 60.0
	DefaultVGap        = 40.0
	DefaultPadding     = 40.0
	DefaultSlotSpacing = 28.0
)

func (o Options) withDefaults() Options {
	if o.BoxWidth == 0 {
		o.BoxWidth = DefaultBoxWidth
	}
	if o.BoxHeight == 0 {
		o.BoxHeight = DefaultBoxHeight
	}
	if o.HGap == 0 {
		o.HGap = DefaultHGap
	}
	if o.VGap == 0 {
		o.VGap = DefaultVGap
	}
	if o.Padding == 0 {
		o.Padding = DefaultPadding
	}
	if o.SlotSpacing == 0 {
		o.SlotSpacing = DefaultSlotSpacing
	}
	return o
}

// Node is one positioned stage box.
type Node struct {
	Name   string
	Layer  int
	X, Y   float64
	Width  float64
	Height float64

	// Scale is the cost-relative size factor already applied to Width and
	// Height.
	Scale float64
	Band  ColorBand
	Cost  float64
}

// Path is a cubic curve from the source box's right edge to the target box's
// left edge.
type Path struct {
	X1, Y1   float64
	C1X, C1Y float64
	C2X, C2Y float64
	X2, Y2   float64
}

// SVG renders the path as an SVG path datum.
func (p Path) SVG() string {
	return fmt.Sprintf("M %.1f %.1f C %.1f %.1f, %.1f %.1f, %.1f %.1f",
		p.X1, p.Y1, p.C1X, p.C1Y, p.C2X, p.C2Y, p.X2, p.Y2)
}

// Edge is a classified, positioned connection between two stage boxes.
type Edge struct {
	Source   string
	Target   string
	Kind     pipeline.EdgeKind
	Emphasis pipeline.Emphasis
	Path     Path

	// Color is a terminal 256-color code. Kind picks the base color;
	// branch/merge emphasis overrides it.
	Color string
}

// ConnectorTarget is one stage endpoint of an input connector.
type ConnectorTarget struct {
	Stage string
	X, Y  float64
}

// Connector links a top-level input's margin slot to every stage that
// references it.
type Connector struct {
	Input   string
	Slot    int
	Color   string
	X, Y    float64
	Targets []ConnectorTarget
}

// Layout is the positioned cascade.
type Layout struct {
	Strategy   Strategy
	Nodes      []*Node
	Edges      []*Edge
	Connectors []*Connector

	// Unplaced names stages that were left out of every layer because they
	// sit on a cycle. The layout is partial, not failed.
	Unplaced []string

	Width  float64
	Height float64
}

// Node returns the positioned node for a stage name, or nil if unplaced.
func (l *Layout) Node(name string) *Node {
	for _, n := range l.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Edge colors by kind, with a single warning color for branch/merge emphasis.
const (
	colorData      = "205" // primary accent
	colorSelective = "86"  // secondary accent
	colorExecution = "241" // neutral/dim
	colorEmphasis  = "214" // branch/merge warning
)

func edgeColor(e *pipeline.Edge) string {
	if e.Emphasis != pipeline.EmphasisNone {
		return colorEmphasis
	}
	switch e.Kind {
	case pipeline.KindData:
		return colorData
	case pipeline.KindSelective:
		return colorSelective
	default:
		return colorExecution
	}
}

// Compute lays out the graph with the given strategy and cost metrics.
func Compute(g *pipeline.Graph, strategy Strategy, metrics map[string]Metrics, opts Options) *Layout {
	opts = opts.withDefaults()
	l := &Layout{Strategy: strategy}

	var columns [][]*pipeline.Stage
	switch strategy {
	case StrategyLinear:
		for _, s := range g.Stages {
			columns = append(columns, []*pipeline.Stage{s})
		}
	default:
		layers, unplaced := g.Layers()
		columns = layers
		for _, s := range unplaced {
			l.Unplaced = append(l.Unplaced, s.Name)
		}
	}

	avg := averageCost(metrics)
	nodes := make(map[string]*Node)

	x := opts.Padding
	for col, column := range columns {
		colWidth := 0.0
		y := opts.Padding
		for _, s := range column {
			scale := 1.0
			band := BandNeutral
			cost := 0.0
			if m, ok := metrics[s.Name]; ok {
				d := deltaPct(m.Cost, avg)
				scale = scaleFor(d)
				band = bandFor(d)
				cost = m.Cost
			}
			n := &Node{
				Name:   s.Name,
				Layer:  col,
				X:      x,
				Y:      y,
				Width:  opts.BoxWidth * scale,
				Height: opts.BoxHeight * scale,
				Scale:  scale,
				Band:   band,
				Cost:   cost,
			}
			l.Nodes = append(l.Nodes, n)
			nodes[s.Name] = n
			// Costlier, larger boxes push siblings downward instead of
			// overlapping.
			y += n.Height + opts.VGap
			if n.Width > colWidth {
				colWidth = n.Width
			}
		}
		x += colWidth + opts.HGap
	}

	for _, e := range g.Edges {
		src, okS := nodes[e.Source]
		dst, okT := nodes[e.Target]
		if !okS || !okT {
			continue
		}
		l.Edges = append(l.Edges, &Edge{
			Source:   e.Source,
			Target:   e.Target,
			Kind:     e.Kind,
			Emphasis: e.Emphasis,
			Path:     curveBetween(src, dst),
			Color:    edgeColor(e),
		})
	}

	l.Width, l.Height = extents(l.Nodes, opts.Padding)
	l.Connectors = inputConnectors(g, nodes, l.Height, opts)
	return l
}

// curveBetween builds the cubic path from the visual right edge of the source
// box to the visual left edge of the target box. The control points sit at 40%
// of the horizontal span so curvature grows with distance. A backward edge
// (linear strategy placing a stage left of a dependency discovered from its
// text) has a negative span, so the floor takes over and bows the curve out
// instead of collapsing it.
func curveBetween(src, dst *Node) Path {
	x1 := src.X + src.Width
	y1 := src.Y + src.Height/2
	x2 := dst.X
	y2 := dst.Y + dst.Height/2

	bend := (x2 - x1) * 0.4
	if bend < 16 {
		bend = 16
	}
	return Path{
		X1: x1, Y1: y1,
		C1X: x1 + bend, C1Y: y1,
		C2X: x2 - bend, C2Y: y2,
		X2: x2, Y2: y2,
	}
}

// extents computes the canvas size covering all placed nodes plus padding.
func extents(nodes []*Node, padding float64) (w, h float64) {
	for _, n := range nodes {
		if r := n.X + n.Width; r > w {
			w = r
		}
		if b := n.Y + n.Height; b > h {
			h = b
		}
	}
	if w > 0 {
		w += padding
	}
	if h > 0 {
		h += padding
	}
	return w, h
}

// inputConnectors builds one connector per registered input that at least one
// placed stage references. Slot positions are clipped to the canvas height so
// connectors stay inside the visible viewport.
func inputConnectors(g *pipeline.Graph, nodes map[string]*Node, canvasH float64, opts Options) []*Connector {
	byInput := make(map[string]*Connector)
	var out []*Connector

	for _, s := range g.Stages {
		n, ok := nodes[s.Name]
		if !ok {
			continue
		}
		for _, input := range s.InputRefs {
			c := byInput[input]
			if c == nil {
				slot := g.Inputs.Slot(input)
				y := opts.Padding + float64(slot)*opts.SlotSpacing
				if canvasH > 0 && y > canvasH-opts.Padding {
					y = canvasH - opts.Padding
				}
				c = &Connector{
					Input: input,
					Slot:  slot,
					Color: g.Inputs.Color(input),
					X:     0,
					Y:     y,
				}
				byInput[input] = c
				out = append(out, c)
			}
			c.Targets = append(c.Targets, ConnectorTarget{
				Stage: s.Name,
				X:     n.X,
				Y:     n.Y + n.Height/2,
			})
		}
	}
	return out
}

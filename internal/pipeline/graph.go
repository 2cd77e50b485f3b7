package pipeline

import "fmt"

// EdgeKind classifies why an edge exists. When multiple relationships connect
// the same (source, target) pair the strongest kind wins: Data > Selective >
// Execution.
type EdgeKind int

const (
	// KindExecution is a declared handoff (successor list).
	KindExecution EdgeKind = iota
	// KindSelective is an explicit context import.
	KindSelective
	// KindData is an output reference discovered in stage text.
	KindData
)

func (k EdgeKind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindSelective:
		return "selective"
	default:
		return "execution"
	}
}

// Emphasis marks edges that touch a branching or merging node. It overrides
// the edge's display color but not its kind.
type Emphasis int

const (
	EmphasisNone Emphasis = iota
	EmphasisBranch
	EmphasisMerge
)

func (e Emphasis) String() string {
	switch e {
	case EmphasisBranch:
		return "branch"
	case EmphasisMerge:
		return "merge"
	default:
		return "none"
	}
}

// Edge is a directed dependency between two stages. There is exactly one edge
// per (source, target) pair.
type Edge struct {
	Source   string
	Target   string
	Kind     EdgeKind
	Emphasis Emphasis
}

// Stage is one graph node with its derived dependency and input sets.
type Stage struct {
	// Name is the stage's unique name.
	Name string

	// DependsOn lists stages this stage depends on (edge sources), in the
	// order the dependencies were discovered.
	DependsOn []string

	// InputRefs lists top-level inputs referenced from this stage's text,
	// in first-seen order. Consumed by layout for input connectors, never a
	// graph edge.
	InputRefs []string
}

// Graph is the built dependency graph of a cascade definition. Stages keep
// declaration order; rebuild the graph whenever the definition changes (the
// build is a cheap pure function).
type Graph struct {
	Stages []*Stage
	Edges  []*Edge
	Inputs *InputRegistry

	// Warnings collects dangling references: a stage naming a nonexistent
	// stage. The offending edge is omitted and the graph stays usable.
	Warnings []string

	index map[string]*Stage
}

// BuildGraph derives the dependency graph from a definition. It never fails:
// dangling references become warnings and their edges are dropped.
func BuildGraph(def *Definition) *Graph {
	g := &Graph{
		Inputs: NewInputRegistry(),
		index:  make(map[string]*Stage, len(def.Stages)),
	}
	for _, name := range def.Inputs {
		g.Inputs.Register(name)
	}
	for _, sd := range def.Stages {
		s := &Stage{Name: sd.Name}
		g.Stages = append(g.Stages, s)
		g.index[sd.Name] = s
	}

	// Pass 1: declared handoffs.
	for _, sd := range def.Stages {
		for _, succ := range sd.Successors {
			if !g.has(succ) {
				g.warnf("stage %q declares unknown successor %q", sd.Name, succ)
				continue
			}
			g.upsertEdge(sd.Name, succ, KindExecution)
		}
	}

	// Pass 2: output references discovered in stage text. The referenced
	// stage becomes the source. An opposite-direction execution edge from a
	// declared successor is kept alongside: the stage runs after its
	// dependency and is also declared as its successor.
	for _, sd := range def.Stages {
		for _, ref := range stageRefs(sd) {
			if ref == sd.Name {
				continue
			}
			if !g.has(ref) {
				g.warnf("stage %q references unknown stage output %q", sd.Name, ref)
				continue
			}
			g.upsertEdge(ref, sd.Name, KindData)
		}
	}

	// Pass 3: explicit context imports.
	for _, sd := range def.Stages {
		for _, from := range sd.Context.From {
			if from == sd.Name {
				continue
			}
			if !g.has(from) {
				g.warnf("stage %q imports context from unknown stage %q", sd.Name, from)
				continue
			}
			g.upsertEdge(from, sd.Name, KindSelective)
		}
	}

	// Pass 4: input-parameter references.
	for i, sd := range def.Stages {
		for _, name := range inputRefs(sd) {
			g.Inputs.Register(name)
			g.Stages[i].InputRefs = append(g.Stages[i].InputRefs, name)
		}
	}

	g.markEmphasis()
	return g
}

// Stage returns the named stage, or nil.
func (g *Graph) Stage(name string) *Stage {
	return g.index[name]
}

func (g *Graph) has(name string) bool {
	_, ok := g.index[name]
	return ok
}

func (g *Graph) warnf(format string, args ...interface{}) {
	g.Warnings = append(g.Warnings, fmt.Sprintf(format, args...))
}

// upsertEdge adds the edge or upgrades an existing one's kind. The target
// stage records the dependency.
func (g *Graph) upsertEdge(source, target string, kind EdgeKind) {
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target {
			if kind > e.Kind {
				e.Kind = kind
			}
			return
		}
	}
	g.Edges = append(g.Edges, &Edge{Source: source, Target: target, Kind: kind})
	t := g.index[target]
	for _, dep := range t.DependsOn {
		if dep == source {
			return
		}
	}
	t.DependsOn = append(t.DependsOn, source)
}

// markEmphasis flags all edges touching a branch (out-degree > 1) or merge
// (in-degree > 1) node. Merge wins on an edge that is both.
func (g *Graph) markEmphasis() {
	outDeg := make(map[string]int)
	inDeg := make(map[string]int)
	for _, e := range g.Edges {
		outDeg[e.Source]++
		inDeg[e.Target]++
	}
	for _, e := range g.Edges {
		if outDeg[e.Source] > 1 {
			e.Emphasis = EmphasisBranch
		}
		if inDeg[e.Target] > 1 {
			e.Emphasis = EmphasisMerge
		}
	}
}

// Layers computes topological layers: each round places every stage whose
// dependencies are all already placed. Stages caught in a cycle never qualify
// and are returned separately as unplaced rather than surfaced as an error;
// layout proceeds with the partial result.
func (g *Graph) Layers() (layers [][]*Stage, unplaced []*Stage) {
	placed := make(map[string]bool, len(g.Stages))
	remaining := len(g.Stages)

	for remaining > 0 {
		var layer []*Stage
		for _, s := range g.Stages {
			if placed[s.Name] {
				continue
			}
			ready := true
			for _, dep := range s.DependsOn {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				layer = append(layer, s)
			}
		}
		if len(layer) == 0 {
			break
		}
		for _, s := range layer {
			placed[s.Name] = true
		}
		layers = append(layers, layer)
		remaining -= len(layer)
	}

	for _, s := range g.Stages {
		if !placed[s.Name] {
			unplaced = append(unplaced, s)
		}
	}
	return layers, unplaced
}

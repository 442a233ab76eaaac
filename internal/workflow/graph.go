package workflow

import "fmt"

// Pipeline stage names.
const (
	StageRequestAcceptance = "request_acceptance"
	StageSerp              = "serp"
	StagePerplexity        = "perplexity"
	StageInsight           = "insight"
	StageImplication       = "implication"
)

// Graph is the static stage-to-successor map. A stage with no successors is
// terminal. The graph never changes at runtime.
type Graph struct {
	order      []string
	successors map[string][]string
}

// NewGraph builds a graph from an ordered stage list and adjacency map and
// validates that every referenced stage exists.
func NewGraph(order []string, successors map[string][]string) (*Graph, error) {
	known := make(map[string]struct{}, len(order))
	for _, stage := range order {
		if _, dup := known[stage]; dup {
			return nil, fmt.Errorf("duplicate stage %q", stage)
		}
		known[stage] = struct{}{}
	}
	for stage, next := range successors {
		if _, ok := known[stage]; !ok {
			return nil, fmt.Errorf("successor map references unknown stage %q", stage)
		}
		for _, succ := range next {
			if _, ok := known[succ]; !ok {
				return nil, fmt.Errorf("stage %q references unknown successor %q", stage, succ)
			}
		}
	}
	cp := make(map[string][]string, len(successors))
	for stage, next := range successors {
		cp[stage] = append([]string{}, next...)
	}
	return &Graph{order: append([]string{}, order...), successors: cp}, nil
}

// DefaultGraph returns the research pipeline:
// request_acceptance → serp → perplexity → {insight, implication}.
func DefaultGraph() *Graph {
	g, err := NewGraph(
		[]string{StageRequestAcceptance, StageSerp, StagePerplexity, StageInsight, StageImplication},
		map[string][]string{
			StageRequestAcceptance: {StageSerp},
			StageSerp:              {StagePerplexity},
			StagePerplexity:        {StageInsight, StageImplication},
		},
	)
	if err != nil {
		panic(err)
	}
	return g
}

// Order returns the stages in pipeline order.
func (g *Graph) Order() []string {
	return append([]string{}, g.order...)
}

// Contains reports whether the graph knows the stage.
func (g *Graph) Contains(stage string) bool {
	for _, s := range g.order {
		if s == stage {
			return true
		}
	}
	return false
}

// Successors returns the ordered successor stages of stage.
func (g *Graph) Successors(stage string) []string {
	return append([]string{}, g.successors[stage]...)
}

// TerminalStages returns the stages with no successors, in pipeline order.
func (g *Graph) TerminalStages() []string {
	var terminals []string
	for _, stage := range g.order {
		if len(g.successors[stage]) == 0 {
			terminals = append(terminals, stage)
		}
	}
	return terminals
}

// IsTerminalStage reports whether stage has no successors.
func (g *Graph) IsTerminalStage(stage string) bool {
	return g.Contains(stage) && len(g.successors[stage]) == 0
}

package expansion

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/3leaps/sbatchman/pkg/apperrors"
)

var (
	braceRefPattern  = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)((?:\.[0-9]+)|(?:\[[^\]]*\]))?\}`)
	scriptRefPattern = regexp.MustCompile(`\{\{([^}]*)\}\}`)
	dollarRefPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// ReferencedVars returns every variable name text depends on, per spec
// §4.1 Phase III's edge rule: "X depends on Y if the unevaluated form of X
// contains {Y}, {Y[…]}, {map[$Y]}, or {{…$Y…}}."
func ReferencedVars(text string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, m := range braceRefPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
		if len(m) > 2 && m[2] != "" {
			for _, d := range dollarRefPattern.FindAllStringSubmatch(m[2], -1) {
				add(d[1])
			}
		}
	}
	for _, m := range scriptRefPattern.FindAllStringSubmatch(text, -1) {
		for _, d := range dollarRefPattern.FindAllStringSubmatch(m[1], -1) {
			add(d[1])
		}
	}
	return out
}

// Graph is the dependency DAG over variables (spec §4.1 Phase III).
type Graph struct {
	edges map[string][]string // variable -> variables it depends on
	nodes map[string]bool
}

func NewGraph() *Graph {
	return &Graph{edges: map[string][]string{}, nodes: map[string]bool{}}
}

func (g *Graph) AddNode(name string) {
	g.nodes[name] = true
	if _, ok := g.edges[name]; !ok {
		g.edges[name] = nil
	}
}

func (g *Graph) AddDependency(from, on string) {
	g.AddNode(from)
	g.AddNode(on)
	g.edges[from] = append(g.edges[from], on)
}

// TopoSort returns nodes in dependency-first order (a node appears after
// everything it depends on), or a ConfigCycle error.
func (g *Graph) TopoSort() ([]string, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var order []string
	var stack []string

	var visit func(n string) error
	visit = func(n string) error {
		switch color[n] {
		case black:
			return nil
		case gray:
			return apperrors.New(apperrors.KindConfigCycle, "Graph.TopoSort", n, fmt.Errorf("cycle through %v", append(stack, n)))
		}
		color[n] = gray
		stack = append(stack, n)
		for _, dep := range g.edges[n] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		order = append(order, n)
		return nil
	}

	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return order, nil
}

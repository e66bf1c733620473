// Package dag builds and executes the directed acyclic graph of stages
// described by a parsed pipeline document: topological level assignment via
// Kahn's algorithm, then concurrent per-level dispatch against the stage
// registry.
package dag

import (
	"fmt"
	"sort"

	streamyerrors "github.com/conveyor/conveyor/pkg/errors"

	"github.com/conveyor/conveyor/internal/stage"
	"github.com/conveyor/conveyor/internal/tomlconfig"
)

// Node is one vertex of the graph: a stage declaration, its build-time
// resolved implementation, and its neighbors. A Node with a nil Decl is
// external: its value is supplied by the caller (see Options.Seed) rather
// than produced by running a stage, used to thread a sub-pipeline's
// enclosing inputs into its own graph.
type Node struct {
	ID         string
	Decl       *tomlconfig.StageDecl
	Stage      stage.Stage
	DependsOn  []*Node
	Dependents []*Node
}

// External reports whether the node's value is supplied externally instead
// of produced by executing a registered stage.
func (n *Node) External() bool { return n.Decl == nil }

// Graph holds the DAG's nodes and, once sorted, its execution levels —
// each level is a set of node IDs with no dependency between them, safe to
// run concurrently.
type Graph struct {
	Nodes  map[string]*Node
	Levels [][]string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// AddNode inserts a stage declaration as a vertex.
func (g *Graph) AddNode(decl *tomlconfig.StageDecl) (*Node, error) {
	if decl == nil {
		return nil, streamyerrors.NewBuildError("", "", "stage declaration cannot be nil", nil)
	}
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	if _, exists := g.Nodes[decl.ID]; exists {
		return nil, streamyerrors.NewBuildError(decl.ID, decl.Function, "duplicate stage id", nil)
	}
	node := &Node{ID: decl.ID, Decl: decl}
	g.Nodes[decl.ID] = node
	return node, nil
}

// AddExternalNode inserts a vertex with no stage declaration: its output is
// seeded by the caller rather than produced by running a function.
func (g *Graph) AddExternalNode(id string) (*Node, error) {
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	if _, exists := g.Nodes[id]; exists {
		return nil, streamyerrors.NewBuildError(id, "", "duplicate stage id", nil)
	}
	node := &Node{ID: id}
	g.Nodes[id] = node
	return node, nil
}

// AddEdge records that "to" depends on "from".
func (g *Graph) AddEdge(from, to string) error {
	source, ok := g.Nodes[from]
	if !ok {
		return streamyerrors.NewBuildError(to, "", fmt.Sprintf("unknown dependency %q", from), nil)
	}
	target, ok := g.Nodes[to]
	if !ok {
		return streamyerrors.NewBuildError(to, "", "unknown target stage", nil)
	}
	source.Dependents = append(source.Dependents, target)
	target.DependsOn = append(target.DependsOn, source)
	return nil
}

// TopologicalSort assigns nodes to levels via Kahn's algorithm. Nodes with no
// unresolved dependencies form level 0; each subsequent level consists of
// nodes whose dependencies were all satisfied by earlier levels. Returns a
// BuildError naming one stage on a cycle if the graph is not a DAG.
func (g *Graph) TopologicalSort() error {
	indegree := make(map[string]int, len(g.Nodes))
	for id := range g.Nodes {
		indegree[id] = 0
	}
	for _, node := range g.Nodes {
		for _, dep := range node.Dependents {
			indegree[dep.ID]++
		}
	}

	var queue []string
	for id, degree := range indegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	processed := 0
	var levels [][]string

	for len(queue) > 0 {
		current := queue
		sort.Strings(current)
		levels = append(levels, append([]string(nil), current...))

		var next []string
		for _, id := range current {
			processed++
			node := g.Nodes[id]
			for _, dependent := range node.Dependents {
				indegree[dependent.ID]--
				if indegree[dependent.ID] == 0 {
					next = append(next, dependent.ID)
				}
			}
		}
		sort.Strings(next)
		queue = next
	}

	if processed != len(g.Nodes) {
		var remaining []string
		for id, degree := range indegree {
			if degree > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		// Every unprocessed node has an unprocessed predecessor, so walking
		// predecessors len(remaining) times ends on a node inside a cycle.
		id := remaining[0]
		for i := 0; i < len(remaining); i++ {
			for _, dep := range g.Nodes[id].DependsOn {
				if indegree[dep.ID] > 0 {
					id = dep.ID
					break
				}
			}
		}
		return streamyerrors.NewBuildError(id, "", "dependency cycle detected among stages", nil)
	}

	g.Levels = levels
	return nil
}

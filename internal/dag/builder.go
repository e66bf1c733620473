package dag

import (
	"fmt"
	"sort"

	streamyerrors "github.com/conveyor/conveyor/pkg/errors"

	"github.com/conveyor/conveyor/internal/stage"
	"github.com/conveyor/conveyor/internal/tomlconfig"
)

// Build constructs and level-sorts the execution graph from a pipeline's
// stage declarations, resolving every declared function name against
// resolvers (in order) and reserved before the graph is accepted.
func Build(stages []tomlconfig.StageDecl, resolvers []Resolver, reserved stage.Stage) (*Graph, error) {
	return buildGraph(stages, resolvers, reserved, nil)
}

// BuildSub constructs a graph exactly like Build, except that any input
// naming one of externalIDs is wired to a synthetic node with no backing
// stage rather than rejected as unknown. Used by the stage.pipeline
// sub-pipeline stage to thread the enclosing stage's inputs into its own
// DAG by id.
func BuildSub(stages []tomlconfig.StageDecl, resolvers []Resolver, reserved stage.Stage, externalIDs []string) (*Graph, error) {
	return buildGraph(stages, resolvers, reserved, externalIDs)
}

func buildGraph(stages []tomlconfig.StageDecl, resolvers []Resolver, reserved stage.Stage, externalIDs []string) (*Graph, error) {
	graph := NewGraph()
	declMap := make(map[string]*tomlconfig.StageDecl, len(stages))
	external := make(map[string]bool, len(externalIDs))

	for _, id := range externalIDs {
		if _, err := graph.AddExternalNode(id); err != nil {
			return nil, err
		}
		external[id] = true
	}

	for i := range stages {
		decl := &stages[i]
		resolved, ok := resolveFunction(decl.Function, resolvers, reserved)
		if !ok {
			return nil, streamyerrors.NewBuildError(decl.ID, decl.Function, "function not found", nil)
		}
		node, err := graph.AddNode(decl)
		if err != nil {
			return nil, err
		}
		node.Stage = resolved
		declMap[decl.ID] = decl
	}

	for _, decl := range stages {
		for _, dep := range decl.Inputs {
			if _, ok := declMap[dep]; !ok && !external[dep] {
				return nil, streamyerrors.NewBuildError(decl.ID, decl.Function, fmt.Sprintf("depends on unknown stage %q", dep), nil)
			}
			if err := graph.AddEdge(dep, decl.ID); err != nil {
				return nil, err
			}
		}
	}

	if err := graph.TopologicalSort(); err != nil {
		return nil, err
	}

	ensureLevelsContainAll(graph, stages)

	return graph, nil
}

// ValidateStageParams checks every declared stage's resolved configuration
// against its resolved function's own validation rules, independent of
// graph construction.
func ValidateStageParams(stages []tomlconfig.StageDecl, resolvers []Resolver, reserved stage.Stage) error {
	for _, decl := range stages {
		s, ok := resolveFunction(decl.Function, resolvers, reserved)
		if !ok {
			return streamyerrors.NewBuildError(decl.ID, decl.Function, "function not found", nil)
		}
		if err := s.ValidateParams(stage.Params(decl.Config)); err != nil {
			return streamyerrors.NewBuildError(decl.ID, decl.Function, "invalid parameters", err)
		}
	}
	return nil
}

func ensureLevelsContainAll(graph *Graph, stages []tomlconfig.StageDecl) {
	seen := make(map[string]struct{})
	for _, level := range graph.Levels {
		for _, id := range level {
			seen[id] = struct{}{}
		}
	}

	var missing []string
	for _, decl := range stages {
		if _, ok := seen[decl.ID]; !ok {
			missing = append(missing, decl.ID)
		}
	}
	if len(missing) == 0 {
		return
	}
	sort.Strings(missing)
	graph.Levels = append([][]string{missing}, graph.Levels...)
}

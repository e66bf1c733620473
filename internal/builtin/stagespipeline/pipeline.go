// Package stagespipeline implements Conveyor's "stage.pipeline" function: a
// stage whose body is itself a pipeline, loaded inline or from a file and
// run against its own DAG, publishing the single terminal node's output.
package stagespipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/conveyor/conveyor/internal/dag"
	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/logger"
	"github.com/conveyor/conveyor/internal/stage"
	"github.com/conveyor/conveyor/internal/tomlconfig"
	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// Stage implements the reserved "stage.pipeline" function. It is resolved
// last in the DAG builder's function lookup order, after the registry and
// every loaded plugin's capability list, and passes itself as that same
// fallback when building its own sub-pipeline's graph so stage.pipeline
// nests to arbitrary depth.
type Stage struct {
	resolvers []dag.Resolver
	logger    *logger.Logger
}

// New constructs a stage.pipeline stage that resolves its sub-pipeline's
// functions against resolvers — ordinarily the same resolver chain the
// enclosing pipeline is running against, so sub-pipelines see the same
// built-ins and loaded plugins.
func New(resolvers []dag.Resolver, log *logger.Logger) *Stage {
	return &Stage{resolvers: resolvers, logger: log}
}

// Metadata describes stage.pipeline's parameters.
func (Stage) Metadata() stage.Metadata {
	return stage.Metadata{
		Function:    "stage.pipeline",
		Version:     "1.0.0",
		Description: "Executes an inline or file-referenced sub-pipeline and publishes its terminal stage's output.",
		Role:        "transform",
		Parameters: []stage.Parameter{
			{Name: "file", Kind: stage.ParamString, Description: "Path to a sub-pipeline TOML document. Mutually exclusive with 'inline'."},
			{Name: "inline", Kind: stage.ParamString, Description: "Inline TOML body (the [[stages]] tables only). Mutually exclusive with 'file'."},
		},
	}
}

// ValidateParams requires exactly one of 'file' or 'inline', and that it
// parses into a valid single-terminal sub-pipeline.
func (s *Stage) ValidateParams(params stage.Params) error {
	_, _, err := s.loadSubConfig(params)
	return err
}

// Execute loads the configured sub-pipeline, builds its DAG with the
// enclosing stage's inputs wired in as external nodes keyed by their
// upstream stage id, runs it to completion, and returns the single
// terminal node's output.
func (s *Stage) Execute(ctx context.Context, params stage.Params, inputs stage.Input) (envelope.Value, error) {
	cfg, terminal, err := s.loadSubConfig(params)
	if err != nil {
		return envelope.Value{}, err
	}
	tomlconfig.ApplyDefaults(cfg)

	if err := dag.ValidateStageParams(cfg.Stages, s.resolvers, s); err != nil {
		return envelope.Value{}, err
	}

	graph, err := dag.BuildSub(cfg.Stages, s.resolvers, s, unresolvedDependencies(cfg.Stages))
	if err != nil {
		return envelope.Value{}, err
	}

	timeout := time.Duration(cfg.Global.TimeoutSeconds) * time.Second
	result, err := dag.Execute(ctx, graph, dag.Options{
		Timeout:     timeout,
		Logger:      s.logger,
		ErrorPolicy: dag.PolicyFromErrorHandling(cfg.ErrorHandling),
		Seed:        map[string]envelope.Value(inputs),
	})
	if err != nil {
		return envelope.Value{}, err
	}

	output, ok := result.Outputs[terminal]
	if !ok {
		return envelope.Value{}, streamyerrors.NewExecutionError(terminal, fmt.Errorf("sub-pipeline terminal stage produced no output"))
	}
	return output, nil
}

// loadSubConfig parses the sub-pipeline document named by params (file or
// inline, mutually exclusive) and confirms it resolves to exactly one
// terminal stage, without executing it.
func (s *Stage) loadSubConfig(params stage.Params) (*tomlconfig.Config, string, error) {
	file, hasFile := params["file"].(string)
	inline, hasInline := params["inline"].(string)
	hasFile = hasFile && file != ""
	hasInline = hasInline && inline != ""

	if !hasFile && !hasInline {
		return nil, "", fmt.Errorf("stage.pipeline requires either 'file' or 'inline' configuration")
	}
	if hasFile && hasInline {
		return nil, "", fmt.Errorf("stage.pipeline cannot have both 'file' and 'inline' configuration")
	}

	var cfg *tomlconfig.Config
	var err error
	if hasFile {
		cfg, err = tomlconfig.Load(file, nil)
	} else {
		cfg, err = tomlconfig.LoadString(wrapInline(inline), nil)
	}
	if err != nil {
		return nil, "", err
	}

	graph, err := dag.BuildSub(cfg.Stages, s.resolvers, s, unresolvedDependencies(cfg.Stages))
	if err != nil {
		return nil, "", err
	}
	terminal, err := singleTerminal(graph)
	if err != nil {
		return nil, "", err
	}

	return cfg, terminal, nil
}

// unresolvedDependencies returns every input name that no declared stage
// claims as its id. At validate time (before the enclosing stage's inputs
// are known) these are optimistically treated as external nodes; at execute
// time a name that turns out not to match a supplied input fails with a
// clear "not seeded" error instead.
func unresolvedDependencies(stages []tomlconfig.StageDecl) []string {
	declared := make(map[string]bool, len(stages))
	for _, decl := range stages {
		declared[decl.ID] = true
	}

	seen := make(map[string]bool)
	var unresolved []string
	for _, decl := range stages {
		for _, dep := range decl.Inputs {
			if !declared[dep] && !seen[dep] {
				seen[dep] = true
				unresolved = append(unresolved, dep)
			}
		}
	}
	return unresolved
}

// wrapInline prefixes a bare "[[stages]]" body with the minimal document
// header tomlconfig.Config requires, so an inline sub-pipeline's author only
// has to write its stages.
func wrapInline(body string) string {
	return "[pipeline]\nname = \"inline-pipeline\"\n\n" + body
}

// singleTerminal returns the id of the graph's sole node with no
// dependents. A sub-pipeline with zero or more than one terminal node is
// rejected: publishing "the" output of an ambiguous multi-sink pipeline has
// no well-defined meaning, so the ambiguity is a build error rather than an
// arbitrary pick.
func singleTerminal(graph *dag.Graph) (string, error) {
	var terminals []string
	for id, node := range graph.Nodes {
		if len(node.Dependents) == 0 && !node.External() {
			terminals = append(terminals, id)
		}
	}

	switch len(terminals) {
	case 0:
		return "", fmt.Errorf("stage.pipeline sub-pipeline has no terminal stage to publish")
	case 1:
		return terminals[0], nil
	default:
		return "", fmt.Errorf("stage.pipeline sub-pipeline has ambiguous terminal stages %v; restructure it to a single sink", terminals)
	}
}

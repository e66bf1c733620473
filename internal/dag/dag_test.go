package dag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/registry"
	"github.com/conveyor/conveyor/internal/stage"
	"github.com/conveyor/conveyor/internal/strategy"
	"github.com/conveyor/conveyor/internal/tomlconfig"
)

type constStage struct {
	function string
	value    envelope.Value
	calls    *int
}

func (c constStage) Metadata() stage.Metadata {
	return stage.Metadata{Function: c.function, Role: "transform"}
}
func (c constStage) ValidateParams(stage.Params) error { return nil }
func (c constStage) Execute(ctx context.Context, params stage.Params, inputs stage.Input) (envelope.Value, error) {
	if c.calls != nil {
		*c.calls++
	}
	return c.value, nil
}

func buildRegistry(t *testing.T, stages ...stage.Stage) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, s := range stages {
		require.NoError(t, reg.Register(s))
	}
	return reg
}

func resolvers(reg *registry.Registry) []Resolver {
	return []Resolver{RegistryResolver(reg)}
}

func TestBuildLevelsLinear(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(t, constStage{function: "a"}, constStage{function: "b"})
	stages := []tomlconfig.StageDecl{
		{ID: "s1", Function: "a"},
		{ID: "s2", Function: "b", Inputs: []string{"s1"}},
	}

	graph, err := Build(stages, resolvers(reg), nil)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"s1"}, {"s2"}}, graph.Levels)
}

func TestBuildDetectsCycle(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(t, constStage{function: "a"}, constStage{function: "b"})
	stages := []tomlconfig.StageDecl{
		{ID: "s1", Function: "a", Inputs: []string{"s2"}},
		{ID: "s2", Function: "b", Inputs: []string{"s1"}},
	}

	_, err := Build(stages, resolvers(reg), nil)
	require.Error(t, err)
}

func TestBuildUnregisteredFunctionFails(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(t)
	stages := []tomlconfig.StageDecl{{ID: "s1", Function: "missing"}}

	_, err := Build(stages, resolvers(reg), nil)
	require.Error(t, err)
}

func TestExecuteLinearPipeline(t *testing.T) {
	t.Parallel()

	calls := 0
	reg := buildRegistry(t,
		constStage{function: "source", value: envelope.NewRecords(envelope.Records{{"n": int64(1)}}), calls: &calls},
		constStage{function: "sink", value: envelope.NewRaw([]byte("done"), ""), calls: &calls},
	)
	stages := []tomlconfig.StageDecl{
		{ID: "s1", Function: "source"},
		{ID: "s2", Function: "sink", Inputs: []string{"s1"}},
	}
	graph, err := Build(stages, resolvers(reg), nil)
	require.NoError(t, err)

	result, err := Execute(context.Background(), graph, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Contains(t, result.Outputs, "s1")
	require.Contains(t, result.Outputs, "s2")
}

func TestExecuteStopOnError(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	require.NoError(t, reg.Register(failingStage{function: "fails"}))

	stages := []tomlconfig.StageDecl{{ID: "s1", Function: "fails"}}
	graph, err := Build(stages, resolvers(reg), nil)
	require.NoError(t, err)

	_, err = Execute(context.Background(), graph, Options{})
	require.Error(t, err)
}

func TestExecuteContinueOnError(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	require.NoError(t, reg.Register(failingStage{function: "fails"}))

	stages := []tomlconfig.StageDecl{{ID: "s1", Function: "fails"}}
	graph, err := Build(stages, resolvers(reg), nil)
	require.NoError(t, err)

	result, err := Execute(context.Background(), graph, Options{
		ErrorPolicy: PolicyFromErrorHandling(&tomlconfig.ErrorHandling{Strategy: "continue"}),
	})
	require.NoError(t, err)
	require.Equal(t, envelope.KindTabular, result.Outputs["s1"].Kind())
}

func TestPolicyFromErrorHandlingDefaultsToStop(t *testing.T) {
	t.Parallel()

	p := PolicyFromErrorHandling(nil)
	require.Equal(t, strategy.Stop, p.Kind)
}

func TestBuildSubWiresExternalDependency(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(t, constStage{function: "b"})
	stages := []tomlconfig.StageDecl{
		{ID: "s2", Function: "b", Inputs: []string{"external_in"}},
	}

	graph, err := BuildSub(stages, resolvers(reg), nil, []string{"external_in"})
	require.NoError(t, err)
	require.True(t, graph.Nodes["external_in"].External())
	require.Equal(t, [][]string{{"external_in"}, {"s2"}}, graph.Levels)
}

func TestExecuteSeedsExternalNode(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(t, constStage{function: "b", value: envelope.NewRaw([]byte("relayed"), "")})
	stages := []tomlconfig.StageDecl{
		{ID: "s2", Function: "b", Inputs: []string{"external_in"}},
	}
	graph, err := BuildSub(stages, resolvers(reg), nil, []string{"external_in"})
	require.NoError(t, err)

	seed := map[string]envelope.Value{"external_in": envelope.NewRecords(envelope.Records{{"x": int64(1)}})}
	result, err := Execute(context.Background(), graph, Options{Seed: seed})
	require.NoError(t, err)
	require.Equal(t, envelope.KindRecords, result.Outputs["external_in"].Kind())
	require.Equal(t, envelope.KindRaw, result.Outputs["s2"].Kind())
}

func TestExecuteFailsWhenExternalNodeNotSeeded(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(t, constStage{function: "b"})
	stages := []tomlconfig.StageDecl{
		{ID: "s2", Function: "b", Inputs: []string{"external_in"}},
	}
	graph, err := BuildSub(stages, resolvers(reg), nil, []string{"external_in"})
	require.NoError(t, err)

	_, err = Execute(context.Background(), graph, Options{})
	require.Error(t, err)
}

func TestBuildResolvesReservedPipelineFunctionLast(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(t)
	reserved := constStage{function: ReservedPipelineFunction}
	stages := []tomlconfig.StageDecl{{ID: "s1", Function: ReservedPipelineFunction}}

	graph, err := Build(stages, resolvers(reg), reserved)
	require.NoError(t, err)
	require.Equal(t, ReservedPipelineFunction, graph.Nodes["s1"].Stage.Metadata().Function)
}

func TestBuildShadowsReservedPipelineFunctionWithRegistryEntry(t *testing.T) {
	t.Parallel()

	calls := 0
	explicit := constStage{function: ReservedPipelineFunction, value: envelope.NewRaw([]byte("explicit"), ""), calls: &calls}
	reg := buildRegistry(t, explicit)
	reserved := constStage{function: ReservedPipelineFunction}
	stages := []tomlconfig.StageDecl{{ID: "s1", Function: ReservedPipelineFunction}}

	graph, err := Build(stages, resolvers(reg), reserved)
	require.NoError(t, err)

	result, err := Execute(context.Background(), graph, Options{})
	require.NoError(t, err)
	require.Equal(t, "explicit", string(result.Outputs["s1"].Raw().Bytes))
}

type failingStage struct{ function string }

func (f failingStage) Metadata() stage.Metadata {
	return stage.Metadata{Function: f.function, Role: "transform"}
}
func (f failingStage) ValidateParams(stage.Params) error { return nil }
func (f failingStage) Execute(ctx context.Context, params stage.Params, inputs stage.Input) (envelope.Value, error) {
	return envelope.Value{}, errTestFailure
}

var errTestFailure = errors.New("stage failed")

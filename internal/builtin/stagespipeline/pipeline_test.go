package stagespipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conveyor/conveyor/internal/dag"
	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/registry"
	"github.com/conveyor/conveyor/internal/stage"
)

type constStage struct {
	meta stage.Metadata
	out  envelope.Value
}

func (c constStage) Metadata() stage.Metadata          { return c.meta }
func (c constStage) ValidateParams(stage.Params) error { return nil }
func (c constStage) Execute(context.Context, stage.Params, stage.Input) (envelope.Value, error) {
	return c.out, nil
}

func buildRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()

	require.NoError(t, reg.Register(constStage{
		meta: stage.Metadata{Function: "const.rows", Version: "1.0.0", Role: "source"},
		out: envelope.NewRecords(envelope.Records{
			{"id": float64(1)},
		}),
	}))

	return reg
}

func resolversFor(reg *registry.Registry) []dag.Resolver {
	return []dag.Resolver{dag.RegistryResolver(reg)}
}

const inlineSubPipeline = `
[[stages]]
id = "load"
function = "const.rows"

[[stages]]
id = "finish"
function = "select.apply"
inputs = ["load"]

[stages.config]
columns = ["id"]
`

func TestPipelineStageExecuteInline(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(t)
	require.NoError(t, reg.Register(selectStub{}))

	s := New(resolversFor(reg), nil)
	params := stage.Params{"inline": inlineSubPipeline}
	require.NoError(t, s.ValidateParams(params))

	v, err := s.Execute(context.Background(), params, stage.Input{})
	require.NoError(t, err)
	require.Equal(t, envelope.KindRecords, v.Kind())
}

func TestPipelineStageRejectsBothFileAndInline(t *testing.T) {
	t.Parallel()

	s := New(resolversFor(buildRegistry(t)), nil)
	err := s.ValidateParams(stage.Params{"file": "a.toml", "inline": "[[stages]]"})
	require.Error(t, err)
}

func TestPipelineStageRejectsNeitherFileNorInline(t *testing.T) {
	t.Parallel()

	s := New(resolversFor(buildRegistry(t)), nil)
	require.Error(t, s.ValidateParams(stage.Params{}))
}

// selectStub stands in for the real select.apply registration so the inline
// fixture above doesn't need to import internal/builtin/transforms; it
// returns its first input unchanged.
type selectStub struct{}

func (selectStub) Metadata() stage.Metadata {
	return stage.Metadata{Function: "select.apply", Version: "1.0.0", Role: "transform"}
}
func (selectStub) ValidateParams(stage.Params) error { return nil }
func (selectStub) Execute(_ context.Context, _ stage.Params, inputs stage.Input) (envelope.Value, error) {
	for _, v := range inputs {
		return v, nil
	}
	return envelope.NewRecords(nil), nil
}

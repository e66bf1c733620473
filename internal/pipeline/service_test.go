package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/registry"
	"github.com/conveyor/conveyor/internal/stage"
)

type echoStage struct{ function string }

func (e echoStage) Metadata() stage.Metadata {
	return stage.Metadata{Function: e.function, Role: "transform"}
}
func (e echoStage) ValidateParams(stage.Params) error { return nil }
func (e echoStage) Execute(ctx context.Context, params stage.Params, inputs stage.Input) (envelope.Value, error) {
	return envelope.NewRaw([]byte("ok"), ""), nil
}

func writePipeline(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestServiceRunEndToEnd(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	require.NoError(t, reg.Register(echoStage{function: "source"}))
	require.NoError(t, reg.Register(echoStage{function: "sink"}))

	path := writePipeline(t, `
[pipeline]
version = "1.0.0"
name = "e2e-pipeline"

[[stages]]
id = "s1"
function = "source"

[[stages]]
id = "s2"
function = "sink"
inputs = ["s1"]
`)

	svc := NewService(reg, nil, "", "")
	outcome, err := svc.Run(context.Background(), RunRequest{ConfigPath: path})
	require.NoError(t, err)
	require.NotEmpty(t, outcome.RunID)
	require.Contains(t, outcome.Outputs, "s1")
	require.Contains(t, outcome.Outputs, "s2")
}

func TestServicePrepareRejectsUnknownFunction(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	path := writePipeline(t, `
[pipeline]
version = "1.0.0"
name = "bad-pipeline"

[[stages]]
id = "s1"
function = "nonexistent"
`)

	svc := NewService(reg, nil, "", "")
	_, err := svc.Prepare(context.Background(), path, nil)
	require.Error(t, err)
}

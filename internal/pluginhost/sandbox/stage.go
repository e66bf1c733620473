package sandbox

import (
	"context"
	"encoding/json"

	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/stage"
	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// sandboxRequest is the JSON envelope sent into the guest module.
type sandboxRequest struct {
	Params stage.Params                `json:"params"`
	Inputs map[string]envelope.Records `json:"inputs"`
}

// invoker is the subset of *Module's behavior Stage depends on, so tests
// can substitute a fake guest without starting a real wazero runtime.
type invoker interface {
	Invoke(ctx context.Context, function string, input []byte) ([]byte, error)
	ValidateConfig(ctx context.Context, config []byte) error
}

// Stage adapts a sandboxed WebAssembly function into the stage.Stage
// contract. Data crosses the boundary as JSON records; a component wanting
// column-oriented throughput should use the native plugin host instead.
type Stage struct {
	meta     stage.Metadata
	module   invoker
	function string
}

// NewStage wraps one exported function of a loaded sandbox Module as a
// stage.Stage.
func NewStage(meta stage.Metadata, module *Module, function string) *Stage {
	return &Stage{meta: meta, module: module, function: function}
}

// Metadata returns the plugin-declared stage descriptor.
func (s *Stage) Metadata() stage.Metadata { return s.meta }

// ValidateParams marshals params as JSON and calls the guest's
// validate_config export, surfacing any rejection as a plugin error.
func (s *Stage) ValidateParams(params stage.Params) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return streamyerrors.NewPluginError(s.meta.Function, err)
	}
	if err := s.module.ValidateConfig(context.Background(), payload); err != nil {
		return streamyerrors.NewPluginError(s.meta.Function, err)
	}
	return nil
}

// Execute marshals params and inputs as JSON, invokes the sandboxed
// function in a fresh module instance, and unmarshals its response.
func (s *Stage) Execute(ctx context.Context, params stage.Params, inputs stage.Input) (envelope.Value, error) {
	req := sandboxRequest{Params: params, Inputs: make(map[string]envelope.Records, len(inputs))}
	for id, v := range inputs {
		records, err := v.AsRecords()
		if err != nil {
			return envelope.Value{}, streamyerrors.NewPluginError(s.meta.Function, err)
		}
		req.Inputs[id] = records
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return envelope.Value{}, streamyerrors.NewPluginError(s.meta.Function, err)
	}

	out, err := s.module.Invoke(ctx, s.function, payload)
	if err != nil {
		return envelope.Value{}, err
	}

	var records envelope.Records
	if err := json.Unmarshal(out, &records); err != nil {
		return envelope.Value{}, streamyerrors.NewPluginError(s.meta.Function, err)
	}
	return envelope.NewRecords(records), nil
}

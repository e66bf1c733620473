package transforms

import (
	"context"

	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/stage"
	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// Passthrough implements the "passthrough" function: an identity transform
// that returns its single upstream input unchanged. Grounded in the
// single-input/single-output shape of the simplest transforms (e.g.
// distinct.rs's no-config path); used where a DAG needs a transform-role
// stage that does not alter data, such as wiring a source straight into a
// sink through an intermediate node.
type Passthrough struct{}

// Metadata describes passthrough's (empty) parameters.
func (Passthrough) Metadata() stage.Metadata {
	return stage.Metadata{
		Function:    "passthrough",
		Version:     "1.0.0",
		Description: "Returns its single upstream input unchanged.",
		Role:        "transform",
	}
}

// ValidateParams accepts any params; passthrough ignores them.
func (Passthrough) ValidateParams(stage.Params) error { return nil }

// Execute returns the single upstream input unchanged.
func (Passthrough) Execute(ctx context.Context, params stage.Params, inputs stage.Input) (envelope.Value, error) {
	input, err := singleInput(inputs)
	if err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError("passthrough", err)
	}
	return input, nil
}

// Package transforms implements Conveyor's built-in transform stages:
// functions that consume one upstream input and produce a derived value.
package transforms

import (
	"context"
	"fmt"

	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/stage"
	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// Filter implements the "filter.apply" function: keeps rows of a Tabular
// input whose named column satisfies a comparison against a configured
// value.
type Filter struct{}

// Metadata describes filter.apply's parameters.
func (Filter) Metadata() stage.Metadata {
	return stage.Metadata{
		Function:    "filter.apply",
		Version:     "1.0.0",
		Description: "Keeps rows whose column satisfies a comparison against a value.",
		Role:        "transform",
		Parameters: []stage.Parameter{
			{Name: "column", Kind: stage.ParamString, Required: true},
			{Name: "operator", Kind: stage.ParamString, Default: "=="},
			{Name: "value", Kind: stage.ParamAny, Required: true},
		},
	}
}

var filterOperators = map[string]bool{
	"==": true, "=": true, "!=": true, "<>": true,
	">": true, ">=": true, "<": true, "<=": true, "contains": true,
}

// ValidateParams requires a column name, a known operator, and a value.
func (Filter) ValidateParams(params stage.Params) error {
	column, ok := params["column"].(string)
	if !ok || column == "" {
		return fmt.Errorf("filter.apply requires a non-empty 'column' parameter")
	}
	if op, ok := params["operator"].(string); ok && op != "" && !filterOperators[op] {
		return fmt.Errorf("filter.apply 'operator' %q is not supported", op)
	}
	if _, ok := params["value"]; !ok {
		return fmt.Errorf("filter.apply requires a 'value' parameter")
	}
	return nil
}

// Execute filters the single upstream input's rows by the configured
// predicate.
func (Filter) Execute(ctx context.Context, params stage.Params, inputs stage.Input) (envelope.Value, error) {
	input, err := singleInput(inputs)
	if err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError("filter.apply", err)
	}

	tab, err := input.AsTabular()
	if err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError("filter.apply", err)
	}

	column, _ := params["column"].(string)
	operator, _ := params["operator"].(string)
	if operator == "" {
		operator = "=="
	}
	value := params["value"]

	keep, err := rowsMatching(tab, column, operator, value)
	if err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError("filter.apply", err)
	}

	return envelope.NewTabular(selectRows(tab, keep)), nil
}

func singleInput(inputs stage.Input) (envelope.Value, error) {
	if len(inputs) != 1 {
		return envelope.Value{}, fmt.Errorf("expected exactly one upstream input, got %d", len(inputs))
	}
	for _, v := range inputs {
		return v, nil
	}
	return envelope.Value{}, fmt.Errorf("no input found")
}

package transforms

import (
	"context"
	"fmt"

	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/stage"
	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// Select implements the "select.apply" function: projects a Tabular input
// down to a configured subset of columns, in the requested order.
type Select struct{}

// Metadata describes select.apply's parameters.
func (Select) Metadata() stage.Metadata {
	return stage.Metadata{
		Function:    "select.apply",
		Version:     "1.0.0",
		Description: "Projects a tabular input down to a named subset of columns.",
		Role:        "transform",
		Parameters: []stage.Parameter{
			{Name: "columns", Kind: stage.ParamStringList, Required: true},
		},
	}
}

// ValidateParams requires a non-empty column list.
func (Select) ValidateParams(params stage.Params) error {
	cols, err := stringListParam(params["columns"])
	if err != nil {
		return fmt.Errorf("select.apply: %w", err)
	}
	if len(cols) == 0 {
		return fmt.Errorf("select.apply requires a non-empty 'columns' parameter")
	}
	return nil
}

// Execute projects the single upstream input down to the configured columns.
func (Select) Execute(ctx context.Context, params stage.Params, inputs stage.Input) (envelope.Value, error) {
	input, err := singleInput(inputs)
	if err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError("select.apply", err)
	}

	tab, err := input.AsTabular()
	if err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError("select.apply", err)
	}

	names, _ := stringListParam(params["columns"])
	cols := make([]envelope.Column, 0, len(names))
	for _, name := range names {
		col, ok := findColumn(tab, name)
		if !ok {
			return envelope.Value{}, streamyerrors.NewExecutionError("select.apply", fmt.Errorf("unknown column %q", name))
		}
		cols = append(cols, col)
	}

	return envelope.NewTabular(&envelope.Tabular{Columns: cols}), nil
}

func stringListParam(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{val}, nil
	case []string:
		return val, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("'columns' must be a string or array of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("'columns' must be a string or array of strings")
	}
}

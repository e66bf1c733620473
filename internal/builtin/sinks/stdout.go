// Package sinks implements Conveyor's built-in sink stages: functions that
// consume an upstream input and write it to an external destination.
package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/stage"
	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// Stdout implements the "stdout" function: prints the upstream input to a
// writer (os.Stdout by default) as an aligned table, a JSON array, a
// JSON-lines stream, or CSV, optionally truncated to a row limit.
type Stdout struct {
	Writer io.Writer
}

// Metadata describes stdout's parameters.
func (Stdout) Metadata() stage.Metadata {
	return stage.Metadata{
		Function:    "stdout",
		Version:     "1.0.0",
		Description: "Writes the upstream input to standard output.",
		Role:        "sink",
		Parameters: []stage.Parameter{
			{Name: "format", Kind: stage.ParamString, Default: "table", Description: "'table', 'json', 'jsonl', or 'csv'."},
			{Name: "pretty", Kind: stage.ParamBool, Default: true},
			{Name: "limit", Kind: stage.ParamInt},
			{Name: "delimiter", Kind: stage.ParamString, Default: ","},
		},
	}
}

var stdoutFormats = map[string]bool{"table": true, "json": true, "jsonl": true, "csv": true}

// ValidateParams requires a known format.
func (Stdout) ValidateParams(params stage.Params) error {
	if format, ok := params["format"].(string); ok && format != "" && !stdoutFormats[format] {
		return fmt.Errorf("stdout 'format' must be one of table, json, jsonl, csv, got %q", format)
	}
	return nil
}

// Execute writes the single upstream input to the configured writer.
func (s Stdout) Execute(ctx context.Context, params stage.Params, inputs stage.Input) (envelope.Value, error) {
	input, err := singleInput(inputs)
	if err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError("stdout", err)
	}

	w := s.Writer
	if w == nil {
		w = os.Stdout
	}

	format := "table"
	if v, ok := params["format"].(string); ok && v != "" {
		format = v
	}
	pretty := true
	if v, ok := params["pretty"].(bool); ok {
		pretty = v
	}
	limit := limitParam(params)

	records, err := input.AsRecords()
	if err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError("stdout", err)
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	switch format {
	case "table":
		if err := writeTable(w, records); err != nil {
			return envelope.Value{}, streamyerrors.NewExecutionError("stdout", err)
		}
	case "jsonl":
		for _, rec := range records {
			line, err := json.Marshal(rec)
			if err != nil {
				return envelope.Value{}, streamyerrors.NewExecutionError("stdout", err)
			}
			fmt.Fprintln(w, string(line))
		}
	case "csv":
		delimiter := byte(',')
		if v, ok := params["delimiter"].(string); ok && len(v) > 0 {
			delimiter = v[0]
		}
		if err := writeCSV(w, records, delimiter); err != nil {
			return envelope.Value{}, streamyerrors.NewExecutionError("stdout", err)
		}
	default:
		var out []byte
		var err error
		if pretty {
			out, err = json.MarshalIndent(records, "", "  ")
		} else {
			out, err = json.Marshal(records)
		}
		if err != nil {
			return envelope.Value{}, streamyerrors.NewExecutionError("stdout", err)
		}
		fmt.Fprintln(w, string(out))
	}

	return envelope.NewRecords(records), nil
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

func limitParam(params stage.Params) int {
	switch v := params["limit"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

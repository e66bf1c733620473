package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/logger"
	"github.com/conveyor/conveyor/internal/stage"
	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// JSONWrite implements the "json.write" function: serializes the upstream
// input to a file as a JSON records array, a JSON-lines stream, or a
// column-oriented "dataframe" object, creating parent directories as needed.
type JSONWrite struct {
	Logger *logger.Logger
}

// Metadata describes json.write's parameters.
func (JSONWrite) Metadata() stage.Metadata {
	return stage.Metadata{
		Function:    "json.write",
		Version:     "1.0.0",
		Description: "Writes the upstream input to a JSON file.",
		Role:        "sink",
		Parameters: []stage.Parameter{
			{Name: "path", Kind: stage.ParamString, Required: true},
			{Name: "format", Kind: stage.ParamString, Default: "records", Description: "'records', 'jsonl', or 'dataframe'."},
			{Name: "pretty", Kind: stage.ParamBool, Default: false},
		},
	}
}

var jsonWriteFormats = map[string]bool{"records": true, "jsonl": true, "dataframe": true}

// ValidateParams requires a non-empty path and a known format.
func (JSONWrite) ValidateParams(params stage.Params) error {
	path, ok := params["path"].(string)
	if !ok || path == "" {
		return fmt.Errorf("json.write requires a non-empty 'path' parameter")
	}
	if format, ok := params["format"].(string); ok && format != "" && !jsonWriteFormats[format] {
		return fmt.Errorf("json.write 'format' must be one of records, jsonl, dataframe, got %q", format)
	}
	return nil
}

// Execute writes the single upstream input to the configured file.
func (w JSONWrite) Execute(ctx context.Context, params stage.Params, inputs stage.Input) (envelope.Value, error) {
	input, err := singleInput(inputs)
	if err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError("json.write", err)
	}

	path, _ := params["path"].(string)
	format := "records"
	if v, ok := params["format"].(string); ok && v != "" {
		format = v
	}
	pretty, _ := params["pretty"].(bool)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return envelope.Value{}, streamyerrors.NewExecutionError("json.write", err)
		}
	}

	var output []byte
	var rowCount int

	switch format {
	case "dataframe":
		tab, err := input.AsTabular()
		if err != nil {
			return envelope.Value{}, streamyerrors.NewExecutionError("json.write", err)
		}
		rowCount = tab.RowCount()
		output, err = marshalDataframe(tab, pretty)
		if err != nil {
			return envelope.Value{}, streamyerrors.NewExecutionError("json.write", err)
		}
	case "jsonl":
		records, err := input.AsRecords()
		if err != nil {
			return envelope.Value{}, streamyerrors.NewExecutionError("json.write", err)
		}
		rowCount = len(records)
		output, err = marshalJSONL(records)
		if err != nil {
			return envelope.Value{}, streamyerrors.NewExecutionError("json.write", err)
		}
	default:
		records, err := input.AsRecords()
		if err != nil {
			return envelope.Value{}, streamyerrors.NewExecutionError("json.write", err)
		}
		rowCount = len(records)
		if pretty {
			output, err = json.MarshalIndent(records, "", "  ")
		} else {
			output, err = json.Marshal(records)
		}
		if err != nil {
			return envelope.Value{}, streamyerrors.NewExecutionError("json.write", err)
		}
	}

	if err := os.WriteFile(path, output, 0o644); err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError("json.write", err)
	}

	if w.Logger != nil {
		w.Logger.WithFields(map[string]any{"path": path, "rows": rowCount}).Info("written JSON file")
	}

	return input, nil
}

func marshalJSONL(records envelope.Records) ([]byte, error) {
	var buf []byte
	for i, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, line...)
	}
	return buf, nil
}

// marshalDataframe renders a Tabular as a column-name -> values object,
// mirroring the column-oriented "dataframe" JSON shape.
func marshalDataframe(tab *envelope.Tabular, pretty bool) ([]byte, error) {
	out := make(map[string]any, len(tab.Columns))
	for _, col := range tab.Columns {
		out[col.Name] = columnToJSONValues(col)
	}
	if pretty {
		return json.MarshalIndent(out, "", "  ")
	}
	return json.Marshal(out)
}

func columnToJSONValues(col envelope.Column) []any {
	n := col.Len()
	values := make([]any, n)
	for i := 0; i < n; i++ {
		if col.NullMask != nil && i < len(col.NullMask) && col.NullMask[i] {
			values[i] = nil
			continue
		}
		values[i] = cellAt(col, i)
	}
	return values
}

func cellAt(col envelope.Column, i int) any {
	switch data := col.Data.(type) {
	case []int64:
		return data[i]
	case []float64:
		return data[i]
	case []bool:
		return data[i]
	case []string:
		return data[i]
	case []any:
		return data[i]
	case []time.Time:
		return data[i].Format(time.RFC3339)
	default:
		return nil
	}
}

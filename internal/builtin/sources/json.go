package sources

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/stage"
	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// JSONRead implements the "json.read" function: reads a JSON array (or,
// with format "jsonl", newline-delimited JSON objects) and produces a
// Records value.
type JSONRead struct{}

// Metadata describes json.read's parameters.
func (JSONRead) Metadata() stage.Metadata {
	return stage.Metadata{
		Function:    "json.read",
		Version:     "1.0.0",
		Description: "Reads a JSON array or JSON-lines file into a records value.",
		Role:        "source",
		Parameters: []stage.Parameter{
			{Name: "path", Kind: stage.ParamString, Required: true},
			{Name: "format", Kind: stage.ParamString, Default: "records", Description: "'records' for a JSON array, 'jsonl' for newline-delimited objects."},
		},
	}
}

// ValidateParams requires a non-empty path and a supported format.
func (JSONRead) ValidateParams(params stage.Params) error {
	path, ok := params["path"].(string)
	if !ok || strings.TrimSpace(path) == "" {
		return fmt.Errorf("json.read requires a non-empty 'path' parameter")
	}
	if format, ok := params["format"].(string); ok {
		switch format {
		case "records", "jsonl":
		default:
			return fmt.Errorf("json.read 'format' must be 'records' or 'jsonl', got %q", format)
		}
	}
	return nil
}

// Execute reads the configured JSON document and returns it as Records.
func (JSONRead) Execute(ctx context.Context, params stage.Params, inputs stage.Input) (envelope.Value, error) {
	path, _ := params["path"].(string)
	if _, err := os.Stat(path); err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError("json.read", fmt.Errorf("json file not found: %s", path))
	}

	format := "records"
	if v, ok := params["format"].(string); ok && v != "" {
		format = v
	}

	f, err := os.Open(path)
	if err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError("json.read", err)
	}
	defer f.Close()

	var records envelope.Records

	if format == "jsonl" {
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var row map[string]any
			if err := json.Unmarshal([]byte(line), &row); err != nil {
				return envelope.Value{}, streamyerrors.NewExecutionError("json.read", err)
			}
			records = append(records, row)
		}
		if err := scanner.Err(); err != nil {
			return envelope.Value{}, streamyerrors.NewExecutionError("json.read", err)
		}
	} else {
		if err := json.NewDecoder(f).Decode(&records); err != nil {
			return envelope.Value{}, streamyerrors.NewExecutionError("json.read", err)
		}
	}

	return envelope.NewRecords(records), nil
}

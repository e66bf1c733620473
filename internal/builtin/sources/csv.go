// Package sources implements Conveyor's built-in source stages: functions
// with no upstream inputs that produce an envelope.Value from the outside
// world.
package sources

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/stage"
	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// CSVRead implements the "csv.read" function: reads a delimited file from
// disk and produces a Tabular value, inferring each column's type from its
// values (int64, float64, bool, or string, in that preference order).
type CSVRead struct{}

// Metadata describes csv.read's parameters.
func (CSVRead) Metadata() stage.Metadata {
	return stage.Metadata{
		Function:    "csv.read",
		Version:     "1.0.0",
		Description: "Reads a CSV file into a tabular value.",
		Role:        "source",
		Parameters: []stage.Parameter{
			{Name: "path", Kind: stage.ParamString, Required: true, Description: "Path to the CSV file."},
			{Name: "headers", Kind: stage.ParamBool, Default: true, Description: "Whether the first row names the columns."},
			{Name: "delimiter", Kind: stage.ParamString, Default: ",", Description: "Single-character field delimiter."},
		},
	}
}

// ValidateParams requires a non-empty path and a single-character delimiter.
func (CSVRead) ValidateParams(params stage.Params) error {
	path, ok := params["path"].(string)
	if !ok || strings.TrimSpace(path) == "" {
		return fmt.Errorf("csv.read requires a non-empty 'path' parameter")
	}
	if delim, ok := params["delimiter"].(string); ok && len(delim) > 1 {
		return fmt.Errorf("csv.read 'delimiter' must be a single character")
	}
	return nil
}

// Execute reads the configured CSV file and returns its contents as a
// Tabular value.
func (CSVRead) Execute(ctx context.Context, params stage.Params, inputs stage.Input) (envelope.Value, error) {
	path, _ := params["path"].(string)
	if _, err := os.Stat(path); err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError("csv.read", fmt.Errorf("csv file not found: %s", path))
	}

	f, err := os.Open(path)
	if err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError("csv.read", err)
	}
	defer f.Close()

	headers := true
	if v, ok := params["headers"].(bool); ok {
		headers = v
	}
	delimiter := ','
	if v, ok := params["delimiter"].(string); ok && len(v) == 1 {
		delimiter = rune(v[0])
	}

	r := csv.NewReader(f)
	r.Comma = delimiter

	rows, err := r.ReadAll()
	if err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError("csv.read", err)
	}
	if len(rows) == 0 {
		return envelope.EmptyTabular(), nil
	}

	var colNames []string
	dataRows := rows
	if headers {
		colNames = rows[0]
		dataRows = rows[1:]
	} else {
		for i := range rows[0] {
			colNames = append(colNames, fmt.Sprintf("col%d", i))
		}
	}

	cols := make([]envelope.Column, len(colNames))
	for i, name := range colNames {
		cols[i] = inferCSVColumn(name, dataRows, i)
	}

	return envelope.NewTabular(&envelope.Tabular{Columns: cols}), nil
}

func inferCSVColumn(name string, rows [][]string, idx int) envelope.Column {
	allInt, allFloat, allBool := true, true, true
	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		v := row[idx]
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			allFloat = false
		}
		if _, err := strconv.ParseBool(v); err != nil {
			allBool = false
		}
	}

	switch {
	case allInt:
		data := make([]int64, len(rows))
		for i, row := range rows {
			if idx < len(row) {
				data[i], _ = strconv.ParseInt(row[idx], 10, 64)
			}
		}
		return envelope.Column{Name: name, Type: envelope.ColumnInt64, Data: data}
	case allFloat:
		data := make([]float64, len(rows))
		for i, row := range rows {
			if idx < len(row) {
				data[i], _ = strconv.ParseFloat(row[idx], 64)
			}
		}
		return envelope.Column{Name: name, Type: envelope.ColumnFloat64, Data: data}
	case allBool:
		data := make([]bool, len(rows))
		for i, row := range rows {
			if idx < len(row) {
				data[i], _ = strconv.ParseBool(row[idx])
			}
		}
		return envelope.Column{Name: name, Type: envelope.ColumnBool, Data: data}
	default:
		data := make([]string, len(rows))
		for i, row := range rows {
			if idx < len(row) {
				data[i] = row[idx]
			}
		}
		return envelope.Column{Name: name, Type: envelope.ColumnString, Data: data}
	}
}

package transforms

import (
	"fmt"
	"strings"
	"time"

	"github.com/conveyor/conveyor/internal/envelope"
)

// rowsMatching evaluates operator(column[i], value) for every row of tab
// and returns the set of row indices to keep.
func rowsMatching(tab *envelope.Tabular, column, operator string, value any) ([]int, error) {
	col, ok := findColumn(tab, column)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", column)
	}

	n := col.Len()
	keep := make([]int, 0, n)

	for i := 0; i < n; i++ {
		if col.NullMask != nil && i < len(col.NullMask) && col.NullMask[i] {
			continue
		}
		matched, err := compareCell(col, i, operator, value)
		if err != nil {
			return nil, err
		}
		if matched {
			keep = append(keep, i)
		}
	}
	return keep, nil
}

func findColumn(tab *envelope.Tabular, name string) (envelope.Column, bool) {
	for _, c := range tab.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return envelope.Column{}, false
}

func compareCell(col envelope.Column, i int, operator string, value any) (bool, error) {
	switch data := col.Data.(type) {
	case []int64:
		target := toInt64(value)
		return compareOrdered(data[i], target, operator)
	case []float64:
		target := toFloat64(value)
		return compareOrdered(data[i], target, operator)
	case []string:
		target := fmt.Sprintf("%v", value)
		if operator == "contains" {
			return strings.Contains(data[i], target), nil
		}
		return compareOrdered(data[i], target, operator)
	case []bool:
		target, _ := value.(bool)
		switch operator {
		case "==", "=":
			return data[i] == target, nil
		case "!=", "<>":
			return data[i] != target, nil
		default:
			return false, fmt.Errorf("operator %q is not supported for boolean columns", operator)
		}
	case []time.Time:
		return false, fmt.Errorf("filtering on datetime columns is not yet supported")
	default:
		return false, fmt.Errorf("filtering on column type of %q is not supported", col.Name)
	}
}

func compareOrdered[T int64 | float64 | string](a, b T, operator string) (bool, error) {
	switch operator {
	case "==", "=":
		return a == b, nil
	case "!=", "<>":
		return a != b, nil
	case ">":
		return a > b, nil
	case ">=":
		return a >= b, nil
	case "<":
		return a < b, nil
	case "<=":
		return a <= b, nil
	default:
		return false, fmt.Errorf("operator %q is not supported", operator)
	}
}

// selectRows projects tab down to the given row indices, preserving column
// order and types.
func selectRows(tab *envelope.Tabular, indices []int) *envelope.Tabular {
	cols := make([]envelope.Column, len(tab.Columns))
	for ci, col := range tab.Columns {
		cols[ci] = projectColumn(col, indices)
	}
	return &envelope.Tabular{Columns: cols}
}

func projectColumn(col envelope.Column, indices []int) envelope.Column {
	out := envelope.Column{Name: col.Name, Type: col.Type}
	var nullMask []bool
	if col.NullMask != nil {
		nullMask = make([]bool, len(indices))
	}

	switch data := col.Data.(type) {
	case []int64:
		vals := make([]int64, len(indices))
		for i, idx := range indices {
			vals[i] = data[idx]
			if nullMask != nil && idx < len(col.NullMask) {
				nullMask[i] = col.NullMask[idx]
			}
		}
		out.Data = vals
	case []float64:
		vals := make([]float64, len(indices))
		for i, idx := range indices {
			vals[i] = data[idx]
			if nullMask != nil && idx < len(col.NullMask) {
				nullMask[i] = col.NullMask[idx]
			}
		}
		out.Data = vals
	case []bool:
		vals := make([]bool, len(indices))
		for i, idx := range indices {
			vals[i] = data[idx]
			if nullMask != nil && idx < len(col.NullMask) {
				nullMask[i] = col.NullMask[idx]
			}
		}
		out.Data = vals
	case []string:
		vals := make([]string, len(indices))
		for i, idx := range indices {
			vals[i] = data[idx]
			if nullMask != nil && idx < len(col.NullMask) {
				nullMask[i] = col.NullMask[idx]
			}
		}
		out.Data = vals
	case []time.Time:
		vals := make([]time.Time, len(indices))
		for i, idx := range indices {
			vals[i] = data[idx]
			if nullMask != nil && idx < len(col.NullMask) {
				nullMask[i] = col.NullMask[idx]
			}
		}
		out.Data = vals
	default:
		vals := make([]any, len(indices))
		for i, idx := range indices {
			if arr, ok := col.Data.([]any); ok && idx < len(arr) {
				vals[i] = arr[idx]
			}
		}
		out.Data = vals
	}

	out.NullMask = nullMask
	return out
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

package envelope

import "time"

// recordsToTabular infers a column set from the union of keys across all
// records and scans each record column-wise, recording a null where a key
// or type is missing. Column type is inferred from the first non-nil value
// seen for that key; values that don't match the inferred type fall back to
// ColumnAny.
func recordsToTabular(records Records) *Tabular {
	if len(records) == 0 {
		return &Tabular{Columns: []Column{}}
	}

	order := make([]string, 0)
	seen := make(map[string]bool)
	for _, row := range records {
		for key := range row {
			if !seen[key] {
				seen[key] = true
				order = append(order, key)
			}
		}
	}

	cols := make([]Column, 0, len(order))
	for _, name := range order {
		colType := inferColumnType(records, name)
		col := Column{Name: name, Type: colType}
		nullMask := make([]bool, len(records))
		anyNull := false

		switch colType {
		case ColumnInt64:
			data := make([]int64, len(records))
			for i, row := range records {
				v, ok := row[name]
				if !ok || v == nil {
					nullMask[i] = true
					anyNull = true
					continue
				}
				data[i] = toInt64(v)
			}
			col.Data = data
		case ColumnFloat64:
			data := make([]float64, len(records))
			for i, row := range records {
				v, ok := row[name]
				if !ok || v == nil {
					nullMask[i] = true
					anyNull = true
					continue
				}
				data[i] = toFloat64(v)
			}
			col.Data = data
		case ColumnBool:
			data := make([]bool, len(records))
			for i, row := range records {
				v, ok := row[name]
				if !ok || v == nil {
					nullMask[i] = true
					anyNull = true
					continue
				}
				data[i], _ = v.(bool)
			}
			col.Data = data
		case ColumnString:
			data := make([]string, len(records))
			for i, row := range records {
				v, ok := row[name]
				if !ok || v == nil {
					nullMask[i] = true
					anyNull = true
					continue
				}
				data[i], _ = v.(string)
			}
			col.Data = data
		case ColumnDateTime:
			data := make([]time.Time, len(records))
			for i, row := range records {
				v, ok := row[name]
				if !ok || v == nil {
					nullMask[i] = true
					anyNull = true
					continue
				}
				if t, ok := v.(time.Time); ok {
					data[i] = t
				}
			}
			col.Data = data
		default:
			data := make([]any, len(records))
			for i, row := range records {
				v, ok := row[name]
				if !ok || v == nil {
					nullMask[i] = true
					anyNull = true
				}
				data[i] = v
			}
			col.Data = data
		}

		if anyNull {
			col.NullMask = nullMask
		}
		cols = append(cols, col)
	}

	return &Tabular{Columns: cols}
}

func inferColumnType(records Records, key string) ColumnType {
	inferred, found := ColumnAny, false
	for _, row := range records {
		v, ok := row[key]
		if !ok || v == nil {
			continue
		}
		var t ColumnType
		switch v.(type) {
		case int, int64, int32:
			t = ColumnInt64
		case float32, float64:
			t = ColumnFloat64
		case bool:
			t = ColumnBool
		case string:
			t = ColumnString
		case time.Time:
			t = ColumnDateTime
		default:
			t = ColumnAny
		}
		if !found {
			inferred, found = t, true
		} else if t != inferred {
			return ColumnAny
		}
	}
	return inferred
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
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
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

// tabularToRecords emits one map per row, omitting keys whose value is
// marked null.
func tabularToRecords(t *Tabular) Records {
	if t == nil || len(t.Columns) == 0 {
		return Records{}
	}
	rows := t.RowCount()
	out := make(Records, rows)
	for i := 0; i < rows; i++ {
		out[i] = make(map[string]any, len(t.Columns))
	}
	for _, col := range t.Columns {
		for i := 0; i < rows; i++ {
			if col.NullMask != nil && i < len(col.NullMask) && col.NullMask[i] {
				continue
			}
			out[i][col.Name] = columnValueAt(col, i)
		}
	}
	return out
}

func columnValueAt(col Column, i int) any {
	switch d := col.Data.(type) {
	case []int64:
		if i < len(d) {
			return d[i]
		}
	case []float64:
		if i < len(d) {
			return d[i]
		}
	case []bool:
		if i < len(d) {
			return d[i]
		}
	case []string:
		if i < len(d) {
			return d[i]
		}
	case []time.Time:
		if i < len(d) {
			return d[i]
		}
	case []any:
		if i < len(d) {
			return d[i]
		}
	}
	return nil
}

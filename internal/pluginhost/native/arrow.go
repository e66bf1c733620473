package native

import (
	"fmt"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"

	"github.com/conveyor/conveyor/internal/envelope"
)

// arrowSchemaFor maps a Tabular's column types onto an Arrow schema,
// one field per column in declaration order.
func arrowSchemaFor(t *envelope.Tabular) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(t.Columns))
	for _, col := range t.Columns {
		fields = append(fields, arrow.Field{Name: col.Name, Type: arrowTypeFor(col.Type), Nullable: col.NullMask != nil})
	}
	return arrow.NewSchema(fields, nil)
}

func arrowTypeFor(t envelope.ColumnType) arrow.DataType {
	switch t {
	case envelope.ColumnInt64:
		return arrow.PrimitiveTypes.Int64
	case envelope.ColumnFloat64:
		return arrow.PrimitiveTypes.Float64
	case envelope.ColumnBool:
		return arrow.FixedWidthTypes.Boolean
	case envelope.ColumnDate:
		return arrow.FixedWidthTypes.Date32
	case envelope.ColumnDateTime:
		return arrow.FixedWidthTypes.Timestamp_ms
	default:
		return arrow.BinaryTypes.String
	}
}

// arrowRecordFor builds a single Arrow record batch from a Tabular value
// under the given schema.
func arrowRecordFor(pool memory.Allocator, schema *arrow.Schema, t *envelope.Tabular) arrow.Record {
	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	for i, col := range t.Columns {
		fb := builder.Field(i)
		switch data := col.Data.(type) {
		case []int64:
			b := fb.(*array.Int64Builder)
			for j, v := range data {
				if col.NullMask != nil && j < len(col.NullMask) && col.NullMask[j] {
					b.AppendNull()
					continue
				}
				b.Append(v)
			}
		case []float64:
			b := fb.(*array.Float64Builder)
			for j, v := range data {
				if col.NullMask != nil && j < len(col.NullMask) && col.NullMask[j] {
					b.AppendNull()
					continue
				}
				b.Append(v)
			}
		case []bool:
			b := fb.(*array.BooleanBuilder)
			for j, v := range data {
				if col.NullMask != nil && j < len(col.NullMask) && col.NullMask[j] {
					b.AppendNull()
					continue
				}
				b.Append(v)
			}
		case []string:
			b := fb.(*array.StringBuilder)
			for j, v := range data {
				if col.NullMask != nil && j < len(col.NullMask) && col.NullMask[j] {
					b.AppendNull()
					continue
				}
				b.Append(v)
			}
		default:
			// ColumnAny / unsupported types serialize as strings via fmt.
			b := fb.(*array.StringBuilder)
			cells, _ := col.Data.([]any)
			for j := 0; j < col.Len(); j++ {
				if col.NullMask != nil && j < len(col.NullMask) && col.NullMask[j] {
					b.AppendNull()
					continue
				}
				if j < len(cells) {
					b.Append(fmt.Sprintf("%v", cells[j]))
				} else {
					b.Append("")
				}
			}
		}
	}

	return builder.NewRecord()
}

// tabularFromArrowRecord converts one Arrow record batch back into a
// Tabular value.
func tabularFromArrowRecord(rec arrow.Record) *envelope.Tabular {
	schema := rec.Schema()
	cols := make([]envelope.Column, 0, len(schema.Fields()))

	for i, field := range schema.Fields() {
		col := envelope.Column{Name: field.Name}
		arr := rec.Column(i)

		switch typed := arr.(type) {
		case *array.Int64:
			col.Type = envelope.ColumnInt64
			data := make([]int64, typed.Len())
			var nullMask []bool
			for j := 0; j < typed.Len(); j++ {
				if typed.IsNull(j) {
					nullMask = ensureMask(nullMask, typed.Len())
					nullMask[j] = true
					continue
				}
				data[j] = typed.Value(j)
			}
			col.Data, col.NullMask = data, nullMask
		case *array.Float64:
			col.Type = envelope.ColumnFloat64
			data := make([]float64, typed.Len())
			var nullMask []bool
			for j := 0; j < typed.Len(); j++ {
				if typed.IsNull(j) {
					nullMask = ensureMask(nullMask, typed.Len())
					nullMask[j] = true
					continue
				}
				data[j] = typed.Value(j)
			}
			col.Data, col.NullMask = data, nullMask
		case *array.Boolean:
			col.Type = envelope.ColumnBool
			data := make([]bool, typed.Len())
			var nullMask []bool
			for j := 0; j < typed.Len(); j++ {
				if typed.IsNull(j) {
					nullMask = ensureMask(nullMask, typed.Len())
					nullMask[j] = true
					continue
				}
				data[j] = typed.Value(j)
			}
			col.Data, col.NullMask = data, nullMask
		case *array.String:
			col.Type = envelope.ColumnString
			data := make([]string, typed.Len())
			var nullMask []bool
			for j := 0; j < typed.Len(); j++ {
				if typed.IsNull(j) {
					nullMask = ensureMask(nullMask, typed.Len())
					nullMask[j] = true
					continue
				}
				data[j] = typed.Value(j)
			}
			col.Data, col.NullMask = data, nullMask
		default:
			col.Type = envelope.ColumnAny
			col.Data = make([]any, arr.Len())
		}

		cols = append(cols, col)
	}

	return &envelope.Tabular{Columns: cols}
}

func ensureMask(mask []bool, n int) []bool {
	if mask != nil {
		return mask
	}
	return make([]bool, n)
}

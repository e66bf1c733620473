// Package envelope implements the data format that flows across every edge
// of a Conveyor DAG: a small sum type over a columnar table, a list of
// JSON-like records, a raw byte buffer, or a single-consumption stream.
package envelope

import (
	"fmt"
	"time"

	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// Kind discriminates the Value variant.
type Kind int

const (
	// KindTabular is a columnar table with named typed columns.
	KindTabular Kind = iota
	// KindRecords is an ordered list of string-keyed JSON-like mappings.
	KindRecords
	// KindRaw is an opaque byte buffer.
	KindRaw
	// KindStream is a lazy, finite, forward-only, single-consumption sequence of batches.
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindTabular:
		return "tabular"
	case KindRecords:
		return "records"
	case KindRaw:
		return "raw"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// ColumnType tags a Tabular column's scalar type.
type ColumnType int

const (
	ColumnInt64 ColumnType = iota
	ColumnFloat64
	ColumnBool
	ColumnString
	ColumnDate
	ColumnDateTime
	ColumnAny // generic nested value, JSON-serializable
)

// Column is one named, typed column of a Tabular value.
//
// Data holds the column's cells as a typed slice matching Type
// ([]int64, []float64, []bool, []string, []time.Time, or []any for ColumnAny).
// NullMask marks which rows are null; nil means no nulls.
type Column struct {
	Name     string
	Type     ColumnType
	Data     any
	NullMask []bool
}

// Len reports the row count of the column.
func (c Column) Len() int {
	switch d := c.Data.(type) {
	case []int64:
		return len(d)
	case []float64:
		return len(d)
	case []bool:
		return len(d)
	case []string:
		return len(d)
	case []time.Time:
		return len(d)
	case []any:
		return len(d)
	default:
		return 0
	}
}

// Tabular is a columnar table.
type Tabular struct {
	Columns []Column
}

// EmptyTabular returns a Tabular value with no columns and no rows, used by
// the Continue error strategy to substitute a failed stage's output.
func EmptyTabular() Value {
	return Value{kind: KindTabular, tabular: &Tabular{Columns: []Column{}}}
}

// RowCount returns the number of rows, taken from the first column (all
// columns in a well-formed Tabular share the same length).
func (t *Tabular) RowCount() int {
	if t == nil || len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// Records is an ordered list of JSON-like mappings.
type Records []map[string]any

// Raw is an opaque byte buffer plus an optional format hint. AsTabular and
// AsRecords do not convert Raw values, with or without a hint.
type Raw struct {
	Bytes []byte
	Hint  string
}

// RecordBatch is one chunk yielded by a Stream.
type RecordBatch struct {
	Records Records
}

// Stream is a lazy, finite, forward-only sequence of record batches that may
// be consumed at most once. Implementations are supplied by source stages
// (e.g. a file-watch or HTTP-chunked source); the executor never constructs
// one itself.
type Stream interface {
	// Next returns the next batch, or ok=false when exhausted.
	Next() (RecordBatch, bool, error)
	// Close releases any resources held by the stream.
	Close() error
}

// Value is the tagged union carried on every DAG edge. The zero Value is not
// valid; construct one with NewTabular, NewRecords, NewRaw, or NewStream.
type Value struct {
	kind    Kind
	tabular *Tabular
	records Records
	raw     Raw
	stream  Stream
	// consumed is nil for all kinds except Stream, where NewStream allocates
	// it. Nothing reads it: single consumption across DAG edges is enforced
	// by the dag executor's own bookkeeping.
	consumed *bool
}

// Kind reports the variant held by the value.
func (v Value) Kind() Kind { return v.kind }

// NewTabular wraps a Tabular as a Value.
func NewTabular(t *Tabular) Value {
	if t == nil {
		t = &Tabular{}
	}
	return Value{kind: KindTabular, tabular: t}
}

// NewRecords wraps Records as a Value.
func NewRecords(r Records) Value {
	return Value{kind: KindRecords, records: r}
}

// NewRaw wraps a byte buffer with an optional format hint as a Value.
func NewRaw(data []byte, hint string) Value {
	return Value{kind: KindRaw, raw: Raw{Bytes: data, Hint: hint}}
}

// NewStream wraps a Stream as a Value.
func NewStream(s Stream) Value {
	consumed := false
	return Value{kind: KindStream, stream: s, consumed: &consumed}
}

// Tabular returns the underlying table, or nil if the value is not Tabular.
func (v Value) Tabular() *Tabular { return v.tabular }

// Records returns the underlying records, or nil if the value is not Records.
func (v Value) Records() Records { return v.records }

// Raw returns the underlying byte buffer, zero value if the value is not Raw.
func (v Value) Raw() Raw { return v.raw }

// Stream returns the underlying stream, or nil if the value is not Stream.
func (v Value) Stream() Stream { return v.stream }

// AsTabular converts the value into a Tabular, materializing Records by
// scanning value types column-wise. Raw always fails; Stream always fails
// (it must be materialized by the caller first).
func (v Value) AsTabular() (*Tabular, error) {
	switch v.kind {
	case KindTabular:
		return v.tabular, nil
	case KindRecords:
		return recordsToTabular(v.records), nil
	case KindRaw:
		return nil, streamyerrors.NewExecutionError("", fmt.Errorf("raw data requires an external hint to convert to tabular"))
	case KindStream:
		return nil, streamyerrors.NewExecutionError("", fmt.Errorf("streaming data must be materialized before conversion to tabular"))
	default:
		return nil, fmt.Errorf("unknown envelope kind %v", v.kind)
	}
}

// AsRecords converts the value into Records, emitting one mapping per row
// with typed scalars for Tabular input. Raw always fails.
func (v Value) AsRecords() (Records, error) {
	switch v.kind {
	case KindRecords:
		return v.records, nil
	case KindTabular:
		return tabularToRecords(v.tabular), nil
	case KindRaw:
		return nil, streamyerrors.NewExecutionError("", fmt.Errorf("raw data requires an external hint to convert to records"))
	case KindStream:
		return nil, streamyerrors.NewExecutionError("", fmt.Errorf("streaming data must be materialized before conversion to records"))
	default:
		return nil, fmt.Errorf("unknown envelope kind %v", v.kind)
	}
}

// TryClone produces an independent copy of the value. Tabular and Records
// clone cheaply (Tabular shares column backing slices; callers treat inputs
// as read-only). Raw copies its bytes. Stream fails unconditionally: a
// Stream may be read by at most one consumer, so any attempt to fan it out
// to a second DAG successor is an error.
func (v Value) TryClone() (Value, error) {
	switch v.kind {
	case KindTabular:
		return NewTabular(cloneTabular(v.tabular)), nil
	case KindRecords:
		return NewRecords(cloneRecords(v.records)), nil
	case KindRaw:
		b := make([]byte, len(v.raw.Bytes))
		copy(b, v.raw.Bytes)
		return NewRaw(b, v.raw.Hint), nil
	case KindStream:
		return Value{}, streamyerrors.NewStreamError("", "streaming data can only be consumed once")
	default:
		return Value{}, fmt.Errorf("unknown envelope kind %v", v.kind)
	}
}

// SizeHint reports the row/record count when known (Tabular, Records) and
// false when unknown (Raw, Stream).
func (v Value) SizeHint() (int, bool) {
	switch v.kind {
	case KindTabular:
		return v.tabular.RowCount(), true
	case KindRecords:
		return len(v.records), true
	default:
		return 0, false
	}
}

func cloneTabular(t *Tabular) *Tabular {
	if t == nil {
		return &Tabular{}
	}
	cols := make([]Column, len(t.Columns))
	copy(cols, t.Columns)
	return &Tabular{Columns: cols}
}

func cloneRecords(r Records) Records {
	if r == nil {
		return nil
	}
	out := make(Records, len(r))
	for i, row := range r {
		cp := make(map[string]any, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

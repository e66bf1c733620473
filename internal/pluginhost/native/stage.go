package native

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/apache/arrow/go/v15/arrow/ipc"
	"github.com/apache/arrow/go/v15/arrow/memory"

	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/stage"
	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// DataFormat selects how envelope.Value is marshaled across the FFI
// boundary to a native plugin.
type DataFormat int

const (
	FormatArrowIPC DataFormat = iota
	FormatJSON
	FormatRaw
)

// Stage adapts one native FunctionBinding into the stage.Stage contract.
// The configured Format determines how envelope.Value inputs are
// serialized before the call and how the raw response bytes are
// deserialized back into an envelope.Value.
type Stage struct {
	meta    stage.Metadata
	binding *FunctionBinding
	format  DataFormat
}

// NewStage wraps a resolved native function binding as a stage.Stage.
func NewStage(meta stage.Metadata, binding *FunctionBinding, format DataFormat) *Stage {
	return &Stage{meta: meta, binding: binding, format: format}
}

// Metadata returns the plugin-declared stage descriptor.
func (s *Stage) Metadata() stage.Metadata { return s.meta }

// ValidateParams performs no native-side validation and always returns nil;
// plugins validate their own params during Execute.
func (s *Stage) ValidateParams(stage.Params) error { return nil }

// Execute serializes inputs per s.format, invokes the native function
// across the FFI boundary, and deserializes its response.
func (s *Stage) Execute(ctx context.Context, params stage.Params, inputs stage.Input) (envelope.Value, error) {
	if err := ctx.Err(); err != nil {
		return envelope.Value{}, err
	}

	payload, err := encodeInputs(s.format, params, inputs)
	if err != nil {
		return envelope.Value{}, streamyerrors.NewPluginError(s.meta.Function, err)
	}

	const maxResponse = 64 << 20 // 64 MiB response buffer, generous for a first call
	out := make([]byte, maxResponse)
	n := s.binding.Invoke(payload, int32(len(payload)), &out[0], int32(len(out)))
	if n < 0 {
		return envelope.Value{}, streamyerrors.NewPluginError(s.meta.Function, fmt.Errorf("native function returned error code %d", n))
	}

	return decodeOutput(s.format, out[:n])
}

func encodeInputs(format DataFormat, params stage.Params, inputs stage.Input) ([]byte, error) {
	switch format {
	case FormatJSON:
		envelopeRecords := make(map[string]envelope.Records, len(inputs))
		for id, v := range inputs {
			records, err := v.AsRecords()
			if err != nil {
				return nil, err
			}
			envelopeRecords[id] = records
		}
		return json.Marshal(map[string]any{"params": params, "inputs": envelopeRecords})
	case FormatRaw:
		if len(inputs) != 1 {
			return nil, fmt.Errorf("raw format requires exactly one input, got %d", len(inputs))
		}
		for _, v := range inputs {
			return v.Raw().Bytes, nil
		}
		return nil, nil
	default: // FormatArrowIPC
		var buf bytes.Buffer
		pool := memory.NewGoAllocator()
		for _, v := range inputs {
			tab, err := v.AsTabular()
			if err != nil {
				return nil, err
			}
			schema := arrowSchemaFor(tab)
			writer := ipc.NewWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(pool))
			record := arrowRecordFor(pool, schema, tab)
			if err := writer.Write(record); err != nil {
				record.Release()
				return nil, err
			}
			record.Release()
			if err := writer.Close(); err != nil {
				return nil, err
			}
			break // one input per call in the Arrow-IPC boundary, by convention
		}
		return buf.Bytes(), nil
	}
}

func decodeOutput(format DataFormat, data []byte) (envelope.Value, error) {
	switch format {
	case FormatJSON:
		var records envelope.Records
		if err := json.Unmarshal(data, &records); err != nil {
			return envelope.Value{}, err
		}
		return envelope.NewRecords(records), nil
	case FormatRaw:
		return envelope.NewRaw(data, ""), nil
	default: // FormatArrowIPC
		reader, err := ipc.NewReader(bytes.NewReader(data))
		if err != nil {
			return envelope.Value{}, err
		}
		defer reader.Release()
		if !reader.Next() {
			return envelope.EmptyTabular(), nil
		}
		rec := reader.Record()
		tab := tabularFromArrowRecord(rec)
		return envelope.NewTabular(tab), nil
	}
}

package native

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/stage"
)

func TestStageExecuteRawFormat(t *testing.T) {
	t.Parallel()

	binding := &FunctionBinding{
		Name: "echo",
		Invoke: func(input []byte, inputLen int32, outBuf *byte, outCap int32) int32 {
			out := unsafeSliceFromPtr(outBuf, int(outCap))
			n := copy(out, input)
			return int32(n)
		},
	}
	s := NewStage(stage.Metadata{Function: "echo", Role: "transform"}, binding, FormatRaw)

	inputs := stage.Input{"up": envelope.NewRaw([]byte("hello"), "")}
	v, err := s.Execute(context.Background(), nil, inputs)
	require.NoError(t, err)
	require.Equal(t, "hello", string(v.Raw().Bytes))
}

func TestStageExecuteRawRejectsMultipleInputs(t *testing.T) {
	t.Parallel()

	binding := &FunctionBinding{Invoke: func([]byte, int32, *byte, int32) int32 { return 0 }}
	s := NewStage(stage.Metadata{Function: "echo"}, binding, FormatRaw)

	inputs := stage.Input{
		"a": envelope.NewRaw([]byte("1"), ""),
		"b": envelope.NewRaw([]byte("2"), ""),
	}
	_, err := s.Execute(context.Background(), nil, inputs)
	require.Error(t, err)
}

func unsafeSliceFromPtr(p *byte, n int) []byte {
	if p == nil {
		return nil
	}
	return unsafeSlice(p, n)
}

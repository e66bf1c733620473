package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conveyor/conveyor/internal/envelope"
)

func TestMetadataValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid metadata passes", func(t *testing.T) {
		t.Parallel()
		m := Metadata{Function: "csv.read", Version: "1.0.0", Role: "source"}
		require.NoError(t, m.Validate())
	})

	t.Run("empty function name fails", func(t *testing.T) {
		t.Parallel()
		m := Metadata{Version: "1.0.0"}
		require.Error(t, m.Validate())
	})

	t.Run("bad version fails", func(t *testing.T) {
		t.Parallel()
		m := Metadata{Function: "csv.read", Version: "v1"}
		require.Error(t, m.Validate())
	})

	t.Run("duplicate parameter fails", func(t *testing.T) {
		t.Parallel()
		m := Metadata{
			Function: "csv.read",
			Parameters: []Parameter{
				{Name: "path"},
				{Name: "path"},
			},
		}
		require.Error(t, m.Validate())
	})

	t.Run("unknown role fails", func(t *testing.T) {
		t.Parallel()
		m := Metadata{Function: "csv.read", Role: "bogus"}
		require.Error(t, m.Validate())
	})
}

type roleStage struct{ role string }

func (r roleStage) Metadata() Metadata          { return Metadata{Function: "x", Role: r.role} }
func (r roleStage) ValidateParams(Params) error { return nil }
func (r roleStage) Execute(ctx context.Context, params Params, inputs Input) (envelope.Value, error) {
	return envelope.Value{}, nil
}

func TestProducesOutput(t *testing.T) {
	t.Parallel()

	require.True(t, ProducesOutput(roleStage{"source"}))
	require.True(t, ProducesOutput(roleStage{"transform"}))
	require.False(t, ProducesOutput(roleStage{"sink"}))
}

package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conveyor/conveyor/internal/envelope"
)

func TestPolicyRunStop(t *testing.T) {
	t.Parallel()

	p := Policy{Kind: Stop}
	wantErr := errors.New("boom")
	_, err := p.Run(context.Background(), "s1", func(context.Context) (envelope.Value, error) {
		return envelope.Value{}, wantErr
	})
	require.ErrorIs(t, err, wantErr)
}

func TestPolicyRunContinue(t *testing.T) {
	t.Parallel()

	p := Policy{Kind: Continue}
	v, err := p.Run(context.Background(), "s1", func(context.Context) (envelope.Value, error) {
		return envelope.Value{}, errors.New("boom")
	})
	require.NoError(t, err)
	require.Equal(t, envelope.KindTabular, v.Kind())
	size, _ := v.SizeHint()
	require.Equal(t, 0, size)
}

func TestPolicyRunRetrySucceedsEventually(t *testing.T) {
	t.Parallel()

	p := Policy{Kind: Retry, MaxRetries: 3, RetryDelay: time.Millisecond}
	calls := 0
	v, err := p.Run(context.Background(), "s1", func(context.Context) (envelope.Value, error) {
		calls++
		if calls < 3 {
			return envelope.Value{}, errors.New("transient")
		}
		return envelope.NewRaw([]byte("ok"), ""), nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, "ok", string(v.Raw().Bytes))
}

func TestPolicyRunRetryExhausted(t *testing.T) {
	t.Parallel()

	p := Policy{Kind: Retry, MaxRetries: 2, RetryDelay: time.Millisecond}
	calls := 0
	_, err := p.Run(context.Background(), "s1", func(context.Context) (envelope.Value, error) {
		calls++
		return envelope.Value{}, errors.New("permanent")
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

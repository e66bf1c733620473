// Package strategy implements the per-stage error-handling policies a
// pipeline declares: stop the run, substitute an empty result and continue,
// or retry with backoff before giving up.
package strategy

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/conveyor/conveyor/internal/envelope"
	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// Kind identifies an error-handling strategy.
type Kind int

const (
	Stop Kind = iota
	Continue
	Retry
)

// Policy configures how a stage's failure is handled.
type Policy struct {
	Kind       Kind
	MaxRetries int
	RetryDelay time.Duration
}

// Run executes fn under the policy. On success it returns the produced
// value. On failure:
//   - Stop returns the error unmodified.
//   - Continue swallows the error and returns an empty Tabular envelope.
//   - Retry re-invokes fn with a constant backoff up to MaxRetries times,
//     returning the last error if every attempt fails.
func (p Policy) Run(ctx context.Context, stageID string, fn func(context.Context) (envelope.Value, error)) (envelope.Value, error) {
	switch p.Kind {
	case Continue:
		v, err := fn(ctx)
		if err != nil {
			return envelope.EmptyTabular(), nil
		}
		return v, nil
	case Retry:
		return p.runWithRetry(ctx, stageID, fn)
	default:
		return fn(ctx)
	}
}

func (p Policy) runWithRetry(ctx context.Context, stageID string, fn func(context.Context) (envelope.Value, error)) (envelope.Value, error) {
	delay := p.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	bo := backoff.NewConstantBackOff(delay)
	withCtx := backoff.WithContext(bo, ctx)

	var result envelope.Value
	var lastErr error
	attempt := 0

	op := func() error {
		attempt++
		v, err := fn(ctx)
		if err != nil {
			lastErr = err
			if attempt > maxRetries {
				return backoff.Permanent(err)
			}
			return err
		}
		result = v
		return nil
	}

	if err := backoff.Retry(op, withCtx); err != nil {
		return envelope.Value{}, streamyerrors.NewExecutionError(stageID, lastErr)
	}
	return result, nil
}

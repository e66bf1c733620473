package dag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/logger"
	"github.com/conveyor/conveyor/internal/stage"
	"github.com/conveyor/conveyor/internal/strategy"
	"github.com/conveyor/conveyor/internal/tomlconfig"
	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// Options configures one Execute call.
type Options struct {
	Timeout time.Duration
	Logger  *logger.Logger
	// ErrorPolicy is the single pipeline-wide strategy applied around every
	// stage's execution (see PolicyFromErrorHandling).
	ErrorPolicy strategy.Policy
	// Seed pre-populates the output table for external nodes (see
	// Graph.AddExternalNode) before execution begins.
	Seed map[string]envelope.Value
}

// Result holds the output table produced by a completed run, keyed by stage
// ID, plus the stage IDs in the order their level finished.
type Result struct {
	Outputs map[string]envelope.Value
	Order   []string
}

// PolicyFromErrorHandling converts a pipeline document's top-level
// [error_handling] block into the strategy.Policy applied uniformly to
// every stage's execution. A nil block (no [error_handling] present and no
// defaults applied) is treated as Stop.
func PolicyFromErrorHandling(eh *tomlconfig.ErrorHandling) strategy.Policy {
	if eh == nil {
		return strategy.Policy{Kind: strategy.Stop}
	}
	p := strategy.Policy{
		MaxRetries: eh.MaxRetries,
		RetryDelay: time.Duration(eh.RetryDelaySeconds) * time.Second,
	}
	switch eh.Strategy {
	case "continue":
		p.Kind = strategy.Continue
	case "retry":
		p.Kind = strategy.Retry
	default:
		p.Kind = strategy.Stop
	}
	return p
}

// Execute runs every level of graph concurrently in dependency order,
// threading each stage's upstream outputs into stage.Input and invoking the
// resolved stage implementation the DAG builder attached to each node.
// opts.ErrorPolicy governs whether a stage failure aborts the run,
// substitutes an empty result, or is retried with backoff.
//
// A Stream-kind output may be consumed by at most one dependent; the second
// attempt to read it returns a StreamError and fails that stage.
func Execute(ctx context.Context, graph *Graph, opts Options) (*Result, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	outputs := make(map[string]envelope.Value, len(graph.Nodes))
	for id, value := range opts.Seed {
		outputs[id] = value
	}
	consumed := make(map[string]bool)
	var mu sync.Mutex
	var order []string

	for _, level := range graph.Levels {
		g, gctx := errgroup.WithContext(ctx)

		for _, id := range level {
			id := id
			node := graph.Nodes[id]

			if node.External() {
				g.Go(func() error {
					mu.Lock()
					defer mu.Unlock()
					if _, ok := outputs[id]; !ok {
						return streamyerrors.NewExecutionError(id, fmt.Errorf("external stage %q was not seeded with a value", id))
					}
					order = append(order, id)
					return nil
				})
				continue
			}

			g.Go(func() error {
				inputs, err := gatherInputs(node, &mu, outputs, consumed)
				if err != nil {
					return err
				}

				value, err := opts.ErrorPolicy.Run(gctx, id, func(stageCtx context.Context) (envelope.Value, error) {
					return node.Stage.Execute(stageCtx, stage.Params(node.Decl.Config), inputs)
				})
				if err != nil {
					return err
				}

				mu.Lock()
				outputs[id] = value
				order = append(order, id)
				mu.Unlock()

				if opts.Logger != nil {
					opts.Logger.WithFields(map[string]any{"stage": id, "function": node.Decl.Function}).Info("stage completed")
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			if ctx.Err() != nil {
				return nil, streamyerrors.NewTimeoutError(opts.Timeout.String(), err)
			}
			return nil, err
		}
	}

	return &Result{Outputs: outputs, Order: order}, nil
}

// gatherInputs collects the named upstream outputs for node, enforcing that
// any Stream-kind value is handed to exactly one dependent.
func gatherInputs(node *Node, mu *sync.Mutex, outputs map[string]envelope.Value, consumed map[string]bool) (stage.Input, error) {
	inputs := make(stage.Input, len(node.DependsOn))

	mu.Lock()
	defer mu.Unlock()

	for _, dep := range node.DependsOn {
		value, ok := outputs[dep.ID]
		if !ok {
			return nil, streamyerrors.NewExecutionError(node.ID, fmt.Errorf("upstream stage %q has not produced output", dep.ID))
		}
		if value.Kind() == envelope.KindStream {
			if consumed[dep.ID] {
				return nil, streamyerrors.NewStreamError(node.ID, fmt.Sprintf("stream from %q already consumed by another stage", dep.ID))
			}
			consumed[dep.ID] = true
		} else {
			cloned, err := value.TryClone()
			if err != nil {
				return nil, streamyerrors.NewExecutionError(node.ID, err)
			}
			value = cloned
		}
		inputs[dep.ID] = value
	}

	return inputs, nil
}

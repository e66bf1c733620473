// Package registry holds the process-wide catalog of built-in stage
// functions a Conveyor binary knows how to run. Loaded native and sandbox
// plugins are not registered here; the pipeline facade consults them as
// separate resolvers. Registration is additive-only — a function name can be
// claimed exactly once, and the last writer never silently wins.
package registry

import (
	"fmt"
	"sort"
	"sync"

	streamyerrors "github.com/conveyor/conveyor/pkg/errors"

	"github.com/conveyor/conveyor/internal/stage"
)

// Registry is a concurrency-safe catalog of stage functions keyed by their
// fully qualified function name (e.g. "csv.read", "my_plugin.transform").
type Registry struct {
	mu    sync.RWMutex
	stage map[string]stage.Stage
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{stage: make(map[string]stage.Stage)}
}

// Register adds a stage under its metadata's Function name. It fails if the
// name is already claimed or the stage's metadata is invalid.
func (r *Registry) Register(s stage.Stage) error {
	if s == nil {
		return streamyerrors.NewPluginError("", fmt.Errorf("stage is nil"))
	}
	meta := s.Metadata()
	if err := meta.Validate(); err != nil {
		return streamyerrors.NewPluginError(meta.Function, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stage[meta.Function]; exists {
		return streamyerrors.NewPluginError(meta.Function, fmt.Errorf("function already registered"))
	}
	r.stage[meta.Function] = s
	return nil
}

// Get retrieves a stage by its function name.
func (r *Registry) Get(function string) (stage.Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stage[function]
	if !ok {
		return nil, streamyerrors.NewPluginError(function, fmt.Errorf("no stage registered for function"))
	}
	return s, nil
}

// List returns the registered function names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stage))
	for name := range r.stage {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package dag

import (
	"github.com/conveyor/conveyor/internal/registry"
	"github.com/conveyor/conveyor/internal/stage"
)

// ReservedPipelineFunction is the "stage.pipeline" function name: resolved
// last, after the registry and every loaded plugin's capability list, so it
// can only be shadowed by a function explicitly registered under that name.
const ReservedPipelineFunction = "stage.pipeline"

// Resolver is one source of stage.Stage implementations consulted by
// function name during graph construction: the built-in registry, a loaded
// native plugin's capabilities, or a loaded sandbox plugin's capabilities.
type Resolver interface {
	Resolve(function string) (stage.Stage, bool)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(function string) (stage.Stage, bool)

// Resolve calls f.
func (f ResolverFunc) Resolve(function string) (stage.Stage, bool) { return f(function) }

// RegistryResolver wraps a Registry as a Resolver.
func RegistryResolver(reg *registry.Registry) Resolver {
	return ResolverFunc(func(function string) (stage.Stage, bool) {
		s, err := reg.Get(function)
		if err != nil {
			return nil, false
		}
		return s, true
	})
}

// resolveFunction walks resolvers in order, then falls back to reserved if
// function names the reserved stage.pipeline function and no earlier
// resolver claimed it.
func resolveFunction(function string, resolvers []Resolver, reserved stage.Stage) (stage.Stage, bool) {
	for _, r := range resolvers {
		if r == nil {
			continue
		}
		if s, ok := r.Resolve(function); ok {
			return s, true
		}
	}
	if function == ReservedPipelineFunction && reserved != nil {
		return reserved, true
	}
	return nil, false
}

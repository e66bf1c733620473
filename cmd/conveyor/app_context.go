package main

import (
	"github.com/conveyor/conveyor/internal/builtin/sinks"
	"github.com/conveyor/conveyor/internal/builtin/sources"
	"github.com/conveyor/conveyor/internal/builtin/transforms"
	"github.com/conveyor/conveyor/internal/logger"
	"github.com/conveyor/conveyor/internal/pipeline"
	"github.com/conveyor/conveyor/internal/registry"
	"github.com/conveyor/conveyor/internal/stage"
)

// AppContext bundles the long-lived services constructed at startup and
// threaded through every subcommand.
type AppContext struct {
	Logger   *logger.Logger
	Registry *registry.Registry
	Pipeline *pipeline.Service
}

// newAppContext wires the registry with the built-in stage catalog and
// builds the pipeline facade on top of it. stage.pipeline itself is not a
// registry entry: the pipeline facade resolves it as a reserved fallback
// (see internal/dag.ReservedPipelineFunction), consulted only after the
// registry and any plugins a document names have had a chance to claim it.
// nativePluginDir and wasmPluginDir configure where bare plugin names in a
// document's [global] table are looked up; either may be empty.
func newAppContext(log *logger.Logger, nativePluginDir, wasmPluginDir string) (*AppContext, error) {
	reg := registry.New()

	builtins := []stage.Stage{
		sources.CSVRead{},
		sources.JSONRead{},
		transforms.Filter{},
		transforms.Select{},
		transforms.Passthrough{},
		sinks.Stdout{},
		sinks.JSONWrite{Logger: log},
	}
	for _, s := range builtins {
		if err := reg.Register(s); err != nil {
			return nil, err
		}
	}

	return &AppContext{
		Logger:   log,
		Registry: reg,
		Pipeline: pipeline.NewService(reg, log, nativePluginDir, wasmPluginDir),
	}, nil
}

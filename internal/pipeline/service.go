// Package pipeline is the facade every entry point (CLI, future embedders)
// drives a Conveyor run through: load a document, load any native/WASM
// plugins it names, build its DAG against the built-in registry and those
// plugins, execute it, and report the per-run identity and outcome.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conveyor/conveyor/internal/builtin/stagespipeline"
	"github.com/conveyor/conveyor/internal/dag"
	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/logger"
	"github.com/conveyor/conveyor/internal/pluginhost/native"
	"github.com/conveyor/conveyor/internal/pluginhost/sandbox"
	"github.com/conveyor/conveyor/internal/registry"
	"github.com/conveyor/conveyor/internal/stage"
	"github.com/conveyor/conveyor/internal/tomlconfig"
	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// Service exposes pipeline operations independent of CLI wiring concerns.
// It owns the built-in registry and the directories native/WASM plugins
// named in a document's [global] table are resolved against.
type Service struct {
	registry        *registry.Registry
	logger          *logger.Logger
	nativePluginDir string
	wasmPluginDir   string
}

// NewService constructs a pipeline Service backed by reg's built-in stage
// catalog. nativePluginDir and wasmPluginDir are the directories bare
// plugin names in a document's global.plugins/global.wasm_plugins are
// resolved against; either may be empty to mean the current directory.
func NewService(reg *registry.Registry, log *logger.Logger, nativePluginDir, wasmPluginDir string) *Service {
	return &Service{registry: reg, logger: log, nativePluginDir: nativePluginDir, wasmPluginDir: wasmPluginDir}
}

// Prepared captures the parsing, plugin-loading, and graph-building
// artefacts reused across a Run (and available to callers who only want to
// validate). Close releases any native/WASM plugins it loaded.
type Prepared struct {
	Path   string
	Config *tomlconfig.Config
	Graph  *dag.Graph

	nativeHandles  []*native.Handle
	sandboxModules []*sandbox.Module
}

// Close releases every native and sandbox plugin this Prepared loaded.
func (p *Prepared) Close(ctx context.Context) {
	if p == nil {
		return
	}
	closeNativeHandles(p.nativeHandles)
	closeSandboxModules(ctx, p.sandboxModules)
}

// Prepare loads and validates the document at configPath, applies
// defaults, loads any native/WASM plugins its [global] table names,
// assembles the resolution order (registry, then each native plugin, then
// each sandbox plugin, with the reserved stage.pipeline function resolved
// last), validates every stage's configuration, and builds (but does not
// execute) its DAG.
func (s *Service) Prepare(ctx context.Context, configPath string, vars map[string]string) (*Prepared, error) {
	cfg, err := tomlconfig.Load(configPath, vars)
	if err != nil {
		return nil, err
	}
	tomlconfig.ApplyDefaults(cfg)

	nativeHandles, nativeResolvers, err := s.loadNativePlugins(cfg.Global.Plugins)
	if err != nil {
		return nil, err
	}

	sandboxModules, sandboxResolvers, err := s.loadSandboxPlugins(ctx, cfg.Global.WasmPlugins)
	if err != nil {
		closeNativeHandles(nativeHandles)
		return nil, err
	}

	resolvers := make([]dag.Resolver, 0, 1+len(nativeResolvers)+len(sandboxResolvers))
	resolvers = append(resolvers, dag.RegistryResolver(s.registry))
	resolvers = append(resolvers, nativeResolvers...)
	resolvers = append(resolvers, sandboxResolvers...)

	reserved := stagespipeline.New(resolvers, s.logger)

	if err := dag.ValidateStageParams(cfg.Stages, resolvers, reserved); err != nil {
		closeNativeHandles(nativeHandles)
		closeSandboxModules(ctx, sandboxModules)
		return nil, err
	}

	graph, err := dag.Build(cfg.Stages, resolvers, reserved)
	if err != nil {
		closeNativeHandles(nativeHandles)
		closeSandboxModules(ctx, sandboxModules)
		return nil, err
	}

	return &Prepared{
		Path:           configPath,
		Config:         cfg,
		Graph:          graph,
		nativeHandles:  nativeHandles,
		sandboxModules: sandboxModules,
	}, nil
}

// RunRequest configures one pipeline execution.
type RunRequest struct {
	Prepared   *Prepared
	ConfigPath string
	Vars       map[string]string
	Logger     *logger.Logger
}

// RunOutcome reports the result of one pipeline execution.
type RunOutcome struct {
	RunID    string
	Prepared *Prepared
	Outputs  map[string]envelope.Value
	Duration time.Duration
}

// Run executes a prepared (or freshly-loaded) pipeline document end to end
// under its declared error-handling policy and global timeout, tagging the
// run with a fresh UUID for correlation in logs. Any plugins the run's
// Prepared step loaded are released before Run returns.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunOutcome, error) {
	prepared, err := s.ensurePrepared(ctx, req.ConfigPath, req.Vars, req.Prepared)
	if err != nil {
		return nil, err
	}
	defer prepared.Close(ctx)

	runID := uuid.New().String()
	log := req.Logger
	if log != nil {
		log = log.WithFields(map[string]any{"run_id": runID, "pipeline": prepared.Config.Pipeline.Name})
	}

	timeout := time.Duration(prepared.Config.Global.TimeoutSeconds) * time.Second
	start := time.Now()

	result, execErr := dag.Execute(ctx, prepared.Graph, dag.Options{
		Timeout:     timeout,
		Logger:      log,
		ErrorPolicy: dag.PolicyFromErrorHandling(prepared.Config.ErrorHandling),
	})

	outcome := &RunOutcome{RunID: runID, Prepared: prepared, Duration: time.Since(start)}
	if result != nil {
		outcome.Outputs = result.Outputs
	}

	if execErr != nil {
		return outcome, execErr
	}
	return outcome, nil
}

func (s *Service) ensurePrepared(ctx context.Context, configPath string, vars map[string]string, prepared *Prepared) (*Prepared, error) {
	if prepared != nil {
		return prepared, nil
	}
	if configPath == "" {
		return nil, fmt.Errorf("config path required")
	}
	return s.Prepare(ctx, configPath, vars)
}

// loadNativePlugins dlopen()s each named native plugin (resolved against
// s.nativePluginDir unless the name is already a path) and wraps each
// loaded library's declared capabilities as a Resolver.
func (s *Service) loadNativePlugins(names []string) ([]*native.Handle, []dag.Resolver, error) {
	if len(names) == 0 {
		return nil, nil, nil
	}

	handles := make([]*native.Handle, 0, len(names))
	resolvers := make([]dag.Resolver, 0, len(names))
	for _, name := range names {
		path := resolvePluginPath(s.nativePluginDir, name, nativePluginFilename)
		handle, err := native.Load(path)
		if err != nil {
			closeNativeHandles(handles)
			return nil, nil, err
		}
		handles = append(handles, handle)
		resolvers = append(resolvers, nativeHandleResolver(handle))
	}
	return handles, resolvers, nil
}

// loadSandboxPlugins compiles and instantiates each named WASM plugin
// (resolved against s.wasmPluginDir unless the name is already a path) and
// wraps each loaded module's declared capabilities as a Resolver.
func (s *Service) loadSandboxPlugins(ctx context.Context, names []string) ([]*sandbox.Module, []dag.Resolver, error) {
	if len(names) == 0 {
		return nil, nil, nil
	}

	modules := make([]*sandbox.Module, 0, len(names))
	resolvers := make([]dag.Resolver, 0, len(names))
	for _, name := range names {
		path := resolvePluginPath(s.wasmPluginDir, name, wasmPluginFilename)
		wasmBytes, err := os.ReadFile(path)
		if err != nil {
			closeSandboxModules(ctx, modules)
			return nil, nil, streamyerrors.NewPluginLoadError(path, "failed to read wasm module", err)
		}
		module, err := sandbox.Load(ctx, path, wasmBytes)
		if err != nil {
			closeSandboxModules(ctx, modules)
			return nil, nil, err
		}
		modules = append(modules, module)
		resolvers = append(resolvers, sandboxModuleResolver(module))
	}
	return modules, resolvers, nil
}

func nativeHandleResolver(h *native.Handle) dag.Resolver {
	return dag.ResolverFunc(func(function string) (stage.Stage, bool) {
		binding, ok := h.Function(function)
		if !ok {
			return nil, false
		}
		return native.NewStage(metadataForNativeCapability(h, function), binding, native.FormatArrowIPC), true
	})
}

func metadataForNativeCapability(h *native.Handle, function string) stage.Metadata {
	for _, cap := range h.Capabilities() {
		if cap.Name != function {
			continue
		}
		return stage.Metadata{
			Function:    cap.Name,
			Version:     h.Version(),
			Description: cap.Description,
			Role:        roleFromNativeStageType(cap.StageType),
		}
	}
	return stage.Metadata{Function: function, Version: h.Version(), Role: "transform"}
}

func roleFromNativeStageType(t native.StageType) string {
	switch t {
	case native.StageTypeSource:
		return "source"
	case native.StageTypeSink:
		return "sink"
	default:
		return "transform"
	}
}

func sandboxModuleResolver(m *sandbox.Module) dag.Resolver {
	return dag.ResolverFunc(func(function string) (stage.Stage, bool) {
		for _, cap := range m.Capabilities() {
			if cap.Name != function {
				continue
			}
			meta := stage.Metadata{
				Function:    cap.Name,
				Version:     m.Metadata().Version,
				Description: cap.Description,
				Role:        roleFromSandboxStageType(cap.StageType),
			}
			return sandbox.NewStage(meta, m, function), true
		}
		return nil, false
	})
}

func roleFromSandboxStageType(stageType string) string {
	switch stageType {
	case "source":
		return "source"
	case "sink":
		return "sink"
	default:
		return "transform"
	}
}

// resolvePluginPath turns a bare plugin name into a path under dir using
// filename's OS-specific naming convention; a name already containing a
// path separator or already absolute is used as-is.
func resolvePluginPath(dir, name string, filename func(string) string) string {
	if filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) {
		return name
	}
	return filepath.Join(dir, filename(name))
}

func nativePluginFilename(name string) string {
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("conveyor_plugin_%s.dll", name)
	case "darwin":
		return fmt.Sprintf("libconveyor_plugin_%s.dylib", name)
	default:
		return fmt.Sprintf("libconveyor_plugin_%s.so", name)
	}
}

func wasmPluginFilename(name string) string {
	return fmt.Sprintf("conveyor_plugin_%s.wasm", name)
}

func closeNativeHandles(handles []*native.Handle) {
	for _, h := range handles {
		_ = h.Close()
	}
}

func closeSandboxModules(ctx context.Context, modules []*sandbox.Module) {
	for _, m := range modules {
		_ = m.Close(ctx)
	}
}

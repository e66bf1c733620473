// Package sandbox runs Conveyor stage plugins compiled to WebAssembly
// inside a wazero runtime: no filesystem, network, or process access beyond
// what Conveyor explicitly grants, and a fresh module instance per call so
// one invocation's state can never leak into the next.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// SupportedAPIVersion is the sandbox plugin ABI version this build of
// Conveyor understands. A module declaring a different version is rejected
// at load time.
const SupportedAPIVersion = 1

// Metadata is the JSON document a module's get_metadata export returns.
type Metadata struct {
	APIVersion  int    `json:"api_version"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Capability describes one stage function a loaded sandbox module offers.
type Capability struct {
	Name        string `json:"name"`
	StageType   string `json:"stage_type"`
	Description string `json:"description"`
}

// Module wraps a compiled WebAssembly component. Instances are created
// fresh for every call so a plugin's linear memory never persists state
// across calls.
type Module struct {
	runtime      wazero.Runtime
	compiled     wazero.CompiledModule
	path         string
	metadata     Metadata
	capabilities []Capability
}

// Load compiles the WebAssembly binary at path, prepares a runtime with
// WASI preview1 host functions registered, then calls the module's
// get_metadata and get_capabilities exports to complete the load protocol:
// verifying the declared API version and rejecting an empty capability
// list. No other host capability is granted; plugins cannot open files,
// sockets, or spawn processes.
func Load(ctx context.Context, path string, wasmBytes []byte) (*Module, error) {
	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	runtime := wazero.NewRuntimeWithConfig(ctx, cfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, streamyerrors.NewPluginLoadError(path, "failed to instantiate WASI host module", err)
	}

	compiled, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		runtime.Close(ctx)
		return nil, streamyerrors.NewPluginLoadError(path, "failed to compile WebAssembly module", err)
	}

	m := &Module{runtime: runtime, compiled: compiled, path: path}

	metaBytes, err := m.call(ctx, "get_metadata", nil)
	if err != nil {
		m.Close(ctx)
		return nil, streamyerrors.NewPluginLoadError(path, "get_metadata call failed", err)
	}
	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		m.Close(ctx)
		return nil, streamyerrors.NewPluginLoadError(path, "malformed get_metadata response", err)
	}
	if meta.APIVersion != SupportedAPIVersion {
		m.Close(ctx)
		return nil, streamyerrors.NewPluginLoadError(
			path,
			fmt.Sprintf("plugin declares API version %d, host supports %d", meta.APIVersion, SupportedAPIVersion),
			nil,
		)
	}

	capsBytes, err := m.call(ctx, "get_capabilities", nil)
	if err != nil {
		m.Close(ctx)
		return nil, streamyerrors.NewPluginLoadError(path, "get_capabilities call failed", err)
	}
	var caps []Capability
	if err := json.Unmarshal(capsBytes, &caps); err != nil {
		m.Close(ctx)
		return nil, streamyerrors.NewPluginLoadError(path, "malformed get_capabilities response", err)
	}
	if len(caps) == 0 {
		m.Close(ctx)
		return nil, streamyerrors.NewPluginLoadError(path, "plugin declares no capabilities", nil)
	}

	m.metadata = meta
	m.capabilities = caps
	return m, nil
}

// Metadata returns the module's declared identity.
func (m *Module) Metadata() Metadata { return m.metadata }

// Capabilities lists the stage functions this module offers.
func (m *Module) Capabilities() []Capability { return m.capabilities }

// Close tears down the runtime and releases the compiled module.
func (m *Module) Close(ctx context.Context) error {
	if m == nil || m.runtime == nil {
		return nil
	}
	return m.runtime.Close(ctx)
}

// Invoke instantiates a fresh, isolated copy of the module and calls the
// named stage function's conveyor_invoke_<function> export with the given
// input bytes.
func (m *Module) Invoke(ctx context.Context, function string, input []byte) ([]byte, error) {
	return m.call(ctx, "conveyor_invoke_"+function, input)
}

// ValidateConfig calls the module's validate_config export with the
// candidate configuration's JSON encoding, returning an error if the guest
// rejects it.
func (m *Module) ValidateConfig(ctx context.Context, config []byte) error {
	_, err := m.call(ctx, "validate_config", config)
	return err
}

// call instantiates a fresh copy of the module, writes input into guest
// memory via conveyor_alloc, invokes exportName, and reads back the bytes
// the guest wrote in response.
func (m *Module) call(ctx context.Context, exportName string, input []byte) ([]byte, error) {
	modCfg := wazero.NewModuleConfig().
		WithStdin(nil).
		WithStdout(nil).
		WithStderr(nil).
		WithStartFunctions("_initialize")

	instance, err := m.runtime.InstantiateModule(ctx, m.compiled, modCfg)
	if err != nil {
		return nil, streamyerrors.NewPluginError(exportName, fmt.Errorf("instantiate module: %w", err))
	}
	defer instance.Close(ctx)

	export := instance.ExportedFunction(exportName)
	if export == nil {
		return nil, streamyerrors.NewPluginError(exportName, fmt.Errorf("module does not export %s", exportName))
	}
	alloc := instance.ExportedFunction("conveyor_alloc")
	if alloc == nil {
		return nil, streamyerrors.NewPluginError(exportName, fmt.Errorf("module does not export conveyor_alloc"))
	}

	results, err := alloc.Call(ctx, uint64(len(input)))
	if err != nil || len(results) == 0 {
		return nil, streamyerrors.NewPluginError(exportName, fmt.Errorf("guest allocation failed: %w", err))
	}
	ptr := results[0]

	if len(input) > 0 && !instance.Memory().Write(uint32(ptr), input) {
		return nil, streamyerrors.NewPluginError(exportName, fmt.Errorf("failed to write input into guest memory"))
	}

	callResults, err := export.Call(ctx, ptr, uint64(len(input)))
	if err != nil || len(callResults) < 2 {
		return nil, streamyerrors.NewPluginError(exportName, fmt.Errorf("%s call failed: %w", exportName, err))
	}
	outPtr, outLen := uint32(callResults[0]), uint32(callResults[1])

	out, ok := instance.Memory().Read(outPtr, outLen)
	if !ok {
		return nil, streamyerrors.NewPluginError(exportName, fmt.Errorf("failed to read output from guest memory"))
	}

	result := make([]byte, len(out))
	copy(result, out)
	return result, nil
}

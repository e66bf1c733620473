// Package native loads Conveyor stage plugins compiled as platform shared
// libraries (.so/.dylib/.dll) via dlopen/dlsym, without cgo, using
// ebitengine/purego. Each library exports a static plugin_declaration
// record naming its API version, identity, and capability list; the host
// reads that record once at load time rather than invoking per-function
// declare calls.
package native

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"

	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

// SupportedAPIVersion is the native plugin ABI version this build of
// Conveyor understands. A plugin declaring a different version is rejected
// at load time.
const SupportedAPIVersion = 1

// StageType classifies a declared capability's place in a pipeline,
// mirroring a stage's Role.
type StageType int32

const (
	StageTypeSource StageType = iota
	StageTypeTransform
	StageTypeSink
)

// cString is the C ABI's length-prefixed string: a pointer to UTF-8 bytes
// owned by the plugin, plus a length. Never outlives the library handle
// that produced it.
type cString struct {
	Ptr uintptr
	Len uint32
	_   uint32 // pad to 8-byte alignment
}

func (s cString) String() string {
	if s.Ptr == 0 || s.Len == 0 {
		return ""
	}
	return unsafe.String((*byte)(unsafe.Pointer(s.Ptr)), int(s.Len))
}

// capabilityRecord mirrors one element of the capability array returned by
// get_capabilities: a declared stage function's name, role, description,
// and the symbol exporting its invoke entry point.
type capabilityRecord struct {
	Name          cString
	StageType     int32
	_             int32 // pad
	Description   cString
	FactorySymbol cString
}

// capabilityList mirrors get_capabilities' by-value return: a pointer to a
// contiguous capabilityRecord array plus its length.
type capabilityList struct {
	Ptr uintptr
	Len uint32
	_   uint32
}

// pluginDeclaration mirrors the plugin_declaration static record every
// native plugin library exports: API version, identity metadata, and a
// function pointer to get_capabilities.
type pluginDeclaration struct {
	APIVersion      int32
	_               int32 // pad
	Name            cString
	Version         cString
	Description     cString
	GetCapabilities uintptr
}

// Capability describes one stage function a loaded plugin offers.
type Capability struct {
	Name          string
	StageType     StageType
	Description   string
	FactorySymbol string
}

// Handle wraps one loaded shared library: its declared identity, the
// capabilities it exposed, and the resolved invoke binding for each.
type Handle struct {
	path         string
	lib          uintptr
	apiVersion   int32
	name         string
	version      string
	description  string
	capabilities []Capability
	functions    map[string]*FunctionBinding
}

// FunctionBinding is one native stage function resolved from the library:
// the symbol name, and the invoke callback bound via purego.RegisterFunc.
type FunctionBinding struct {
	Name   string
	Invoke func(input []byte, inputLen int32, outBuf *byte, outCap int32) int32
}

// Load dlopen()s the shared library at path, reads its plugin_declaration
// record, verifies the declared API version against SupportedAPIVersion,
// calls get_capabilities, and resolves each declared capability's invoke
// symbol by dlsym. A plugin declaring an empty capability list is rejected.
func Load(path string) (*Handle, error) {
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, streamyerrors.NewPluginLoadError(path, "dlopen failed", err)
	}

	declPtr, err := purego.Dlsym(lib, "plugin_declaration")
	if err != nil {
		return nil, streamyerrors.NewPluginLoadError(path, "missing exported plugin_declaration record", err)
	}
	decl := (*pluginDeclaration)(unsafe.Pointer(declPtr))

	if decl.APIVersion != SupportedAPIVersion {
		return nil, streamyerrors.NewPluginLoadError(
			path,
			fmt.Sprintf("plugin declares API version %d, host supports %d", decl.APIVersion, SupportedAPIVersion),
			nil,
		)
	}

	var getCapabilities func() capabilityList
	if err := registerSymbolPtr(decl.GetCapabilities, &getCapabilities); err != nil {
		return nil, streamyerrors.NewPluginLoadError(path, "failed to bind get_capabilities", err)
	}

	list := getCapabilities()
	if list.Len == 0 {
		return nil, streamyerrors.NewPluginLoadError(path, "plugin declares no capabilities", nil)
	}

	records := unsafe.Slice((*capabilityRecord)(unsafe.Pointer(list.Ptr)), int(list.Len))

	h := &Handle{
		path:         path,
		lib:          lib,
		apiVersion:   decl.APIVersion,
		name:         decl.Name.String(),
		version:      decl.Version.String(),
		description:  decl.Description.String(),
		capabilities: make([]Capability, 0, len(records)),
		functions:    make(map[string]*FunctionBinding, len(records)),
	}

	for _, rec := range records {
		capability := Capability{
			Name:          rec.Name.String(),
			StageType:     StageType(rec.StageType),
			Description:   rec.Description.String(),
			FactorySymbol: rec.FactorySymbol.String(),
		}
		h.capabilities = append(h.capabilities, capability)

		symbol := capability.FactorySymbol
		if symbol == "" {
			symbol = "conveyor_invoke_" + capability.Name
		}
		var invoke func(input []byte, inputLen int32, outBuf *byte, outCap int32) int32
		if err := registerSymbol(lib, symbol, &invoke); err != nil {
			return nil, streamyerrors.NewPluginLoadError(path, fmt.Sprintf("missing exported symbol %q for capability %q", symbol, capability.Name), err)
		}
		h.functions[capability.Name] = &FunctionBinding{Name: capability.Name, Invoke: invoke}
	}

	return h, nil
}

// registerSymbol wraps purego.RegisterLibFunc behind a recover, since a
// malformed library can otherwise panic the process during symbol
// resolution.
func registerSymbol(lib uintptr, symbol string, fnPtr any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic resolving symbol %q: %v", symbol, r)
		}
	}()
	purego.RegisterLibFunc(fnPtr, lib, symbol)
	return nil
}

// registerSymbolPtr binds a raw function pointer (already resolved, e.g.
// read out of a declaration record) rather than looking it up by name.
func registerSymbolPtr(funcPtr uintptr, fnPtr any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic binding function pointer: %v", r)
		}
	}()
	if funcPtr == 0 {
		return fmt.Errorf("nil function pointer")
	}
	purego.RegisterFunc(fnPtr, funcPtr)
	return nil
}

// Name returns the plugin's declared name.
func (h *Handle) Name() string { return h.name }

// Version returns the plugin's declared version.
func (h *Handle) Version() string { return h.version }

// Capabilities lists the stage functions this handle exposes.
func (h *Handle) Capabilities() []Capability {
	return h.capabilities
}

// Function returns the binding for name, if the library declared it.
func (h *Handle) Function(name string) (*FunctionBinding, bool) {
	b, ok := h.functions[name]
	return b, ok
}

// Functions lists the stage function names this handle exposes.
func (h *Handle) Functions() []string {
	names := make([]string, 0, len(h.functions))
	for name := range h.functions {
		names = append(names, name)
	}
	return names
}

// Close releases the loaded library.
func (h *Handle) Close() error {
	if h == nil || h.lib == 0 {
		return nil
	}
	return purego.Dlclose(h.lib)
}

// Package stage defines the contract every executable unit of a Conveyor
// pipeline satisfies, whether it is a built-in Go function, a native plugin
// loaded over the dlopen/FFI boundary, a sandboxed WebAssembly component, or
// a nested sub-pipeline.
package stage

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/conveyor/conveyor/internal/envelope"
)

var (
	semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// ParamKind tags the expected Go-level type of a stage Parameter.
type ParamKind int

const (
	ParamString ParamKind = iota
	ParamInt
	ParamFloat
	ParamBool
	ParamStringList
	ParamAny
)

// Parameter describes one named configuration input a stage accepts.
type Parameter struct {
	Name        string
	Kind        ParamKind
	Required    bool
	Default     any
	Description string
}

// Metadata describes a stage function's identity: the name configs refer to
// it by, the accepted parameters, and whether it consumes/produces data.
type Metadata struct {
	Function    string
	Version     string
	Description string
	Parameters  []Parameter
	// Role classifies the stage as "source" (no inputs), "transform"
	// (inputs and outputs), or "sink" (no output consumed downstream).
	Role string
}

// Validate ensures metadata is well-formed before a stage is registered.
func (m Metadata) Validate() error {
	if strings.TrimSpace(m.Function) == "" {
		return fmt.Errorf("stage metadata requires a non-empty Function name")
	}
	if m.Version != "" && !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("stage %q has invalid Version %q (expected X.Y.Z)", m.Function, m.Version)
	}
	seen := make(map[string]struct{}, len(m.Parameters))
	for _, p := range m.Parameters {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("stage %q declares a parameter with an empty name", m.Function)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("stage %q declares parameter %q more than once", m.Function, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	switch m.Role {
	case "source", "transform", "sink", "":
	default:
		return fmt.Errorf("stage %q has unknown role %q", m.Function, m.Role)
	}
	return nil
}

// Input bundles the data handed to a stage from each of its upstream
// dependencies, keyed by the upstream stage's id.
type Input map[string]envelope.Value

// Params is the resolved, validated set of arguments a stage was configured
// with for one run.
type Params map[string]any

// Stage is the runtime contract every pipeline function satisfies: built-in
// Go stages, native-plugin adapters, sandbox-plugin adapters, and
// sub-pipeline wrappers all implement it identically, so the DAG executor
// never special-cases how a stage's body happens to be implemented.
type Stage interface {
	// Metadata returns the stage's static descriptor.
	Metadata() Metadata
	// ValidateParams checks a stage declaration's resolved parameters
	// against the stage's own rules before the DAG is built.
	ValidateParams(params Params) error
	// Execute runs the stage against its upstream inputs and returns the
	// envelope it produces. Execute must honor ctx cancellation for any
	// blocking operation.
	Execute(ctx context.Context, params Params, inputs Input) (envelope.Value, error)
}

// ProducesOutput reports whether calling Execute on s yields a value that
// downstream stages may consume. Sink stages (Role == "sink") still return a
// Value for uniformity but it is conventionally ignored by the executor.
func ProducesOutput(s Stage) bool {
	return s.Metadata().Role != "sink"
}

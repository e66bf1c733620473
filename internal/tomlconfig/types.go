// Package tomlconfig loads and validates a Conveyor pipeline definition from
// TOML: the document's pipeline metadata, global settings, its stage
// declarations, and the pipeline-wide error-handling policy.
package tomlconfig

// Config is the full parsed pipeline document.
type Config struct {
	Pipeline      Pipeline       `toml:"pipeline"`
	Global        Global         `toml:"global"`
	Stages        []StageDecl    `toml:"stages" validate:"required,min=1,dive"`
	ErrorHandling *ErrorHandling `toml:"error_handling,omitempty"`
}

// Pipeline is the `[pipeline]` table: identity and versioning metadata.
type Pipeline struct {
	Name        string `toml:"name" validate:"required,min=1,max=100"`
	Version     string `toml:"version,omitempty" validate:"omitempty,semver"`
	Description string `toml:"description,omitempty"`
}

// Global holds document-wide execution settings from the `[global]` table.
type Global struct {
	LogLevel           string   `toml:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
	MaxParallelTasks   int      `toml:"max_parallel_tasks,omitempty" validate:"omitempty,min=1,max=256"`
	TimeoutSeconds     int      `toml:"timeout_seconds,omitempty" validate:"omitempty,min=1"`
	Plugins            []string `toml:"plugins,omitempty"`
	WasmPlugins        []string `toml:"wasm_plugins,omitempty"`
	ExecutionMode      string   `toml:"execution_mode,omitempty" validate:"omitempty,oneof=batch streaming"`
	StreamBatchSize    int      `toml:"stream_batch_size,omitempty" validate:"omitempty,min=1"`
	CheckpointInterval int      `toml:"checkpoint_interval,omitempty" validate:"omitempty,min=1"`
	// Variables is the `[global.variables]` free-form string map: the
	// source of both ${ENV} substitution (step 2) and {{var}} interpolation
	// (step 3) during loading.
	Variables map[string]string `toml:"variables,omitempty"`
}

// ErrorHandling is the top-level `[error_handling]` block: the single
// strategy applied around every stage's execution.
type ErrorHandling struct {
	Strategy          string           `toml:"strategy,omitempty" validate:"omitempty,oneof=stop continue retry"`
	MaxRetries        int              `toml:"max_retries,omitempty" validate:"omitempty,min=0,max=100"`
	RetryDelaySeconds int              `toml:"retry_delay_seconds,omitempty" validate:"omitempty,min=0"`
	DeadLetterQueue   *DeadLetterQueue `toml:"dead_letter_queue,omitempty"`
}

// DeadLetterQueue is the optional `[error_handling.dead_letter_queue]` table.
type DeadLetterQueue struct {
	Enabled bool   `toml:"enabled,omitempty"`
	Path    string `toml:"path,omitempty"`
}

// StageDecl is one `[[stages]]` table: a named invocation of a registered
// function with resolved configuration and declared upstream inputs.
type StageDecl struct {
	ID       string         `toml:"id" validate:"required,stage_id"`
	Function string         `toml:"function" validate:"required"`
	Inputs   []string       `toml:"inputs,omitempty"`
	Config   map[string]any `toml:"config,omitempty"`
	// Streaming requests single-consumption stream semantics for this
	// stage's output. Parsed only; the executor does not act on it.
	Streaming bool `toml:"streaming,omitempty"`
}

// StageMap builds a lookup table of stage declarations keyed by ID.
func StageMap(stages []StageDecl) map[string]StageDecl {
	out := make(map[string]StageDecl, len(stages))
	for _, s := range stages {
		out[s.ID] = s
	}
	return out
}

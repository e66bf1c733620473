package tomlconfig

const (
	defaultMaxParallelTasks   = 4
	defaultTimeoutSeconds     = 300
	defaultLogLevel           = "info"
	defaultExecutionMode      = "batch"
	defaultStreamBatchSize    = 1000
	defaultCheckpointInterval = 5000
	defaultPipelineVersion    = "1.0.0"

	defaultErrorStrategy     = "stop"
	defaultMaxRetries        = 3
	defaultRetryDelaySeconds = 5
)

// ApplyDefaults fills unset Pipeline, Global, and ErrorHandling fields with
// Conveyor's baked-in defaults. Called after Validate so zero values are
// known to be "unset" rather than explicit.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Pipeline.Version == "" {
		cfg.Pipeline.Version = defaultPipelineVersion
	}

	if cfg.Global.MaxParallelTasks == 0 {
		cfg.Global.MaxParallelTasks = defaultMaxParallelTasks
	}
	if cfg.Global.TimeoutSeconds == 0 {
		cfg.Global.TimeoutSeconds = defaultTimeoutSeconds
	}
	if cfg.Global.LogLevel == "" {
		cfg.Global.LogLevel = defaultLogLevel
	}
	if cfg.Global.ExecutionMode == "" {
		cfg.Global.ExecutionMode = defaultExecutionMode
	}
	if cfg.Global.StreamBatchSize == 0 {
		cfg.Global.StreamBatchSize = defaultStreamBatchSize
	}
	if cfg.Global.CheckpointInterval == 0 {
		cfg.Global.CheckpointInterval = defaultCheckpointInterval
	}

	if cfg.ErrorHandling == nil {
		cfg.ErrorHandling = &ErrorHandling{Strategy: defaultErrorStrategy}
	}
	if cfg.ErrorHandling.Strategy == "" {
		cfg.ErrorHandling.Strategy = defaultErrorStrategy
	}
	if cfg.ErrorHandling.Strategy == "retry" {
		if cfg.ErrorHandling.MaxRetries == 0 {
			cfg.ErrorHandling.MaxRetries = defaultMaxRetries
		}
		if cfg.ErrorHandling.RetryDelaySeconds == 0 {
			cfg.ErrorHandling.RetryDelaySeconds = defaultRetryDelaySeconds
		}
	}
}

package tomlconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	valid := `
[pipeline]
version = "1.0.0"
name = "test-pipeline"

[global]
max_parallel_tasks = 2

[[stages]]
id = "read"
function = "csv.read"

[[stages]]
id = "write"
function = "stdout"
inputs = ["read"]
`

	cases := []struct {
		name     string
		contents string
		wantErr  bool
		assert   func(t *testing.T, cfg *Config)
	}{
		{
			name:     "valid document parses",
			contents: valid,
			assert: func(t *testing.T, cfg *Config) {
				require.Equal(t, "test-pipeline", cfg.Pipeline.Name)
				require.Len(t, cfg.Stages, 2)
				require.Equal(t, "read", cfg.Stages[0].ID)
			},
		},
		{
			name: "missing name fails",
			contents: `
[pipeline]
version = "1.0.0"
[[stages]]
id = "a"
function = "f"
`,
			wantErr: true,
		},
		{
			name: "duplicate stage id fails",
			contents: `
[pipeline]
name = "x"
[[stages]]
id = "a"
function = "f"
[[stages]]
id = "a"
function = "g"
`,
			wantErr: true,
		},
		{
			name: "unknown input fails",
			contents: `
[pipeline]
name = "x"
[[stages]]
id = "a"
function = "f"
inputs = ["missing"]
`,
			wantErr: true,
		},
		{
			name: "cycle is rejected",
			contents: `
[pipeline]
name = "x"
[[stages]]
id = "a"
function = "f"
inputs = ["b"]
[[stages]]
id = "b"
function = "g"
inputs = ["a"]
`,
			wantErr: true,
		},
		{
			name: "invalid stage id fails",
			contents: `
[pipeline]
name = "x"
[[stages]]
id = "Not-Valid"
function = "f"
`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeTemp(t, tc.contents)
			cfg, err := Load(path, nil)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.assert != nil {
				tc.assert(t, cfg)
			}
		})
	}
}

func TestLoadResolvesGlobalVariablesThenInterpolatesStageConfig(t *testing.T) {
	t.Setenv("CONVEYOR_TEST_INPUT_DIR", "/data/in")

	doc := `
[pipeline]
name = "vars-pipeline"

[global.variables]
input_dir = "${CONVEYOR_TEST_INPUT_DIR}"

[[stages]]
id = "read"
function = "csv.read"

[stages.config]
path = "{{input_dir}}/file.csv"
`

	path := writeTemp(t, doc)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "/data/in/file.csv", cfg.Stages[0].Config["path"])
}

func TestLoadExtraVarsOverrideGlobalVariables(t *testing.T) {
	doc := `
[pipeline]
name = "vars-pipeline"

[global.variables]
env = "dev"

[[stages]]
id = "read"
function = "csv.read"

[stages.config]
env = "{{env}}"
`

	path := writeTemp(t, doc)
	cfg, err := Load(path, map[string]string{"env": "prod"})
	require.NoError(t, err)
	require.Equal(t, "prod", cfg.Stages[0].Config["env"])
}

func TestLoadFailsOnMissingEnvironmentVariable(t *testing.T) {
	doc := `
[pipeline]
name = "vars-pipeline"

[global.variables]
input_dir = "${CONVEYOR_TEST_DEFINITELY_UNSET}"

[[stages]]
id = "read"
function = "csv.read"
`

	path := writeTemp(t, doc)
	_, err := Load(path, nil)
	require.Error(t, err)
}

func TestLoadFailsOnUnresolvedInterpolation(t *testing.T) {
	doc := `
[pipeline]
name = "vars-pipeline"

[[stages]]
id = "read"
function = "csv.read"

[stages.config]
path = "{{missing}}/file.csv"
`

	path := writeTemp(t, doc)
	_, err := Load(path, nil)
	require.Error(t, err)
}

func TestSubstituteEnvRejectsLowercaseNames(t *testing.T) {
	t.Setenv("conveyor_lower", "nope")
	_, err := substituteEnv("greeting", "${conveyor_lower}")
	require.NoError(t, err) // lowercase names simply don't match envPattern, so the literal passes through untouched
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Pipeline: Pipeline{Name: "defaults-pipeline"},
		Stages:   []StageDecl{{ID: "a", Function: "f"}},
	}
	ApplyDefaults(cfg)

	require.Equal(t, defaultMaxParallelTasks, cfg.Global.MaxParallelTasks)
	require.Equal(t, defaultLogLevel, cfg.Global.LogLevel)
	require.Equal(t, defaultTimeoutSeconds, cfg.Global.TimeoutSeconds)
	require.NotNil(t, cfg.ErrorHandling)
	require.Equal(t, defaultErrorStrategy, cfg.ErrorHandling.Strategy)
}

func TestApplyDefaultsFillsRetrySettingsOnlyForRetryStrategy(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Pipeline:      Pipeline{Name: "retry-pipeline"},
		Stages:        []StageDecl{{ID: "a", Function: "f"}},
		ErrorHandling: &ErrorHandling{Strategy: "retry"},
	}
	ApplyDefaults(cfg)

	require.Equal(t, defaultMaxRetries, cfg.ErrorHandling.MaxRetries)
	require.Equal(t, defaultRetryDelaySeconds, cfg.ErrorHandling.RetryDelaySeconds)
}

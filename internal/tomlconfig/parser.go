package tomlconfig

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

var (
	envPattern = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
	varPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)
)

// Load reads a pipeline document from path, decodes it as TOML, resolves
// its `[global.variables]` mapping (step 2: ${ENV} substitution), then
// interpolates {{var}} references into every string stage-config leaf
// (step 3), and validates the result.
func Load(path string, vars map[string]string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, streamyerrors.NewParseError(path, 0, err)
	}
	return decode(path, string(data), vars)
}

// LoadString decodes and validates a pipeline document already held in
// memory (an inline sub-pipeline embedded in a parent document, for
// instance), applying the same variable resolution as Load.
func LoadString(doc string, vars map[string]string) (*Config, error) {
	return decode("<inline>", doc, vars)
}

func decode(path, doc string, extraVars map[string]string) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal([]byte(doc), &cfg); err != nil {
		return nil, streamyerrors.NewParseError(path, 0, err)
	}

	resolved, err := resolveVariables(cfg.Global.Variables)
	if err != nil {
		return nil, err
	}
	for k, v := range extraVars {
		resolved[k] = v
	}
	cfg.Global.Variables = resolved

	if err := interpolateStageConfigs(cfg.Stages, resolved); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// resolveVariables implements loader step 2: within every value of the
// `[global.variables]` mapping, replace ${NAME} (NAME matching
// [A-Z_][A-Z0-9_]*) with the process environment value. A reference to a
// name that is not set in the environment is a loader error naming both the
// missing environment variable and the variable key that referenced it.
func resolveVariables(variables map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, len(variables))
	for key, value := range variables {
		expanded, err := substituteEnv(key, value)
		if err != nil {
			return nil, err
		}
		resolved[key] = expanded
	}
	return resolved, nil
}

func substituteEnv(variableKey, value string) (string, error) {
	var firstErr error
	result := envPattern.ReplaceAllStringFunc(value, func(match string) string {
		if firstErr != nil {
			return match
		}
		name := envPattern.FindStringSubmatch(match)[1]
		v, ok := os.LookupEnv(name)
		if !ok {
			firstErr = streamyerrors.NewValidationError(
				variableKey,
				fmt.Sprintf("environment variable %q referenced by %q is not set", name, variableKey),
				nil,
			)
			return match
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// interpolateStageConfigs implements loader step 3: within every
// string-valued leaf of every stage's config, replace {{name}} references
// with the corresponding value from the resolved variables mapping.
// Non-string leaves are left untouched. A reference to a name absent from
// vars is a loader error.
func interpolateStageConfigs(stages []StageDecl, vars map[string]string) error {
	for i := range stages {
		interpolated, err := interpolateValue(stages[i].Config, vars, stages[i].ID)
		if err != nil {
			return err
		}
		stages[i].Config, _ = interpolated.(map[string]any)
	}
	return nil
}

func interpolateValue(v any, vars map[string]string, stageID string) (any, error) {
	switch val := v.(type) {
	case string:
		return interpolateString(val, vars, stageID)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			interpolated, err := interpolateValue(child, vars, stageID)
			if err != nil {
				return nil, err
			}
			out[k] = interpolated
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			interpolated, err := interpolateValue(child, vars, stageID)
			if err != nil {
				return nil, err
			}
			out[i] = interpolated
		}
		return out, nil
	default:
		return v, nil
	}
}

func interpolateString(s string, vars map[string]string, stageID string) (string, error) {
	var firstErr error
	result := varPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		name := strings.TrimSpace(varPattern.FindStringSubmatch(match)[1])
		v, ok := vars[name]
		if !ok {
			firstErr = streamyerrors.NewValidationError(
				fmt.Sprintf("stages[%s].config", stageID),
				fmt.Sprintf("variable %q is not defined in global.variables", name),
				nil,
			)
			return match
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

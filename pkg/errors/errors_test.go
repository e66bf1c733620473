package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unexpected token")
	err := NewParseError("config.yaml", 12, underlying)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "config.yaml", parseErr.Path)
	require.Equal(t, 12, parseErr.Line)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "config.yaml")
}

func TestValidationErrorAggregatesFields(t *testing.T) {
	t.Parallel()

	err := NewValidationError("steps[1].depends_on", "references unknown step", nil)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "steps[1].depends_on", validationErr.Field)
	require.Contains(t, validationErr.Message, "references unknown step")
}

func TestExecutionErrorIncludesStepContext(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("command failed")
	err := NewExecutionError("install_git", underlying)

	var executionErr *ExecutionError
	require.ErrorAs(t, err, &executionErr)
	require.Equal(t, "install_git", executionErr.StepID)
	require.True(t, stdErrors.Is(err, underlying))
}

func TestPluginErrorIncludesPluginName(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("not supported")
	err := NewPluginError("command", underlying)

	var pluginErr *PluginError
	require.ErrorAs(t, err, &pluginErr)
	require.Equal(t, "command", pluginErr.Plugin)
	require.True(t, stdErrors.Is(err, underlying))
}

func TestBuildErrorIncludesStageAndFunction(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("cycle detected")
	err := NewBuildError("s2", "csv.read", "dependency cycle", underlying)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	require.Equal(t, "s2", buildErr.StageID)
	require.Equal(t, "csv.read", buildErr.Function)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "s2")
	require.Contains(t, err.Error(), "csv.read")
}

func TestBuildErrorOmitsFunctionWhenEmpty(t *testing.T) {
	t.Parallel()

	err := NewBuildError("s1", "", "unknown dependency", nil)
	require.Contains(t, err.Error(), "s1")
	require.NotContains(t, err.Error(), `function ""`)
}

func TestPluginLoadErrorIncludesPluginName(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("symbol not found")
	err := NewPluginLoadError("geo_enrich", "missing export", underlying)

	var loadErr *PluginLoadError
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, "geo_enrich", loadErr.Plugin)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "geo_enrich")
}

func TestStreamErrorIncludesStageID(t *testing.T) {
	t.Parallel()

	err := NewStreamError("s3", "stream from \"s1\" already consumed")

	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	require.Equal(t, "s3", streamErr.StageID)
	require.Contains(t, err.Error(), "s3")
}

func TestTimeoutErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("context deadline exceeded")
	err := NewTimeoutError("30s", underlying)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, "30s", timeoutErr.Timeout)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "30s")
}

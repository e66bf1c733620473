package main

import (
	"fmt"
	"strings"
)

// parseVars turns repeated --var key=value flags into a substitution map
// for tomlconfig.Load's {{var}} interpolation.
func parseVars(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	vars := make(map[string]string, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --var %q: expected key=value", kv)
		}
		vars[key] = value
	}
	return vars, nil
}

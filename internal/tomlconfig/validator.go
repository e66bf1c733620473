package tomlconfig

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	streamyerrors "github.com/conveyor/conveyor/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	semverPattern = regexp.MustCompile(`^\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z-.]+)?(?:\+[0-9A-Za-z-.]+)?$`)
	stageIDRegexp = regexp.MustCompile(`^[a-z0-9_]+$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
			return semverPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("stage_id", func(fl validator.FieldLevel) bool {
			return stageIDRegexp.MatchString(fl.Field().String())
		})
		validateInst = v
	})
	return validateInst
}

// Validate performs schema validation, then cross-stage checks: duplicate
// IDs, unresolved inputs references, and dependency cycles.
func Validate(cfg *Config) error {
	if cfg == nil {
		return streamyerrors.NewValidationError("config", "configuration is nil", nil)
	}

	v := validatorInstance()
	if err := v.Struct(cfg); err != nil {
		return convertValidationError(err)
	}

	if cfg.ErrorHandling != nil {
		if err := v.Struct(cfg.ErrorHandling); err != nil {
			return convertValidationError(err)
		}
	}

	stageIndex := make(map[string]int, len(cfg.Stages))
	for i, s := range cfg.Stages {
		if _, exists := stageIndex[s.ID]; exists {
			return streamyerrors.NewValidationError(fieldForStage(i, "id"), fmt.Sprintf("duplicate stage id %q", s.ID), nil)
		}
		stageIndex[s.ID] = i
	}

	for i, s := range cfg.Stages {
		for _, dep := range s.Inputs {
			if _, ok := stageIndex[dep]; !ok {
				return streamyerrors.NewValidationError(fieldForStage(i, "inputs"), fmt.Sprintf("references unknown stage %q", dep), nil)
			}
		}
	}

	if cycle := detectCycle(cfg.Stages); len(cycle) > 0 {
		return streamyerrors.NewValidationError("stage", fmt.Sprintf("dependency cycle detected: %s", strings.Join(cycle, " -> ")), nil)
	}

	return nil
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}
	if ves, ok := err.(validator.ValidationErrors); ok {
		fe := ves[0]
		field := tomlishFieldName(fe)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, fe.Tag())
		return streamyerrors.NewValidationError(field, msg, err)
	}
	return streamyerrors.NewValidationError("config", err.Error(), err)
}

func tomlishFieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	parts := strings.Split(ns, ".")
	lowered := make([]string, 0, len(parts))
	for _, part := range parts {
		lowered = append(lowered, strings.ToLower(part))
	}
	return strings.Join(lowered, ".")
}

func fieldForStage(index int, field string) string {
	return fmt.Sprintf("stage[%d].%s", index, field)
}

// detectCycle runs a depth-first search over stage dependencies in
// deterministic (ID-sorted) order and returns the cycle path if one exists.
func detectCycle(stages []StageDecl) []string {
	graph := make(map[string][]string, len(stages))
	for _, s := range stages {
		graph[s.ID] = s.Inputs
	}

	visiting := make(map[string]bool, len(stages))
	visited := make(map[string]bool, len(stages))
	var stack []string
	var cycle []string

	var dfs func(string) bool
	dfs = func(node string) bool {
		visiting[node] = true
		stack = append(stack, node)

		for _, dep := range graph[node] {
			if visited[dep] {
				continue
			}
			if visiting[dep] {
				idx := indexOf(stack, dep)
				if idx >= 0 {
					cycle = append([]string{}, stack[idx:]...)
					cycle = append(cycle, dep)
				}
				return true
			}
			if dfs(dep) {
				return true
			}
		}

		visiting[node] = false
		visited[node] = true
		stack = stack[:len(stack)-1]
		return false
	}

	ids := make([]string, 0, len(stages))
	for _, s := range stages {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if visited[id] {
			continue
		}
		if dfs(id) {
			break
		}
	}

	return cycle
}

func indexOf(slice []string, target string) int {
	for i, v := range slice {
		if v == target {
			return i
		}
	}
	return -1
}

package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/kobzar/internal/compiler"
)

// ScenarioNotFoundError is returned when a manifest references a scenario
// file that doesn't exist.
type ScenarioNotFoundError struct {
	Interface    string
	ScenarioPath string
	ResolvedPath string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf(
		"interface %q references scenario file %q which does not exist (resolved to: %s)",
		e.Interface,
		e.ScenarioPath,
		e.ResolvedPath,
	)
}

// ExtractScenarios resolves the scenario files a manifest lists, relative
// to specDir, and checks that each exists.
func ExtractScenarios(spec *compiler.InterfaceSpec, specDir string) ([]string, error) {
	paths := make([]string, 0, len(spec.Scenarios))
	for _, ref := range spec.Scenarios {
		path := ref
		if !filepath.IsAbs(path) {
			path = filepath.Join(specDir, path)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, &ScenarioNotFoundError{
				Interface:    spec.Name,
				ScenarioPath: ref,
				ResolvedPath: path,
			}
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ConformanceResult summarizes a conformance run over a manifest directory.
type ConformanceResult struct {
	TotalInterfaces int                  `json:"total_interfaces"`
	TotalScenarios  int                  `json:"total_scenarios"`
	Passed          int                  `json:"passed"`
	Failed          int                  `json:"failed"`
	Skipped         int                  `json:"skipped"` // Interfaces without scenarios
	Failures        []ConformanceFailure `json:"failures,omitempty"`
}

// ConformanceFailure is one scenario that failed to load, run or pass.
type ConformanceFailure struct {
	Interface    string `json:"interface"`
	ScenarioPath string `json:"scenario_path"`
	Error        string `json:"error"`
}

// ValidateConformance runs every scenario the manifests in specs list.
//
// Each scenario runs with specDir loaded, so it may spawn any interface
// declared there without listing the directory itself.
func ValidateConformance(ctx context.Context, specs []*compiler.InterfaceSpec, specDir string) (*ConformanceResult, error) {
	result := &ConformanceResult{}

	for _, spec := range specs {
		result.TotalInterfaces++

		paths, err := ExtractScenarios(spec, specDir)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, ConformanceFailure{
				Interface: spec.Name,
				Error:     err.Error(),
			})
			continue
		}

		if len(paths) == 0 {
			result.Skipped++
			continue
		}

		for _, path := range paths {
			result.TotalScenarios++

			fail := func(format string, args ...any) {
				result.Failed++
				result.Failures = append(result.Failures, ConformanceFailure{
					Interface:    spec.Name,
					ScenarioPath: path,
					Error:        fmt.Sprintf(format, args...),
				})
			}

			scenario, err := LoadScenarioWithBasePath(path, filepath.Dir(path))
			if err != nil {
				fail("failed to load scenario: %v", err)
				continue
			}

			run, err := RunWithOptions(ctx, scenario, Options{Specs: []string{specDir}})
			if err != nil {
				fail("scenario execution failed: %v", err)
				continue
			}

			if !run.Pass {
				fail("scenario assertions failed: %v", run.Errors)
				continue
			}

			result.Passed++
		}
	}

	return result, nil
}

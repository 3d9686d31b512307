package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total     int               `json:"total"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Scenarios []ScenarioOutcome `json:"scenarios"`
}

// ScenarioOutcome is the result of one scenario file.
type ScenarioOutcome struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`

	// Trace is the canonical trace snapshot, nil if the scenario did not run.
	Trace []byte `json:"-"`
}

// Failures returns the outcomes that did not pass.
func (r *SuiteResult) Failures() []ScenarioOutcome {
	var out []ScenarioOutcome
	for _, o := range r.Scenarios {
		if !o.Pass {
			out = append(out, o)
		}
	}
	return out
}

// FindScenarios returns the .yaml and .yml files directly under dir,
// sorted by name. A non-empty filter is a glob matched against the file
// name without extension.
func FindScenarios(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if l := strings.ToLower(ext); l != ".yaml" && l != ".yml" {
			continue
		}
		if filter != "" {
			ok, err := filepath.Match(filter, strings.TrimSuffix(e.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !ok {
				continue
			}
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// RunDir runs every scenario under dir that matches filter. A scenario
// that fails to load counts as failed; the remaining scenarios still run.
// The context is checked between scenarios.
func RunDir(ctx context.Context, dir, filter string, opts ...Option) (*SuiteResult, error) {
	paths, err := FindScenarios(dir, filter)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{Scenarios: []ScenarioOutcome{}}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome := runFile(path, opts)
		result.Total++
		if outcome.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, outcome)
	}
	return result, nil
}

func runFile(path string, opts []Option) ScenarioOutcome {
	outcome := ScenarioOutcome{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path: path,
	}

	scenario, err := LoadScenario(path)
	if err != nil {
		outcome.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return outcome
	}
	outcome.Name = scenario.Name

	result, err := Run(scenario, opts...)
	if err != nil {
		outcome.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
		return outcome
	}

	snapshot := TraceSnapshot{ScenarioName: scenario.Name, Trace: result.Trace}
	trace, err := snapshot.Marshal()
	if err != nil {
		outcome.Errors = []string{fmt.Sprintf("marshal trace: %v", err)}
		return outcome
	}
	outcome.Trace = trace
	outcome.Pass = result.Pass
	outcome.Errors = result.Errors
	return outcome
}

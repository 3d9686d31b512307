package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/vox/internal/ir"
)

// TraceSnapshot captures the trace of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to plain data for
// ir.MarshalCanonical. Empty optional fields are omitted; context and
// depth are always present.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"step":    ev.Step,
			"op":      ev.Op,
			"context": ev.Context,
			"depth":   ev.Depth,
		}
		if ev.Input != "" {
			m["input"] = ev.Input
		}
		if ev.Intent != "" {
			m["intent"] = ev.Intent
			m["match_type"] = ev.MatchType
			m["confidence"] = ev.Confidence
		}
		if len(ev.Params) > 0 {
			m["params"] = ev.Params
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		if ev.Escalated {
			m["escalated"] = true
		}
		if len(ev.Notifications) > 0 {
			kinds := make([]any, len(ev.Notifications))
			for j, k := range ev.Notifications {
				kinds[j] = k
			}
			m["notifications"] = kinds
		}
		traceList[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// Marshal returns the canonical JSON of the snapshot.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check expectations.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	traceJSON, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}

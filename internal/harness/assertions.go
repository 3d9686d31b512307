package harness

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roach88/vox/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %q", ev.Step, ev.Op, ev.Input)
		if ev.Intent != "" {
			fmt.Fprintf(&buf, " -> %s (%s %.3f)", ev.Intent, ev.MatchType, ev.Confidence)
		}
		if ev.Error != "" {
			fmt.Fprintf(&buf, " !%s", ev.Error)
		}
		fmt.Fprintf(&buf, " @%s/%d\n", ev.Context, ev.Depth)
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against a finished result and
// returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertFinalState:
		return assertFinalState(result, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertTraceContains checks that some say step matched the intent.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Op == OpSay && ev.Intent == a.Intent {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("a match for %s", a.Intent),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the contexts were entered in the given
// order. Other contexts may appear in between, and a context may repeat.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	var visited []string
	for _, ev := range trace {
		if len(visited) == 0 || visited[len(visited)-1] != ev.Context {
			visited = append(visited, ev.Context)
		}
	}

	want := make([]string, len(a.Contexts))
	for i, c := range a.Contexts {
		ct, _ := ir.ParseContextType(c)
		want[i] = string(ct)
	}

	next := 0
	for _, c := range visited {
		if next < len(want) && c == want[next] {
			next++
		}
	}
	if next == len(want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: strings.Join(want, " -> "),
		Actual:   fmt.Sprintf("%s (missing %s)", strings.Join(visited, " -> "), want[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks how many notifications of a kind were delivered.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		for _, kind := range ev.Notifications {
			if kind == a.Kind {
				count++
			}
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d %s notifications", a.Count, a.Kind),
		Actual:   fmt.Sprintf("%d", count),
		Trace:    trace,
	}
}

// assertFinalState checks that every expected key has the expected value.
// Keys absent from Expect are not compared.
func assertFinalState(result *Result, a Assertion) error {
	var mismatches []string
	for _, key := range sortedKeys(a.Expect) {
		want, err := ir.FromAny(a.Expect[key])
		if err != nil {
			return fmt.Errorf("final_state %s: %w", key, err)
		}
		if key == "context" {
			if s, ok := want.(ir.String); ok {
				ct, _ := ir.ParseContextType(string(s))
				want = ir.String(ct)
			}
		}
		got, ok := result.State[key]
		switch {
		case !ok:
			mismatches = append(mismatches, fmt.Sprintf("%s: missing, want %s", key, formatValue(want)))
		case !valuesEqual(want, got):
			mismatches = append(mismatches, fmt.Sprintf("%s: got %s, want %s", key, formatValue(got), formatValue(want)))
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: "state matches expect",
		Actual:   strings.Join(mismatches, "; "),
		Trace:    result.Trace,
	}
}

// valuesEqual compares canonical encodings, so an integral Float equals
// the Int of the same number.
func valuesEqual(a, b ir.Value) bool {
	ab, errA := ir.MarshalCanonical(a)
	bb, errB := ir.MarshalCanonical(b)
	return errA == nil && errB == nil && bytes.Equal(ab, bb)
}

func formatValue(v ir.Value) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

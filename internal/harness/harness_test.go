package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vox/internal/ir"
)

const patternsDir = "testdata/patterns"

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func TestRun_OrderFlowScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "order_flow.yaml"))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 12)
	assert.Equal(t, ir.String("order_creation"), result.State["context"])
	assert.Equal(t, ir.Int(2), result.State["var.guests"])
	assert.Equal(t, ir.String("Lea"), result.State["global.waiter"])
}

func TestRun_ErrorRecoveryScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "error_recovery.yaml"))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, ir.Int(3), result.State["errors"])
	assert.Equal(t, ir.Int(2), result.State["recoveries"])
}

func TestRun_ExpectationFailuresAreReported(t *testing.T) {
	s := &Scenario{
		Name:     "wrong_expectations",
		Patterns: patternsDir,
		Steps: []Step{
			{Say: "zeige die speisekarte", Expect: &Expect{Intent: "NEW_ORDER", Type: "fuzzy"}},
			{Say: "xyz qqq", Expect: &Expect{Intent: "SHOW_MENU"}},
			{Set: "admin", Expect: &Expect{Context: "admin"}},
			{Set: "payment", Expect: &Expect{}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors, `step 1 (say): expected intent NEW_ORDER, got "SHOW_MENU"`)
	assert.Contains(t, result.Errors, `step 1 (say): expected match type fuzzy, got "exact"`)
	assert.Contains(t, result.Errors, `step 2 (say): expected intent SHOW_MENU, got ""`)
	assert.Contains(t, result.Errors, "step 4 (set): unexpected error INVALID_TRANSITION")
	assert.Len(t, result.Errors, 4)
}

func TestRun_UnexpectedErrorWithoutExpectIsOnlyTraced(t *testing.T) {
	s := &Scenario{
		Name:     "tolerated",
		Patterns: patternsDir,
		Steps:    []Step{{Set: "payment"}},
	}

	result, err := Run(s)
	require.NoError(t, err)

	assert.True(t, result.Pass)
	assert.Equal(t, "INVALID_TRANSITION", result.Trace[0].Error)
	assert.Equal(t, "idle", result.Trace[0].Context)
}

func TestRun_NoMatch(t *testing.T) {
	s := &Scenario{
		Name:     "no_match",
		Patterns: patternsDir,
		Steps: []Step{
			{Say: "xyz qqq", Expect: &Expect{NoMatch: true}},
			{Say: "   ", Expect: &Expect{NoMatch: true}},
			{Say: "zeige die speisekarte", Expect: &Expect{NoMatch: true}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 3 (say): expected no match, got SHOW_MENU (exact 1.000)")
}

func TestRun_ContextFiltersPatterns(t *testing.T) {
	s := &Scenario{
		Name:     "context_filter",
		Patterns: patternsDir,
		Steps: []Step{
			{Say: "bezahlen mit karte", Expect: &Expect{Context: "idle"}},
			{Set: "order_creation"},
			{Set: "cart_management"},
			{Say: "bezahlen mit karte", Expect: &Expect{Intent: "PAY", Type: "exact", Params: map[string]any{"method": "karte"}}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.NotEqual(t, "PAY", result.Trace[0].Intent)
}

func TestRun_NonStrict(t *testing.T) {
	s := &Scenario{
		Name:     "lenient",
		Patterns: patternsDir,
		Strict:   boolPtr(false),
		Steps: []Step{
			{Set: "payment", Expect: &Expect{Context: "payment", Depth: intPtr(1)}},
			{Set: "admin", Expect: &Expect{Context: "admin", Depth: intPtr(2)}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ScenarioTimeoutOverride(t *testing.T) {
	s := &Scenario{
		Name:     "no_payment_timeout",
		Patterns: patternsDir,
		Timeouts: map[string]string{"payment": "0", "help": "10s"},
		Steps: []Step{
			{Set: "payment", Force: true},
			{Advance: "1h", Expect: &Expect{Context: "payment", Notifications: []string{}}},
			{Set: "help", Expect: &Expect{Context: "help"}},
			{Advance: "10s", Expect: &Expect{Context: "idle", Notifications: []string{"context_timeout", "context_changed"}}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "1h0m0s", result.Trace[1].Input)
}

func TestRun_Variables(t *testing.T) {
	s := &Scenario{
		Name:     "variables",
		Patterns: patternsDir,
		Steps: []Step{
			{Push: "order_creation", Data: map[string]any{"table": 4}},
			{Var: "note", Value: "ohne zwiebeln"},
			{Var: "shift", Value: "abend", Global: true},
			{Var: "table", Remove: true, Expect: &Expect{Notifications: []string{"variable_removed"}}},
			{Var: "table", Remove: true, Expect: &Expect{Error: "VARIABLE_NOT_FOUND"}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, ir.String("ohne zwiebeln"), result.State["var.note"])
	assert.Equal(t, ir.String("abend"), result.State["global.shift"])
	assert.NotContains(t, result.State, "var.table")
}

func TestRun_ErrorFromOtherContext(t *testing.T) {
	s := &Scenario{
		Name:     "attributed_error",
		Patterns: patternsDir,
		Steps: []Step{
			{Set: "menu_browsing"},
			{Error: "reservation backend down", From: "reservation", Expect: &Expect{Escalated: boolPtr(true), Context: "error_recovery"}},
			{Recover: "abort", Expect: &Expect{Context: "idle", Depth: intPtr(0)}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.True(t, result.Trace[1].Escalated)
}

func TestRun_MissingPatterns(t *testing.T) {
	s := &Scenario{
		Name:     "missing",
		Patterns: filepath.Join(t.TempDir(), "nope"),
		Steps:    []Step{{Pop: true}},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load patterns")
}

func TestRun_ExpectParamsCompareNumbersByValue(t *testing.T) {
	s := &Scenario{
		Name:     "params",
		Patterns: patternsDir,
		Steps: []Step{
			{Say: "neue bestellung für tisch 5", Expect: &Expect{Params: map[string]any{"table": 5.0}}},
			{Say: "neue bestellung für tisch 6", Expect: &Expect{Params: map[string]any{"table": 5, "waiter": "lea"}}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"step 2 (say): expected param table = 5, got 6",
		`step 2 (say): expected param waiter = "lea", missing`,
	}, result.Errors)
}

package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vox/internal/ir"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Step: 1, Op: OpSay, Input: "neue bestellung für tisch 5", Intent: "NEW_ORDER", MatchType: "exact", Confidence: 1, Context: "idle"},
		{Step: 2, Op: OpSet, Input: "order_creation", Context: "order_creation", Depth: 1, Notifications: []string{"context_changed"}},
		{Step: 3, Op: OpSet, Input: "admin", Error: "INVALID_TRANSITION", Context: "order_creation", Depth: 1},
		{Step: 4, Op: OpAdvance, Input: "5m0s", Context: "idle", Depth: 1, Notifications: []string{"context_timeout", "context_changed"}},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Type: AssertTraceContains, Intent: "NEW_ORDER"}))

	err := assertTraceContains(trace, Assertion{Type: AssertTraceContains, Intent: "PAY"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "a match for PAY")
	assert.Contains(t, err.Error(), `[1] say "neue bestellung für tisch 5" -> NEW_ORDER (exact 1.000) @idle/0`)
	assert.Contains(t, err.Error(), `[3] set "admin" !INVALID_TRANSITION @order_creation/1`)
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name     string
		contexts []string
		ok       bool
	}{
		{"full", []string{"idle", "order_creation", "idle"}, true},
		{"gaps allowed", []string{"idle", "idle"}, true},
		{"hyphenated", []string{"order-creation"}, true},
		{"wrong order", []string{"order_creation", "payment"}, false},
		{"repeat not visited", []string{"order_creation", "order_creation"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Contexts: tt.contexts})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	err := assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Contexts: []string{"idle", "payment"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idle -> order_creation -> idle (missing payment)")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Kind: "context_changed", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Kind: "context_timeout", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Kind: "context_error", Count: 0}))

	err := assertTraceCount(trace, Assertion{Type: AssertTraceCount, Kind: "context_changed", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 context_changed notifications")
}

func TestAssertFinalState(t *testing.T) {
	result := NewResult()
	result.State = map[string]ir.Value{
		"context":     ir.String("cart_management"),
		"depth":       ir.Int(2),
		"var.total":   ir.Float(12.5),
		"var.table":   ir.Int(5),
		"transitions": ir.Int(4),
	}

	assert.NoError(t, assertFinalState(result, Assertion{Type: AssertFinalState, Expect: map[string]any{
		"context":   "cart-management",
		"depth":     2,
		"var.total": 12.5,
		"var.table": 5.0,
	}}))

	err := assertFinalState(result, Assertion{Type: AssertFinalState, Expect: map[string]any{
		"depth":      3,
		"var.guests": 2,
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depth: got 2, want 3")
	assert.Contains(t, err.Error(), "var.guests: missing, want 2")
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()
	result.State = map[string]ir.Value{"context": ir.String("idle")}

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Intent: "NEW_ORDER"},
		{Type: AssertTraceContains, Intent: "PAY"},
		{Type: AssertFinalState, Expect: map[string]any{"context": "idle"}},
		{Type: "magic"},
	})

	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "assertion 1: Assertion failed: trace_contains")
	assert.Equal(t, "assertion 3: unknown assertion type: magic", failures[1])
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(ir.Int(5), ir.Float(5)))
	assert.True(t, valuesEqual(ir.Object{"a": ir.Int(1)}, ir.Object{"a": ir.Float(1)}))
	assert.False(t, valuesEqual(ir.Int(5), ir.String("5")))
	assert.False(t, valuesEqual(ir.Float(5.5), ir.Int(5)))
}

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vox/internal/ir"
)

func TestVariables_LocalShadowsGlobal(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.SetVariable("table", ir.Int(1), Global))
	require.NoError(t, m.SetContext(ir.ContextOrderCreation, nil))
	require.NoError(t, m.SetVariable("table", ir.Int(5), Local))

	v, ok := m.GetVariable("table", Local)
	require.True(t, ok)
	assert.Equal(t, ir.Int(5), v)

	v, ok = m.GetVariable("table", Global)
	require.True(t, ok)
	assert.Equal(t, ir.Int(1), v)

	require.NoError(t, m.RemoveVariable("table", Local))
	v, ok = m.GetVariable("table", Local)
	require.True(t, ok, "falls through to the global")
	assert.Equal(t, ir.Int(1), v)
}

func TestVariables_LocalDiesWithContext(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.SetContext(ir.ContextOrderCreation, nil))
	require.NoError(t, m.SetVariable("note", ir.String("no onions"), Local))

	require.NoError(t, m.SetContext(ir.ContextProductSelection, nil))

	assert.False(t, m.HasVariable("note", Local))
}

func TestVariables_GlobalSurvivesTransitions(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.SetVariable("waiter", ir.String("anna"), Global))

	walk(t, m, ir.ContextOrderCreation, ir.ContextProductSelection)

	assert.True(t, m.HasVariable("waiter", Local))
	assert.True(t, m.HasVariable("waiter", Global))
	assert.Contains(t, m.Globals(), "waiter")
}

func TestVariables_Notifications(t *testing.T) {
	m, _ := newTestManager(t)
	rec := record(m, KindVariableChanged, KindVariableRemoved)

	require.NoError(t, m.SetVariable("table", ir.Int(5), Local))
	require.NoError(t, m.SetVariable("table", ir.Int(6), Local))
	require.NoError(t, m.SetVariable("waiter", ir.String("anna"), Global))
	require.NoError(t, m.RemoveVariable("table", Local))

	require.Len(t, rec.got, 4)
	first := rec.got[0].(VariableChanged)
	assert.Equal(t, "table", first.Name)
	assert.Nil(t, first.Previous)
	assert.False(t, first.Global)
	assert.Equal(t, "ctx-1", first.ContextID)

	second := rec.got[1].(VariableChanged)
	assert.Equal(t, ir.Int(5), second.Previous)
	assert.Equal(t, ir.Int(6), second.Value)

	assert.True(t, rec.got[2].(VariableChanged).Global)

	removed := rec.got[3].(VariableRemoved)
	assert.Equal(t, "table", removed.Name)
	assert.Equal(t, ir.Int(6), removed.Previous)
}

func TestVariables_Errors(t *testing.T) {
	m, _ := newTestManager(t)
	rec := record(m, KindVariableChanged, KindVariableRemoved)

	tests := []struct {
		name string
		err  error
		code ErrorCode
	}{
		{"empty name", m.SetVariable("", ir.Int(1), Local), ErrCodeInvalidVariable},
		{"nil value", m.SetVariable("x", nil, Global), ErrCodeInvalidVariable},
		{"remove missing local", m.RemoveVariable("x", Local), ErrCodeVariableNotFound},
		{"remove missing global", m.RemoveVariable("x", Global), ErrCodeVariableNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, CodeOf(tt.err))
		})
	}
	assert.Empty(t, rec.got)
}

func TestVariables_RemoveGlobalDoesNotTouchLocal(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.SetVariable("x", ir.Int(1), Local))
	require.NoError(t, m.SetVariable("x", ir.Int(2), Global))

	require.NoError(t, m.RemoveVariable("x", Global))

	v, ok := m.GetVariable("x", Local)
	require.True(t, ok)
	assert.Equal(t, ir.Int(1), v)
	assert.False(t, m.HasVariable("x", Global))
}

func TestScope_String(t *testing.T) {
	assert.Equal(t, "local", Local.String())
	assert.Equal(t, "global", Global.String())
}

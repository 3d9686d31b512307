package workflow

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/testutil"
)

// busyManager returns a Manager in cart management with local and global
// variables, a stack, history and non-zero stats.
func busyManager(t *testing.T) (*Manager, *testutil.FakeClock) {
	t.Helper()
	m, clk := newTestManager(t)
	require.NoError(t, m.SetVariable("waiter", ir.String("anna"), Global))
	require.NoError(t, m.SetVariable("tip", ir.Float(2.5), Global))
	clk.Advance(time.Minute)
	require.NoError(t, m.SetContext(ir.ContextOrderCreation, ir.NewObject(ir.P("table", ir.Int(5)))))
	clk.Advance(time.Minute)
	require.NoError(t, m.SetContext(ir.ContextCartManagement, ir.NewObject(
		ir.P("items", ir.List{ir.String("pizza"), ir.String("cola")}),
	), PreserveVariables()))
	require.Error(t, m.SetContext(ir.ContextAdmin, nil))
	return m, clk
}

func TestExportState(t *testing.T) {
	m, clk := busyManager(t)

	s := m.ExportState()

	assert.Equal(t, ir.ContextCartManagement, s.Current.Type)
	assert.Equal(t, ir.Int(5), s.Current.Variables["table"])
	require.Len(t, s.Stack, 2)
	assert.Equal(t, ir.ContextOrderCreation, s.Stack[1].Context.Type)
	require.Len(t, s.History, 2)
	assert.Equal(t, ir.ContextIdle, s.History[0].Context.Type, "oldest first")
	assert.Len(t, s.Globals, 2)
	assert.Equal(t, Stats{Transitions: 2, InvalidTransitions: 1}, s.Stats)
	assert.Equal(t, clk.Now(), s.ExportedAt)
}

func TestExportState_TruncatesHistory(t *testing.T) {
	m, _ := newTestManager(t)
	for i := 0; i < 8; i++ {
		walk(t, m, ir.ContextHelp, ir.ContextIdle)
	}

	s := m.ExportState()

	require.Len(t, s.History, ExportHistoryLimit)
	assert.Equal(t, m.History(1)[0].Context.ID, s.History[ExportHistoryLimit-1].Context.ID)
}

func TestImportState_RoundTrip(t *testing.T) {
	src, _ := busyManager(t)
	exported := src.ExportState()

	data, err := json.Marshal(exported)
	require.NoError(t, err)

	dst, clk := newTestManager(t)
	rec := record(dst, KindContextChanged)
	require.NoError(t, dst.ImportJSON(data))

	got := dst.ExportState()
	opts := []cmp.Option{cmpopts.IgnoreFields(State{}, "ExportedAt"), cmpopts.EquateEmpty()}
	if diff := cmp.Diff(exported, got, opts...); diff != "" {
		t.Errorf("state mismatch after import (-exported +imported):\n%s", diff)
	}

	v, ok := dst.GetVariable("waiter", Local)
	require.True(t, ok)
	assert.Equal(t, ir.String("anna"), v)

	require.Len(t, rec.got, 1)
	assert.Equal(t, ir.ContextCartManagement, rec.got[0].(ContextChanged).Current.Type)

	// The imported context's timeout is armed.
	assert.Equal(t, 1, clk.PendingTimers())
	clk.Advance(3 * time.Minute)
	assert.Equal(t, ir.ContextIdle, dst.Current().Type)
}

func TestImportState_HashStable(t *testing.T) {
	src, clk := busyManager(t)
	first := src.ExportState()
	clk.Advance(time.Second)
	second := src.ExportState()

	h1, err := first.Hash()
	require.NoError(t, err)
	h2, err := second.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "export time is not part of the hash")

	require.NoError(t, src.SetVariable("waiter", ir.String("ben"), Global))
	h3, err := src.ExportState().Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestImportState_RejectsInvalidAndKeepsState(t *testing.T) {
	valid := func(t *testing.T) State {
		m, _ := busyManager(t)
		return m.ExportState()
	}

	tests := []struct {
		name   string
		mutate func(*State)
	}{
		{"unknown current type", func(s *State) { s.Current.Type = "kitchen" }},
		{"missing current id", func(s *State) { s.Current.ID = "" }},
		{"unknown stack type", func(s *State) { s.Stack[0].Context.Type = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t)
			require.NoError(t, m.SetContext(ir.ContextHelp, nil))
			before := m.ExportState()

			s := valid(t)
			tt.mutate(&s)
			err := m.ImportState(s)

			assert.Equal(t, ErrCodeInvalidState, CodeOf(err))
			after := m.ExportState()
			assert.Empty(t, cmp.Diff(before, after))
		})
	}
}

func TestImportState_SkipsMalformedEntries(t *testing.T) {
	src, _ := busyManager(t)
	s := src.ExportState()
	s.History = append(s.History, ir.HistoryEntry{Context: ir.Context{ID: "x", Type: "bogus"}})
	s.Globals[""] = GlobalVariable{Value: ir.Int(1)}
	s.Globals["empty"] = GlobalVariable{}

	dst, _ := newTestManager(t)
	require.NoError(t, dst.ImportState(s))

	assert.Len(t, dst.History(0), 2)
	assert.Len(t, dst.Globals(), 2)
}

func TestImportJSON_Garbage(t *testing.T) {
	m, _ := newTestManager(t)

	for _, data := range []string{``, `{`, `{"current": 5}`, `[]`} {
		err := m.ImportJSON([]byte(data))
		assert.Equal(t, ErrCodeInvalidState, CodeOf(err), "input %q", data)
	}
	assert.Equal(t, ir.ContextIdle, m.Current().Type)
}

func TestGlobalVariable_JSON(t *testing.T) {
	g := GlobalVariable{Value: ir.NewObject(ir.P("n", ir.Int(1))), SetAt: testutil.Epoch}

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":{"n":1},"set_at":"2025-01-01T12:00:00Z"}`, string(data))

	var back GlobalVariable
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, g.Value, back.Value)
	assert.True(t, g.SetAt.Equal(back.SetAt))
}

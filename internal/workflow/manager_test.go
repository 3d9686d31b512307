package workflow

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestManager returns a Manager on a fake clock with ids ctx-1, ctx-2, ...
// The initial idle context is ctx-1.
func newTestManager(t *testing.T, opts ...Option) (*Manager, *testutil.FakeClock) {
	t.Helper()
	clk := testutil.NewFakeClock(time.Time{})
	base := []Option{
		WithClock(clk),
		WithIDGenerator(testutil.NewSequentialIDs("ctx")),
		WithLogger(quietLogger()),
	}
	m := NewManager(append(base, opts...)...)
	t.Cleanup(func() { _ = m.Close() })
	return m, clk
}

// recorder collects every notification of the kinds it subscribes to.
type recorder struct {
	got []Notification
}

func record(m *Manager, kinds ...Kind) *recorder {
	r := &recorder{}
	for _, k := range kinds {
		m.On(k, func(n Notification) { r.got = append(r.got, n) })
	}
	return r
}

func (r *recorder) ofKind(k Kind) []Notification {
	var out []Notification
	for _, n := range r.got {
		if n.Kind() == k {
			out = append(out, n)
		}
	}
	return out
}

// walk drives m through a chain of allowed transitions.
func walk(t *testing.T, m *Manager, path ...ir.ContextType) {
	t.Helper()
	for _, ct := range path {
		require.NoError(t, m.SetContext(ct, nil), "transition to %s", ct)
	}
}

func TestNewManager_StartsIdle(t *testing.T) {
	m, clk := newTestManager(t)

	cur := m.Current()
	assert.Equal(t, ir.ContextIdle, cur.Type)
	assert.Equal(t, "ctx-1", cur.ID)
	assert.Equal(t, ReasonInit, cur.Metadata.Reason)
	assert.Equal(t, clk.Now(), cur.StartTime)
	assert.Empty(t, m.Stack())
	assert.Empty(t, m.History(0))
	assert.Equal(t, Stats{}, m.Stats())
	assert.Zero(t, clk.PendingTimers(), "idle has no timeout")
}

func TestSetContext_StrictRejectsUnreachableTarget(t *testing.T) {
	m, _ := newTestManager(t)
	rec := record(m, KindContextChanged)

	err := m.SetContext(ir.ContextPayment, nil)

	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))
	var we *Error
	require.ErrorAs(t, err, &we)
	assert.Equal(t, ir.ContextIdle, we.From)
	assert.Equal(t, ir.ContextPayment, we.To)

	assert.Equal(t, ir.ContextIdle, m.Current().Type)
	assert.Equal(t, "ctx-1", m.Current().ID)
	assert.Equal(t, 1, m.Stats().InvalidTransitions)
	assert.Zero(t, m.Stats().Transitions)
	assert.Empty(t, rec.got)
}

func TestSetContext_StrictModeFollowsTable(t *testing.T) {
	tables := DefaultTables()
	for _, from := range ir.ContextTypes {
		for _, to := range ir.ContextTypes {
			m, _ := newTestManager(t)
			if from != ir.ContextIdle {
				require.NoError(t, m.SetContext(from, nil, Force()))
			}

			err := m.SetContext(to, nil)

			if tables.Allowed(from, to) {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, m.Current().Type)
			} else {
				assert.True(t, IsInvalidTransition(err), "%s -> %s", from, to)
				assert.Equal(t, from, m.Current().Type)
			}
		}
	}
}

func TestSetContext_UnknownType(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.SetContext(ir.ContextType("kitchen"), nil, Force())

	assert.True(t, IsUnknownContext(err))
	assert.Equal(t, ir.ContextIdle, m.Current().Type)
	assert.Zero(t, m.Stats().InvalidTransitions)
}

func TestSetContext_ForceBypassesTable(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.SetContext(ir.ContextPayment, nil, Force()))
	assert.Equal(t, ir.ContextPayment, m.Current().Type)
}

func TestSetContext_NonStrict(t *testing.T) {
	m, _ := newTestManager(t, WithStrict(false))

	require.NoError(t, m.SetContext(ir.ContextPayment, nil))
	assert.Equal(t, ir.ContextPayment, m.Current().Type)
}

func TestSetContext_RecordsStackHistoryAndMetadata(t *testing.T) {
	m, clk := newTestManager(t)

	clk.Advance(10 * time.Second)
	require.NoError(t, m.SetContext(ir.ContextOrderCreation, ir.NewObject(ir.P("table", ir.Int(5)))))
	clk.Advance(5 * time.Second)
	require.NoError(t, m.SetContext(ir.ContextProductSelection, nil, Because("add pizza")))

	cur := m.Current()
	assert.Equal(t, "ctx-3", cur.ID)
	assert.Equal(t, ir.ContextProductSelection, cur.Type)
	assert.Equal(t, ir.ContextOrderCreation, cur.Metadata.PreviousType)
	assert.Equal(t, "add pizza", cur.Metadata.Reason)
	assert.True(t, cur.Metadata.UserInitiated)
	assert.Empty(t, cur.Variables, "variables are not carried over by default")

	stack := m.Stack()
	require.Len(t, stack, 2)
	assert.Equal(t, ir.ContextIdle, stack[0].Context.Type)
	assert.Equal(t, ir.ContextOrderCreation, stack[1].Context.Type)
	assert.Equal(t, ir.Int(5), stack[1].Context.Variables["table"])

	hist := m.History(0)
	require.Len(t, hist, 2)
	assert.Equal(t, ir.ContextOrderCreation, hist[0].Context.Type, "most recent first")
	assert.Equal(t, 5*time.Second, hist[0].Duration)
	assert.Equal(t, ir.ContextIdle, hist[1].Context.Type)
	assert.Equal(t, 10*time.Second, hist[1].Duration)

	assert.Equal(t, 2, m.Stats().Transitions)
}

func TestSetContext_NoStack(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.SetContext(ir.ContextMenuBrowsing, nil, NoStack()))
	assert.Empty(t, m.Stack())
	assert.Len(t, m.History(0), 1)
}

func TestSetContext_PreserveVariables(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.SetContext(ir.ContextOrderCreation, ir.NewObject(
		ir.P("table", ir.Int(5)),
		ir.P("guests", ir.Int(2)),
	)))

	require.NoError(t, m.SetContext(ir.ContextProductSelection,
		ir.NewObject(ir.P("guests", ir.Int(3))), PreserveVariables()))

	vars := m.Current().Variables
	assert.Equal(t, ir.Int(5), vars["table"])
	assert.Equal(t, ir.Int(3), vars["guests"], "supplied data wins")
}

func TestSetContext_StackLimitDropsOldest(t *testing.T) {
	m, _ := newTestManager(t, WithStackLimit(2))

	walk(t, m, ir.ContextOrderCreation, ir.ContextProductSelection, ir.ContextCartManagement)

	stack := m.Stack()
	require.Len(t, stack, 2)
	assert.Equal(t, ir.ContextOrderCreation, stack[0].Context.Type)
	assert.Equal(t, ir.ContextProductSelection, stack[1].Context.Type)
}

func TestHistory_Bounded(t *testing.T) {
	m, _ := newTestManager(t, WithHistoryLimit(3))

	for i := 0; i < 4; i++ {
		walk(t, m, ir.ContextHelp, ir.ContextIdle)
	}

	hist := m.History(0)
	assert.Len(t, hist, 3)
	assert.Len(t, m.History(2), 2)
}

func TestPushContext_AlwaysStacks(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.PushContext(ir.ContextHelp, nil, NoStack()))

	stack := m.Stack()
	require.Len(t, stack, 1)
	assert.Equal(t, ir.ContextIdle, stack[0].Context.Type)
}

func TestPopContext_ResumesWithFreshID(t *testing.T) {
	m, clk := newTestManager(t)
	require.NoError(t, m.SetContext(ir.ContextOrderCreation, ir.NewObject(ir.P("table", ir.Int(7)))))
	suspendedID := m.Current().ID
	require.NoError(t, m.PushContext(ir.ContextHelp, nil))

	clk.Advance(20 * time.Second)
	require.NoError(t, m.PopContext())

	cur := m.Current()
	assert.Equal(t, ir.ContextOrderCreation, cur.Type)
	assert.NotEqual(t, suspendedID, cur.ID)
	assert.Equal(t, ir.Int(7), cur.Variables["table"])
	assert.True(t, cur.Metadata.Resumed)
	assert.Equal(t, 20*time.Second, cur.Metadata.PauseDuration)
	assert.Equal(t, ReasonResume, cur.Metadata.Reason)
	assert.Equal(t, ir.ContextHelp, cur.Metadata.PreviousType)

	require.Len(t, m.Stack(), 1, "idle is still suspended below")
}

func TestPopContext_EmptyStackGoesIdle(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.SetContext(ir.ContextSearch, nil, NoStack()))

	require.NoError(t, m.PopContext())

	cur := m.Current()
	assert.Equal(t, ir.ContextIdle, cur.Type)
	assert.Equal(t, ReasonStackEmpty, cur.Metadata.Reason)
	assert.False(t, cur.Metadata.Resumed)
}

func TestPopContext_IgnoresStrictMode(t *testing.T) {
	m, _ := newTestManager(t)
	walk(t, m, ir.ContextOrderCreation, ir.ContextCartManagement, ir.ContextPayment)
	require.NoError(t, m.SetContext(ir.ContextHelp, nil))

	// help -> payment is not an edge of the table.
	require.NoError(t, m.PopContext())
	assert.Equal(t, ir.ContextPayment, m.Current().Type)
}

func TestTimeout_CartManagementFallsBackToIdle(t *testing.T) {
	m, clk := newTestManager(t, WithTimeouts(map[ir.ContextType]time.Duration{
		ir.ContextCartManagement: 180000 * time.Millisecond,
	}))
	rec := record(m, KindContextTimeout, KindContextChanged)
	walk(t, m, ir.ContextOrderCreation, ir.ContextCartManagement)
	cartID := m.Current().ID

	clk.Advance(3*time.Minute - time.Millisecond)
	assert.Equal(t, ir.ContextCartManagement, m.Current().Type)
	assert.Empty(t, rec.ofKind(KindContextTimeout))

	clk.Advance(time.Millisecond)

	cur := m.Current()
	assert.Equal(t, ir.ContextIdle, cur.Type)
	assert.False(t, cur.Metadata.UserInitiated)
	assert.Equal(t, ReasonTimeout, cur.Metadata.Reason)
	assert.Equal(t, 1, m.Stats().TimeoutCount)

	timeouts := rec.ofKind(KindContextTimeout)
	require.Len(t, timeouts, 1)
	to := timeouts[0].(ContextTimeout)
	assert.Equal(t, cartID, to.Context.ID)
	assert.Equal(t, 3*time.Minute, to.Elapsed)
	assert.Equal(t, ir.ContextIdle, to.Next)

	// The timeout notification precedes the change it causes.
	last := rec.got[len(rec.got)-2:]
	assert.Equal(t, KindContextTimeout, last[0].Kind())
	assert.Equal(t, KindContextChanged, last[1].Kind())

	clk.Advance(time.Hour)
	assert.Equal(t, 1, m.Stats().TimeoutCount, "idle never times out")
}

func TestTimeout_UsesTimeoutTable(t *testing.T) {
	m, clk := newTestManager(t)
	walk(t, m, ir.ContextOrderCreation, ir.ContextCartManagement, ir.ContextPayment)
	stackBefore := len(m.Stack())

	clk.Advance(5 * time.Minute)

	assert.Equal(t, ir.ContextCartManagement, m.Current().Type)
	assert.Len(t, m.Stack(), stackBefore, "timeouts do not stack")
}

func TestTimeout_SupersededTimerNeverFires(t *testing.T) {
	m, clk := newTestManager(t)
	rec := record(m, KindContextTimeout)

	require.NoError(t, m.SetContext(ir.ContextMenuBrowsing, nil)) // 2m
	clk.Advance(time.Minute)
	require.NoError(t, m.SetContext(ir.ContextOrderCreation, nil)) // 5m
	assert.Equal(t, 1, clk.PendingTimers(), "the menu timer was cancelled")

	clk.Advance(4 * time.Minute)

	assert.Equal(t, ir.ContextOrderCreation, m.Current().Type)
	assert.Empty(t, rec.got)
	assert.Zero(t, m.Stats().TimeoutCount)
}

func TestTimeout_StaleCallbackIsIgnored(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.SetContext(ir.ContextMenuBrowsing, nil))
	staleID := m.Current().ID
	require.NoError(t, m.SetContext(ir.ContextSearch, nil))

	// A timer that already left the clock when it was stopped.
	m.onTimeout(staleID)

	assert.Equal(t, ir.ContextSearch, m.Current().Type)
	assert.Zero(t, m.Stats().TimeoutCount)
}

func TestTimeout_OverrideAndDisable(t *testing.T) {
	m, clk := newTestManager(t)

	require.NoError(t, m.SetContext(ir.ContextSearch, nil, TimeoutAfter(10*time.Second)))
	clk.Advance(10 * time.Second)
	assert.Equal(t, ir.ContextMenuBrowsing, m.Current().Type)

	require.NoError(t, m.SetContext(ir.ContextSearch, nil, TimeoutAfter(0)))
	assert.Zero(t, clk.PendingTimers())
	clk.Advance(time.Hour)
	assert.Equal(t, ir.ContextSearch, m.Current().Type)
}

func TestSuggestNextContexts(t *testing.T) {
	m, _ := newTestManager(t)
	walk(t, m, ir.ContextOrderCreation, ir.ContextCartManagement)

	got := m.SuggestNextContexts()

	require.NotEmpty(t, got)
	assert.Equal(t, Suggestion{Type: ir.ContextPayment, Priority: 9, Reason: "proceed to payment"}, got[0])
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Priority, got[i].Priority)
	}
	assert.Equal(t, ir.ContextIdle, got[len(got)-1].Type)
}

func TestSuggestNextContexts_DefaultReason(t *testing.T) {
	m, _ := newTestManager(t)

	for _, s := range m.SuggestNextContexts() {
		if s.Type == ir.ContextAdmin {
			assert.Equal(t, DefaultReason, s.Reason)
			return
		}
	}
	t.Fatal("admin not suggested from idle")
}

func TestSweep_ExpiresOldGlobals(t *testing.T) {
	m, clk := newTestManager(t)
	require.NoError(t, m.SetVariable("waiter", ir.String("anna"), Global))
	clk.Advance(23 * time.Hour)
	require.NoError(t, m.SetVariable("shift", ir.String("late"), Global))

	clk.Advance(time.Hour + time.Second)
	rec := record(m, KindVariableRemoved)

	assert.Equal(t, 1, m.Sweep())
	assert.Zero(t, m.Sweep(), "sweep is idempotent")
	assert.False(t, m.HasVariable("waiter", Global))
	assert.True(t, m.HasVariable("shift", Global))
	assert.Empty(t, rec.got)
}

func TestStartSweeper_RunsOnTicks(t *testing.T) {
	m, clk := newTestManager(t)
	require.NoError(t, m.SetVariable("waiter", ir.String("anna"), Global))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m.StartSweeper(ctx, time.Hour)
	clk.Advance(25 * time.Hour)

	assert.Eventually(t, func() bool {
		return !m.HasVariable("waiter", Global)
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Close())
}

func TestClose_RejectsFurtherChanges(t *testing.T) {
	m, clk := newTestManager(t)
	require.NoError(t, m.SetContext(ir.ContextMenuBrowsing, nil))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.Zero(t, clk.PendingTimers())
	assert.Equal(t, ErrCodeClosed, CodeOf(m.SetContext(ir.ContextIdle, nil)))
	assert.Equal(t, ErrCodeClosed, CodeOf(m.PopContext()))
	assert.Equal(t, ErrCodeClosed, CodeOf(m.SetVariable("x", ir.Int(1), Local)))
	assert.False(t, m.HandleError(assert.AnError))
}

type countingObserver struct {
	transitions, rejected, timeouts, errors, recoveries int
}

func (o *countingObserver) ObserveTransition(ir.ContextType, ir.ContextType, bool) { o.transitions++ }
func (o *countingObserver) ObserveRejected(ir.ContextType, ir.ContextType)         { o.rejected++ }
func (o *countingObserver) ObserveTimeout(ir.ContextType)                          { o.timeouts++ }
func (o *countingObserver) ObserveError(ir.ContextType, bool)                      { o.errors++ }
func (o *countingObserver) ObserveRecovery(RecoveryAction)                         { o.recoveries++ }

func TestObserver_SeesEveryEvent(t *testing.T) {
	obs := &countingObserver{}
	m, clk := newTestManager(t, WithObserver(obs))

	walk(t, m, ir.ContextOrderCreation, ir.ContextCartManagement, ir.ContextPayment)
	require.Error(t, m.SetContext(ir.ContextAdmin, nil))
	require.True(t, m.HandleError(assert.AnError))
	require.NoError(t, m.RecoverFromError(RecoverRetry))
	clk.Advance(5 * time.Minute)

	assert.Equal(t, 6, obs.transitions) // 3 walked, error, retry, timeout
	assert.Equal(t, 1, obs.rejected)
	assert.Equal(t, 1, obs.timeouts)
	assert.Equal(t, 1, obs.errors)
	assert.Equal(t, 1, obs.recoveries)
}

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/vox/internal/clock"
	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/ring"
)

const (
	// DefaultHistoryLimit bounds the superseded-context history.
	DefaultHistoryLimit = 50

	// DefaultStackLimit bounds the suspension stack. Pushing onto a full
	// stack drops the oldest suspended context.
	DefaultStackLimit = 10

	// DefaultMaxRetries is how many times one error may escalate into
	// error recovery before it is only recorded.
	DefaultMaxRetries = 3

	// DefaultGlobalTTL is the age after which Sweep removes a global variable.
	DefaultGlobalTTL = 24 * time.Hour
)

// Transition reasons recorded in ir.ContextMetadata.Reason.
const (
	ReasonInit       = "init"
	ReasonTimeout    = "timeout"
	ReasonResume     = "resume"
	ReasonStackEmpty = "stack empty"
	ReasonError      = "error"
	ReasonAbort      = "abort"
	ReasonFallback   = "fallback"
)

// Stats counts Manager activity since construction or the last import.
type Stats struct {
	Transitions        int `json:"transitions"`
	InvalidTransitions int `json:"invalid_transitions"`
	TimeoutCount       int `json:"timeout_count"`
	ErrorCount         int `json:"error_count"`
	Recoveries         int `json:"recoveries"`
}

// SuspendedContext is a context waiting on the stack.
type SuspendedContext struct {
	Context     ir.Context `json:"context"`
	SuspendedAt time.Time  `json:"suspended_at"`
}

// Observer receives Manager events for metrics. Calls are made while the
// Manager's lock is held and must not call back into the Manager.
type Observer interface {
	ObserveTransition(from, to ir.ContextType, userInitiated bool)
	ObserveRejected(from, to ir.ContextType)
	ObserveTimeout(ct ir.ContextType)
	ObserveError(origin ir.ContextType, escalated bool)
	ObserveRecovery(action RecoveryAction)
}

type noopObserver struct{}

func (noopObserver) ObserveTransition(ir.ContextType, ir.ContextType, bool) {}
func (noopObserver) ObserveRejected(ir.ContextType, ir.ContextType)         {}
func (noopObserver) ObserveTimeout(ir.ContextType)                          {}
func (noopObserver) ObserveError(ir.ContextType, bool)                      {}
func (noopObserver) ObserveRecovery(RecoveryAction)                         {}

// Manager is the context state machine.
//
// State is guarded by mu. Notifications are queued while mu is held and
// delivered by flush after it is released; dispatchMu ensures only one
// goroutine delivers at a time.
type Manager struct {
	mu sync.Mutex

	clock    clock.Clock
	ids      IDGenerator
	logger   *slog.Logger
	tables   Tables
	observer Observer

	strict       bool
	historyLimit int
	stackLimit   int
	maxRetries   int
	globalTTL    time.Duration
	timeouts     map[ir.ContextType]time.Duration

	current ir.Context
	stack   []SuspendedContext
	history *ring.Buffer[ir.HistoryEntry]
	globals map[string]GlobalVariable
	retries map[string]int
	stats   Stats

	timer   clock.Timer
	timerID string

	subs       subscribers
	queue      *notificationQueue
	dispatchMu sync.Mutex

	closed    bool
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source for timestamps, timeouts and the sweeper.
// Default: clock.Real{}.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithIDGenerator sets the context id generator. Default: UUIDGenerator.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Manager) {
		m.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithTables replaces the priority, timeout and transition tables.
// Default: DefaultTables().
func WithTables(t Tables) Option {
	return func(m *Manager) {
		m.tables = t
	}
}

// WithTimeouts overrides individual context timeouts on top of the tables,
// whichever option order is used. A zero duration disables the timeout.
func WithTimeouts(overrides map[ir.ContextType]time.Duration) Option {
	return func(m *Manager) {
		m.timeouts = overrides
	}
}

// WithStrict enables or disables transition-table enforcement.
// Default: true.
func WithStrict(strict bool) Option {
	return func(m *Manager) {
		m.strict = strict
	}
}

// WithHistoryLimit bounds the history. Default: DefaultHistoryLimit.
func WithHistoryLimit(n int) Option {
	return func(m *Manager) {
		m.historyLimit = n
	}
}

// WithStackLimit bounds the suspension stack. Default: DefaultStackLimit.
func WithStackLimit(n int) Option {
	return func(m *Manager) {
		m.stackLimit = n
	}
}

// WithMaxRetries sets the escalation ceiling per error key.
// Default: DefaultMaxRetries.
func WithMaxRetries(n int) Option {
	return func(m *Manager) {
		m.maxRetries = n
	}
}

// WithGlobalTTL sets the age at which Sweep removes global variables.
// Default: DefaultGlobalTTL.
func WithGlobalTTL(d time.Duration) Option {
	return func(m *Manager) {
		m.globalTTL = d
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// NewManager creates a Manager in the idle context.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		clock:        clock.Real{},
		ids:          UUIDGenerator{},
		logger:       slog.Default(),
		tables:       DefaultTables(),
		observer:     noopObserver{},
		strict:       true,
		historyLimit: DefaultHistoryLimit,
		stackLimit:   DefaultStackLimit,
		maxRetries:   DefaultMaxRetries,
		globalTTL:    DefaultGlobalTTL,
		globals:      make(map[string]GlobalVariable),
		retries:      make(map[string]int),
		queue:        newNotificationQueue(),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.timeouts != nil {
		m.tables = m.tables.WithTimeouts(m.timeouts)
	}
	for _, w := range m.tables.Analyze() {
		m.logger.Warn("transition table", "kind", w.Kind, "contexts", w.Contexts, "detail", w.Message)
	}
	if m.stackLimit < 1 {
		m.stackLimit = 1
	}
	m.history = ring.New[ir.HistoryEntry](m.historyLimit)

	m.current = ir.Context{
		ID:        m.ids.Generate(),
		Type:      ir.ContextIdle,
		Variables: ir.Object{},
		StartTime: m.clock.Now(),
		Metadata:  ir.ContextMetadata{Reason: ReasonInit},
	}
	m.mu.Lock()
	m.armTimerLocked(nil)
	m.mu.Unlock()
	return m
}

// SetOption modifies a single SetContext call.
type SetOption func(*setConfig)

type setConfig struct {
	force     bool
	push      bool
	preserve  bool
	automatic bool
	timeout   *time.Duration
	reason    string

	resumed bool
	pause   time.Duration
}

func newSetConfig(opts []SetOption) setConfig {
	cfg := setConfig{push: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Force bypasses the transition table.
func Force() SetOption {
	return func(c *setConfig) { c.force = true }
}

// NoStack leaves the outgoing context off the suspension stack.
func NoStack() SetOption {
	return func(c *setConfig) { c.push = false }
}

// PreserveVariables carries the outgoing context's local variables into
// the new one. Supplied data wins on conflict.
func PreserveVariables() SetOption {
	return func(c *setConfig) { c.preserve = true }
}

// TimeoutAfter overrides the table timeout for this activation.
// Zero disables it.
func TimeoutAfter(d time.Duration) SetOption {
	return func(c *setConfig) { c.timeout = &d }
}

// Because records a reason in the new context's metadata.
func Because(reason string) SetOption {
	return func(c *setConfig) { c.reason = reason }
}

// Automatic marks the transition as not user-initiated.
func Automatic() SetOption {
	return func(c *setConfig) { c.automatic = true }
}

// SetContext moves to ct, seeding its local variables from data.
//
// The call is rejected, leaving all state unchanged, if ct is not a known
// context type or if strict mode is on, Force is absent and the
// transition table has no edge from the current context to ct. A
// rejected edge increments Stats.InvalidTransitions.
func (m *Manager) SetContext(ct ir.ContextType, data ir.Object, opts ...SetOption) error {
	cfg := newSetConfig(opts)

	m.mu.Lock()
	err := m.setLocked(ct, data, cfg)
	m.mu.Unlock()

	m.flush()
	return err
}

// PushContext is SetContext with the outgoing context always stacked.
func (m *Manager) PushContext(ct ir.ContextType, data ir.Object, opts ...SetOption) error {
	opts = append(opts, func(c *setConfig) { c.push = true })
	return m.SetContext(ct, data, opts...)
}

// PopContext resumes the most recently suspended context with a fresh id
// and its variables intact, or moves to idle when the stack is empty.
// Not subject to the transition table.
func (m *Manager) PopContext() error {
	m.mu.Lock()
	err := m.popLocked(ReasonResume)
	m.mu.Unlock()

	m.flush()
	return err
}

func (m *Manager) setLocked(ct ir.ContextType, data ir.Object, cfg setConfig) error {
	if m.closed {
		return errClosed
	}
	from := m.current.Type
	if !ct.Valid() {
		m.logger.Warn("unknown context type", "from", from, "to", ct)
		return newTransitionError(ErrCodeUnknownContext, from, ct, "unknown context type %q", ct)
	}
	if m.strict && !cfg.force && !m.tables.Allowed(from, ct) {
		m.stats.InvalidTransitions++
		m.observer.ObserveRejected(from, ct)
		m.logger.Warn("transition rejected", "from", from, "to", ct)
		return newTransitionError(ErrCodeInvalidTransition, from, ct, "transition not allowed")
	}
	m.activateLocked(ct, data, cfg)
	return nil
}

func (m *Manager) popLocked(reason string) error {
	if m.closed {
		return errClosed
	}
	n := len(m.stack)
	if n == 0 {
		m.activateLocked(ir.ContextIdle, nil, setConfig{reason: ReasonStackEmpty})
		return nil
	}
	top := m.stack[n-1]
	m.stack[n-1] = SuspendedContext{}
	m.stack = m.stack[:n-1]

	m.activateLocked(top.Context.Type, top.Context.Variables, setConfig{
		reason:  reason,
		resumed: true,
		pause:   m.clock.Now().Sub(top.SuspendedAt),
	})
	return nil
}

// activateLocked performs an accepted transition. Caller holds m.mu.
func (m *Manager) activateLocked(ct ir.ContextType, data ir.Object, cfg setConfig) {
	now := m.clock.Now()
	prev := m.current

	m.cancelTimerLocked()
	if cfg.push {
		m.pushLocked(prev, now)
	}
	m.history.Push(ir.HistoryEntry{
		Context:  snapshot(prev),
		EndTime:  now,
		Duration: now.Sub(prev.StartTime),
	})

	vars := ir.Object{}
	if cfg.preserve {
		vars = prev.Variables.Clone()
	}
	for k, v := range data {
		vars[k] = v
	}

	m.current = ir.Context{
		ID:        m.ids.Generate(),
		Type:      ct,
		Variables: vars,
		StartTime: now,
		Metadata: ir.ContextMetadata{
			PreviousType:  prev.Type,
			Reason:        cfg.reason,
			UserInitiated: !cfg.automatic,
			Resumed:       cfg.resumed,
			PauseDuration: cfg.pause,
		},
	}
	m.stats.Transitions++
	m.armTimerLocked(cfg.timeout)

	m.observer.ObserveTransition(prev.Type, ct, !cfg.automatic)
	m.logger.Debug("context changed",
		"from", prev.Type, "to", ct, "id", m.current.ID,
		"reason", cfg.reason, "stack", len(m.stack))
	m.queue.Enqueue(ContextChanged{Previous: snapshot(prev), Current: snapshot(m.current)})
}

func (m *Manager) pushLocked(c ir.Context, now time.Time) {
	m.stack = append(m.stack, SuspendedContext{Context: snapshot(c), SuspendedAt: now})
	if over := len(m.stack) - m.stackLimit; over > 0 {
		m.logger.Debug("context stack full, dropping oldest", "dropped", m.stack[0].Context.Type)
		clear(m.stack[:over])
		m.stack = m.stack[over:]
	}
}

// armTimerLocked schedules the timeout of the current context. override
// replaces the table duration for this activation.
func (m *Manager) armTimerLocked(override *time.Duration) {
	d := m.tables.Timeouts[m.current.Type]
	if override != nil {
		d = *override
	}
	if d <= 0 {
		return
	}
	id := m.current.ID
	m.timerID = id
	m.timer = m.clock.AfterFunc(d, func() { m.onTimeout(id) })
}

func (m *Manager) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
		m.timerID = ""
	}
}

// onTimeout runs on the clock's goroutine. A timer whose context has been
// superseded finds a different current id and returns without effect.
func (m *Manager) onTimeout(id string) {
	m.mu.Lock()
	if m.closed || m.current.ID != id || m.timerID != id {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.timerID = ""

	expired := m.current
	next := m.tables.TimeoutTarget(expired.Type)
	elapsed := m.clock.Now().Sub(expired.StartTime)

	m.stats.TimeoutCount++
	m.observer.ObserveTimeout(expired.Type)
	m.logger.Info("context timed out", "context", expired.Type, "id", expired.ID, "elapsed", elapsed, "next", next)
	m.queue.Enqueue(ContextTimeout{Context: snapshot(expired), Elapsed: elapsed, Next: next})

	m.activateLocked(next, nil, setConfig{reason: ReasonTimeout, automatic: true})
	m.mu.Unlock()

	m.flush()
}

// Current returns a copy of the current context.
func (m *Manager) Current() ir.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshot(m.current)
}

// Stack returns copies of the suspended contexts, bottom first.
func (m *Manager) Stack() []SuspendedContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SuspendedContext, len(m.stack))
	for i, s := range m.stack {
		out[i] = SuspendedContext{Context: snapshot(s.Context), SuspendedAt: s.SuspendedAt}
	}
	return out
}

// History returns up to n superseded contexts, most recent first.
// n <= 0 returns all.
func (m *Manager) History(n int) []ir.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.Newest(n)
}

// Stats returns the activity counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Tables returns the tables in effect, timeout overrides applied.
func (m *Manager) Tables() Tables {
	return m.tables
}

// SuggestNextContexts ranks the contexts reachable from the current one
// by priority, highest first.
func (m *Manager) SuggestNextContexts() []Suggestion {
	m.mu.Lock()
	from := m.current.Type
	m.mu.Unlock()
	return m.tables.suggest(from)
}

// On registers h for notifications of the given kind.
func (m *Manager) On(kind Kind, h Handler) Subscription {
	return m.subs.add(kind, h)
}

// Off removes a registration. It reports whether sub was registered.
func (m *Manager) Off(sub Subscription) bool {
	return m.subs.remove(sub)
}

// Sweep removes global variables older than the TTL and returns how many
// were removed. Sweep emits no notifications and is safe to repeat.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	removed := 0
	for name, g := range m.globals {
		if now.Sub(g.SetAt) > m.globalTTL {
			delete(m.globals, name)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("expired global variables", "removed", removed, "remaining", len(m.globals))
	}
	return removed
}

// StartSweeper calls Sweep every interval until ctx is cancelled or the
// Manager is closed.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := m.clock.NewTicker(interval)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.done:
				return
			case <-ticker.C():
				m.Sweep()
			}
		}
	}()
}

// Close cancels the pending timeout and stops the sweeper. Subsequent
// state-changing calls return a CLOSED error.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.cancelTimerLocked()
	m.mu.Unlock()

	m.closeOnce.Do(func() { close(m.done) })
	m.wg.Wait()
	return nil
}

// flush delivers queued notifications. A handler that changes state
// enqueues further notifications and returns to the outer flush, which
// delivers them in order after the current one.
func (m *Manager) flush() {
	for {
		if !m.dispatchMu.TryLock() {
			return
		}
		for {
			n, ok := m.queue.TryDequeue()
			if !ok {
				break
			}
			m.deliver(n)
		}
		m.dispatchMu.Unlock()
		if m.queue.Len() == 0 {
			return
		}
	}
}

func (m *Manager) deliver(n Notification) {
	for _, h := range m.subs.forKind(n.Kind()) {
		m.invoke(h, n)
	}
}

func (m *Manager) invoke(h Handler, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("notification handler panicked", "kind", n.Kind(), "panic", fmt.Sprint(r))
		}
	}()
	h(n)
}

func snapshot(c ir.Context) ir.Context {
	return *c.Clone()
}

package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/vox/internal/compiler"
	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/matcher"
	"github.com/roach88/vox/internal/testutil"
	"github.com/roach88/vox/internal/workflow"
)

// Harness executes one scenario. It owns a matcher, a context manager on
// a fake clock, and the notifications collected for the current step.
type Harness struct {
	matcher *matcher.Matcher
	manager *workflow.Manager
	clock   *testutil.FakeClock
	logger  *slog.Logger

	pending []string
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger routes matcher and manager logs. Default: discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
// 1. Load and compile the pattern directory
// 2. Build a matcher and a context manager on a fake clock
// 3. Execute steps, checking expect clauses
// 4. Evaluate assertions against the trace and final state
//
// An error is returned only when the scenario cannot be set up; failed
// expectations are reported in the Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	h, err := newHarness(scenario, cfg.logger)
	if err != nil {
		return nil, err
	}
	defer h.manager.Close()

	result := NewResult()
	for i, step := range scenario.Steps {
		event, err := h.execute(i+1, step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		result.Trace = append(result.Trace, event)
		for _, msg := range checkExpect(step.Expect, event) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", event.Step, event.Op, msg))
		}
	}

	result.State = h.finalState()
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(s *Scenario, logger *slog.Logger) (*Harness, error) {
	res, errs := compiler.LoadPatterns(s.Patterns, compiler.LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, fmt.Errorf("load patterns: %w", errors.Join(errs...))
	}
	reg, err := res.Registry()
	if err != nil {
		return nil, fmt.Errorf("compile patterns: %w", err)
	}

	timeouts := make(map[ir.ContextType]time.Duration, len(res.Timeouts)+len(s.Timeouts))
	for ct, d := range res.Timeouts {
		timeouts[ct] = d
	}
	for name, raw := range s.Timeouts {
		ct, _ := ir.ParseContextType(name)
		d, _ := parseTimeout(raw)
		timeouts[ct] = d
	}

	m, err := matcher.New(reg, matcher.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	strict := true
	if s.Strict != nil {
		strict = *s.Strict
	}
	clk := testutil.NewFakeClock(time.Time{})
	h := &Harness{
		matcher: m,
		clock:   clk,
		logger:  logger,
	}
	h.manager = workflow.NewManager(
		workflow.WithClock(clk),
		workflow.WithIDGenerator(testutil.NewSequentialIDs("ctx")),
		workflow.WithLogger(logger),
		workflow.WithStrict(strict),
		workflow.WithTimeouts(timeouts),
	)
	for _, kind := range workflow.Kinds {
		h.manager.On(kind, func(n workflow.Notification) {
			h.pending = append(h.pending, string(n.Kind()))
		})
	}
	return h, nil
}

// execute runs one step. Only malformed step data is an error; workflow
// rejections are recorded in the event.
func (h *Harness) execute(n int, step Step) (TraceEvent, error) {
	h.pending = nil
	event := TraceEvent{Step: n, Op: step.Op()}

	var opErr error
	switch event.Op {
	case OpSay:
		event.Input = step.Say
		r := h.matcher.Match(step.Say, matcher.WithContext(h.manager.Current().Type))
		if r.Matched() {
			event.Intent = r.Intent
			event.MatchType = string(r.MatchType)
			event.Confidence = roundConfidence(r.Confidence)
			if len(r.Params) > 0 {
				event.Params = r.Params
			}
		}

	case OpSet, OpPush:
		target := step.Set
		if event.Op == OpPush {
			target = step.Push
		}
		ct, _ := ir.ParseContextType(target)
		event.Input = string(ct)
		data, err := toObject(step.Data)
		if err != nil {
			return event, fmt.Errorf("data: %w", err)
		}
		if event.Op == OpPush {
			opErr = h.manager.PushContext(ct, data)
		} else {
			var opts []workflow.SetOption
			if step.Force {
				opts = append(opts, workflow.Force())
			}
			opErr = h.manager.SetContext(ct, data, opts...)
		}

	case OpPop:
		opErr = h.manager.PopContext()

	case OpError:
		event.Input = step.Error
		var opts []workflow.ErrorOption
		if step.From != "" {
			ct, _ := ir.ParseContextType(step.From)
			opts = append(opts, workflow.FromContext(ct))
		}
		event.Escalated = h.manager.HandleError(errors.New(step.Error), opts...)

	case OpRecover:
		action, err := workflow.ParseRecoveryAction(step.Recover)
		if err != nil {
			return event, err
		}
		event.Input = string(action)
		opErr = h.manager.RecoverFromError(action)

	case OpAdvance:
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return event, err
		}
		event.Input = d.String()
		h.clock.Advance(d)

	case OpVar:
		event.Input = step.Var
		scope := workflow.Local
		if step.Global {
			scope = workflow.Global
		}
		if step.Remove {
			opErr = h.manager.RemoveVariable(step.Var, scope)
		} else {
			v, err := ir.FromAny(step.Value)
			if err != nil {
				return event, fmt.Errorf("value: %w", err)
			}
			opErr = h.manager.SetVariable(step.Var, v, scope)
		}

	default:
		return event, fmt.Errorf("no operation")
	}

	if opErr != nil {
		event.Error = string(workflow.CodeOf(opErr))
		h.logger.Debug("step rejected", "step", n, "op", event.Op, "error", opErr)
	}
	cur := h.manager.Current()
	event.Context = string(cur.Type)
	event.Depth = len(h.manager.Stack())
	event.Notifications = h.pending
	return event, nil
}

func (h *Harness) finalState() map[string]ir.Value {
	cur := h.manager.Current()
	stats := h.manager.Stats()
	state := map[string]ir.Value{
		"context":             ir.String(cur.Type),
		"depth":               ir.Int(len(h.manager.Stack())),
		"transitions":         ir.Int(stats.Transitions),
		"invalid_transitions": ir.Int(stats.InvalidTransitions),
		"timeouts":            ir.Int(stats.TimeoutCount),
		"errors":              ir.Int(stats.ErrorCount),
		"recoveries":          ir.Int(stats.Recoveries),
	}
	for name, v := range cur.Variables {
		state["var."+name] = v
	}
	for name, g := range h.manager.Globals() {
		state["global."+name] = g.Value
	}
	return state
}

func toObject(m map[string]any) (ir.Object, error) {
	if len(m) == 0 {
		return nil, nil
	}
	v, err := ir.FromAny(m)
	if err != nil {
		return nil, err
	}
	return v.(ir.Object), nil
}

// checkExpect compares a step's event with its expect clause.
func checkExpect(e *Expect, ev TraceEvent) []string {
	if e == nil {
		return nil
	}
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if e.NoMatch && ev.Intent != "" {
		fail("expected no match, got %s (%s %.3f)", ev.Intent, ev.MatchType, ev.Confidence)
	}
	if e.Intent != "" && ev.Intent != e.Intent {
		fail("expected intent %s, got %q", e.Intent, ev.Intent)
	}
	if e.Type != "" && ev.MatchType != e.Type {
		fail("expected match type %s, got %q", e.Type, ev.MatchType)
	}
	if e.MinConfidence > 0 && ev.Confidence < e.MinConfidence {
		fail("expected confidence >= %.3f, got %.3f", e.MinConfidence, ev.Confidence)
	}
	for _, name := range sortedKeys(e.Params) {
		want, err := ir.FromAny(e.Params[name])
		if err != nil {
			fail("param %s: %v", name, err)
			continue
		}
		got, ok := ev.Params[name]
		if !ok {
			fail("expected param %s = %s, missing", name, formatValue(want))
			continue
		}
		if !valuesEqual(want, got) {
			fail("expected param %s = %s, got %s", name, formatValue(want), formatValue(got))
		}
	}

	if e.Context != "" {
		want, _ := ir.ParseContextType(e.Context)
		if ev.Context != string(want) {
			fail("expected context %s, got %s", want, ev.Context)
		}
	}
	if e.Depth != nil && ev.Depth != *e.Depth {
		fail("expected stack depth %d, got %d", *e.Depth, ev.Depth)
	}
	if ev.Error != e.Error {
		switch {
		case e.Error == "":
			fail("unexpected error %s", ev.Error)
		case ev.Error == "":
			fail("expected error %s, step succeeded", e.Error)
		default:
			fail("expected error %s, got %s", e.Error, ev.Error)
		}
	}
	if e.Escalated != nil && ev.Escalated != *e.Escalated {
		fail("expected escalated=%v", *e.Escalated)
	}
	if e.Notifications != nil && !equalStrings(e.Notifications, ev.Notifications) {
		fail("expected notifications %v, got %v", e.Notifications, ev.Notifications)
	}
	return errs
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

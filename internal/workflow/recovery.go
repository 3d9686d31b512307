package workflow

import "github.com/roach88/vox/internal/ir"

// RecoveryAction is how error recovery ends.
type RecoveryAction string

const (
	// RecoverRetry resumes the interrupted context.
	RecoverRetry RecoveryAction = "retry"
	// RecoverAbort clears the stack and retry counters and returns to idle.
	RecoverAbort RecoveryAction = "abort"
	// RecoverFallback moves to Tables.Fallback, keeping retry counters.
	RecoverFallback RecoveryAction = "fallback"
)

// ParseRecoveryAction converts a string into a RecoveryAction.
func ParseRecoveryAction(s string) (RecoveryAction, error) {
	switch a := RecoveryAction(s); a {
	case RecoverRetry, RecoverAbort, RecoverFallback:
		return a, nil
	}
	return "", newError(ErrCodeUnknownAction, "unknown recovery action %q", s)
}

// ErrorOption modifies a HandleError call.
type ErrorOption func(*errorConfig)

type errorConfig struct {
	key    string
	origin ir.ContextType
}

// ErrorKey groups errors for the retry ceiling. Default: the error message.
func ErrorKey(key string) ErrorOption {
	return func(c *errorConfig) { c.key = key }
}

// FromContext names the context the error originated in.
// Default: the current context.
func FromContext(ct ir.ContextType) ErrorOption {
	return func(c *errorConfig) { c.origin = ct }
}

// HandleError records an operational error reported by the command layer.
// If the error originated in a critical context and its key has escalated
// fewer than the retry ceiling, the current context is stacked and the
// Manager enters error recovery. It reports whether that happened.
//
// Retry counters survive retry and fallback recoveries, so a key stops
// escalating after the ceiling however the workflow loops back. Only an
// abort resets them.
func (m *Manager) HandleError(err error, opts ...ErrorOption) bool {
	var cfg errorConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	m.mu.Lock()
	escalated := m.handleErrorLocked(err, cfg)
	m.mu.Unlock()

	m.flush()
	return escalated
}

func (m *Manager) handleErrorLocked(err error, cfg errorConfig) bool {
	if m.closed {
		return false
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	key := cfg.key
	if key == "" {
		key = msg
	}
	origin := cfg.origin
	if origin == "" {
		origin = m.current.Type
	}

	m.stats.ErrorCount++
	attempt := m.retries[key]
	escalate := m.tables.Critical[origin] &&
		attempt < m.maxRetries &&
		m.current.Type != ir.ContextErrorRecovery
	if escalate {
		m.retries[key] = attempt + 1
	}

	m.observer.ObserveError(origin, escalate)
	m.logger.Warn("operational error", "error", msg, "key", key, "origin", origin, "attempt", attempt+1, "escalated", escalate)
	m.queue.Enqueue(ContextError{Err: err, Key: key, Origin: origin, Attempt: attempt + 1, Escalated: escalate})

	if escalate {
		m.activateLocked(ir.ContextErrorRecovery, ir.NewObject(
			ir.P("error", ir.String(msg)),
			ir.P("error_key", ir.String(key)),
			ir.P("origin", ir.String(string(origin))),
		), setConfig{push: true, automatic: true, reason: ReasonError})
	}
	return escalate
}

// RecoverFromError leaves error recovery. Only valid while the current
// context is error_recovery.
func (m *Manager) RecoverFromError(action RecoveryAction) error {
	m.mu.Lock()
	err := m.recoverLocked(action)
	m.mu.Unlock()

	m.flush()
	return err
}

func (m *Manager) recoverLocked(action RecoveryAction) error {
	if m.closed {
		return errClosed
	}
	if m.current.Type != ir.ContextErrorRecovery {
		return newError(ErrCodeNotRecovering, "cannot %s: current context is %s", action, m.current.Type)
	}

	switch action {
	case RecoverRetry:
		if err := m.popLocked(string(RecoverRetry)); err != nil {
			return err
		}
	case RecoverAbort:
		clear(m.stack)
		m.stack = m.stack[:0]
		clear(m.retries)
		m.activateLocked(ir.ContextIdle, nil, setConfig{reason: ReasonAbort})
	case RecoverFallback:
		target := m.tables.Fallback
		if !target.Valid() {
			target = ir.ContextIdle
		}
		m.activateLocked(target, nil, setConfig{reason: ReasonFallback})
	default:
		return newError(ErrCodeUnknownAction, "unknown recovery action %q", action)
	}

	m.stats.Recoveries++
	m.observer.ObserveRecovery(action)
	m.logger.Info("recovered from error", "action", action, "context", m.current.Type)
	return nil
}

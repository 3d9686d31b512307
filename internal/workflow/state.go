package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/vox/internal/ir"
)

// ExportHistoryLimit is how many history entries a snapshot keeps.
const ExportHistoryLimit = 10

// State is a serializable snapshot of a Manager.
type State struct {
	Current    ir.Context                `json:"current"`
	Stack      []SuspendedContext        `json:"stack"`
	History    []ir.HistoryEntry         `json:"history"` // oldest first
	Globals    map[string]GlobalVariable `json:"globals"`
	Stats      Stats                     `json:"stats"`
	ExportedAt time.Time                 `json:"exported_at"`
}

type globalVariableJSON struct {
	Value json.RawMessage `json:"value"`
	SetAt time.Time       `json:"set_at"`
}

// MarshalJSON implements json.Marshaler.
func (g GlobalVariable) MarshalJSON() ([]byte, error) {
	raw, err := ir.MarshalValue(g.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(globalVariableJSON{Value: raw, SetAt: g.SetAt})
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *GlobalVariable) UnmarshalJSON(data []byte) error {
	var raw globalVariableJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.SetAt = raw.SetAt
	g.Value = nil
	if len(raw.Value) == 0 {
		return nil
	}
	v, err := ir.UnmarshalValue(raw.Value)
	if err != nil {
		return err
	}
	g.Value = v
	return nil
}

// Hash returns a content hash of the snapshot, ignoring ExportedAt.
func (s State) Hash() (string, error) {
	s.ExportedAt = time.Time{}
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	v, err := ir.UnmarshalValue(data)
	if err != nil {
		return "", err
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return "", fmt.Errorf("state encodes to %T, want object", v)
	}
	return ir.SnapshotHash(obj)
}

// ExportState snapshots the current context, the stack, the most recent
// history, global variables and statistics.
func (m *Manager) ExportState() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{
		Current:    snapshot(m.current),
		Stack:      make([]SuspendedContext, len(m.stack)),
		Globals:    make(map[string]GlobalVariable, len(m.globals)),
		Stats:      m.stats,
		ExportedAt: m.clock.Now(),
	}
	for i, sc := range m.stack {
		s.Stack[i] = SuspendedContext{Context: snapshot(sc.Context), SuspendedAt: sc.SuspendedAt}
	}
	hist := m.history.Oldest()
	if len(hist) > ExportHistoryLimit {
		hist = hist[len(hist)-ExportHistoryLimit:]
	}
	s.History = hist
	for k, v := range m.globals {
		s.Globals[k] = v
	}
	return s
}

// ImportState replaces the Manager's state with s. The current context
// and every stack entry must name a known context type and carry an id;
// otherwise the import is rejected and nothing changes. History entries
// and globals that are malformed are skipped. The imported context's
// timeout is armed afresh and a ContextChanged notification is emitted.
func (m *Manager) ImportState(s State) error {
	m.mu.Lock()
	err := m.importLocked(s)
	m.mu.Unlock()

	m.flush()
	return err
}

// ImportJSON decodes a snapshot produced by json.Marshal(ExportState())
// and imports it.
func (m *Manager) ImportJSON(data []byte) error {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return &Error{Code: ErrCodeInvalidState, Message: fmt.Sprintf("decoding snapshot: %v", err)}
	}
	return m.ImportState(s)
}

func (m *Manager) importLocked(s State) error {
	if m.closed {
		return errClosed
	}
	if err := checkContext("current", s.Current); err != nil {
		return err
	}
	for i, sc := range s.Stack {
		if err := checkContext(fmt.Sprintf("stack[%d]", i), sc.Context); err != nil {
			return err
		}
	}

	prev := m.current
	m.cancelTimerLocked()

	m.current = snapshot(s.Current)
	if m.current.Variables == nil {
		m.current.Variables = ir.Object{}
	}

	stack := s.Stack
	if over := len(stack) - m.stackLimit; over > 0 {
		stack = stack[over:]
	}
	m.stack = make([]SuspendedContext, len(stack))
	for i, sc := range stack {
		m.stack[i] = SuspendedContext{Context: snapshot(sc.Context), SuspendedAt: sc.SuspendedAt}
	}

	m.history.Clear()
	skipped := 0
	for _, h := range s.History {
		if !h.Context.Type.Valid() {
			skipped++
			continue
		}
		h.Context = snapshot(h.Context)
		m.history.Push(h)
	}

	m.globals = make(map[string]GlobalVariable, len(s.Globals))
	for name, g := range s.Globals {
		if name == "" || g.Value == nil {
			skipped++
			continue
		}
		m.globals[name] = g
	}

	m.stats = s.Stats
	clear(m.retries)
	m.armTimerLocked(nil)

	m.logger.Info("state imported",
		"context", m.current.Type, "id", m.current.ID,
		"stack", len(m.stack), "globals", len(m.globals), "skipped", skipped)
	m.queue.Enqueue(ContextChanged{Previous: snapshot(prev), Current: snapshot(m.current)})
	return nil
}

func checkContext(field string, c ir.Context) error {
	if !c.Type.Valid() {
		return newError(ErrCodeInvalidState, "%s: unknown context type %q", field, c.Type)
	}
	if c.ID == "" {
		return newError(ErrCodeInvalidState, "%s: missing id", field)
	}
	return nil
}

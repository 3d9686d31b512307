package workflow

import (
	"time"

	"github.com/roach88/vox/internal/ir"
)

// Scope selects where a variable lives.
type Scope int

const (
	// Local variables belong to the current context and are dropped with it.
	Local Scope = iota
	// Global variables outlive contexts until Sweep expires them.
	Global
)

func (s Scope) String() string {
	if s == Global {
		return "global"
	}
	return "local"
}

// GlobalVariable is a global value and when it was last set.
type GlobalVariable struct {
	Value ir.Value
	SetAt time.Time
}

// SetVariable stores v under name in the given scope.
func (m *Manager) SetVariable(name string, v ir.Value, scope Scope) error {
	m.mu.Lock()
	err := m.setVariableLocked(name, v, scope)
	m.mu.Unlock()

	m.flush()
	return err
}

func (m *Manager) setVariableLocked(name string, v ir.Value, scope Scope) error {
	if m.closed {
		return errClosed
	}
	if name == "" {
		return newError(ErrCodeInvalidVariable, "variable name is empty")
	}
	if v == nil {
		return newError(ErrCodeInvalidVariable, "variable %q has no value", name)
	}

	var prev ir.Value
	if scope == Global {
		if g, ok := m.globals[name]; ok {
			prev = g.Value
		}
		m.globals[name] = GlobalVariable{Value: v, SetAt: m.clock.Now()}
	} else {
		if m.current.Variables == nil {
			m.current.Variables = ir.Object{}
		}
		prev = m.current.Variables[name]
		m.current.Variables[name] = v
	}

	m.queue.Enqueue(VariableChanged{
		Name:      name,
		Value:     v,
		Previous:  prev,
		Global:    scope == Global,
		ContextID: m.current.ID,
	})
	return nil
}

// GetVariable looks name up. Local lookups fall through to globals when
// the current context has no such variable; Global lookups read globals
// only.
func (m *Manager) GetVariable(name string, scope Scope) (ir.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if scope == Local {
		if v, ok := m.current.Variables[name]; ok {
			return v, true
		}
	}
	g, ok := m.globals[name]
	if !ok {
		return nil, false
	}
	return g.Value, true
}

// HasVariable reports whether GetVariable would find name.
func (m *Manager) HasVariable(name string, scope Scope) bool {
	_, ok := m.GetVariable(name, scope)
	return ok
}

// RemoveVariable deletes name from exactly the given scope.
func (m *Manager) RemoveVariable(name string, scope Scope) error {
	m.mu.Lock()
	err := m.removeVariableLocked(name, scope)
	m.mu.Unlock()

	m.flush()
	return err
}

func (m *Manager) removeVariableLocked(name string, scope Scope) error {
	if m.closed {
		return errClosed
	}

	var prev ir.Value
	if scope == Global {
		g, ok := m.globals[name]
		if !ok {
			return newError(ErrCodeVariableNotFound, "no global variable %q", name)
		}
		prev = g.Value
		delete(m.globals, name)
	} else {
		v, ok := m.current.Variables[name]
		if !ok {
			return newError(ErrCodeVariableNotFound, "no variable %q in %s", name, m.current.Type)
		}
		prev = v
		delete(m.current.Variables, name)
	}

	m.queue.Enqueue(VariableRemoved{
		Name:      name,
		Previous:  prev,
		Global:    scope == Global,
		ContextID: m.current.ID,
	})
	return nil
}

// Globals returns a copy of the global variables.
func (m *Manager) Globals() map[string]GlobalVariable {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]GlobalVariable, len(m.globals))
	for k, v := range m.globals {
		out[k] = v
	}
	return out
}

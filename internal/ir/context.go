package ir

import (
	"fmt"
	"time"
)

// ContextType is one state of the operational workflow.
type ContextType string

const (
	ContextIdle             ContextType = "idle"
	ContextOrderCreation    ContextType = "order_creation"
	ContextProductSelection ContextType = "product_selection"
	ContextCartManagement   ContextType = "cart_management"
	ContextPayment          ContextType = "payment"
	ContextReservation      ContextType = "reservation"
	ContextMenuBrowsing     ContextType = "menu_browsing"
	ContextSearch           ContextType = "search"
	ContextNavigation       ContextType = "navigation"
	ContextHelp             ContextType = "help"
	ContextSettings         ContextType = "settings"
	ContextConfirmation     ContextType = "confirmation"
	ContextAdmin            ContextType = "admin"
	ContextErrorRecovery    ContextType = "error_recovery"
)

// ContextTypes lists every context type in declaration order.
var ContextTypes = []ContextType{
	ContextIdle,
	ContextOrderCreation,
	ContextProductSelection,
	ContextCartManagement,
	ContextPayment,
	ContextReservation,
	ContextMenuBrowsing,
	ContextSearch,
	ContextNavigation,
	ContextHelp,
	ContextSettings,
	ContextConfirmation,
	ContextAdmin,
	ContextErrorRecovery,
}

// Valid reports whether c is one of the enumerated context types.
func (c ContextType) Valid() bool {
	for _, t := range ContextTypes {
		if t == c {
			return true
		}
	}
	return false
}

// ParseContextType converts a configuration or CLI string into a
// ContextType. Hyphenated spellings ("cart-management") are accepted.
func ParseContextType(s string) (ContextType, error) {
	b := []byte(s)
	for i := range b {
		if b[i] == '-' {
			b[i] = '_'
		}
	}
	c := ContextType(b)
	if !c.Valid() {
		return "", fmt.Errorf("unknown context type %q", s)
	}
	return c, nil
}

// ContextMetadata records how a context was entered.
type ContextMetadata struct {
	PreviousType  ContextType   `json:"previous_type,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	UserInitiated bool          `json:"user_initiated"`
	Resumed       bool          `json:"resumed,omitempty"`
	PauseDuration time.Duration `json:"pause_duration,omitempty"`
}

// Context is one activation of a context type. A new Context with a fresh
// ID is created on every transition; the superseded one moves to history.
type Context struct {
	ID        string          `json:"id"`
	Type      ContextType     `json:"type"`
	Variables Object          `json:"variables"`
	StartTime time.Time       `json:"start_time"`
	Metadata  ContextMetadata `json:"metadata"`
}

// Clone returns a copy whose Variables map is independent of the original.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := *c
	out.Variables = c.Variables.Clone()
	return &out
}

// HistoryEntry is a superseded context and how long it was current.
type HistoryEntry struct {
	Context  Context       `json:"context"`
	EndTime  time.Time     `json:"end_time"`
	Duration time.Duration `json:"duration"`
}

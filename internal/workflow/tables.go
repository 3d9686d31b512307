package workflow

import (
	"sort"
	"time"

	"github.com/roach88/vox/internal/ir"
)

// Tables is the static configuration of the state machine. A missing
// entry means: priority 0, no timeout, no outgoing transitions, timeout
// falls back to idle, default suggestion reason.
type Tables struct {
	Priority           map[ir.ContextType]int
	Timeouts           map[ir.ContextType]time.Duration
	Transitions        map[ir.ContextType][]ir.ContextType
	TimeoutTransitions map[ir.ContextType]ir.ContextType
	Reasons            map[ir.ContextType]string

	// Critical contexts escalate operational errors into error recovery.
	Critical map[ir.ContextType]bool

	// Fallback is where the "fallback" recovery action lands.
	Fallback ir.ContextType
}

// DefaultReason annotates suggestions without an entry in Tables.Reasons.
const DefaultReason = "natural progression"

// DefaultTables returns the restaurant workflow.
func DefaultTables() Tables {
	return Tables{
		Priority: map[ir.ContextType]int{
			ir.ContextIdle:             1,
			ir.ContextOrderCreation:    8,
			ir.ContextProductSelection: 7,
			ir.ContextCartManagement:   7,
			ir.ContextPayment:          9,
			ir.ContextReservation:      6,
			ir.ContextMenuBrowsing:     5,
			ir.ContextSearch:           4,
			ir.ContextNavigation:       3,
			ir.ContextHelp:             2,
			ir.ContextSettings:         2,
			ir.ContextConfirmation:     8,
			ir.ContextAdmin:            3,
			ir.ContextErrorRecovery:    10,
		},
		Timeouts: map[ir.ContextType]time.Duration{
			ir.ContextOrderCreation:    5 * time.Minute,
			ir.ContextProductSelection: 3 * time.Minute,
			ir.ContextCartManagement:   3 * time.Minute,
			ir.ContextPayment:          5 * time.Minute,
			ir.ContextReservation:      5 * time.Minute,
			ir.ContextMenuBrowsing:     2 * time.Minute,
			ir.ContextSearch:           2 * time.Minute,
			ir.ContextNavigation:       1 * time.Minute,
			ir.ContextHelp:             2 * time.Minute,
			ir.ContextSettings:         5 * time.Minute,
			ir.ContextConfirmation:     1 * time.Minute,
			ir.ContextAdmin:            10 * time.Minute,
			ir.ContextErrorRecovery:    2 * time.Minute,
		},
		Transitions: map[ir.ContextType][]ir.ContextType{
			ir.ContextIdle: {
				ir.ContextOrderCreation, ir.ContextMenuBrowsing, ir.ContextSearch, ir.ContextReservation,
				ir.ContextNavigation, ir.ContextHelp, ir.ContextSettings, ir.ContextAdmin,
			},
			ir.ContextOrderCreation: {
				ir.ContextProductSelection, ir.ContextMenuBrowsing, ir.ContextSearch,
				ir.ContextCartManagement, ir.ContextIdle, ir.ContextHelp,
			},
			ir.ContextProductSelection: {
				ir.ContextCartManagement, ir.ContextMenuBrowsing, ir.ContextSearch,
				ir.ContextOrderCreation, ir.ContextIdle, ir.ContextHelp,
			},
			ir.ContextCartManagement: {
				ir.ContextPayment, ir.ContextProductSelection, ir.ContextMenuBrowsing,
				ir.ContextOrderCreation, ir.ContextConfirmation, ir.ContextIdle, ir.ContextHelp,
			},
			ir.ContextPayment: {
				ir.ContextConfirmation, ir.ContextCartManagement, ir.ContextIdle, ir.ContextHelp,
			},
			ir.ContextReservation: {
				ir.ContextConfirmation, ir.ContextMenuBrowsing, ir.ContextIdle, ir.ContextHelp,
			},
			ir.ContextMenuBrowsing: {
				ir.ContextProductSelection, ir.ContextOrderCreation, ir.ContextSearch,
				ir.ContextCartManagement, ir.ContextIdle, ir.ContextHelp,
			},
			ir.ContextSearch: {
				ir.ContextProductSelection, ir.ContextMenuBrowsing, ir.ContextOrderCreation,
				ir.ContextIdle, ir.ContextHelp,
			},
			ir.ContextNavigation: {
				ir.ContextIdle, ir.ContextMenuBrowsing, ir.ContextOrderCreation, ir.ContextReservation,
				ir.ContextSearch, ir.ContextSettings, ir.ContextAdmin, ir.ContextHelp,
			},
			ir.ContextHelp: {
				ir.ContextIdle, ir.ContextNavigation, ir.ContextMenuBrowsing,
			},
			ir.ContextSettings: {
				ir.ContextIdle, ir.ContextAdmin, ir.ContextNavigation, ir.ContextHelp,
			},
			ir.ContextConfirmation: {
				ir.ContextIdle, ir.ContextOrderCreation, ir.ContextPayment,
				ir.ContextReservation, ir.ContextCartManagement,
			},
			ir.ContextAdmin: {
				ir.ContextIdle, ir.ContextSettings, ir.ContextNavigation, ir.ContextHelp,
			},
			ir.ContextErrorRecovery: {
				ir.ContextIdle, ir.ContextMenuBrowsing, ir.ContextHelp,
			},
		},
		TimeoutTransitions: map[ir.ContextType]ir.ContextType{
			ir.ContextPayment:          ir.ContextCartManagement,
			ir.ContextProductSelection: ir.ContextMenuBrowsing,
			ir.ContextSearch:           ir.ContextMenuBrowsing,
			ir.ContextConfirmation:     ir.ContextIdle,
		},
		Reasons: map[ir.ContextType]string{
			ir.ContextOrderCreation:    "start a new order",
			ir.ContextProductSelection: "add products to the order",
			ir.ContextCartManagement:   "review the cart",
			ir.ContextPayment:          "proceed to payment",
			ir.ContextConfirmation:     "confirm the current step",
			ir.ContextMenuBrowsing:     "browse the menu",
			ir.ContextSearch:           "search for a product",
			ir.ContextReservation:      "manage reservations",
			ir.ContextHelp:             "get help",
			ir.ContextIdle:             "finish and return to idle",
		},
		Critical: map[ir.ContextType]bool{
			ir.ContextPayment:       true,
			ir.ContextOrderCreation: true,
			ir.ContextReservation:   true,
		},
		Fallback: ir.ContextMenuBrowsing,
	}
}

// Allowed reports whether from -> to is an edge of the transition table.
func (t Tables) Allowed(from, to ir.ContextType) bool {
	for _, c := range t.Transitions[from] {
		if c == to {
			return true
		}
	}
	return false
}

// TimeoutTarget is where a timed-out context goes: its table entry, or idle.
func (t Tables) TimeoutTarget(from ir.ContextType) ir.ContextType {
	if next, ok := t.TimeoutTransitions[from]; ok {
		return next
	}
	return ir.ContextIdle
}

// Reason returns the suggestion reason for entering to.
func (t Tables) Reason(to ir.ContextType) string {
	if r, ok := t.Reasons[to]; ok {
		return r
	}
	return DefaultReason
}

// WithTimeouts returns a copy of t whose timeout table has overrides
// applied. A zero duration disables the timeout for that context.
func (t Tables) WithTimeouts(overrides map[ir.ContextType]time.Duration) Tables {
	merged := make(map[ir.ContextType]time.Duration, len(t.Timeouts)+len(overrides))
	for k, v := range t.Timeouts {
		merged[k] = v
	}
	for k, v := range overrides {
		if v <= 0 {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	t.Timeouts = merged
	return t
}

// Suggestion is one likely next context.
type Suggestion struct {
	Type     ir.ContextType `json:"type"`
	Priority int            `json:"priority"`
	Reason   string         `json:"reason"`
}

// suggest ranks the allowed targets from `from` by priority, highest
// first; ties keep table order.
func (t Tables) suggest(from ir.ContextType) []Suggestion {
	targets := t.Transitions[from]
	out := make([]Suggestion, 0, len(targets))
	for _, to := range targets {
		out = append(out, Suggestion{Type: to, Priority: t.Priority[to], Reason: t.Reason(to)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// Package workflow implements the context manager: a state machine over
// the fourteen operational contexts of a restaurant terminal (idle, order
// creation, payment, ...), with a suspension stack, layered variables,
// per-activation timeouts, an error-recovery sub-flow and typed
// notifications.
//
// # Transitions
//
// A Manager starts in idle. SetContext moves to a new context if the
// transition table allows the edge (strict mode) or Force is given. Every
// accepted transition creates a new ir.Context with a fresh id, moves the
// superseded one into bounded history and, unless NoStack is given,
// pushes it onto the suspension stack. PopContext resumes the top of the
// stack, or idle when the stack is empty.
//
// # Timeouts
//
// Each activation arms at most one timer on the injected clock.Clock. The
// timer carries the id of the context that armed it and does nothing if
// that context is no longer current when it fires. A firing timer emits
// ContextTimeout and moves to the table's timeout target (idle when none
// is configured), bypassing strict mode.
//
// # Notifications
//
// Handlers registered with On receive typed notifications in registration
// order. Delivery happens after the Manager's lock is released; a handler
// may call back into the Manager, and the notifications that call
// produces are delivered once the current one has reached every handler.
// A panicking handler is recovered and logged.
//
// Thread-safety: all Manager methods are safe for concurrent use.
package workflow

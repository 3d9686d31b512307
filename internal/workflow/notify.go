package workflow

import (
	"sync"
	"time"

	"github.com/roach88/vox/internal/ir"
)

// Kind names a notification type for subscription.
type Kind string

const (
	KindContextChanged  Kind = "context_changed"
	KindContextTimeout  Kind = "context_timeout"
	KindContextError    Kind = "context_error"
	KindVariableChanged Kind = "variable_changed"
	KindVariableRemoved Kind = "variable_removed"
)

// Kinds lists every notification kind.
var Kinds = []Kind{
	KindContextChanged,
	KindContextTimeout,
	KindContextError,
	KindVariableChanged,
	KindVariableRemoved,
}

// Notification is one of ContextChanged, ContextTimeout, ContextError,
// VariableChanged or VariableRemoved.
type Notification interface {
	Kind() Kind
}

// ContextChanged is delivered after every accepted transition.
type ContextChanged struct {
	Previous ir.Context
	Current  ir.Context
}

// ContextTimeout is delivered when a context's timer fires while it is
// still current, before the automatic transition to Next.
type ContextTimeout struct {
	Context ir.Context
	Elapsed time.Duration
	Next    ir.ContextType
}

// ContextError is delivered for every HandleError call.
type ContextError struct {
	Err       error
	Key       string
	Origin    ir.ContextType
	Attempt   int
	Escalated bool
}

// VariableChanged is delivered when a variable is set.
// Previous is nil when the variable did not exist.
type VariableChanged struct {
	Name      string
	Value     ir.Value
	Previous  ir.Value
	Global    bool
	ContextID string
}

// VariableRemoved is delivered when a variable is removed explicitly.
type VariableRemoved struct {
	Name      string
	Previous  ir.Value
	Global    bool
	ContextID string
}

func (ContextChanged) Kind() Kind  { return KindContextChanged }
func (ContextTimeout) Kind() Kind  { return KindContextTimeout }
func (ContextError) Kind() Kind    { return KindContextError }
func (VariableChanged) Kind() Kind { return KindVariableChanged }
func (VariableRemoved) Kind() Kind { return KindVariableRemoved }

// Handler receives notifications. A panicking handler is recovered and
// logged; delivery continues with the next subscriber.
type Handler func(Notification)

// Subscription identifies one On registration.
type Subscription uint64

type subscriber struct {
	id      Subscription
	kind    Kind
	handler Handler
}

// subscribers is the registration-ordered handler list.
type subscribers struct {
	mu   sync.Mutex
	next Subscription
	list []subscriber
}

func (s *subscribers) add(kind Kind, h Handler) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.list = append(s.list, subscriber{id: s.next, kind: kind, handler: h})
	return s.next
}

func (s *subscribers) remove(id Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.list {
		if sub.id == id {
			s.list = append(s.list[:i:i], s.list[i+1:]...)
			return true
		}
	}
	return false
}

// forKind snapshots the handlers for kind in registration order.
func (s *subscribers) forKind(kind Kind) []Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Handler
	for _, sub := range s.list {
		if sub.kind == kind {
			out = append(out, sub.handler)
		}
	}
	return out
}

// notificationQueue is a thread-safe FIFO of pending notifications.
//
// State changes enqueue while holding the Manager lock; delivery happens
// after the lock is released, so handlers may call back into the Manager.
type notificationQueue struct {
	mu      sync.Mutex
	pending []Notification
}

func newNotificationQueue() *notificationQueue {
	return &notificationQueue{pending: make([]Notification, 0, 8)}
}

// Enqueue adds a notification to the back of the queue.
func (q *notificationQueue) Enqueue(n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, n)
}

// TryDequeue removes the front notification without blocking.
func (q *notificationQueue) TryDequeue() (Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, false
	}
	n := q.pending[0]
	q.pending[0] = nil // release for GC
	if len(q.pending) == 1 {
		q.pending = q.pending[:0]
	} else {
		q.pending = q.pending[1:]
	}
	return n, true
}

// Len returns the current queue length.
func (q *notificationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

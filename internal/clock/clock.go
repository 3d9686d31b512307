// Package clock abstracts wall time and timers so that workflow timeouts
// and periodic sweeps can be driven deterministically in tests.
//
// Production code uses Real. Tests use testutil.FakeClock, whose Advance
// fires due timers synchronously on the calling goroutine.
package clock

import "time"

// Clock is the time source for timeouts and sweeps.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f once, on its own goroutine, after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer

	// NewTicker delivers ticks every d until stopped.
	NewTicker(d time.Duration) Ticker
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call from firing. It reports whether the call was
	// still pending.
	Stop() bool
}

// Ticker delivers periodic ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// NewTicker wraps time.NewTicker.
func (Real) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time {
	return r.t.C
}

func (r realTicker) Stop() {
	r.t.Stop()
}

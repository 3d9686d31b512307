package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/vox/internal/clock"
)

// Epoch is the default start time of a FakeClock.
var Epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// FakeClock is a manually advanced clock.Clock for tests.
//
// Time only moves on Advance. Timers due within the advanced span fire in
// deadline order, synchronously on the goroutine calling Advance, with Now
// set to each timer's deadline while it runs. Tickers get a non-blocking
// send per elapsed period (a slow reader sees coalesced ticks, like
// time.Ticker).
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	timers  []*fakeTimer
	tickers []*fakeTicker
}

var _ clock.Clock = (*FakeClock)(nil)

// NewFakeClock creates a clock at start, or at Epoch if start is zero.
func NewFakeClock(start time.Time) *FakeClock {
	if start.IsZero() {
		start = Epoch
	}
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f at Now()+d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, when: c.now.Add(d), seq: c.seq, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// NewTicker creates a ticker with period d.
func (c *FakeClock) NewTicker(d time.Duration) clock.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{clock: c, period: d, next: c.now.Add(d), ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves time forward by d, firing every timer that falls due.
// Timers scheduled by a firing timer are honored if they fall within d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		t := c.nextDueLocked(target)
		if t == nil {
			break
		}
		c.now = t.when
		c.mu.Unlock()
		t.fn()
		c.mu.Lock()
	}
	c.now = target

	for _, tk := range c.tickers {
		for !tk.next.After(target) {
			select {
			case tk.ch <- tk.next:
			default:
			}
			tk.next = tk.next.Add(tk.period)
		}
	}
	c.mu.Unlock()
}

// PendingTimers returns the number of timers that have neither fired nor
// been stopped.
func (c *FakeClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// nextDueLocked removes and returns the earliest timer due at or before
// target. Caller holds c.mu.
func (c *FakeClock) nextDueLocked(target time.Time) *fakeTimer {
	if len(c.timers) == 0 {
		return nil
	}
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].when.Equal(c.timers[j].when) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].when.Before(c.timers[j].when)
	})
	t := c.timers[0]
	if t.when.After(target) {
		return nil
	}
	c.timers = c.timers[1:]
	return t
}

func (c *FakeClock) removeTimer(t *fakeTimer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, pending := range c.timers {
		if pending == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

func (c *FakeClock) removeTicker(t *fakeTicker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, tk := range c.tickers {
		if tk == t {
			c.tickers = append(c.tickers[:i], c.tickers[i+1:]...)
			return
		}
	}
}

type fakeTimer struct {
	clock *FakeClock
	when  time.Time
	seq   int
	fn    func()
}

func (t *fakeTimer) Stop() bool {
	return t.clock.removeTimer(t)
}

type fakeTicker struct {
	clock  *FakeClock
	period time.Duration
	next   time.Time
	ch     chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {
	t.clock.removeTicker(t)
}

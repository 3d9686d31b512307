package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReal_AfterFuncFires(t *testing.T) {
	done := make(chan struct{})
	Real{}.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestReal_StopPreventsFiring(t *testing.T) {
	fired := make(chan struct{}, 1)
	timer := Real{}.AfterFunc(time.Hour, func() { fired <- struct{}{} })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports the call was no longer pending")
	assert.Empty(t, fired)
}

func TestReal_Ticker(t *testing.T) {
	ticker := Real{}.NewTicker(time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(2 * time.Second):
		t.Fatal("no tick")
	}
}

func TestReal_Now(t *testing.T) {
	before := time.Now()
	now := Real{}.Now()
	assert.False(t, now.Before(before))
}

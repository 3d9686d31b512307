package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/vox/internal/ir"
)

func TestDefaultTables_Complete(t *testing.T) {
	tables := DefaultTables()

	for _, ct := range ir.ContextTypes {
		assert.Contains(t, tables.Priority, ct)
		assert.Contains(t, tables.Transitions, ct)
		for _, to := range tables.Transitions[ct] {
			assert.True(t, to.Valid(), "%s -> %s", ct, to)
			assert.NotEqual(t, ct, to, "self edge on %s", ct)
		}
		assert.True(t, tables.TimeoutTarget(ct).Valid())
	}
	assert.NotContains(t, tables.Timeouts, ir.ContextIdle)
	assert.Equal(t, 3*time.Minute, tables.Timeouts[ir.ContextCartManagement])
	assert.False(t, tables.Allowed(ir.ContextIdle, ir.ContextPayment))
	assert.True(t, tables.Fallback.Valid())
}

func TestTables_TimeoutTarget(t *testing.T) {
	tables := DefaultTables()

	assert.Equal(t, ir.ContextCartManagement, tables.TimeoutTarget(ir.ContextPayment))
	assert.Equal(t, ir.ContextMenuBrowsing, tables.TimeoutTarget(ir.ContextProductSelection))
	assert.Equal(t, ir.ContextIdle, tables.TimeoutTarget(ir.ContextCartManagement))
}

func TestTables_WithTimeouts(t *testing.T) {
	base := DefaultTables()

	got := base.WithTimeouts(map[ir.ContextType]time.Duration{
		ir.ContextPayment: 0,
		ir.ContextIdle:    time.Hour,
	})

	assert.NotContains(t, got.Timeouts, ir.ContextPayment)
	assert.Equal(t, time.Hour, got.Timeouts[ir.ContextIdle])
	assert.Equal(t, 5*time.Minute, base.Timeouts[ir.ContextPayment], "base is not modified")
}

func TestTables_Reason(t *testing.T) {
	tables := DefaultTables()

	assert.Equal(t, "proceed to payment", tables.Reason(ir.ContextPayment))
	assert.Equal(t, DefaultReason, tables.Reason(ir.ContextSettings))
}

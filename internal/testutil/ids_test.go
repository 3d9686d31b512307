package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDs_InOrder(t *testing.T) {
	gen := NewFixedIDs("ctx-1", "ctx-2")
	assert.Equal(t, "ctx-1", gen.Generate())
	assert.Equal(t, "ctx-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestSequentialIDs(t *testing.T) {
	gen := NewSequentialIDs("")
	assert.Equal(t, "ctx-1", gen.Generate())
	assert.Equal(t, "ctx-2", gen.Generate())

	named := NewSequentialIDs("step")
	assert.Equal(t, "step-1", named.Generate())
}

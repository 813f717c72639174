package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPair_Canonical(t *testing.T) {
	ab := NewPair("a", "b")
	ba := NewPair("b", "a")

	assert.Equal(t, ab, ba)
	assert.Equal(t, "a", ab.Low)
	assert.Equal(t, "b", ab.High)
	assert.Equal(t, "a:b", ab.Key())
}

func TestPair_OtherAndContains(t *testing.T) {
	p := NewPair("u2", "u1")

	assert.True(t, p.Contains("u1"))
	assert.True(t, p.Contains("u2"))
	assert.False(t, p.Contains("u3"))
	assert.Equal(t, "u2", p.Other("u1"))
	assert.Equal(t, "u1", p.Other("u2"))
}

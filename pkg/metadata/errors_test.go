package metadata

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("upload failed: %w", NewQuotaExceededError("u1", 900, 200, 1000))

	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrQuotaExceeded, code)
	assert.True(t, IsCode(err, ErrQuotaExceeded))
	assert.Equal(t, "upload failed: user u1: 900 + 200 bytes exceeds quota of 1000 bytes", err.Error())
}

func TestCodeOf_PlainError(t *testing.T) {
	_, ok := CodeOf(errors.New("disk on fire"))
	assert.False(t, ok)
	assert.False(t, IsNotFound(errors.New("disk on fire")))
}

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "not_found", ErrNotFound.String())
	assert.Equal(t, "self_reference", ErrSelfReference.String())
	assert.Equal(t, "unknown", ErrorCode(99).String())
}

func TestNewError(t *testing.T) {
	err := NewError(ErrBlocked, "user", "%s has blocked you", "bob")
	assert.Equal(t, "user: bob has blocked you", err.Error())
	assert.True(t, IsCode(err, ErrBlocked))
}

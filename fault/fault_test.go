package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientErrorWrapsSentinel(t *testing.T) {
	err := NewClientError("column already exists", ErrUniqueViolation)
	wrapped := fmt.Errorf("add column: %w", err)

	assert.True(t, errors.Is(wrapped, ErrUniqueViolation))
	assert.True(t, IsClientError(wrapped))
	assert.Equal(t, "column already exists", Message(wrapped, "fallback"))
	assert.Equal(t, "[ClientError] column already exists: unique violation", err.Error())
}

func TestInternalErrorHidesMessage(t *testing.T) {
	err := NewInternalError("db exploded", errors.New("disk full"))

	assert.False(t, IsClientError(err))
	assert.Equal(t, "fallback", Message(err, "fallback"))
	assert.Equal(t, "fallback", Message(ErrNotFound, "fallback"))
}

func TestClientFormatsMessage(t *testing.T) {
	err := Client("form %q has no questions", "Health")
	assert.Equal(t, `form "Health" has no questions`, Message(err, ""))
}

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithMessageKeepsSentinel(t *testing.T) {
	err := WithMessage(ErrInvalid, "username is required")
	require.ErrorIs(t, err, ErrInvalid)
	require.Equal(t, "username is required", err.Error())

	wrapped := fmt.Errorf("register: %w", err)
	msg, ok := Message(wrapped)
	require.True(t, ok)
	require.Equal(t, "username is required", msg)
}

func TestMessageAbsent(t *testing.T) {
	_, ok := Message(ErrNotFound)
	require.False(t, ok)
	_, ok = Message(errors.New("boom"))
	require.False(t, ok)
}

func TestHelpers(t *testing.T) {
	require.True(t, IsNotFound(fmt.Errorf("x: %w", ErrNotFound)))
	require.True(t, IsConflict(ErrConflict))
	require.False(t, IsConflict(ErrNotFound))
}

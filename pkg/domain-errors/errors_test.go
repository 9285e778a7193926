package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodes(t *testing.T) {
	t.Run("HasCode sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("load: %w", New(CodeNotFound, "user not found"))
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
		assert.Equal(t, CodeNotFound, CodeOf(err))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.False(t, HasCode(nil, CodeInternal))
	})

	t.Run("Wrap keeps the cause reachable", func(t *testing.T) {
		cause := errors.New("db down")
		err := Wrap(cause, CodeInternal, "failed to load user")
		require.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "db down")
		assert.Nil(t, Wrap(nil, CodeInternal, "unused"))
	})

	t.Run("errors.Is compares code and message", func(t *testing.T) {
		err := New(CodeUnauthorized, "current password is incorrect")
		require.ErrorIs(t, err, New(CodeUnauthorized, "current password is incorrect"))
		require.ErrorIs(t, err, &Error{Code: CodeUnauthorized})
		require.NotErrorIs(t, err, New(CodeUnauthorized, "other"))
	})
}

func TestNewValidation(t *testing.T) {
	err := NewValidation([]FieldError{
		{Field: "fullName", Message: "full name is required"},
		{Field: "phone", Message: "phone must be in E.164 format"},
	})

	require.True(t, HasCode(err, CodeValidation))
	fields := FieldsOf(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "phone", fields[1].Field)
	assert.Contains(t, err.Error(), "full name is required; phone must be in E.164 format")
}

package hasher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	dErrors "usermgmt/pkg/domain-errors"
)

func TestBcrypt(t *testing.T) {
	h := NewBcrypt(WithCost(bcrypt.MinCost))

	hash, err := h.Hash("Str0ng!Passw0rd")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ng!Passw0rd", hash)

	t.Run("matching password verifies", func(t *testing.T) {
		ok, err := h.Verify("Str0ng!Passw0rd", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("wrong password is a mismatch, not an error", func(t *testing.T) {
		ok, err := h.Verify("wrong", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed hash is an error", func(t *testing.T) {
		_, err := h.Verify("Str0ng!Passw0rd", "not-a-bcrypt-hash")
		assert.Error(t, err)
	})

	t.Run("empty password is rejected", func(t *testing.T) {
		_, err := h.Hash("")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("overlong password is a validation error", func(t *testing.T) {
		_, err := h.Hash(strings.Repeat("a", 73))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestWithCostIgnoresOutOfRange(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcrypt(WithCost(1)).cost)
	assert.Equal(t, bcrypt.MinCost, NewBcrypt(WithCost(bcrypt.MinCost)).cost)
}

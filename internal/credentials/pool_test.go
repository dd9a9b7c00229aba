package credentials

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolRejectsEmptySet(t *testing.T) {
	_, err := NewPool(nil)
	require.ErrorIs(t, err, ErrNoCredentials)

	_, err = NewPool([]string{"", "   "})
	require.ErrorIs(t, err, ErrNoCredentials)
}

func TestPickReachesEveryCredential(t *testing.T) {
	pool, err := NewPool([]string{"k1", "k2", "k3"})
	require.NoError(t, err)
	require.Equal(t, 3, pool.Len())

	seen := make(map[Credential]int)
	for i := 0; i < 3000; i++ {
		seen[pool.Pick()]++
	}
	for _, k := range []Credential{"k1", "k2", "k3"} {
		assert.Greater(t, seen[k], 0, "credential %s never picked", k)
	}
}

func TestPickUsesInjectedSource(t *testing.T) {
	pool, err := NewPool([]string{"a", "b"}, WithIntn(func(n int) int { return n - 1 }))
	require.NoError(t, err)
	assert.Equal(t, Credential("b"), pool.Pick())
	assert.Equal(t, 1, pool.Index("b"))
	assert.Equal(t, -1, pool.Index("zzz"))
}

func TestSealedKeysAreOpened(t *testing.T) {
	const cipherKey = "0123456789abcdef0123456789abcdef"
	sealed, err := Seal(cipherKey, "secret-key")
	require.NoError(t, err)

	pool, err := NewPool([]string{sealed}, WithCipherKey(cipherKey))
	require.NoError(t, err)
	assert.Equal(t, Credential("secret-key"), pool.Pick())
}

func TestSealedKeyWithWrongCipher(t *testing.T) {
	sealed, err := Seal("0123456789abcdef0123456789abcdef", "secret-key")
	require.NoError(t, err)

	_, err = NewPool([]string{sealed}, WithCipherKey("fedcba9876543210fedcba9876543210"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errInvalidCiphertext))
}

package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyringStore_Lifecycle(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("tok_abc"))
	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "tok_abc", got)

	require.NoError(t, s.Set("tok_def"))
	got, err = s.Get()
	require.NoError(t, err)
	assert.Equal(t, "tok_def", got)

	require.NoError(t, s.Delete())
	_, err = s.Get()
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an empty slot is a no-op.
	require.NoError(t, s.Delete())
}

func TestKeyringStore_EmptyItemIsNotFound(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: TokenKey, Data: nil}})
	s := NewKeyringStore(ring)

	_, err := s.Get()
	assert.ErrorIs(t, err, ErrNotFound)
}

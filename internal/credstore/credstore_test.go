package credstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// go-keyring's mock provider is process global, so these tests do not run
// in parallel.

func TestKeyringRoundTrip(t *testing.T) {
	keyring.MockInit()
	store := NewKeyring()

	_, err := store.Get(GitLab)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(GitLab, "glpat-123"))
	token, err := store.Get(GitLab)
	require.NoError(t, err)
	assert.Equal(t, "glpat-123", token)

	require.NoError(t, store.Delete(GitLab))
	_, err = store.Get(GitLab)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeyringDeleteMissing(t *testing.T) {
	keyring.MockInit()
	assert.NoError(t, NewKeyring().Delete(Consul))
}

func TestKeyringRejectsEmptyToken(t *testing.T) {
	keyring.MockInit()
	assert.Error(t, NewKeyring().Set(Vault, ""))
}

func TestIsKnownAccount(t *testing.T) {
	assert.True(t, IsKnownAccount("gitlab"))
	assert.True(t, IsKnownAccount("vault"))
	assert.True(t, IsKnownAccount("consul"))
	assert.False(t, IsKnownAccount("github"))
}

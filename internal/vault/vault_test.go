package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

type fakeStore struct {
	creds map[string]*models.EncryptedSNMPCredential
}

func (f *fakeStore) GetEncryptedCredential(_ context.Context, deviceID string) (*models.EncryptedSNMPCredential, error) {
	return f.creds[deviceID], nil
}

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher([]byte("0123456789abcdef0123456789abcdef"[:32]))
	require.NoError(t, err)

	sealed, err := c.Encrypt([]byte("hunter2"))
	require.NoError(t, err)

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(plain))
}

func TestCipherRejectsBadKeyLength(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	require.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestVaultDecryptV2c(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef"[:32])
	c, err := NewCipher(key)
	require.NoError(t, err)

	communitySealed, err := c.Encrypt([]byte("public"))
	require.NoError(t, err)

	store := &fakeStore{creds: map[string]*models.EncryptedSNMPCredential{
		"dev-1": {
			DeviceID:            "dev-1",
			Version:             models.SNMPv2c,
			CommunityCiphertext: communitySealed,
		},
	}}

	v, err := New(store, key)
	require.NoError(t, err)

	cred, err := v.Decrypt(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "public", cred.Community)
	assert.Equal(t, models.SNMPv2c, cred.Version)
}

func TestVaultDecryptNotFound(t *testing.T) {
	store := &fakeStore{creds: map[string]*models.EncryptedSNMPCredential{}}

	v, err := New(store, []byte("0123456789abcdef0123456789abcdef"[:32]))
	require.NoError(t, err)

	_, err = v.Decrypt(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.NotFound))
}

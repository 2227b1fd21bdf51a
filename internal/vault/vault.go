// Package vault implements the Credential Vault: a stateless
// read interface that resolves a device identity to decrypted SNMP
// credentials. Ciphertext lives in the State Store; this package only
// ever materializes plaintext in-memory for the calling goroutine.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

const nonceLength = 12

// ErrInvalidKeyLength indicates the provided key is not 16 or 32 bytes,
// i.e. AES-128-GCM or AES-256-GCM.
var ErrInvalidKeyLength = errors.New("vault: key must be 16 or 32 bytes")

// ErrCiphertextTooShort indicates a stored ciphertext is malformed.
var ErrCiphertextTooShort = errors.New("vault: ciphertext too short")

// CredentialStore is the narrow State Store read surface the Vault needs.
type CredentialStore interface {
	GetEncryptedCredential(ctx context.Context, deviceID string) (*models.EncryptedSNMPCredential, error)
}

// Cipher wraps AES-GCM encrypt/decrypt of secret material.
type Cipher struct {
	key []byte
}

// NewCipher constructs a Cipher from raw key bytes.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 16 && len(key) != 32 {
		return nil, ErrInvalidKeyLength
	}

	buf := make([]byte, len(key))
	copy(buf, key)

	return &Cipher{key: buf}, nil
}

// Encrypt returns a base64 AES-GCM sealed payload. Used outside the core
// (credential editing happens outside the core) but kept here so the vault's
// own tests can round-trip without a second implementation drifting.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("vault: new cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("vault: new gcm: %w", err)
	}

	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("vault: decode ciphertext: %w", err)
	}

	if len(payload) < nonceLength {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := payload[:nonceLength], payload[nonceLength:]

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("vault: new cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: new gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("vault: open: %w", err)
	}

	return plaintext, nil
}

// Vault resolves a device identity to decrypted SNMP credentials.
type Vault struct {
	store  CredentialStore
	cipher *Cipher
}

// New constructs a Vault backed by store and key.
func New(store CredentialStore, key []byte) (*Vault, error) {
	c, err := NewCipher(key)
	if err != nil {
		return nil, err
	}

	return &Vault{store: store, cipher: c}, nil
}

// Decrypt resolves deviceID to its plaintext SNMPCredential, or returns a
// NotFound-kind error if the device has no credential on file.
func (v *Vault) Decrypt(ctx context.Context, deviceID string) (*models.SNMPCredential, error) {
	enc, err := v.store.GetEncryptedCredential(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if enc == nil {
		return nil, errkind.New(errkind.NotFound, fmt.Errorf("no credential for device %s", deviceID))
	}

	cred := &models.SNMPCredential{
		DeviceID:     enc.DeviceID,
		Version:      enc.Version,
		SecurityName: enc.SecurityName,
		AuthProtocol: enc.AuthProtocol,
		PrivProtocol: enc.PrivProtocol,
	}

	if enc.CommunityCiphertext != "" {
		plain, err := v.cipher.Decrypt(enc.CommunityCiphertext)
		if err != nil {
			return nil, errkind.New(errkind.Internal, err)
		}

		cred.Community = string(plain)
	}

	if enc.AuthKeyCiphertext != "" {
		plain, err := v.cipher.Decrypt(enc.AuthKeyCiphertext)
		if err != nil {
			return nil, errkind.New(errkind.Internal, err)
		}

		cred.AuthKey = string(plain)
	}

	if enc.PrivKeyCiphertext != "" {
		plain, err := v.cipher.Decrypt(enc.PrivKeyCiphertext)
		if err != nil {
			return nil, errkind.New(errkind.Internal, err)
		}

		cred.PrivKey = string(plain)
	}

	return cred, nil
}

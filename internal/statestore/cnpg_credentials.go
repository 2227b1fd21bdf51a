package statestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// GetEncryptedCredential implements vault.CredentialStore, returning the
// at-rest ciphertext for a device's SNMP credential. The Vault is the
// only consumer that ever decrypts it.
func (s *CNPGStore) GetEncryptedCredential(ctx context.Context, deviceID string) (*models.EncryptedSNMPCredential, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT device_id, version, community_ciphertext, security_name, auth_protocol,
		       auth_key_ciphertext, priv_protocol, priv_key_ciphertext
		FROM snmp_credentials WHERE device_id = $1`, deviceID)

	c := &models.EncryptedSNMPCredential{}

	err := row.Scan(&c.DeviceID, &c.Version, &c.CommunityCiphertext, &c.SecurityName, &c.AuthProtocol,
		&c.AuthKeyCiphertext, &c.PrivProtocol, &c.PrivKeyCiphertext)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // absent credential is a valid outcome, surfaced by the Vault as NotFound
		}

		return nil, errkind.New(errkind.Internal, fmt.Errorf("statestore: scan credential: %w", err))
	}

	return c, nil
}

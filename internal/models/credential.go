package models

// SNMPVersion is the supported SNMP protocol version.
type SNMPVersion string

const (
	SNMPv2c SNMPVersion = "v2c"
	SNMPv3  SNMPVersion = "v3"
)

// SNMPCredential binds decrypted SNMP access material to one device.
// The Vault is the only component that ever materializes the plaintext
// fields below; the State Store persists only the *Ciphertext variants.
type SNMPCredential struct {
	DeviceID string
	Version  SNMPVersion

	// v2c
	Community string

	// v3
	SecurityName  string
	AuthProtocol  string
	AuthKey       string
	PrivProtocol  string
	PrivKey       string
}

// EncryptedSNMPCredential is the at-rest representation in the State Store.
type EncryptedSNMPCredential struct {
	DeviceID             string
	Version              SNMPVersion
	CommunityCiphertext  string
	SecurityName         string
	AuthProtocol         string
	AuthKeyCiphertext    string
	PrivProtocol         string
	PrivKeyCiphertext    string
}

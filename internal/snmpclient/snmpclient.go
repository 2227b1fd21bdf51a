// Package snmpclient implements the SNMP client: single-request
// GET/GETNEXT/GETBULK against v2c or v3 targets with per-request
// timeout, retry with backoff, and graceful tooBig fallback.
package snmpclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// ResultErrorKind enumerates the per-OID error reasons.
type ResultErrorKind string

const (
	ErrNoSuchObject   ResultErrorKind = "noSuchObject"
	ErrNoSuchInstance ResultErrorKind = "noSuchInstance"
	ErrEndOfMibView   ResultErrorKind = "endOfMibView"
	ErrOIDTimeout     ResultErrorKind = "timeout"
	ErrOIDAuth        ResultErrorKind = "auth"
	ErrOIDNetwork     ResultErrorKind = "network"
	ErrOIDDecode      ResultErrorKind = "decode"
)

// OIDResult is the per-OID outcome of a GET/GETNEXT/GETBULK call.
type OIDResult struct {
	OID   string
	Value interface{}
	Type  gosnmp.Asn1BER
	Err   ResultErrorKind
}

// Config tunes a single Client (SNMP_TIMEOUT_SECONDS, SNMP_RETRIES,
// SNMP_MAX_REPETITIONS).
type Config struct {
	Port           uint16
	Timeout        time.Duration
	Retries        int
	MaxRepetitions uint32
}

const defaultMaxUDPPayload = 1400

// Client issues SNMP requests against one target.
type Client struct {
	gosnmp *gosnmp.GoSNMP
	cfg    Config
}

// New builds a Client for target using cred. Retries are gosnmp's own:
// up to cfg.Retries further attempts, each waiting twice as long as the
// previous one for a reply (5s, 10s, 20s, 40s with the defaults). There
// is no separate 1s/2s/4s pause between attempts.
func New(target string, cred *models.SNMPCredential, cfg Config) (*Client, error) {
	if cfg.Port == 0 {
		cfg.Port = 161
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}

	if cfg.MaxRepetitions == 0 {
		cfg.MaxRepetitions = 10
	}

	g := &gosnmp.GoSNMP{
		Target:             target,
		Port:               cfg.Port,
		Timeout:            cfg.Timeout,
		Retries:            cfg.Retries,
		MaxOids:            gosnmp.MaxOids,
		MaxRepetitions:     cfg.MaxRepetitions,
		ExponentialTimeout: true,
	}

	if err := applyCredential(g, cred); err != nil {
		return nil, err
	}

	return &Client{gosnmp: g, cfg: cfg}, nil
}

func applyCredential(g *gosnmp.GoSNMP, cred *models.SNMPCredential) error {
	switch cred.Version {
	case models.SNMPv2c:
		g.Version = gosnmp.Version2c
		g.Community = cred.Community
	case models.SNMPv3:
		g.Version = gosnmp.Version3

		usm := &gosnmp.UsmSecurityParameters{
			UserName:                 cred.SecurityName,
			AuthenticationProtocol:   authProtocol(cred.AuthProtocol),
			AuthenticationPassphrase: cred.AuthKey,
			PrivacyProtocol:          privProtocol(cred.PrivProtocol),
			PrivacyPassphrase:        cred.PrivKey,
		}

		g.SecurityModel = gosnmp.UserSecurityModel
		g.SecurityParameters = usm
		g.MsgFlags = msgFlags(cred)
	default:
		return errkind.New(errkind.Internal, fmt.Errorf("snmpclient: unsupported version %q", cred.Version))
	}

	return nil
}

func msgFlags(cred *models.SNMPCredential) gosnmp.SnmpV3MsgFlags {
	switch {
	case cred.AuthKey != "" && cred.PrivKey != "":
		return gosnmp.AuthPriv
	case cred.AuthKey != "":
		return gosnmp.AuthNoPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

func authProtocol(name string) gosnmp.SnmpV3AuthProtocol {
	switch strings.ToUpper(name) {
	case "MD5":
		return gosnmp.MD5
	case "SHA":
		return gosnmp.SHA
	case "SHA224":
		return gosnmp.SHA224
	case "SHA256":
		return gosnmp.SHA256
	case "SHA384":
		return gosnmp.SHA384
	case "SHA512":
		return gosnmp.SHA512
	default:
		return gosnmp.NoAuth
	}
}

func privProtocol(name string) gosnmp.SnmpV3PrivProtocol {
	switch strings.ToUpper(name) {
	case "DES":
		return gosnmp.DES
	case "AES":
		return gosnmp.AES
	case "AES192":
		return gosnmp.AES192
	case "AES256":
		return gosnmp.AES256
	default:
		return gosnmp.NoPriv
	}
}

// Connect dials the underlying UDP socket. Must be called before any
// Get/GetBulk/Walk call.
func (c *Client) Connect() error {
	if err := c.gosnmp.Connect(); err != nil {
		return errkind.New(errkind.Network, fmt.Errorf("snmpclient: connect: %w", err))
	}

	return nil
}

// Close releases the underlying socket.
func (c *Client) Close() error {
	return c.gosnmp.Conn.Close()
}

// Get issues a single GET for oids, honoring ctx's deadline via the
// per-request timeout already configured on the client.
func (c *Client) Get(ctx context.Context, oids []string) ([]OIDResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pkt, err := c.gosnmp.Get(oids)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	return toResults(pkt.Variables), nil
}

// GetNext issues a single GETNEXT for oids.
func (c *Client) GetNext(ctx context.Context, oids []string) ([]OIDResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pkt, err := c.gosnmp.GetNext(oids)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	return toResults(pkt.Variables), nil
}

// GetBulkWalk prefers GETBULK for table walks when v2c/v3 is in use.
// On a tooBig response it halves MaxRepetitions and retries once to
// keep the UDP payload bounded.
func (c *Client) GetBulkWalk(rootOID string, nonRepeaters uint8) ([]OIDResult, error) {
	var results []OIDResult

	walkErr := c.gosnmp.BulkWalk(rootOID, func(pdu gosnmp.SnmpPDU) error {
		results = append(results, toResult(pdu))
		return nil
	})

	if walkErr != nil && isTooBig(walkErr) && c.gosnmp.MaxRepetitions > 1 {
		results = nil
		c.gosnmp.MaxRepetitions /= 2

		walkErr = c.gosnmp.BulkWalk(rootOID, func(pdu gosnmp.SnmpPDU) error {
			results = append(results, toResult(pdu))
			return nil
		})
	}

	if walkErr != nil {
		return nil, classifyTransportError(walkErr)
	}

	return results, nil
}

func isTooBig(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "too big") ||
		strings.Contains(strings.ToLower(err.Error()), "packet too large")
}

func classifyTransportError(err error) error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "timeout"):
		return errkind.New(errkind.Timeout, err)
	case strings.Contains(msg, "auth") || strings.Contains(msg, "decrypt"):
		return errkind.New(errkind.Auth, err)
	default:
		return errkind.New(errkind.Network, err)
	}
}

func toResults(vars []gosnmp.SnmpPDU) []OIDResult {
	results := make([]OIDResult, 0, len(vars))
	for _, v := range vars {
		results = append(results, toResult(v))
	}

	return results
}

func toResult(pdu gosnmp.SnmpPDU) OIDResult {
	switch pdu.Type {
	case gosnmp.NoSuchObject:
		return OIDResult{OID: pdu.Name, Err: ErrNoSuchObject}
	case gosnmp.NoSuchInstance:
		return OIDResult{OID: pdu.Name, Err: ErrNoSuchInstance}
	case gosnmp.EndOfMibView:
		return OIDResult{OID: pdu.Name, Err: ErrEndOfMibView}
	default:
		return OIDResult{OID: pdu.Name, Value: pdu.Value, Type: pdu.Type}
	}
}

// Package discovery also implements the Discovery Worker:
// walking ifTable/ifXTable per device, classifying each row, and
// upserting it into the Interface table.
package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/snmpclient"
)

// ifTable/ifXTable base OIDs walked per device.
const (
	oidIfDescr      = "1.3.6.1.2.1.2.2.1.2"
	oidIfType       = "1.3.6.1.2.1.2.2.1.3"
	oidIfSpeed      = "1.3.6.1.2.1.2.2.1.5"
	oidIfAdminStatus = "1.3.6.1.2.1.2.2.1.7"
	oidIfOperStatus = "1.3.6.1.2.1.2.2.1.8"
	oidIfName       = "1.3.6.1.2.1.31.1.1.1.1"
	oidIfAlias      = "1.3.6.1.2.1.31.1.1.1.18"
	oidIfHighSpeed  = "1.3.6.1.2.1.31.1.1.1.15"
)

// highSpeedMultiplier converts ifHighSpeed's Mbps unit to bits/sec.
const highSpeedMultiplier = 1_000_000

// CredentialResolver is the narrow Credential Vault read surface the
// Discovery Worker needs.
type CredentialResolver interface {
	Decrypt(ctx context.Context, deviceID string) (*models.SNMPCredential, error)
}

// DeviceFetcher is the narrow device-read surface the Discovery Worker needs.
type DeviceFetcher interface {
	GetDevicesByIDs(ctx context.Context, deviceIDs []string) ([]*models.Device, error)
}

// InterfaceUpserter is the narrow Interface write surface the Discovery
// Worker needs.
type InterfaceUpserter interface {
	UpsertInterface(ctx context.Context, iface *models.Interface) error
}

// DeviceTagger lets the Discovery Worker apply the IP-octet ISP-uplink
// fallback heuristic without ever overwriting an operator tag.
type DeviceTagger interface {
	AddDeviceTag(ctx context.Context, deviceID, tag string) error
}

// WalkSession is the narrow per-target transport surface the Discovery
// Worker needs from an snmpclient.Client.
type WalkSession interface {
	Connect() error
	Close() error
	GetBulkWalk(rootOID string, nonRepeaters uint8) ([]snmpclient.OIDResult, error)
}

// SessionFactory builds one WalkSession for a device's target and
// resolved credential.
type SessionFactory func(target string, cred *models.SNMPCredential) (WalkSession, error)

// RoleISPUplink is the tag the IP-octet heuristic applies.
const RoleISPUplink = "role=isp-uplink"

// Worker walks ifTable/ifXTable for a batch of devices, classifies
// every row, and upserts it. One device's failure never aborts
// the batch.
type Worker struct {
	devices    DeviceFetcher
	vault      CredentialResolver
	ifaces     InterfaceUpserter
	tagger     DeviceTagger
	newSession SessionFactory
	fanout     int
	log        logger.Logger
}

// NewWorker constructs a Discovery Worker.
func NewWorker(devices DeviceFetcher, vault CredentialResolver, ifaces InterfaceUpserter, tagger DeviceTagger,
	newSession SessionFactory, fanout int, log logger.Logger) *Worker {
	if fanout <= 0 {
		fanout = 50
	}

	return &Worker{devices: devices, vault: vault, ifaces: ifaces, tagger: tagger, newSession: newSession, fanout: fanout,
		log: log.Component("discoveryworker")}
}

// BatchReport mirrors internal/workers.BatchReport so the scheduler/cmd
// layer reports consistently across worker classes.
type BatchReport struct {
	Requested int
	Completed int
	TimedOut  bool
}

// RunBatch discovers interfaces for every device in deviceIDs, bounded
// to fanout concurrent sessions and timeout total runtime.
func (w *Worker) RunBatch(ctx context.Context, deviceIDs []string, timeout time.Duration) (BatchReport, error) {
	report := BatchReport{Requested: len(deviceIDs)}

	batchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	devices, err := w.devices.GetDevicesByIDs(batchCtx, deviceIDs)
	if err != nil {
		return report, err
	}

	g, gctx := errgroup.WithContext(batchCtx)
	g.SetLimit(w.fanout)

	var completed atomic.Int64

	for _, d := range devices {
		d := d

		g.Go(func() error {
			if err := w.discoverDevice(gctx, d); err != nil {
				w.log.Warn().Str("device_id", d.ID).Err(err).Msg("interface discovery failed")
				return nil
			}

			completed.Add(1)

			return nil
		})
	}

	_ = g.Wait()

	report.Completed = int(completed.Load())

	report.TimedOut = batchCtx.Err() != nil

	return report, nil
}

func (w *Worker) discoverDevice(ctx context.Context, d *models.Device) error {
	cred, err := w.vault.Decrypt(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("resolve credential: %w", err)
	}

	session, err := w.newSession(d.IP, cred)
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}

	if err := session.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer session.Close()

	rows, err := walkInterfaceTables(session)
	if err != nil {
		return fmt.Errorf("walk interface tables: %w", err)
	}

	now := time.Now()

	for _, row := range rows {
		speed := row.speedBps()

		c := ClassifyInterface(row.ifType, row.ifName, row.ifAlias, speed)

		iface := &models.Interface{
			DeviceID:      d.ID,
			IfIndex:       row.ifIndex,
			IfName:        row.ifName,
			IfAlias:       row.ifAlias,
			IfDescr:       row.ifDescr,
			IfType:        row.ifType,
			InterfaceType: c.InterfaceType,
			AdminStatus:   row.adminStatus,
			OperStatus:    row.operStatus,
			SpeedBps:      speed,
			IsCritical:    c.IsCritical,
			IsISP:         c.IsISP,
			ISPProvider:   c.ISPProvider,
			LastSeen:      now,
		}

		if err := w.ifaces.UpsertInterface(ctx, iface); err != nil {
			w.log.Warn().Str("device_id", d.ID).Int("if_index", row.ifIndex).Err(err).Msg("upsert interface failed")
		}
	}

	if !d.HasTag(RoleISPUplink) && IsLikelyISPUplinkByAddress(d.IP) {
		if err := w.tagger.AddDeviceTag(ctx, d.ID, RoleISPUplink); err != nil {
			w.log.Warn().Str("device_id", d.ID).Err(err).Msg("applying isp-uplink heuristic tag failed")
		}
	}

	return nil
}

// ifRow accumulates one ifIndex's fields across the several table
// walks (each OID root is a separate GETBULK).
type ifRow struct {
	ifIndex      int
	ifDescr      string
	ifType       int
	ifSpeed      uint64
	adminStatus  int
	operStatus   int
	ifName       string
	ifAlias      string
	ifHighSpeed  uint64
}

// speedBps prefers ifHighSpeed (Mbps) over ifSpeed (bps) when non-zero.
func (r ifRow) speedBps() uint64 {
	if r.ifHighSpeed > 0 {
		return r.ifHighSpeed * highSpeedMultiplier
	}

	return r.ifSpeed
}

func walkInterfaceTables(session WalkSession) (map[int]*ifRow, error) {
	rows := make(map[int]*ifRow)

	walks := []struct {
		root  string
		apply func(r *ifRow, v interface{})
	}{
		{oidIfDescr, func(r *ifRow, v interface{}) { r.ifDescr = toString(v) }},
		{oidIfType, func(r *ifRow, v interface{}) { r.ifType = int(toInt(v)) }},
		{oidIfSpeed, func(r *ifRow, v interface{}) { r.ifSpeed = uint64(toInt(v)) }},
		{oidIfAdminStatus, func(r *ifRow, v interface{}) { r.adminStatus = int(toInt(v)) }},
		{oidIfOperStatus, func(r *ifRow, v interface{}) { r.operStatus = int(toInt(v)) }},
		{oidIfName, func(r *ifRow, v interface{}) { r.ifName = toString(v) }},
		{oidIfAlias, func(r *ifRow, v interface{}) { r.ifAlias = toString(v) }},
		{oidIfHighSpeed, func(r *ifRow, v interface{}) { r.ifHighSpeed = uint64(toInt(v)) }},
	}

	for _, walk := range walks {
		results, err := session.GetBulkWalk(walk.root, 0)
		if err != nil {
			return nil, err
		}

		for _, res := range results {
			if res.Err != "" {
				continue
			}

			idx, ok := ifIndexSuffix(res.OID, walk.root)
			if !ok {
				continue
			}

			row, ok := rows[idx]
			if !ok {
				row = &ifRow{ifIndex: idx}
				rows[idx] = row
			}

			walk.apply(row, res.Value)
		}
	}

	return rows, nil
}

func ifIndexSuffix(oid, root string) (int, bool) {
	trimmed := strings.TrimPrefix(oid, ".")
	root = strings.TrimPrefix(root, ".")

	if !strings.HasPrefix(trimmed, root+".") {
		return 0, false
	}

	n, err := strconv.Atoi(trimmed[len(root)+1:])
	if err != nil {
		return 0, false
	}

	return n, true
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}

func toInt(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	default:
		return 0
	}
}

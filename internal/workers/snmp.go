package workers

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/discovery"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/snmpclient"
)

// Base OIDs the SNMP Batch Worker collects for every critical/ISP
// interface, from ifTable/ifXTable.
const (
	oidSysDescr      = "1.3.6.1.2.1.1.1.0"
	oidSysObjectID   = "1.3.6.1.2.1.1.2.0"
	oidIfHCInOctets  = "1.3.6.1.2.1.31.1.1.1.6"
	oidIfHCOutOctets = "1.3.6.1.2.1.31.1.1.1.10"
	oidIfInErrors    = "1.3.6.1.2.1.2.2.1.14"
	oidIfOutErrors   = "1.3.6.1.2.1.2.2.1.20"
	oidIfInDiscards  = "1.3.6.1.2.1.2.2.1.13"
	oidIfOutDiscards = "1.3.6.1.2.1.2.2.1.19"
	oidIfAdminStatus = "1.3.6.1.2.1.2.2.1.7"
	oidIfOperStatus  = "1.3.6.1.2.1.2.2.1.8"
)

var ifCounterOIDs = []struct {
	base   string
	metric string
}{
	{oidIfHCInOctets, models.MetricIfHCInOctets},
	{oidIfHCOutOctets, models.MetricIfHCOutOctets},
	{oidIfInErrors, models.MetricIfInErrors},
	{oidIfOutErrors, models.MetricIfOutErrors},
	{oidIfInDiscards, models.MetricIfInDiscards},
	{oidIfOutDiscards, models.MetricIfOutDiscards},
	{oidIfAdminStatus, models.MetricIfAdminStatus},
	{oidIfOperStatus, models.MetricIfOperStatus},
}

// CredentialResolver is the narrow Credential Vault read surface the
// SNMP Batch Worker needs.
type CredentialResolver interface {
	Decrypt(ctx context.Context, deviceID string) (*models.SNMPCredential, error)
}

// MonitoringItemsSource lists a device's active MonitoringItems.
type MonitoringItemsSource interface {
	ListAppliedItems(ctx context.Context, deviceID string) ([]models.AppliedItem, error)
}

// CriticalInterfaceSource lists a device's is_critical/is_isp interfaces.
type CriticalInterfaceSource interface {
	ListCriticalByDevice(ctx context.Context, deviceID string) ([]*models.Interface, error)
}

// VendorSetter persists the SNMP Batch Worker's vendor auto-detection
// result back to the device row.
type VendorSetter interface {
	SetDeviceVendor(ctx context.Context, deviceID, vendor string) error
}

// SNMPSession is the narrow per-target transport surface the worker
// needs from an snmpclient.Client, so tests can inject a fake session
// instead of opening a real UDP socket.
type SNMPSession interface {
	Connect() error
	Close() error
	Get(ctx context.Context, oids []string) ([]snmpclient.OIDResult, error)
}

// SessionFactory builds one SNMPSession for a device's target and
// resolved credential.
type SessionFactory func(target string, cred *models.SNMPCredential) (SNMPSession, error)

// SNMPWorker fans out SNMP polling over a batch of devices, collecting
// MonitoringItem values and critical-interface counters into TSDB
// samples. It intentionally has no DeviceLocker: only the ICMP
// worker's state-machine path may mutate down_since/flap fields.
type SNMPWorker struct {
	devices    DeviceFetcher
	items      MonitoringItemsSource
	ifaces     CriticalInterfaceSource
	vault      CredentialResolver
	vendor     VendorSetter
	writer     SampleWriter
	newSession SessionFactory
	fanout     int
	log        logger.Logger

	// Regions resolves branch ids to the region sample label. Left
	// nil, samples carry the branch label only.
	Regions RegionSource
}

// NewSNMPWorker constructs an SNMPWorker.
func NewSNMPWorker(devices DeviceFetcher, items MonitoringItemsSource, ifaces CriticalInterfaceSource,
	vault CredentialResolver, vendor VendorSetter, writer SampleWriter, newSession SessionFactory,
	fanout int, log logger.Logger) *SNMPWorker {
	if fanout <= 0 {
		fanout = 50
	}

	return &SNMPWorker{
		devices: devices, items: items, ifaces: ifaces, vault: vault, vendor: vendor,
		writer: writer, newSession: newSession, fanout: fanout, log: log.Component("snmpworker"),
	}
}

// RunBatch polls every device in deviceIDs, bounded to SNMP_FANOUT
// concurrent sessions. One device's failure never aborts
// the batch.
func (w *SNMPWorker) RunBatch(ctx context.Context, deviceIDs []string, timeout time.Duration) (BatchReport, error) {
	report := BatchReport{Requested: len(deviceIDs)}

	batchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	devices, err := w.devices.GetDevicesByIDs(batchCtx, deviceIDs)
	if err != nil {
		return report, err
	}

	regions := resolveRegions(batchCtx, w.Regions, devices, w.log)

	g, gctx := errgroup.WithContext(batchCtx)
	g.SetLimit(w.fanout)

	var probed atomic.Int64

	for _, d := range devices {
		d := d

		g.Go(func() error {
			if err := w.pollDevice(gctx, d, regions[d.BranchID]); err != nil {
				w.log.Warn().Str("device_id", d.ID).Err(err).Msg("snmp poll failed")
				return nil
			}

			probed.Add(1)

			return nil
		})
	}

	_ = g.Wait()

	report.Probed = int(probed.Load())

	report.TimedOut = batchCtx.Err() != nil

	return report, nil
}

func (w *SNMPWorker) pollDevice(ctx context.Context, d *models.Device, region string) error {
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

	now := time.Now()

	if d.Vendor == "" {
		w.detectVendor(ctx, session, d)
	}

	var samples []models.Sample

	samples = append(samples, w.pollMonitoringItems(ctx, session, d, region, now)...)
	samples = append(samples, w.pollInterfaceCounters(ctx, session, d, region, now)...)

	if len(samples) == 0 {
		return nil
	}

	if err := w.writer.Write(ctx, samples); err != nil {
		w.log.Warn().Str("device_id", d.ID).Err(err).Msg("tsdb write failed, relying on writer retry")
	}

	return nil
}

// detectVendor runs on-first-contact vendor auto-detection from
// sysDescr.0 and sysObjectID.0.
func (w *SNMPWorker) detectVendor(ctx context.Context, session SNMPSession, d *models.Device) {
	results, err := session.Get(ctx, []string{oidSysDescr, oidSysObjectID})
	if err != nil {
		w.log.Debug().Str("device_id", d.ID).Err(err).Msg("vendor detection get failed")
		return
	}

	var sysDescr, sysObjectID string

	for _, r := range results {
		switch r.OID {
		case oidSysDescr:
			sysDescr = stringValue(r.Value)
		case oidSysObjectID:
			sysObjectID = stringValue(r.Value)
		}
	}

	vendor := discovery.ClassifyVendor(sysDescr, sysObjectID)

	if err := w.vendor.SetDeviceVendor(ctx, d.ID, vendor); err != nil {
		w.log.Warn().Str("device_id", d.ID).Err(err).Msg("persisting detected vendor failed")
		return
	}

	d.Vendor = vendor
}

func (w *SNMPWorker) pollMonitoringItems(ctx context.Context, session SNMPSession, d *models.Device, region string, now time.Time) []models.Sample {
	items, err := w.items.ListAppliedItems(ctx, d.ID)
	if err != nil || len(items) == 0 {
		return nil
	}

	oids := make([]string, len(items))
	for i, it := range items {
		oids[i] = it.Item.OID
	}

	results, err := session.Get(ctx, oids)
	if err != nil {
		w.log.Debug().Str("device_id", d.ID).Err(err).Msg("monitoring item get failed")
		return nil
	}

	byOID := make(map[string]snmpclient.OIDResult, len(results))
	for _, r := range results {
		byOID[r.OID] = r
	}

	baseLabels := models.DeviceLabels(d, d.BranchID, region)

	samples := make([]models.Sample, 0, len(items))

	for _, it := range items {
		r, ok := byOID[it.Item.OID]
		if !ok || r.Err != "" {
			continue
		}

		v, ok := toFloat64(r.Value)
		if !ok {
			continue
		}

		labels := make(map[string]string, len(baseLabels)+1)
		for k, val := range baseLabels {
			labels[k] = val
		}

		labels["oid"] = it.Item.OID

		samples = append(samples, models.Sample{
			Metric:    models.MetricSNMPItemPrefix + it.Item.Name,
			Labels:    labels,
			Value:     v,
			Timestamp: now,
		})
	}

	return samples
}

// pollInterfaceCounters collects ifHCInOctets/ifHCOutOctets/error and
// discard counters for is_critical/is_isp interfaces only. 64-bit
// counter values are passed through unmodified: the TSDB consumer
// computes rate() across wraparound, never this worker.
func (w *SNMPWorker) pollInterfaceCounters(ctx context.Context, session SNMPSession, d *models.Device, region string, now time.Time) []models.Sample {
	ifaces, err := w.ifaces.ListCriticalByDevice(ctx, d.ID)
	if err != nil || len(ifaces) == 0 {
		return nil
	}

	var oids []string

	for _, iface := range ifaces {
		for _, c := range ifCounterOIDs {
			oids = append(oids, c.base+"."+strconv.Itoa(iface.IfIndex))
		}
	}

	results, err := session.Get(ctx, oids)
	if err != nil {
		w.log.Debug().Str("device_id", d.ID).Err(err).Msg("interface counter get failed")
		return nil
	}

	byOID := make(map[string]snmpclient.OIDResult, len(results))
	for _, r := range results {
		byOID[r.OID] = r
	}

	baseLabels := models.DeviceLabels(d, d.BranchID, region)

	var samples []models.Sample

	for _, iface := range ifaces {
		for _, c := range ifCounterOIDs {
			oid := c.base + "." + strconv.Itoa(iface.IfIndex)

			r, ok := byOID[oid]
			if !ok || r.Err != "" {
				continue
			}

			v, ok := toFloat64(r.Value)
			if !ok {
				continue
			}

			labels := make(map[string]string, len(baseLabels)+3)
			for k, val := range baseLabels {
				labels[k] = val
			}

			labels["if_index"] = strconv.Itoa(iface.IfIndex)

			if iface.IfName != "" {
				labels["if_name"] = iface.IfName
			}

			if iface.IsISP && iface.ISPProvider != "" {
				labels["isp_provider"] = iface.ISPProvider
			}

			samples = append(samples, models.Sample{
				Metric:    c.metric,
				Labels:    labels,
				Value:     v,
				Timestamp: now,
			})
		}
	}

	return samples
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

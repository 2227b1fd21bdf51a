// Package workers implements the ICMP and SNMP Batch Workers: the two
// worker classes that turn one queued batch of
// device IDs into TSDB samples and state-machine transitions.
package workers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/icmpprobe"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/stateengine"
)

// DeviceFetcher is the narrow device-read surface both batch workers need.
type DeviceFetcher interface {
	GetDevicesByIDs(ctx context.Context, deviceIDs []string) ([]*models.Device, error)
}

// DeviceLocker is the narrow state-machine write surface the ICMP worker
// needs.
type DeviceLocker interface {
	WithDeviceLock(ctx context.Context, deviceID string, fn func(d *models.Device) (*models.Device, error)) error
}

// SampleWriter is the narrow TSDB write surface both batch workers need.
type SampleWriter interface {
	Write(ctx context.Context, samples []models.Sample) error
}

// PingResultWriter is the narrow, optional PingResult write surface
// (a short-lived diagnostic row, never load-bearing). A nil
// PingResultWriter simply disables the write.
type PingResultWriter interface {
	RecordPingResult(ctx context.Context, r *models.PingResult) error
}

// RecoveryEventSink is the narrow, optional alert-history surface used
// to record the informational Device Recovered event on UP transitions.
type RecoveryEventSink interface {
	CreateAlert(ctx context.Context, alert *models.AlertHistory) error
}

// RegionSource resolves a branch id to the region label both batch
// workers attach to every sample, satisfied by
// statestore.BranchSource.
type RegionSource interface {
	GetBranchRegion(ctx context.Context, branchID string) (string, error)
}

// resolveRegions looks up the region for each distinct branch in the
// batch, once per batch rather than once per device. A failed lookup
// degrades to an unlabeled sample, never a skipped one.
func resolveRegions(ctx context.Context, regions RegionSource, devices []*models.Device, log logger.Logger) map[string]string {
	out := map[string]string{}

	if regions == nil {
		return out
	}

	for _, d := range devices {
		if d.BranchID == "" {
			continue
		}

		if _, seen := out[d.BranchID]; seen {
			continue
		}

		region, err := regions.GetBranchRegion(ctx, d.BranchID)
		if err != nil {
			log.Debug().Str("branch_id", d.BranchID).Err(err).Msg("branch region lookup failed")
			region = ""
		}

		out[d.BranchID] = region
	}

	return out
}

// BatchReport summarizes one RunBatch call, letting the caller log
// partial completion when the batch timeout was hit.
type BatchReport struct {
	Requested int
	Probed    int
	TimedOut  bool
}

// ICMPWorker fans out ICMP probes over a batch of devices, writes ping
// samples to the TSDB, and drives the per-device state machine.
type ICMPWorker struct {
	devices    DeviceFetcher
	locker     DeviceLocker
	prober     icmpprobe.EchoProber
	writer     SampleWriter
	fanout     int
	stateCfg   stateengine.Config
	log        logger.Logger

	// PingResults is an optional best-effort PingResult sink. Left
	// nil, RunBatch skips it entirely.
	PingResults PingResultWriter

	// RecoveryEvents, when non-nil, records an immediately-resolved
	// Device Recovered row on each UP transition. Informational only,
	// disabled by default, and suppressed while the device is flapping.
	RecoveryEvents RecoveryEventSink

	// Regions resolves branch ids to the region sample label. Left
	// nil, samples carry the branch label only.
	Regions RegionSource
}

// NewICMPWorker constructs an ICMPWorker.
func NewICMPWorker(devices DeviceFetcher, locker DeviceLocker, prober icmpprobe.EchoProber, writer SampleWriter,
	fanout int, stateCfg stateengine.Config, log logger.Logger) *ICMPWorker {
	if fanout <= 0 {
		fanout = 50
	}

	return &ICMPWorker{
		devices: devices, locker: locker, prober: prober, writer: writer,
		fanout: fanout, stateCfg: stateCfg, log: log.Component("icmpworker"),
	}
}

// RunBatch probes every device in deviceIDs, bounding total runtime to
// timeout (BATCH_TIMEOUT, the tick period minus slack). A device whose row lock
// cannot be acquired is skipped with a logged error and left for the
// next batch; a device whose TSDB write fails still gets its
// state-machine update applied.
func (w *ICMPWorker) RunBatch(ctx context.Context, deviceIDs []string, timeout time.Duration) (BatchReport, error) {
	report := BatchReport{Requested: len(deviceIDs)}

	batchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	devices, err := w.devices.GetDevicesByIDs(batchCtx, deviceIDs)
	if err != nil {
		return report, err
	}

	targets := make([]icmpprobe.Target, 0, len(devices))
	byID := make(map[string]*models.Device, len(devices))

	for _, d := range devices {
		byID[d.ID] = d
		targets = append(targets, icmpprobe.Target{DeviceID: d.ID, Address: d.IP})
	}

	regions := resolveRegions(batchCtx, w.Regions, devices, w.log)

	results := icmpprobe.ProbeBatch(batchCtx, w.prober, targets, w.fanout)

	now := time.Now()

	for _, r := range results {
		if r.Err != nil {
			w.log.Warn().Str("device_id", r.DeviceID).Err(r.Err).Msg("icmp probe did not complete")
			continue
		}

		report.Probed++

		d := byID[r.DeviceID]
		if d == nil {
			continue
		}

		w.writeSamples(batchCtx, d, r.Result, regions[d.BranchID], now)
		w.applyState(batchCtx, d.ID, r.Result.Reachable, now)
	}

	report.TimedOut = batchCtx.Err() != nil

	return report, nil
}

func (w *ICMPWorker) writeSamples(ctx context.Context, d *models.Device, r icmpprobe.Result, region string, now time.Time) {
	labels := models.DeviceLabels(d, d.BranchID, region)

	rtt := 0.0
	if r.AvgRTTMs != nil {
		rtt = *r.AvgRTTMs
	}

	status := 0.0
	if r.Reachable {
		status = 1.0
	}

	samples := []models.Sample{
		{Metric: models.MetricPingStatus, Labels: labels, Value: status, Timestamp: now},
		{Metric: models.MetricPingRTTMs, Labels: labels, Value: rtt, Timestamp: now},
		{Metric: models.MetricPingLossRatio, Labels: labels, Value: r.LossRatio, Timestamp: now},
	}

	if err := w.writer.Write(ctx, samples); err != nil {
		w.log.Warn().Str("device_id", d.ID).Err(err).Msg("tsdb write failed, relying on writer retry")
	}

	if w.PingResults != nil {
		pr := &models.PingResult{
			DeviceID: d.ID, Reachable: r.Reachable, AvgRTTMs: r.AvgRTTMs, LossRatio: r.LossRatio, Timestamp: now,
		}

		if err := w.PingResults.RecordPingResult(ctx, pr); err != nil {
			w.log.Debug().Str("device_id", d.ID).Err(err).Msg("ping result write failed, non-load-bearing")
		}
	}
}

func (w *ICMPWorker) applyState(ctx context.Context, deviceID string, reachable bool, now time.Time) {
	var res stateengine.Result

	err := w.locker.WithDeviceLock(ctx, deviceID, func(d *models.Device) (*models.Device, error) {
		res = stateengine.Apply(w.stateCfg, d, reachable, now)
		return d, nil
	})
	if err != nil {
		w.log.Error().Str("device_id", deviceID).Err(err).Msg("state machine update failed, retrying next batch")
		return
	}

	if w.RecoveryEvents != nil && res.TransitionedUp && !res.Suppressed {
		w.recordRecovered(ctx, deviceID, now)
	}
}

// recordRecovered writes the informational Device Recovered event: a
// row that is born resolved, so it can never violate the
// one-open-row-per-(device, rule_name) invariant.
func (w *ICMPWorker) recordRecovered(ctx context.Context, deviceID string, now time.Time) {
	resolved := now
	event := &models.AlertHistory{
		ID:          uuid.NewString(),
		RuleID:      "builtin:device-recovered",
		RuleName:    models.RuleDeviceRecovered,
		DeviceID:    deviceID,
		Severity:    models.SeverityLow,
		TriggeredAt: now,
		ResolvedAt:  &resolved,
		Context:     map[string]string{},
	}

	if err := w.RecoveryEvents.CreateAlert(ctx, event); err != nil {
		w.log.Debug().Str("device_id", deviceID).Err(err).Msg("device recovered event write failed, informational only")
	}
}

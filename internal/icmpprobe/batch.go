package icmpprobe

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Target pairs a device identifier with the address to probe.
type Target struct {
	DeviceID string
	Address  string
}

// TargetResult is a Result attributed back to its device.
type TargetResult struct {
	DeviceID string
	Result   Result
	Err      error
}

// EchoProber is the narrow interface batch fan-out depends on, so workers
// can inject a fake in tests instead of opening real sockets.
type EchoProber interface {
	Probe(ctx context.Context, target string) (Result, error)
}

// ProbeBatch probes targets concurrently, bounded by fanout in-flight
// probes at a time (ICMP_FANOUT). A single target's failure never
// aborts the batch.
func ProbeBatch(ctx context.Context, prober EchoProber, targets []Target, fanout int) []TargetResult {
	if fanout <= 0 {
		fanout = 1
	}

	results := make([]TargetResult, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanout)

	for i, tgt := range targets {
		i, tgt := i, tgt

		g.Go(func() error {
			select {
			case <-gctx.Done():
				results[i] = TargetResult{DeviceID: tgt.DeviceID, Err: gctx.Err()}
				return nil
			default:
			}

			res, err := prober.Probe(gctx, tgt.Address)
			results[i] = TargetResult{DeviceID: tgt.DeviceID, Result: res, Err: err}

			return nil
		})
	}

	_ = g.Wait()

	return results
}

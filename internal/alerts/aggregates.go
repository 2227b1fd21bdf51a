package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/tsdb"
)

// TSDBAggregates resolves AggregateSource against the TSDB Reader:
// the only aggregates the Alert Engine cannot derive directly from
// the State Store.
type TSDBAggregates struct {
	reader *tsdb.Reader
	log    logger.Logger
}

// NewTSDBAggregates constructs a TSDBAggregates.
func NewTSDBAggregates(reader *tsdb.Reader, log logger.Logger) *TSDBAggregates {
	return &TSDBAggregates{reader: reader, log: log.Component("alert-aggregates")}
}

// DeviceAggregates queries every aggregate an expression can reference
// for one device. A failed query degrades to 0 for that aggregate
// rather than failing the whole evaluation; the first error
// encountered, if any, is still returned so the caller can log it once.
func (a *TSDBAggregates) DeviceAggregates(ctx context.Context, d *models.Device, window time.Duration) (Aggregates, error) {
	var agg Aggregates

	var firstErr error

	agg.AvgPingMS = a.scalar(ctx, avgOverTimeQuery(models.MetricPingRTTMs, d.Name, window), &firstErr)
	agg.PacketLoss = a.scalar(ctx, avgOverTimeQuery(models.MetricPingLossRatio, d.Name, window), &firstErr)
	agg.InterfaceInErrorRate = a.scalar(ctx, sumRateQuery(models.MetricIfInErrors, d.Name, window), &firstErr)
	agg.InterfaceOutDiscardRate = a.scalar(ctx, sumRateQuery(models.MetricIfOutDiscards, d.Name, window), &firstErr)

	return agg, firstErr
}

func (a *TSDBAggregates) scalar(ctx context.Context, query string, firstErr *error) float64 {
	values, err := a.reader.QueryInstant(ctx, query)
	if err != nil {
		a.log.Warn().Str("query", query).Err(err).Msg("aggregate query failed, defaulting to zero")

		if *firstErr == nil {
			*firstErr = err
		}

		return 0
	}

	if len(values) == 0 {
		return 0
	}

	return values[0].Value
}

func avgOverTimeQuery(metric, device string, window time.Duration) string {
	return fmt.Sprintf(`avg_over_time(%s{device=%q}[%s])`, metric, device, promRange(window))
}

func sumRateQuery(metric, device string, window time.Duration) string {
	return fmt.Sprintf(`sum(rate(%s{device=%q}[%s]))`, metric, device, promRange(window))
}

// promRange formats window as a Prometheus range-vector duration.
func promRange(window time.Duration) string {
	return fmt.Sprintf("%ds", int(window.Seconds()))
}

// Package tsdb implements the time-series store client: idempotent
// HTTP line-protocol writes with bounded retry, and
// Prometheus-compatible instant/range reads used only by the Alert
// Engine for aggregates it cannot compute from the State Store.
package tsdb

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// retryBackoffs implements the documented 1s -> 8s, 3 attempts schedule.
var retryBackoffs = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// HTTPClient is the narrow surface Writer needs, so tests can fake it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Writer appends labeled samples to the time-series store.
type Writer struct {
	baseURL string
	client  HTTPClient
	log     logger.Logger
}

// New constructs a Writer pointed at baseURL (TSDB_URL).
func New(baseURL string, client HTTPClient, log logger.Logger) *Writer {
	return &Writer{baseURL: strings.TrimRight(baseURL, "/"), client: client, log: log.Component("tsdb")}
}

// Write POSTs samples as a line-protocol batch. Identical
// (metric, labels, timestamp) writes are idempotent at the store, so
// Write is safe to retry and safe to call twice for the same batch
// (the TSDB deduplicates identical metric/labels/timestamp lines).
//
// On 5xx/network failure it retries with exponential backoff; on 4xx it
// logs and drops without retrying. Failure to write samples never
// aborts the caller's state-machine update.
func (w *Writer) Write(ctx context.Context, samples []models.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	body := encodeLineProtocol(samples)

	var lastErr error

	for attempt := 0; attempt <= len(retryBackoffs); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoffs[attempt-1]):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/write", bytes.NewReader(body))
		if err != nil {
			return errkind.New(errkind.Internal, err)
		}

		req.Header.Set("Content-Type", "text/plain")

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = errkind.New(errkind.Network, err)
			w.log.Debug().Err(err).Int("attempt", attempt).Msg("tsdb write failed, will retry")
			continue
		}

		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			w.log.Warn().Int("status", resp.StatusCode).Msg("tsdb rejected write, dropping")
			return errkind.New(errkind.Conflict, fmt.Errorf("tsdb: 4xx status %d", resp.StatusCode))
		default:
			lastErr = errkind.New(errkind.Network, fmt.Errorf("tsdb: 5xx status %d", resp.StatusCode))
			w.log.Debug().Int("status", resp.StatusCode).Int("attempt", attempt).Msg("tsdb write failed, will retry")
		}
	}

	return lastErr
}

// encodeLineProtocol renders samples as
// `metric{label="value",...} number timestamp_ms` lines, labels sorted
// for deterministic output (and thus a stable idempotency key upstream).
func encodeLineProtocol(samples []models.Sample) []byte {
	var buf bytes.Buffer

	for _, s := range samples {
		buf.WriteString(s.Metric)
		buf.WriteByte('{')

		keys := make([]string, 0, len(s.Labels))
		for k := range s.Labels {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}

			buf.WriteString(k)
			buf.WriteString(`="`)
			buf.WriteString(s.Labels[k])
			buf.WriteByte('"')
		}

		buf.WriteString("} ")
		buf.WriteString(strconv.FormatFloat(s.Value, 'g', -1, 64))
		buf.WriteByte(' ')
		buf.WriteString(strconv.FormatInt(s.Timestamp.UnixMilli(), 10))
		buf.WriteByte('\n')
	}

	return buf.Bytes()
}

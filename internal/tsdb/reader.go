package tsdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
)

// Reader issues Prometheus-compatible instant and range queries,
// used only by the Alert Engine for aggregates the State Store can't
// compute directly (e.g. avg_ping_ms over a window).
type Reader struct {
	baseURL string
	client  HTTPClient
	log     logger.Logger
}

// NewReader constructs a Reader pointed at baseURL.
func NewReader(baseURL string, client HTTPClient, log logger.Logger) *Reader {
	return &Reader{baseURL: baseURL, client: client, log: log.Component("tsdb-reader")}
}

// InstantValue is one sample returned by an instant query.
type InstantValue struct {
	Labels map[string]string `json:"labels"`
	Value  float64           `json:"value"`
}

type instantQueryResponse struct {
	Result []InstantValue `json:"result"`
}

// QueryInstant evaluates promQL at the current time.
func (r *Reader) QueryInstant(ctx context.Context, promQL string) ([]InstantValue, error) {
	u := r.baseURL + "/api/v1/query?" + url.Values{"query": {promQL}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errkind.New(errkind.Internal, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errkind.New(errkind.Network, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errkind.New(errkind.Network, fmt.Errorf("tsdb: query status %d", resp.StatusCode))
	}

	var parsed instantQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errkind.New(errkind.Decode, err)
	}

	return parsed.Result, nil
}

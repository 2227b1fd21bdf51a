package tsdb

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

type fakeHTTPClient struct {
	responses []*http.Response
	calls     int
	lastBody  []byte
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	f.calls++

	if req.Body != nil {
		f.lastBody, _ = io.ReadAll(req.Body)
	}

	resp := f.responses[f.calls-1]

	return resp, nil
}

func newResp(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(nil))}
}

func TestWriteSucceedsFirstTry(t *testing.T) {
	client := &fakeHTTPClient{responses: []*http.Response{newResp(204)}}
	w := New("http://tsdb.local", client, logger.New(logger.Config{}))

	ts := time.Unix(1700000000, 0).UTC()
	err := w.Write(context.Background(), []models.Sample{
		{Metric: "device_ping_status", Labels: map[string]string{"device": "r1", "ip": "10.0.0.1"}, Value: 1, Timestamp: ts},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)
	assert.Contains(t, string(client.lastBody), `device_ping_status{device="r1",ip="10.0.0.1"} 1 `)
}

func TestWriteDropsOn4xxWithoutRetry(t *testing.T) {
	client := &fakeHTTPClient{responses: []*http.Response{newResp(400)}}
	w := New("http://tsdb.local", client, logger.New(logger.Config{}))

	err := w.Write(context.Background(), []models.Sample{
		{Metric: "m", Labels: map[string]string{}, Value: 1, Timestamp: time.Now()},
	})

	require.Error(t, err)
	assert.Equal(t, 1, client.calls)
}

func TestWriteRetriesOn5xxThenSucceeds(t *testing.T) {
	client := &fakeHTTPClient{responses: []*http.Response{newResp(502), newResp(204)}}
	w := New("http://tsdb.local", client, logger.New(logger.Config{}))

	err := w.Write(context.Background(), []models.Sample{
		{Metric: "m", Labels: map[string]string{}, Value: 1, Timestamp: time.Now()},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
}

func TestWriteNoopOnEmptySamples(t *testing.T) {
	client := &fakeHTTPClient{}
	w := New("http://tsdb.local", client, logger.New(logger.Config{}))

	require.NoError(t, w.Write(context.Background(), nil))
	assert.Equal(t, 0, client.calls)
}

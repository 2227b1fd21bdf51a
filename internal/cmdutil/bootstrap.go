// Package cmdutil collects the bootstrap steps every cmd/* process
// repeats (config load, logger, DB pool, task queue, metrics server,
// signal-based shutdown) in one place, so each main.go stays a thin
// wiring layer instead of six near-identical copies.
package cmdutil

import (
	"context"
	"encoding/base64"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/config"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/metrics"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/statestore"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/taskqueue"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/tsdb"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/vault"
)

// LoadConfig reads the config file path from -config (or
// WARDFLUX_CONFIG_PATH, else /etc/wardflux/monitor-core.yaml), overlays
// environment variables, and validates the result.
func LoadConfig() (*config.Config, error) {
	path := os.Getenv("WARDFLUX_CONFIG_PATH")
	if path == "" {
		path = "/etc/wardflux/monitor-core.yaml"
	}

	flagPath := flag.String("config", path, "path to an optional WARD FLUX config file")
	flag.Parse()

	return config.Load(*flagPath)
}

// SignalContext derives a context that cancels on SIGINT/SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}

// ConnectStore dials the relational store and wraps it in a CNPGStore.
func ConnectStore(ctx context.Context, cfg *config.Config, component string, log logger.Logger) (*pgxpool.Pool, *statestore.CNPGStore, error) {
	pool, err := statestore.NewPoolFromURL(ctx, cfg.DBURL, component, int32(cfg.MaxConnectionsPerWorker), log)
	if err != nil {
		return nil, nil, err
	}

	return pool, statestore.NewCNPGStore(pool), nil
}

// ConnectQueue dials the task queue at cfg.QueueURL with the stock
// JetStream settings.
func ConnectQueue(ctx context.Context, cfg *config.Config) (*taskqueue.Queue, error) {
	qcfg := taskqueue.DefaultConfig()
	qcfg.URL = cfg.QueueURL

	return taskqueue.Connect(ctx, qcfg)
}

// NewTSDBWriter builds a tsdb.Writer pointed at cfg.TSDBURL.
func NewTSDBWriter(cfg *config.Config, log logger.Logger) *tsdb.Writer {
	return tsdb.New(cfg.TSDBURL, &http.Client{Timeout: 10 * time.Second}, log)
}

// NewTSDBReader builds a tsdb.Reader pointed at cfg.TSDBURL.
func NewTSDBReader(cfg *config.Config, log logger.Logger) *tsdb.Reader {
	return tsdb.NewReader(cfg.TSDBURL, &http.Client{Timeout: 10 * time.Second}, log)
}

// NewVault decodes cfg.VaultKey (base64, falling back to raw bytes for
// a key already sized to 16/32 bytes) and builds a Vault over store.
func NewVault(cfg *config.Config, store vault.CredentialStore) (*vault.Vault, error) {
	key, err := base64.StdEncoding.DecodeString(cfg.VaultKey)
	if err != nil || (len(key) != 16 && len(key) != 32) {
		key = []byte(cfg.VaultKey)
	}

	return vault.New(store, key)
}

// NewMetrics builds the process's Metrics bundle and starts its
// loopback-only /metrics server, returning a shutdown func.
func NewMetrics(ctx context.Context, addr string, log logger.Logger) (*metrics.Metrics, func(context.Context) error, error) {
	m := metrics.New()

	shutdown, err := m.ServeLoopback(ctx, addr, log)
	if err != nil {
		return nil, nil, err
	}

	return m, shutdown, nil
}

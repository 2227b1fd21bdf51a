// Package statestore implements relational persistence of device records,
// interface inventory, alert rules/history, and the per-device state
// machine fields.
package statestore

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
)

// PoolConfig describes how to dial the relational store.
type PoolConfig struct {
	Host            string
	Port            int
	Database        string
	Username        string
	Password        string
	SSLMode         string
	ApplicationName string
	// MaxConns is clamped to <= 20 per worker process.
	MaxConns int32
}

const defaultMaxConnsPerWorker = 20

// buildConnURL renders cfg as a postgres:// connection URL, defaulting
// port to 5432 and sslmode to disable.
func buildConnURL(cfg PoolConfig) url.URL {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	connURL := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:   "/" + cfg.Database,
	}

	if cfg.Username != "" {
		if cfg.Password != "" {
			connURL.User = url.UserPassword(cfg.Username, cfg.Password)
		} else {
			connURL.User = url.User(cfg.Username)
		}
	}

	q := connURL.Query()

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	q.Set("sslmode", sslMode)

	if cfg.ApplicationName != "" {
		q.Set("application_name", cfg.ApplicationName)
	}

	connURL.RawQuery = q.Encode()

	return connURL
}

// NewPool dials the configured relational store and returns a pgx pool
// sized to stay within the per-worker connection budget.
func NewPool(ctx context.Context, cfg PoolConfig, log logger.Logger) (*pgxpool.Pool, error) {
	connURL := buildConnURL(cfg)

	poolCfg, err := pgxpool.ParseConfig(connURL.String())
	if err != nil {
		return nil, fmt.Errorf("statestore: parse connection string: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 || maxConns > defaultMaxConnsPerWorker {
		maxConns = defaultMaxConnsPerWorker
	}

	poolCfg.MaxConns = maxConns
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("statestore: connect: %w", err)
	}

	log.Info().Str("host", cfg.Host).Int32("max_conns", maxConns).Msg("connected to state store")

	return pool, nil
}

// NewPoolFromURL dials the relational store from a single DB_URL,
// the form every cmd/* process is configured with, clamping MaxConns to
// the same per-worker budget NewPool enforces.
func NewPoolFromURL(ctx context.Context, rawURL, applicationName string, maxConns int32, log logger.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(rawURL)
	if err != nil {
		return nil, fmt.Errorf("statestore: parse db url: %w", err)
	}

	if maxConns <= 0 || maxConns > defaultMaxConnsPerWorker {
		maxConns = defaultMaxConnsPerWorker
	}

	poolCfg.MaxConns = maxConns
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	if applicationName != "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("statestore: connect: %w", err)
	}

	log.Info().Int32("max_conns", maxConns).Str("application_name", applicationName).Msg("connected to state store")

	return pool, nil
}

package statestore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
)

const migrationsTable = "schema_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies every not-yet-applied, forward-only migration
// under migrations/*.up.sql, tracked by version in migrationsTable.
// Migrations are forward-only, idempotent, and never rewritten once
// released.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, log logger.Logger) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return errkind.New(errkind.Internal, fmt.Errorf("statestore: acquire for migrations: %w", err))
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, migrationsTable)); err != nil {
		return errkind.New(errkind.Internal, fmt.Errorf("statestore: create migrations table: %w", err))
	}

	applied := make(map[string]struct{})

	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT version FROM %s`, migrationsTable))
	if err != nil {
		return errkind.New(errkind.Internal, fmt.Errorf("statestore: list applied migrations: %w", err))
	}

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return errkind.New(errkind.Internal, fmt.Errorf("statestore: scan applied migration: %w", err))
		}

		applied[version] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		rows.Close()
		return errkind.New(errkind.Internal, fmt.Errorf("statestore: iterate applied migrations: %w", err))
	}

	rows.Close()

	names, err := availableMigrations()
	if err != nil {
		return err
	}

	for _, name := range names {
		version := extractMigrationVersion(name)
		if _, ok := applied[version]; ok {
			continue
		}

		log.Info().Str("migration", name).Msg("applying schema migration")

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return errkind.New(errkind.Internal, fmt.Errorf("statestore: read migration %s: %w", name, err))
		}

		for idx, stmt := range splitSQLStatements(string(content)) {
			if stmt == "" {
				continue
			}

			if _, err := conn.Exec(ctx, stmt); err != nil {
				return errkind.New(errkind.Internal, fmt.Errorf("statestore: migration %s statement %d: %w", name, idx+1, err))
			}
		}

		if _, err := conn.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (version) VALUES ($1)`, migrationsTable), version); err != nil {
			return errkind.New(errkind.Internal, fmt.Errorf("statestore: record migration %s: %w", name, err))
		}
	}

	return nil
}

func availableMigrations() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, errkind.New(errkind.Internal, fmt.Errorf("statestore: read embedded migrations: %w", err))
	}

	var names []string

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	return names, nil
}

func extractMigrationVersion(filename string) string {
	return strings.Split(filename, "_")[0]
}

// splitSQLStatements splits a migration file into individual statements
// on semicolon-terminated lines, skipping comment-only lines.
func splitSQLStatements(content string) []string {
	var statements []string

	var current strings.Builder

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "--") || trimmed == "" {
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}

		current.WriteString(line)

		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";")
			if stmt != "" {
				statements = append(statements, stmt)
			}

			current.Reset()
		}
	}

	if stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";"); stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}

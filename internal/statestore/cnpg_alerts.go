package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// ListEnabledRules returns every enabled AlertRule for evaluation.
func (s *CNPGStore) ListEnabledRules(ctx context.Context) ([]*models.AlertRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, expression, severity, enabled, cooldown_seconds, auto_resolve,
		       applies_to_device_type, applies_to_vendor, applies_to_ip_like, applies_to_isp_only
		FROM alert_rules WHERE enabled = TRUE`)
	if err != nil {
		return nil, errkind.New(errkind.Internal, fmt.Errorf("statestore: list rules: %w", err))
	}
	defer rows.Close()

	var rules []*models.AlertRule

	for rows.Next() {
		r := &models.AlertRule{}

		if err := rows.Scan(&r.ID, &r.Name, &r.Expression, &r.Severity, &r.Enabled, &r.CooldownSeconds, &r.AutoResolve,
			&r.AppliesTo.DeviceType, &r.AppliesTo.Vendor, &r.AppliesTo.IPLike, &r.AppliesTo.ISPOnly); err != nil {
			return nil, errkind.New(errkind.Internal, fmt.Errorf("statestore: scan rule: %w", err))
		}

		rules = append(rules, r)
	}

	return rules, rows.Err()
}

// GetOpenAlert returns the unresolved AlertHistory row for (deviceID,
// ruleName), matching by rule name rather than rule id so a re-created
// rule under the same name resolves to the same logical alert.
func (s *CNPGStore) GetOpenAlert(ctx context.Context, deviceID, ruleName string) (*models.AlertHistory, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, rule_id, rule_name, device_id, severity, triggered_at, resolved_at, context
		FROM alert_history WHERE device_id = $1 AND rule_name = $2 AND resolved_at IS NULL`,
		deviceID, ruleName)

	return scanAlert(row)
}

// GetLastResolvedAlert returns the most recently resolved row for
// (deviceID, ruleName), used to enforce the cooldown window.
func (s *CNPGStore) GetLastResolvedAlert(ctx context.Context, deviceID, ruleName string) (*models.AlertHistory, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, rule_id, rule_name, device_id, severity, triggered_at, resolved_at, context
		FROM alert_history WHERE device_id = $1 AND rule_name = $2 AND resolved_at IS NOT NULL
		ORDER BY resolved_at DESC LIMIT 1`,
		deviceID, ruleName)

	return scanAlert(row)
}

func scanAlert(row pgx.Row) (*models.AlertHistory, error) {
	a := &models.AlertHistory{}

	var ctxMap map[string]string

	err := row.Scan(&a.ID, &a.RuleID, &a.RuleName, &a.DeviceID, &a.Severity, &a.TriggeredAt, &a.ResolvedAt, &ctxMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // "no open alert" is a valid, common outcome
		}

		return nil, errkind.New(errkind.Internal, fmt.Errorf("statestore: scan alert: %w", err))
	}

	a.Context = ctxMap

	return a, nil
}

// CreateAlert inserts a new AlertHistory row.
func (s *CNPGStore) CreateAlert(ctx context.Context, alert *models.AlertHistory) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alert_history (id, rule_id, rule_name, device_id, severity, triggered_at, context)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		alert.ID, alert.RuleID, alert.RuleName, alert.DeviceID, alert.Severity, alert.TriggeredAt, alert.Context)
	if err != nil {
		return errkind.New(errkind.Internal, fmt.Errorf("statestore: create alert: %w", err))
	}

	return nil
}

// ResolveAlert sets resolved_at and a closing reason on alertID.
func (s *CNPGStore) ResolveAlert(ctx context.Context, alertID string, resolvedAt time.Time, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE alert_history SET resolved_at = $1, context = context || jsonb_build_object('resolution_reason', $2::text)
		WHERE id = $3 AND resolved_at IS NULL`,
		resolvedAt, reason, alertID)
	if err != nil {
		return errkind.New(errkind.Internal, fmt.Errorf("statestore: resolve alert: %w", err))
	}

	return nil
}

// DeleteResolvedBefore removes resolved alert rows older than cutoff
// (default retention 7 days).
func (s *CNPGStore) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alert_history WHERE resolved_at IS NOT NULL AND resolved_at < $1`, cutoff)
	if err != nil {
		return 0, errkind.New(errkind.Internal, fmt.Errorf("statestore: delete resolved alerts: %w", err))
	}

	return int(tag.RowsAffected()), nil
}

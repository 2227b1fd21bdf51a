package alerts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/discovery"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// Synthetic rule ids for the two state-machine-driven builtins; they
// never exist as alert_rules rows, so they carry fixed ids instead of
// a generated one.
const (
	builtinIDDeviceDown     = "builtin:device-down"
	builtinIDDeviceFlapping = "builtin:device-flapping"
)

const resolutionSupersededByFlapping = "superseded-by-flapping"
const resolutionConditionCleared = "condition-cleared"

// defaultAggregateWindow bounds how far back the Alert Engine looks for
// recent samples.
const defaultAggregateWindow = 15 * time.Minute

// Aggregates holds the recent-window TSDB aggregates an AlertRule
// expression can reference.
type Aggregates struct {
	AvgPingMS               float64
	PacketLoss              float64
	InterfaceInErrorRate    float64
	InterfaceOutDiscardRate float64
}

// AggregateSource resolves the recent-window aggregates for one device,
// the only thing the Alert Engine cannot compute directly from the
// State Store.
type AggregateSource interface {
	DeviceAggregates(ctx context.Context, d *models.Device, window time.Duration) (Aggregates, error)
}

// EvalContext is the per-device, per-tick evaluation environment an
// expr.go Node reads from.
type EvalContext struct {
	Device      *models.Device
	IsISPUplink bool
	Now         time.Time
	Aggregates  Aggregates
}

// resolveLHS resolves one comparisonNode left-hand side. The second
// return value is false when the LHS has no meaningful value right now
// (e.g. ping_unreachable_seconds while the device is UP), in which case
// the comparison evaluates to false regardless of operator.
func (c *EvalContext) resolveLHS(lhs string, window int) (float64, bool) {
	switch lhs {
	case "ping_unreachable_seconds":
		if c.Device.DownSince == nil {
			return 0, false
		}

		return c.Now.Sub(*c.Device.DownSince).Seconds(), true
	case "status_changes_in":
		since := c.Now.Add(-time.Duration(window) * time.Second)
		return float64(c.Device.TransitionsSince(since)), true
	case "avg_ping_ms":
		return c.Aggregates.AvgPingMS, true
	case "packet_loss":
		return c.Aggregates.PacketLoss, true
	case "interface_in_error_rate":
		return c.Aggregates.InterfaceInErrorRate, true
	case "interface_out_discard_rate":
		return c.Aggregates.InterfaceOutDiscardRate, true
	default:
		return 0, false
	}
}

// DeviceSource is the narrow device-read surface the Alert Engine needs.
type DeviceSource interface {
	EnabledDeviceIDs(ctx context.Context) ([]string, error)
	GetDevicesByIDs(ctx context.Context, deviceIDs []string) ([]*models.Device, error)
}

// RuleSource is the narrow rule-read surface the Alert Engine needs.
type RuleSource interface {
	ListEnabledRules(ctx context.Context) ([]*models.AlertRule, error)
}

// HistoryStore is the narrow alert-history surface the Alert Engine
// needs to create and resolve rows.
type HistoryStore interface {
	GetOpenAlert(ctx context.Context, deviceID, ruleName string) (*models.AlertHistory, error)
	GetLastResolvedAlert(ctx context.Context, deviceID, ruleName string) (*models.AlertHistory, error)
	CreateAlert(ctx context.Context, alert *models.AlertHistory) error
	ResolveAlert(ctx context.Context, alertID string, resolvedAt time.Time, reason string) error
}

// Report summarizes one RunTick call.
type Report struct {
	DevicesEvaluated int
	AlertsCreated    int
	AlertsResolved   int
}

// ruleDef is the evaluated shape of either a builtin or a configured
// AlertRule, normalized so the dedup/resolution logic doesn't need to
// know which kind it is dealing with.
type ruleDef struct {
	ruleID      string
	ruleName    string
	severity    models.Severity
	autoResolve bool
	cooldown    time.Duration
	builtin     bool
}

type compiledRule struct {
	rule *models.AlertRule
	node Node
}

// Engine evaluates AlertRules plus the two state-machine-driven
// builtins (DeviceDown, DeviceFlapping) once per tick, applying the
// severity dedup, flapping suppression, and cooldown rules.
type Engine struct {
	devices    DeviceSource
	rules      RuleSource
	history    HistoryStore
	aggregates AggregateSource
	window     time.Duration
	log        logger.Logger
	newID      func() string
}

// NewEngine constructs an Engine.
func NewEngine(devices DeviceSource, rules RuleSource, history HistoryStore, aggregates AggregateSource, log logger.Logger) *Engine {
	return &Engine{
		devices:    devices,
		rules:      rules,
		history:    history,
		aggregates: aggregates,
		window:     defaultAggregateWindow,
		log:        log.Component("alertengine"),
		newID:      func() string { return uuid.NewString() },
	}
}

// RunTick evaluates every enabled device against every enabled rule
// plus the builtins, creating and resolving AlertHistory rows as
// needed.
func (e *Engine) RunTick(ctx context.Context, now time.Time) (Report, error) {
	var rep Report

	rules, err := e.rules.ListEnabledRules(ctx)
	if err != nil {
		return rep, err
	}

	compiled := make([]compiledRule, 0, len(rules))

	for _, r := range rules {
		node, perr := Parse(r.Expression)
		if perr != nil {
			e.log.Error().Str("rule_id", r.ID).Str("rule_name", r.Name).Err(perr).
				Msg("skipping rule with unparsable expression")
			continue
		}

		compiled = append(compiled, compiledRule{rule: r, node: node})
	}

	ids, err := e.devices.EnabledDeviceIDs(ctx)
	if err != nil {
		return rep, err
	}

	devs, err := e.devices.GetDevicesByIDs(ctx, ids)
	if err != nil {
		return rep, err
	}

	for _, d := range devs {
		e.evaluateDevice(ctx, d, compiled, now, &rep)
		rep.DevicesEvaluated++
	}

	return rep, nil
}

func (e *Engine) evaluateDevice(ctx context.Context, d *models.Device, compiled []compiledRule, now time.Time, rep *Report) {
	isISP := d.HasTag(discovery.RoleISPUplink) || discovery.IsLikelyISPUplinkByAddress(d.IP)

	agg, err := e.aggregates.DeviceAggregates(ctx, d, e.window)
	if err != nil {
		e.log.Warn().Str("device_id", d.ID).Err(err).Msg("aggregate lookup failed, evaluating with zero-valued aggregates")
	}

	evalCtx := &EvalContext{Device: d, IsISPUplink: isISP, Now: now, Aggregates: agg}

	defs := map[string]ruleDef{
		models.RuleDeviceDown: {
			ruleID: builtinIDDeviceDown, ruleName: models.RuleDeviceDown,
			severity: deviceDownSeverity(isISP), autoResolve: true, builtin: true,
		},
		models.RuleDeviceFlapping: {
			ruleID: builtinIDDeviceFlapping, ruleName: models.RuleDeviceFlapping,
			severity: models.SeverityHigh, autoResolve: true, builtin: true,
		},
	}

	matched := map[string]bool{}

	if d.DownSince != nil {
		matched[models.RuleDeviceDown] = true
	}

	if d.IsFlapping {
		matched[models.RuleDeviceFlapping] = true
	}

	for _, cr := range compiled {
		if !ruleApplies(cr.rule.AppliesTo, d, isISP) {
			continue
		}

		defs[cr.rule.Name] = ruleDef{
			ruleID: cr.rule.ID, ruleName: cr.rule.Name, severity: cr.rule.Severity,
			autoResolve: cr.rule.AutoResolve, cooldown: time.Duration(cr.rule.CooldownSeconds) * time.Second,
		}

		if cr.node.Eval(evalCtx) {
			matched[cr.rule.Name] = true
		}
	}

	suppressedByFlapping := d.IsFlapping

	effective := matched
	if suppressedByFlapping {
		effective = map[string]bool{models.RuleDeviceFlapping: true}
	}

	e.resolveStale(ctx, d, defs, effective, suppressedByFlapping, now, rep)
	e.createHighestSeverity(ctx, d, defs, effective, now, rep)
}

// resolveStale closes any currently-open alert whose rule no longer
// matches this tick, either because its condition cleared (resolved
// only if auto_resolve) or because the device started flapping
// (resolved unconditionally, reason "superseded-by-flapping").
func (e *Engine) resolveStale(ctx context.Context, d *models.Device, defs map[string]ruleDef, effective map[string]bool,
	suppressedByFlapping bool, now time.Time, rep *Report) {
	for name, def := range defs {
		if effective[name] {
			continue
		}

		open, err := e.history.GetOpenAlert(ctx, d.ID, name)
		if err != nil {
			e.log.Error().Str("device_id", d.ID).Str("rule_name", name).Err(err).Msg("open alert lookup failed")
			continue
		}

		if open == nil {
			continue
		}

		reason := resolutionConditionCleared
		forced := false

		if suppressedByFlapping && name != models.RuleDeviceFlapping {
			reason = resolutionSupersededByFlapping
			forced = true
		}

		if !forced && !def.autoResolve {
			continue
		}

		if err := e.history.ResolveAlert(ctx, open.ID, now, reason); err != nil {
			e.log.Error().Str("device_id", d.ID).Str("rule_name", name).Err(err).Msg("failed to resolve alert")
			continue
		}

		rep.AlertsResolved++
	}
}

// createHighestSeverity creates at most one new AlertHistory row per
// device per tick: among the rules matching this tick that have no
// open alert and are not in cooldown, only the highest-severity one is
// created.
func (e *Engine) createHighestSeverity(ctx context.Context, d *models.Device, defs map[string]ruleDef, effective map[string]bool,
	now time.Time, rep *Report) {
	var best *ruleDef

	for name := range effective {
		def, ok := defs[name]
		if !ok {
			continue
		}

		open, err := e.history.GetOpenAlert(ctx, d.ID, name)
		if err != nil {
			e.log.Error().Str("device_id", d.ID).Str("rule_name", name).Err(err).Msg("open alert lookup failed")
			continue
		}

		if open != nil {
			continue
		}

		if !def.builtin && e.inCooldown(ctx, d.ID, def, now) {
			continue
		}

		if best == nil || def.severity > best.severity {
			defCopy := def
			best = &defCopy
		}
	}

	if best == nil {
		return
	}

	alert := &models.AlertHistory{
		ID:          e.newID(),
		RuleID:      best.ruleID,
		RuleName:    best.ruleName,
		DeviceID:    d.ID,
		Severity:    best.severity,
		TriggeredAt: now,
		Context:     map[string]string{},
	}

	if err := e.history.CreateAlert(ctx, alert); err != nil {
		e.log.Error().Str("device_id", d.ID).Str("rule_name", best.ruleName).Err(err).Msg("failed to create alert")
		return
	}

	rep.AlertsCreated++
}

func (e *Engine) inCooldown(ctx context.Context, deviceID string, def ruleDef, now time.Time) bool {
	last, err := e.history.GetLastResolvedAlert(ctx, deviceID, def.ruleName)
	if err != nil {
		e.log.Error().Str("device_id", deviceID).Str("rule_name", def.ruleName).Err(err).Msg("resolved alert lookup failed")
		return false
	}

	if last == nil || last.ResolvedAt == nil {
		return false
	}

	return now.Sub(*last.ResolvedAt) < def.cooldown
}

// deviceDownSeverity raises DeviceDown severity for ISP uplinks, per
// the deployment's addressing-plan convention.
func deviceDownSeverity(isISP bool) models.Severity {
	if isISP {
		return models.SeverityCritical
	}

	return models.SeverityHigh
}

// ruleApplies evaluates an AlertRule's ScopePredicate against d.
func ruleApplies(scope models.ScopePredicate, d *models.Device, isISP bool) bool {
	if scope.DeviceType != "" && d.DeviceType != scope.DeviceType {
		return false
	}

	if scope.Vendor != "" && !strings.EqualFold(d.Vendor, scope.Vendor) {
		return false
	}

	if scope.IPLike != "" && !matchLike(scope.IPLike, d.IP) {
		return false
	}

	if scope.ISPOnly && !isISP {
		return false
	}

	return true
}

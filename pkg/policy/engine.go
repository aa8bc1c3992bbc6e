package policy

import (
	"math"
	"sort"

	"github.com/antigravity-dev/robogovern/pkg/worldmodel"
)

// Evaluate is the C3 governance function: pure, deterministic, no I/O. It
// runs the full rule catalog against the snapshot, aggregates the hits, and
// returns the resulting GovernanceDecision. Callers on the fail-closed path
// (§7 PolicyFailureClosed) must treat any panic/error surfaced around this
// call as a DENIED/STOP decision — Evaluate itself never returns an error,
// by construction: every rule is a total function over its inputs.
func Evaluate(t worldmodel.Telemetry, p worldmodel.ActionProposal, w worldmodel.World, cfg Config) GovernanceDecision {
	hits := runCatalog(t, p, w, cfg)

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].PolicyID < hits[j].PolicyID })

	return aggregate(hits, cfg)
}

// runCatalog evaluates every rule and returns the ones that fired, in the
// catalog's declared order (§4.3).
func runCatalog(t worldmodel.Telemetry, p worldmodel.ActionProposal, w worldmodel.World, cfg Config) []Hit {
	var hits []Hit
	for _, rule := range []func(worldmodel.Telemetry, worldmodel.ActionProposal, worldmodel.World, Config) (Hit, bool){
		geofence01,
		humanProx01,
		humanProx02,
		speedLimit01,
		collision01,
		pathBlocked01,
		battery01,
	} {
		if hit, ok := rule(t, p, w, cfg); ok {
			hits = append(hits, hit)
		}
	}
	return hits
}

// geofence01 denies any MOVE_TO whose target falls outside the geofence.
func geofence01(t worldmodel.Telemetry, p worldmodel.ActionProposal, w worldmodel.World, cfg Config) (Hit, bool) {
	if p.Intent != worldmodel.IntentMoveTo {
		return Hit{}, false
	}
	if w.Geofence.Contains(p.Target()) {
		return Hit{}, false
	}
	return Hit{
		PolicyID:       "GEOFENCE_01",
		Severity:       SeverityHigh,
		Effect:         EffectDeny,
		State:          StateStop,
		RiskContrib:    1.0,
		Reason:         "target lies outside the geofence",
		RequiredAction: "halt",
	}, true
}

// humanProx01 denies any action while a detected human is within the stop
// radius. The boundary is inclusive: a human exactly at stop_radius_m stops
// the robot.
func humanProx01(t worldmodel.Telemetry, p worldmodel.ActionProposal, w worldmodel.World, cfg Config) (Hit, bool) {
	if !t.HumanDetected || t.HumanDistanceM > cfg.StopRadiusM {
		return Hit{}, false
	}
	return Hit{
		PolicyID:       "HUMAN_PROX_01",
		Severity:       SeverityHigh,
		Effect:         EffectDeny,
		State:          StateStop,
		RiskContrib:    math.Max(cfg.Weights.High, 0.9),
		Reason:         "human within stop radius",
		RequiredAction: "halt",
	}, true
}

// humanProx02 requires a reduced top speed whenever a detected human is
// within the slow radius but outside the stop radius. If the proposal
// already respects the slow speed the rule still contributes risk (it was a
// live constraint) but its effect is ALLOW; otherwise it forces
// NEEDS_REVIEW and names the speed cap as the remediation.
func humanProx02(t worldmodel.Telemetry, p worldmodel.ActionProposal, w worldmodel.World, cfg Config) (Hit, bool) {
	if !t.HumanDetected || t.HumanDistanceM <= cfg.StopRadiusM || t.HumanDistanceM >= cfg.SlowRadiusM {
		return Hit{}, false
	}
	effect := EffectAllow
	if proposalSpeed(p) > cfg.SlowSpeed {
		effect = EffectNeedsReview
	}
	return Hit{
		PolicyID:       "HUMAN_PROX_02",
		Severity:       SeverityMedium,
		Effect:         effect,
		State:          StateSlow,
		RiskContrib:    cfg.Weights.Medium,
		Reason:         "human within slow radius",
		RequiredAction: "reduce speed to 0.3",
	}, true
}

// speedLimit01 requires proposals to respect the per-zone speed limit.
func speedLimit01(t worldmodel.Telemetry, p worldmodel.ActionProposal, w worldmodel.World, cfg Config) (Hit, bool) {
	limit, ok := zoneSpeedLimit(t.Zone, cfg)
	if !ok {
		return Hit{}, false
	}
	speed := proposalSpeed(p)
	if speed <= limit {
		return Hit{}, false
	}
	return Hit{
		PolicyID:       "SPEED_LIMIT_01",
		Severity:       SeverityMedium,
		Effect:         EffectNeedsReview,
		State:          StateSlow,
		RiskContrib:    cfg.Weights.Medium,
		Reason:         "max_speed exceeds zone limit",
		RequiredAction: "reduce speed to zone limit",
	}, true
}

// collision01 denies and forces a replan when the nearest obstacle along the
// current heading is inside the collision radius.
func collision01(t worldmodel.Telemetry, p worldmodel.ActionProposal, w worldmodel.World, cfg Config) (Hit, bool) {
	if t.NearestObstacleM >= cfg.CollisionRadiusM {
		return Hit{}, false
	}
	return Hit{
		PolicyID:       "COLLISION_01",
		Severity:       SeverityHigh,
		Effect:         EffectDeny,
		State:          StateReplan,
		RiskContrib:    math.Max(cfg.Weights.High, 0.85),
		Reason:         "obstacle inside collision radius",
		RequiredAction: "replan around nearest obstacle",
	}, true
}

// pathBlocked01 denies and forces a replan when a mapped obstacle fouls the
// straight-line segment from the robot's current position to the proposed
// target, within min clearance.
func pathBlocked01(t worldmodel.Telemetry, p worldmodel.ActionProposal, w worldmodel.World, cfg Config) (Hit, bool) {
	if p.Intent != worldmodel.IntentMoveTo {
		return Hit{}, false
	}
	from := worldmodel.Point{X: t.X, Y: t.Y}
	to := p.Target()
	for _, obs := range w.Obstacles {
		if segmentFoulsObstacle(from, to, obs, cfg.MinClearanceM) {
			return Hit{
				PolicyID:       "PATH_BLOCKED_01",
				Severity:       SeverityMedium,
				Effect:         EffectDeny,
				State:          StateReplan,
				RiskContrib:    cfg.Weights.Medium,
				Reason:         "obstacle fouls the path to target",
				RequiredAction: "replan around obstacle",
			}, true
		}
	}
	return Hit{}, false
}

// battery01 flags low battery for human review; it never blocks the tick by
// itself.
func battery01(t worldmodel.Telemetry, p worldmodel.ActionProposal, w worldmodel.World, cfg Config) (Hit, bool) {
	if t.BatteryPct >= cfg.BatteryLowPct {
		return Hit{}, false
	}
	return Hit{
		PolicyID:       "BATTERY_01",
		Severity:       SeverityLow,
		Effect:         EffectNeedsReview,
		State:          StateSafe,
		RiskContrib:    cfg.Weights.Low,
		Reason:         "battery below minimum threshold",
		RequiredAction: "return to charging bay",
	}, true
}

// aggregate combines the catalog's hits into the final decision per §4.3's
// aggregation rules: risk_score is the clamped sum of per-hit contributions,
// policy_state is the max-severity state across hits, and decision resolves
// by priority (any DENY effect, then the deny-risk floor, then any
// NEEDS_REVIEW effect or the approve-risk ceiling, else APPROVED). Per-rule
// effects take precedence over the generic threshold fallback so that a
// single advisory-only hit (e.g. BATTERY_01) still surfaces as NEEDS_REVIEW
// even though its risk contribution alone never crosses 0.70.
func aggregate(hits []Hit, cfg Config) GovernanceDecision {
	if len(hits) == 0 {
		return GovernanceDecision{
			Decision:    DecisionApproved,
			PolicyState: StateSafe,
			PolicyHits:  []string{},
			Reasons:     []string{},
			RiskScore:   0,
		}
	}

	var risk float64
	state := StateSafe
	hasDeny := false
	hasNeedsReview := false
	hasMedium := false

	ids := make([]string, 0, len(hits))
	reasons := make([]string, 0, len(hits))
	for _, h := range hits {
		risk += h.RiskContrib
		if statePriority[h.State] > statePriority[state] {
			state = h.State
		}
		switch h.Effect {
		case EffectDeny:
			hasDeny = true
		case EffectNeedsReview:
			hasNeedsReview = true
		}
		if h.Severity == SeverityMedium {
			hasMedium = true
		}
		ids = append(ids, h.PolicyID)
		reasons = append(reasons, h.Reason)
	}
	risk = clamp01(risk)

	decision := DecisionApproved
	switch {
	case hasDeny, risk >= cfg.RiskDenyMin:
		decision = DecisionDenied
	case hasNeedsReview, (risk >= cfg.RiskApproveMax && hasMedium):
		decision = DecisionNeedsReview
	}

	return GovernanceDecision{
		Decision:       decision,
		PolicyState:    state,
		PolicyHits:     ids,
		Reasons:        reasons,
		RequiredAction: requiredAction(hits),
		RiskScore:      risk,
	}
}

// requiredAction picks the remediation text of the most urgent hit: highest
// state priority first, policy_id lexicographic as the deterministic
// tie-break.
func requiredAction(hits []Hit) *string {
	best := -1
	var action string
	for _, h := range hits {
		if h.RequiredAction == "" {
			continue
		}
		pr := statePriority[h.State]
		if pr > best {
			best = pr
			action = h.RequiredAction
		} else if pr == best && action == "" {
			action = h.RequiredAction
		}
	}
	if best == -1 {
		return nil
	}
	return &action
}

func proposalSpeed(p worldmodel.ActionProposal) float64 {
	if p.Intent == worldmodel.IntentMoveTo || p.Intent == worldmodel.IntentModifySpeed {
		return p.Params.MaxSpeed
	}
	return 0
}

func zoneSpeedLimit(z worldmodel.Zone, cfg Config) (float64, bool) {
	switch z {
	case worldmodel.ZoneAisle:
		return cfg.AisleSpeedLimit, true
	case worldmodel.ZoneLoadingBay:
		return cfg.BaySpeedLimit, true
	default:
		return 0, false
	}
}

// segmentFoulsObstacle reports whether the circular obstacle obs, grown by
// clearance, intersects the segment from a to b.
func segmentFoulsObstacle(a, b worldmodel.Point, obs worldmodel.Obstacle, clearance float64) bool {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	threshold := obs.R + clearance

	if lenSq == 0 {
		return dist(a, worldmodel.Point{X: obs.X, Y: obs.Y}) < threshold
	}

	tt := ((obs.X-a.X)*dx + (obs.Y-a.Y)*dy) / lenSq
	tt = math.Max(0, math.Min(1, tt))
	closest := worldmodel.Point{X: a.X + tt*dx, Y: a.Y + tt*dy}
	return dist(closest, worldmodel.Point{X: obs.X, Y: obs.Y}) < threshold
}

func dist(a, b worldmodel.Point) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

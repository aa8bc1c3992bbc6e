// Package agent implements the planner (C4): a deterministic rule-based
// planner for every regular tick, plus an agentic tool-calling loop for
// synchronous /agentic/propose-style calls. The loop's shape (iterate,
// call the model, dispatch on its declared action, stop on a terminal tool
// or a forced-conclusion fallback) is adapted from the teacher's
// ReActController.Run (pkg/agent/controller/react.go), generalized from its
// DB-backed timeline/message bookkeeping to this domain's in-memory ring
// buffer and fixed 5-tool set.
package agent

import (
	"math"
	"strconv"

	"github.com/antigravity-dev/robogovern/pkg/policy"
	"github.com/antigravity-dev/robogovern/pkg/worldmodel"
)

// PlannerConfig holds the deterministic planner's tunables.
type PlannerConfig struct {
	ArriveEpsM    float64
	DefaultSpeed  float64
	DetourOffsetM float64
	MaxReplansPerWindow int
}

// DefaultPlannerConfig returns the §4.4/§6 documented defaults.
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		ArriveEpsM:          0.3,
		DefaultSpeed:        0.5,
		DetourOffsetM:       0.8,
		MaxReplansPerWindow: 3,
	}
}

// Goal is the mission's target point.
type Goal struct {
	X float64
	Y float64
}

// Plan runs the deterministic planner (§4.4.a): one proposal per tick from
// telemetry, the goal, and the previous tick's governance decision (nil on
// the first tick). replansThisWindow lets the caller (C7) enforce the
// per-tick-window replan retry limit; Plan itself never mutates that
// counter.
func Plan(t worldmodel.Telemetry, goal Goal, lastGovernance *policy.GovernanceDecision, cfg PlannerConfig, replansThisWindow int) worldmodel.ActionProposal {
	if lastGovernance != nil {
		switch lastGovernance.PolicyState {
		case policy.StateStop:
			return worldmodel.ActionProposal{
				Intent:    worldmodel.IntentWait,
				Rationale: "last tick's governance decision was STOP",
			}
		case policy.StateReplan:
			if replansThisWindow < cfg.MaxReplansPerWindow {
				return replanDetour(t, goal, cfg)
			}
			return worldmodel.ActionProposal{
				Intent:    worldmodel.IntentWait,
				Rationale: "replan retry limit reached for this tick window",
			}
		}
	}

	if distanceTo(t, goal) <= cfg.ArriveEpsM {
		return worldmodel.ActionProposal{
			Intent:    worldmodel.IntentStop,
			Rationale: "within arrive_eps of goal",
		}
	}

	speed := cfg.DefaultSpeed
	rationale := "moving toward goal at default speed"
	if lastGovernance != nil && lastGovernance.PolicyState == policy.StateSlow {
		if reduced, ok := slowedSpeed(lastGovernance, cfg.DefaultSpeed); ok {
			speed = reduced
			rationale = "moving toward goal at reduced speed per last governance decision"
		}
	}

	return worldmodel.ActionProposal{
		Intent: worldmodel.IntentMoveTo,
		Params: worldmodel.MoveToParams{
			X:        goal.X,
			Y:        goal.Y,
			MaxSpeed: speed,
		},
		Rationale: rationale,
	}
}

// slowedSpeed extracts a numeric cap from a SLOW decision's required_action
// text (e.g. "reduce speed to 0.3"); falls back to not reducing if no
// numeric hint is present.
func slowedSpeed(d *policy.GovernanceDecision, fallback float64) (float64, bool) {
	if d.RequiredAction == nil {
		return fallback, false
	}
	v, ok := trailingFloat(*d.RequiredAction)
	if !ok {
		return fallback, false
	}
	return v, true
}

// replanDetour produces an intermediate waypoint detour_offset ahead of the
// robot along the direct bearing to the goal and detour_offset to the left of
// that bearing. The obstacle that triggered the REPLAN state is not
// consulted: the waypoint is always on the left side, wherever the obstacle
// lies.
func replanDetour(t worldmodel.Telemetry, goal Goal, cfg PlannerConfig) worldmodel.ActionProposal {
	dx := goal.X - t.X
	dy := goal.Y - t.Y
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		return worldmodel.ActionProposal{
			Intent:    worldmodel.IntentWait,
			Rationale: "already at goal; cannot compute detour bearing",
		}
	}

	// unit perpendicular to the goal bearing
	px, py := -dy/dist, dx/dist
	waypointX := t.X + dx/dist*cfg.DetourOffsetM + px*cfg.DetourOffsetM
	waypointY := t.Y + dy/dist*cfg.DetourOffsetM + py*cfg.DetourOffsetM

	return worldmodel.ActionProposal{
		Intent: worldmodel.IntentMoveTo,
		Params: worldmodel.MoveToParams{
			X:        waypointX,
			Y:        waypointY,
			MaxSpeed: cfg.DefaultSpeed,
		},
		Rationale: "detouring around obstacle per REPLAN governance state",
	}
}

func distanceTo(t worldmodel.Telemetry, goal Goal) float64 {
	return math.Hypot(goal.X-t.X, goal.Y-t.Y)
}

// trailingFloat extracts a trailing decimal number from a short remediation
// string such as "reduce speed to 0.3".
func trailingFloat(s string) (float64, bool) {
	start := -1
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' {
			start = i
			continue
		}
		break
	}
	if start == -1 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s[start:], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

package api

import (
	"math"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/antigravity-dev/robogovern/pkg/agent"
	"github.com/antigravity-dev/robogovern/pkg/eventlog"
	"github.com/antigravity-dev/robogovern/pkg/policy"
	"github.com/antigravity-dev/robogovern/pkg/worldmodel"
)

// maxGeneratedWaypoints bounds plan.generate's iteration: a MOVE_TO/REPLAN
// plan that never reaches STOP within this many hops is truncated rather
// than looped forever.
const maxGeneratedWaypoints = 50

type planRequest struct {
	Instruction string `json:"instruction"`
	Goal        *struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"goal"`
	Model string `json:"model"`
}

type waypointOut struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	MaxSpeed float64 `json:"max_speed"`
}

type planGenerateResponse struct {
	Waypoints      []waypointOut               `json:"waypoints"`
	Rationale      string                      `json:"rationale"`
	Governance     []policy.GovernanceDecision `json:"governance"`
	AllApproved    bool                        `json:"all_approved"`
	EstimatedTimeS float64                     `json:"estimated_time_s"`
}

// planGenerateHandler handles POST /plan/generate — C8's plan.generate:
// runs the deterministic planner forward from current telemetry toward the
// goal, governing each hop against a *projected* telemetry (position
// advanced to the previous waypoint), with no side effects (§4.8).
func (s *Server) planGenerateHandler(c *echo.Context) error {
	var req planRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	tel, err := s.sim.GetTelemetry(ctx)
	if err != nil {
		return mapSimError(err)
	}
	world, err := s.sim.GetWorld(ctx)
	if err != nil {
		return mapSimError(err)
	}

	goal := agent.Goal{X: world.Geofence.MaxX, Y: world.Geofence.MaxY}
	if req.Goal != nil {
		goal = agent.Goal{X: req.Goal.X, Y: req.Goal.Y}
	}

	var waypoints []waypointOut
	var decisions []policy.GovernanceDecision
	allApproved := true

	projected := tel
	var lastGovernance *policy.GovernanceDecision
	replans := 0
	for i := 0; i < maxGeneratedWaypoints; i++ {
		proposal := agent.Plan(projected, goal, lastGovernance, s.plannerCfg, replans)
		if proposal.Intent == worldmodel.IntentStop || proposal.Intent == worldmodel.IntentWait {
			break
		}

		decision, _ := policy.EvaluateFailClosed(projected, proposal, world, s.policyCfg)
		decisions = append(decisions, decision)
		if decision.Decision != policy.DecisionApproved {
			allApproved = false
		}
		if decision.PolicyState == policy.StateReplan {
			replans++
		} else {
			replans = 0
		}

		waypoints = append(waypoints, waypointOut{X: proposal.Params.X, Y: proposal.Params.Y, MaxSpeed: proposal.Params.MaxSpeed})
		projected.X, projected.Y = proposal.Params.X, proposal.Params.Y

		lg := decision
		lastGovernance = &lg
	}

	estimated := 0.0
	prev := tel
	for _, wp := range waypoints {
		speed := wp.MaxSpeed
		if speed <= 0 {
			speed = s.plannerCfg.DefaultSpeed
		}
		if speed > 0 {
			estimated += math.Hypot(wp.X-prev.X, wp.Y-prev.Y) / speed
		}
		prev.X, prev.Y = wp.X, wp.Y
	}

	return c.JSON(http.StatusOK, planGenerateResponse{
		Waypoints:      waypoints,
		Rationale:      req.Instruction,
		Governance:     decisions,
		AllApproved:    allApproved,
		EstimatedTimeS: estimated,
	})
}

type planExecuteRequest struct {
	Instruction string        `json:"instruction"`
	Waypoints   []waypointOut `json:"waypoints"`
	Rationale   string        `json:"rationale"`
	RunID       string        `json:"run_id"`
}

type stepResult struct {
	WaypointIndex      int                       `json:"waypoint_index"`
	Executed           bool                      `json:"executed"`
	GovernanceDecision policy.GovernanceDecision `json:"governance_decision"`
	PolicyState        policy.State              `json:"policy_state"`
}

type planExecuteResponse struct {
	Status    string       `json:"status"`
	Steps     []stepResult `json:"steps"`
	AuditHash string       `json:"audit_hash"`
}

// planExecuteHandler handles POST /plan/execute — C8's plan.execute: governs
// and, if approved, executes each waypoint in order against a synthetic (or
// caller-supplied) run, appending DECISION/EXECUTION events for every hop
// (§4.8).
func (s *Server) planExecuteHandler(c *echo.Context) error {
	var req planExecuteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Waypoints) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "waypoints must be non-empty")
	}

	runID := req.RunID
	if runID == "" {
		runID = "plan-" + uuid.New().String()
	}

	ctx := c.Request().Context()
	world, err := s.sim.GetWorld(ctx)
	if err != nil {
		return mapSimError(err)
	}
	tel, err := s.sim.GetTelemetry(ctx)
	if err != nil {
		return mapSimError(err)
	}

	if _, err := eventlog.AppendWithRetry(ctx, s.events, runID, "PLAN", map[string]any{
		"instruction": req.Instruction,
		"waypoints":   req.Waypoints,
		"rationale":   req.Rationale,
	}); err != nil {
		return mapEventlogError(err)
	}

	var steps []stepResult
	anyBlocked := false
	anyWarning := false
	var auditHash string

	for i, wp := range req.Waypoints {
		proposal := worldmodel.ActionProposal{
			Intent:    worldmodel.IntentMoveTo,
			Params:    worldmodel.MoveToParams{X: wp.X, Y: wp.Y, MaxSpeed: wp.MaxSpeed},
			Rationale: req.Rationale,
		}
		decision, _ := policy.EvaluateFailClosed(tel, proposal, world, s.policyCfg)

		decisionEvt, err := eventlog.AppendWithRetry(ctx, s.events, runID, "DECISION", map[string]any{
			"telemetry":  tel,
			"proposal":   proposal,
			"governance": decision,
		})
		if err != nil {
			return mapEventlogError(err)
		}
		auditHash = decisionEvt.Hash

		executed := false
		if decision.Decision == policy.DecisionApproved {
			result, err := s.sim.SendCommand(ctx, proposal)
			if err != nil {
				anyWarning = true
			} else {
				executed = true
				if execEvt, err := eventlog.AppendWithRetry(ctx, s.events, runID, "EXECUTION", map[string]any{
					"command": proposal,
					"result":  result,
				}); err == nil {
					auditHash = execEvt.Hash
				}
				tel.X, tel.Y = wp.X, wp.Y
			}
		} else {
			anyBlocked = true
		}

		steps = append(steps, stepResult{
			WaypointIndex:      i,
			Executed:           executed,
			GovernanceDecision: decision,
			PolicyState:        decision.PolicyState,
		})
	}

	status := "completed"
	switch {
	case anyBlocked:
		status = "blocked"
	case anyWarning:
		status = "completed_with_warnings"
	}

	return c.JSON(http.StatusOK, planExecuteResponse{
		Status:    status,
		Steps:     steps,
		AuditHash: auditHash,
	})
}

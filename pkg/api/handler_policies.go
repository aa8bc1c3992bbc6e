package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/antigravity-dev/robogovern/pkg/policy"
	"github.com/antigravity-dev/robogovern/pkg/worldmodel"
)

// catalogEntry describes one rule in the §4.3 policy catalog for GET
// /policies — static metadata, independent of any particular evaluation.
type catalogEntry struct {
	PolicyID  string `json:"policy_id"`
	Condition string `json:"condition"`
	Severity  string `json:"severity"`
	Effect    string `json:"effect"`
}

var catalog = []catalogEntry{
	{"GEOFENCE_01", "proposal target outside geofence", "HIGH", "DENY+STOP"},
	{"HUMAN_PROX_01", "human_detected AND human_distance_m <= stop_radius", "HIGH", "DENY+STOP"},
	{"HUMAN_PROX_02", "human_detected AND human_distance_m < slow_radius", "MEDIUM", "ALLOW (cap speed)"},
	{"SPEED_LIMIT_01", "proposal max_speed > zone limit", "MEDIUM", "NEEDS_REVIEW"},
	{"COLLISION_01", "nearest_obstacle_m < collision_radius along heading", "HIGH", "DENY+REPLAN"},
	{"PATH_BLOCKED_01", "obstacle fouls straight segment to target", "MEDIUM", "DENY+REPLAN"},
	{"BATTERY_01", "telemetry.battery_pct < battery_low_pct", "LOW", "NEEDS_REVIEW (advisory)"},
}

// policiesHandler handles GET /policies.
func (s *Server) policiesHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, catalog)
}

type policyTestRequest struct {
	Telemetry worldmodel.Telemetry      `json:"telemetry"`
	Proposal  worldmodel.ActionProposal `json:"proposal"`
	World     *worldmodel.World         `json:"world"`
}

// policyTestHandler handles POST /policies/test — C8's policy.test facade:
// C3 alone, no side effects.
func (s *Server) policyTestHandler(c *echo.Context) error {
	var req policyTestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	world := worldmodel.World{}
	if req.World != nil {
		world = *req.World
	}

	decision, err := policy.EvaluateFailClosed(req.Telemetry, req.Proposal, world, s.policyCfg)
	if err != nil {
		// fail-closed: still 200 with the DENIED/STOP decision, not a 4xx/5xx —
		// the evaluator itself never errors the HTTP layer, per §7's
		// PolicyFailureClosed contract.
		return c.JSON(http.StatusOK, decision)
	}
	return c.JSON(http.StatusOK, decision)
}

package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/antigravity-dev/robogovern/pkg/agent"
)

type agentProposeRequest struct {
	Goal *struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"goal"`
	MaxSteps int `json:"max_steps"`
}

type agentProposeResponse struct {
	Proposal       any                 `json:"proposal"`
	Governance     any                 `json:"governance"`
	ThoughtChain   []string            `json:"thought_chain"`
	MemorySummary  agent.MemorySummary `json:"memory_summary"`
	ReplanningUsed bool                `json:"replanning_used"`
	ModelUsed      string              `json:"model_used"`
}

// agentProposeHandler handles POST /agent/propose — the agentic loop (C4.b)
// run synchronously to completion against current telemetry/world. Falls
// back to agent.MockLLMClient (the fixed assess → check → submit script)
// whenever no real model client was wired, so this endpoint answers with a
// deterministic proposal rather than failing outright.
func (s *Server) agentProposeHandler(c *echo.Context) error {
	var req agentProposeRequest
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

	llm := s.llm
	modelUsed := "configured"
	if llm == nil {
		llm = agent.MockLLMClient{Goal: goal, Config: s.plannerCfg}
		modelUsed = "mock"
	}

	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = s.agenticCfg.MaxSteps
	}

	result, err := agent.Loop(ctx, llm, tel, world, s.policyCfg, maxSteps, modelUsed)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "agentic loop failed: "+err.Error())
	}

	return c.JSON(http.StatusOK, agentProposeResponse{
		Proposal:       result.Proposal,
		Governance:     result.Governance,
		ThoughtChain:   result.ThoughtChain,
		MemorySummary:  result.MemorySummary,
		ReplanningUsed: result.ReplanningUsed,
		ModelUsed:      result.ModelUsed,
	})
}

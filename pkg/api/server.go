// Package api provides the HTTP/WebSocket facade over the governance core:
// mission/run CRUD, the C8 decision endpoints (policy.test, plan.generate,
// plan.execute, agentic.propose), and the per-run event/telemetry stream.
// Shaped after the teacher's Echo v5 server (pkg/api/server.go) — same
// "NewServer builds one *echo.Echo, routes registered in setupRoutes,
// Start/StartWithListener/Shutdown lifecycle" skeleton — generalized from
// its session/chat/MCP surface to missions/runs/policies/plan/agent.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/antigravity-dev/robogovern/pkg/agent"
	"github.com/antigravity-dev/robogovern/pkg/eventlog"
	"github.com/antigravity-dev/robogovern/pkg/hub"
	"github.com/antigravity-dev/robogovern/pkg/policy"
	"github.com/antigravity-dev/robogovern/pkg/runservice"
	"github.com/antigravity-dev/robogovern/pkg/simclient"
	"github.com/antigravity-dev/robogovern/pkg/version"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	repo     runservice.Repo
	registry *runservice.Registry
	events   eventlog.Store
	bus      *hub.Hub
	sim      *simclient.Client

	policyCfg  policy.Config
	plannerCfg agent.PlannerConfig
	agenticCfg AgenticConfig
	llm        agent.LLMClient
	plannerOn  bool
}

// AgenticConfig bounds the agentic-propose tool-calling loop served at
// POST /agent/propose. MaxSteps is the step bound. WallClock is carried
// through from configuration but nothing applies it: the loop has no
// wall-clock limit.
type AgenticConfig struct {
	MaxSteps  int
	WallClock time.Duration
}

// Deps bundles every dependency NewServer wires into routes.
type Deps struct {
	Repo       runservice.Repo
	Registry   *runservice.Registry
	Events     eventlog.Store
	Bus        *hub.Hub
	Sim        *simclient.Client
	PolicyCfg  policy.Config
	PlannerCfg agent.PlannerConfig
	AgenticCfg AgenticConfig
	LLM        agent.LLMClient // nil => agentic.propose falls back to agent.MockLLMClient
}

// NewServer builds a Server with every route registered.
func NewServer(d Deps) *Server {
	e := echo.New()
	e.Use(middleware.BodyLimit(2 * 1024 * 1024))
	e.Use(middleware.Recover())

	s := &Server{
		echo:       e,
		repo:       d.Repo,
		registry:   d.Registry,
		events:     d.Events,
		bus:        d.Bus,
		sim:        d.Sim,
		policyCfg:  d.PolicyCfg,
		plannerCfg: d.PlannerCfg,
		agenticCfg: d.AgenticCfg,
		llm:        d.LLM,
		plannerOn:  d.LLM != nil,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthHandler)

	s.echo.POST("/missions", s.createMissionHandler)
	s.echo.GET("/missions", s.listMissionsHandler)
	s.echo.GET("/missions/:id", s.getMissionHandler)
	s.echo.PATCH("/missions/:id", s.patchMissionHandler)
	s.echo.DELETE("/missions/:id", s.deleteMissionHandler)
	s.echo.POST("/missions/:id/start", s.startMissionHandler)
	s.echo.POST("/missions/:id/pause", s.pauseMissionHandler)
	s.echo.POST("/missions/:id/resume", s.resumeMissionHandler)

	s.echo.GET("/runs/:id", s.getRunHandler)
	s.echo.GET("/runs/:id/events", s.listRunEventsHandler)
	s.echo.POST("/runs/:id/stop", s.stopRunHandler)
	s.echo.GET("/runs/:id/path_preview", s.pathPreviewHandler)

	s.echo.GET("/sim/world", s.simWorldHandler)
	s.echo.POST("/sim/scenario", s.simScenarioHandler)

	s.echo.GET("/policies", s.policiesHandler)
	s.echo.POST("/policies/test", s.policyTestHandler)

	s.echo.POST("/plan/generate", s.planGenerateHandler)
	s.echo.POST("/plan/execute", s.planExecuteHandler)
	s.echo.POST("/agent/propose", s.agentProposeHandler)

	s.echo.GET("/ws/runs/:id", s.wsRunHandler)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"ok":              true,
		"version":         version.Full(),
		"planner_enabled": s.plannerOn,
	})
}

// simWorldHandler handles GET /sim/world, proxying the simulator's world
// snapshot.
func (s *Server) simWorldHandler(c *echo.Context) error {
	w, err := s.sim.GetWorld(c.Request().Context())
	if err != nil {
		return mapSimError(err)
	}
	return c.JSON(http.StatusOK, w)
}

// simScenarioHandler handles POST /sim/scenario.
func (s *Server) simScenarioHandler(c *echo.Context) error {
	var req struct {
		Scenario string         `json:"scenario"`
		Params   map[string]any `json:"params"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Scenario == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "scenario is required")
	}
	if err := s.sim.TriggerScenario(c.Request().Context(), req.Scenario, req.Params); err != nil {
		return mapSimError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"accepted": true})
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used
// by tests to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

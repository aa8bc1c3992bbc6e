package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/antigravity-dev/robogovern/pkg/runservice"
)

// missionResponse is the wire shape of a mission row (§6).
type missionResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	GoalX       float64 `json:"goal_x"`
	GoalY       float64 `json:"goal_y"`
	Status      string  `json:"status"`
	ActiveRunID *string `json:"active_run_id"`
}

func toMissionResponse(m runservice.MissionRecord) missionResponse {
	return missionResponse{
		ID:          m.ID,
		Title:       m.Name,
		GoalX:       m.GoalX,
		GoalY:       m.GoalY,
		Status:      m.Status,
		ActiveRunID: m.ActiveRunID,
	}
}

type createMissionRequest struct {
	Title string `json:"title"`
	Goal  struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"goal"`
}

// createMissionHandler handles POST /missions.
func (s *Server) createMissionHandler(c *echo.Context) error {
	var req createMissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	m, err := s.repo.CreateMission(c.Request().Context(), req.Title, req.Goal.X, req.Goal.Y)
	if err != nil {
		return mapRunserviceError(err, "mission not found")
	}
	return c.JSON(http.StatusCreated, toMissionResponse(m))
}

// listMissionsHandler handles GET /missions.
func (s *Server) listMissionsHandler(c *echo.Context) error {
	missions, err := s.repo.ListMissions(c.Request().Context())
	if err != nil {
		return mapRunserviceError(err, "missions not found")
	}
	out := make([]missionResponse, 0, len(missions))
	for _, m := range missions {
		out = append(out, toMissionResponse(m))
	}
	return c.JSON(http.StatusOK, out)
}

// getMissionHandler handles GET /missions/:id.
func (s *Server) getMissionHandler(c *echo.Context) error {
	m, err := s.repo.GetMission(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapRunserviceError(err, "mission not found")
	}
	return c.JSON(http.StatusOK, toMissionResponse(m))
}

type patchMissionRequest struct {
	Goal *struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"goal"`
}

// patchMissionHandler handles PATCH /missions/:id. Only the goal is
// mutable post-creation; title/status changes go through start/pause/resume.
func (s *Server) patchMissionHandler(c *echo.Context) error {
	var req patchMissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	id := c.Param("id")
	if req.Goal != nil {
		if err := s.repo.UpdateMissionGoal(c.Request().Context(), id, req.Goal.X, req.Goal.Y); err != nil {
			return mapRunserviceError(err, "mission not found")
		}
	}
	m, err := s.repo.GetMission(c.Request().Context(), id)
	if err != nil {
		return mapRunserviceError(err, "mission not found")
	}
	return c.JSON(http.StatusOK, toMissionResponse(m))
}

// deleteMissionHandler handles DELETE /missions/:id.
func (s *Server) deleteMissionHandler(c *echo.Context) error {
	if err := s.repo.DeleteMission(c.Request().Context(), c.Param("id")); err != nil {
		return mapRunserviceError(err, "mission not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// startMissionHandler handles POST /missions/:id/start: spawns a run loop
// and transitions the mission to running (§4.7 start_run).
func (s *Server) startMissionHandler(c *echo.Context) error {
	id := c.Param("id")
	runID, err := s.registry.Spawn(c.Request().Context(), id)
	if err != nil {
		return mapRunserviceError(err, "mission not found")
	}
	_ = s.repo.UpdateMissionStatus(c.Request().Context(), id, "running")
	_ = s.repo.SetMissionActiveRun(c.Request().Context(), id, &runID)
	return c.JSON(http.StatusOK, map[string]string{"run_id": runID})
}

// pauseMissionHandler handles POST /missions/:id/pause: stops the active
// run (if any) without deleting mission state, so resume can start a fresh
// run against the same goal.
func (s *Server) pauseMissionHandler(c *echo.Context) error {
	id := c.Param("id")
	m, err := s.repo.GetMission(c.Request().Context(), id)
	if err != nil {
		return mapRunserviceError(err, "mission not found")
	}
	if m.ActiveRunID != nil {
		s.registry.Stop(*m.ActiveRunID)
	}
	if err := s.repo.UpdateMissionStatus(c.Request().Context(), id, "paused"); err != nil {
		return mapRunserviceError(err, "mission not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "paused"})
}

// resumeMissionHandler handles POST /missions/:id/resume: spawns a new run
// loop continuing toward the mission's current goal.
func (s *Server) resumeMissionHandler(c *echo.Context) error {
	id := c.Param("id")
	runID, err := s.registry.Spawn(c.Request().Context(), id)
	if err != nil {
		return mapRunserviceError(err, "mission not found")
	}
	_ = s.repo.UpdateMissionStatus(c.Request().Context(), id, "running")
	_ = s.repo.SetMissionActiveRun(c.Request().Context(), id, &runID)
	return c.JSON(http.StatusOK, map[string]string{"run_id": runID})
}

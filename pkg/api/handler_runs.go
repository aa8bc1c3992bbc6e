package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// runResponse is the wire shape of a run row (§6 GET /runs/{id}).
type runResponse struct {
	ID            string  `json:"id"`
	MissionID     string  `json:"mission_id"`
	Status        string  `json:"status"`
	Tick          int64   `json:"tick"`
	StagnantTicks int64   `json:"stagnant_ticks"`
	LastDecision  string  `json:"last_decision"`
	FailureReason *string `json:"failure_reason"`
	Running       bool    `json:"running_on_this_process"`
}

// getRunHandler handles GET /runs/:id.
func (s *Server) getRunHandler(c *echo.Context) error {
	id := c.Param("id")
	run, err := s.repo.GetRun(c.Request().Context(), id)
	if err != nil {
		return mapRunserviceError(err, "run not found")
	}
	return c.JSON(http.StatusOK, runResponse{
		ID:            run.ID,
		MissionID:     run.MissionID,
		Status:        run.Status,
		Tick:          run.Tick,
		StagnantTicks: run.StagnantTicks,
		LastDecision:  run.LastDecision,
		FailureReason: run.FailureReason,
		Running:       s.registry.Running(id),
	})
}

// listRunEventsHandler handles GET /runs/:id/events. An optional
// since_seq query param is accepted for parity with §6's documented
// list(run_id, since_seq?) contract; since the in-process Store always
// returns the full chain, filtering happens here.
func (s *Server) listRunEventsHandler(c *echo.Context) error {
	id := c.Param("id")
	events, err := s.events.List(c.Request().Context(), id)
	if err != nil {
		return mapEventlogError(err)
	}

	sinceSeq := int64(0)
	if v := c.QueryParam("since_seq"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			sinceSeq = parsed
		}
	}
	if sinceSeq > 0 {
		filtered := events[:0:0]
		for _, e := range events {
			if e.Seq > sinceSeq {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	return c.JSON(http.StatusOK, events)
}

// stopRunHandler handles POST /runs/:id/stop.
func (s *Server) stopRunHandler(c *echo.Context) error {
	id := c.Param("id")
	if !s.registry.Stop(id) {
		return echo.NewHTTPError(http.StatusNotFound, "run is not active on this process")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

// pathPreviewHandler handles GET /runs/:id/path_preview: the most recent
// PLAN event appended for this run by the plan-execution facade, or an
// empty waypoint list if none was ever generated.
func (s *Server) pathPreviewHandler(c *echo.Context) error {
	id := c.Param("id")
	events, err := s.events.List(c.Request().Context(), id)
	if err != nil {
		return mapEventlogError(err)
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == "PLAN" {
			return c.JSONBlob(http.StatusOK, events[i].Payload)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"waypoints": []any{}})
}

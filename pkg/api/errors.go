package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/antigravity-dev/robogovern/pkg/eventlog"
)

// mapEventlogError maps eventlog.Store errors to HTTP error responses, per
// the teacher's mapServiceError (pkg/api/errors.go) shape.
func mapEventlogError(err error) *echo.HTTPError {
	if errors.Is(err, eventlog.ErrRunNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if errors.Is(err, eventlog.ErrChainBreak) {
		return echo.NewHTTPError(http.StatusConflict, "event chain is broken: "+err.Error())
	}
	slog.Error("unexpected eventlog error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

// mapSimError maps simulator-adapter errors (§7 TransientExternal) to HTTP
// error responses. The simulator is always a best-effort upstream from the
// API's point of view; a failure there is a 502, never a 500.
func mapSimError(err error) *echo.HTTPError {
	slog.Warn("simulator call failed", "error", err)
	return echo.NewHTTPError(http.StatusBadGateway, "simulator unavailable: "+err.Error())
}

// mapRunserviceError maps a runservice.Repo error to a 404 carrying
// notFoundMsg. The repos expose no not-found sentinel, so every Repo error,
// a database failure included, is reported as a 404.
func mapRunserviceError(err error, notFoundMsg string) *echo.HTTPError {
	slog.Error("runservice error", "error", err)
	return echo.NewHTTPError(http.StatusNotFound, notFoundMsg)
}

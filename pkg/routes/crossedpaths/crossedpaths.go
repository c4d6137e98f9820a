package crossedpaths

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/crossings"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Register registers per-user crossed path routes
func Register(g *echo.Group) {
	g.GET("/:id/crossed-paths", ListCrossedPaths)
	g.GET("/:id/crossed-paths/count", CountCrossedPaths)
}

// RegisterPair registers the pair unlock check
func RegisterPair(g *echo.Group) {
	g.GET("/unlock", CheckUnlock)
}

// ListCrossedPaths lists a user's pair counters, most recent first
func ListCrossedPaths(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "crossedpaths_handler.ListCrossedPaths")
	defer span.End()

	userID := c.Param("id")
	if userID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "user id is required")
	}

	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = parsed
	}

	ctx, svc, err := ectoinject.GetContext[*crossings.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	paths, err := svc.GetCrossedPaths(ctx, userID, time.Now().UTC(), limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"crossed_paths": paths,
		"count":         len(paths),
	})
}

// CountCrossedPaths returns how many pairs the user has crossed with
func CountCrossedPaths(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "crossedpaths_handler.CountCrossedPaths")
	defer span.End()

	userID := c.Param("id")
	if userID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "user id is required")
	}

	ctx, svc, err := ectoinject.GetContext[*crossings.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	count, err := svc.Count(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]int{"count": count})
}

// CheckUnlock reports the unlock state for a pair of users
func CheckUnlock(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "crossedpaths_handler.CheckUnlock")
	defer span.End()

	userA := c.QueryParam("user_a")
	userB := c.QueryParam("user_b")
	if userA == "" || userB == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "user_a and user_b query parameters are required")
	}

	ctx, svc, err := ectoinject.GetContext[*crossings.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	status, err := svc.CheckUnlock(ctx, userA, userB, time.Now().UTC())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, status)
}

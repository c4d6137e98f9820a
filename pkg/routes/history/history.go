package history

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/encounters"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Register registers encounter history routes
func Register(g *echo.Group) {
	g.GET("/:id/crossed-paths/history", GetHistory)
}

// GetHistory returns the user's visible encounters, newest first
func GetHistory(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "history_handler.GetHistory")
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

	ctx, svc, err := ectoinject.GetContext[*encounters.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	entries, err := svc.History(ctx, userID, time.Now().UTC(), limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"history": entries,
		"count":   len(entries),
	})
}

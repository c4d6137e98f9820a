package admin

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/cleanup"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Register registers admin cleanup routes
func Register(g *echo.Group) {
	g.POST("/cleanup/alerts", CleanupAlerts)
	g.POST("/cleanup/history", CleanupHistory)
}

// CleanupAlerts runs an on-demand purge of expired alert events
func CleanupAlerts(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "admin_handler.CleanupAlerts")
	defer span.End()

	ctx, janitor, err := ectoinject.GetContext[*cleanup.Janitor](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := janitor.CleanupExpiredAlerts(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// CleanupHistory runs an on-demand purge of expired history entries
func CleanupHistory(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "admin_handler.CleanupHistory")
	defer span.End()

	ctx, janitor, err := ectoinject.GetContext[*cleanup.Janitor](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := janitor.CleanupExpiredHistory(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

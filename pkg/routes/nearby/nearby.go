package nearby

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/markers"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Register registers nearby map routes
func Register(g *echo.Group) {
	g.GET("/:id/nearby", GetNearby)
}

// GetNearby returns map markers for users around the requester
func GetNearby(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "nearby_handler.GetNearby")
	defer span.End()

	userID := c.Param("id")
	if userID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "user id is required")
	}

	ctx, svc, err := ectoinject.GetContext[*markers.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	users, err := svc.Nearby(ctx, userID, time.Now().UTC())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

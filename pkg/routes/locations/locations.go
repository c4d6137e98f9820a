package locations

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/locations"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var validate = validator.New()

// Register registers location routes
func Register(g *echo.Group) {
	g.PUT("/:id/location", UpdateLocation)
	g.PUT("/:id/location/published", PublishLocation)
}

// UpdateLocation ingests a raw location sample for a user
func UpdateLocation(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "locations_handler.UpdateLocation")
	defer span.End()

	userID := c.Param("id")
	if userID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "user id is required")
	}

	var req models.UpdateLocationRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*locations.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := svc.RecordLocation(ctx, userID, *req.Latitude, *req.Longitude, time.Now().UTC())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// PublishLocation snapshots a user's position into the published projection
func PublishLocation(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "locations_handler.PublishLocation")
	defer span.End()

	userID := c.Param("id")
	if userID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "user id is required")
	}

	var req models.UpdateLocationRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*locations.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := svc.PublishLocation(ctx, userID, *req.Latitude, *req.Longitude, time.Now().UTC())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

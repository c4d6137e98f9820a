package alerts

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/alerts"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var validate = validator.New()

// Register registers anonymized alert routes
func Register(g *echo.Group) {
	g.POST("/:id/crossed-alerts", DetectCrossedAlert)
}

// DetectCrossedAlert checks whether someone eligible sits near the caller's
// reported position. The response only ever says that someone was there.
func DetectCrossedAlert(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "alerts_handler.DetectCrossedAlert")
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

	ctx, svc, err := ectoinject.GetContext[*alerts.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := svc.Detect(ctx, userID, *req.Latitude, *req.Longitude, time.Now().UTC())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

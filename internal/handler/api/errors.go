package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"AutoTrader/internal/domain/models"
	"AutoTrader/internal/llm/prompts"
	"AutoTrader/internal/middleware"
	"AutoTrader/internal/usecase"
	xhttp "AutoTrader/pkg/http"
	applogger "AutoTrader/pkg/logger"
)

// toAppError maps domain and usecase errors onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	if ve, ok := models.AsValidationError(err); ok {
		return xhttp.ValidationFailedError(ve.Field, ve.Reason).WithError(err)
	}
	switch {
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError("not found").WithError(err)
	case errors.Is(err, prompts.ErrUnknownKind):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrStoreUnavailable):
		return xhttp.UnavailableError("candle store is not configured").WithError(err)
	case errors.Is(err, middleware.ErrBufferFull):
		return xhttp.UnavailableError("backend unavailable, retry later").WithError(err)
	}
	return xhttp.InternalError("Something went wrong").WithError(err)
}

// fail writes err as an error envelope, logging anything that is not a client
// error.
func fail(c echo.Context, l *applogger.Logger, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		l.Error(op+" failed", applogger.String("path", c.Path()), applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

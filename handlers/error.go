package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"rover-bridge/utils"

	"github.com/labstack/echo/v4"
)

// NewHTTPErrorHandler returns the central error handler for the Echo
// application.
func NewHTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		logger := logger.With("method", c.Request().Method, "path", c.Path())

		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			c.JSON(echoErr.Code, utils.ErrorResponse(fmt.Sprint(echoErr.Message)))
			return
		}

		appErr, ok := utils.AsAppError(err)
		if !ok {
			logger.Error("Unhandled error occurred",
				"error_type", fmt.Sprintf("%T", err),
				slog.Any("error", err))

			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("An unexpected internal error occurred."))
			return
		}

		if internalErr := appErr.Unwrap(); internalErr != nil {
			logger.Info("Error handled",
				"status_code", appErr.Code,
				"error_message", appErr.Message,
				slog.Any("internal_error", internalErr))
		}

		c.JSON(appErr.Code, utils.ErrorResponse(appErr.Message))
	}
}

package server

import (
	"errors"
	"net/http"

	"github.com/aman-zulfiqar/spl-token-manager/internal/tokenengine"
	"github.com/labstack/echo/v4"
)

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		// Don't send response if already committed
		if c.Response().Committed {
			return
		}

		// Handle Echo HTTP errors (like 404, 400, etc.)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		// Handle all other errors as internal server error
		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

// statusFor maps a token operation failure to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tokenengine.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, tokenengine.ErrInFlight):
		return http.StatusConflict
	case errors.Is(err, tokenengine.ErrSignerRejected):
		return http.StatusForbidden
	case errors.Is(err, tokenengine.ErrOperationDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, tokenengine.ErrNetworkFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

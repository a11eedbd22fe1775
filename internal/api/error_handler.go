package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"regiokaart/internal/apperr"
	"regiokaart/internal/logger"
)

type ErrorResponse struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
	Code    int    `json:"code"`
}

// httpErrorHandler answers with the status of the error kind. echo's own errors keep their status.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	kind := apperr.KindOf(err)
	code := kind.HTTPStatus()
	msg := apperr.Message(err)

	var he *echo.HTTPError
	switch {
	case kind != apperr.KindUnknown:
	case errors.As(err, &he):
		code = he.Code
		msg = http.StatusText(code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusServiceUnavailable
	}
	if code >= http.StatusInternalServerError {
		logger.L().Error("api_error", "path", c.Path(), "kind", kind.String(), "err", err)
	} else {
		logger.L().Debug("api_rejected", "path", c.Path(), "kind", kind.String(), "err", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, ErrorResponse{Message: msg, Kind: kind.String(), Code: code})
}

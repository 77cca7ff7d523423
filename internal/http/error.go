package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/appclacks/sloworker/pkg/slo"
	"github.com/labstack/echo/v4"
	er "github.com/mcorbin/corbierror"
)

func writeError(logger *slog.Logger, c echo.Context, status int, messages ...string) {
	err := c.JSON(status, er.Error{
		Messages: messages,
	})
	if err != nil {
		logger.Error(err.Error())
		c.Response().Status = http.StatusInternalServerError
	}
}

func errorHandler(logger *slog.Logger) func(err error, c echo.Context) {
	return func(err error, c echo.Context) {
		// can happen of ctx.Error() is called in a middleware
		// with nil passed
		if err == nil {
			return
		}
		errLoggedMsg := err.Error() + " on " + c.Request().Method + " " + c.Request().URL.Path
		var corbiError *er.Error
		if errors.As(err, &corbiError) {
			if corbiError.Type == er.NotFound {
				logger.Warn(errLoggedMsg)
			} else {
				logger.Error(errLoggedMsg)
			}
			finalErr, status := er.HTTPError(*corbiError)
			err := c.JSON(status, finalErr)
			if err != nil {
				logger.Error(err.Error())
				c.Response().Status = http.StatusInternalServerError
			}
			return
		}
		logger.Error(errLoggedMsg)
		if errors.Is(err, slo.ErrStoreUnavailable) {
			writeError(logger, c, http.StatusServiceUnavailable, "SLI store unavailable")
			return
		}
		var echoError *echo.HTTPError
		if errors.As(err, &echoError) {
			var jsonError *json.UnmarshalTypeError
			if echoError.Internal != nil && errors.As(echoError.Internal, &jsonError) {
				writeError(logger, c, http.StatusBadRequest, fmt.Sprintf("invalid payload, field %s is incorrect", jsonError.Field))
				return
			}
			if echoError.Code == http.StatusBadRequest && strings.Contains(echoError.Error(), "Field validation") {
				writeError(logger, c, http.StatusBadRequest, strings.Split(fmt.Sprintf("%+v", echoError.Message), "\n")...)
				return
			}
			switch echoError.Code {
			case http.StatusUnauthorized:
				writeError(logger, c, http.StatusUnauthorized, "unauthorized")
				return
			case http.StatusMethodNotAllowed:
				writeError(logger, c, http.StatusMethodNotAllowed, "method not allowed")
				return
			case http.StatusNotFound:
				writeError(logger, c, http.StatusNotFound, "not found")
				return
			}
		}
		writeError(logger, c, http.StatusInternalServerError, "internal server error")
	}
}

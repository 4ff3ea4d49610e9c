package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// CallerHeader carries the opaque, already-authenticated principal.
// Authentication happens upstream; this layer only requires that the
// header is present so ownership checks have something to compare.
const CallerHeader = "X-Caller-ID"

const callerContextKey = "caller_id"

func RequireCaller() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller := c.Request().Header.Get(CallerHeader)
			if caller == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "missing " + CallerHeader + " header",
				})
			}
			c.Set(callerContextKey, caller)
			return next(c)
		}
	}
}

// CallerID returns the identity stored by RequireCaller, or "" on
// routes that did not pass through it.
func CallerID(c echo.Context) string {
	caller, _ := c.Get(callerContextKey).(string)
	return caller
}

package middleware

import (
	"errors"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const maxStack = 8 << 10

// PanicObserver is told about every panic Recovery turns into a 500.
type PanicObserver func(c echo.Context, recovered any)

// Recovery converts a handler panic into a 500 and logs it with the route,
// acting staff member and stack. http.ErrAbortHandler is re-raised so the
// server still drops the connection silently.
func Recovery(logger zerolog.Logger, observers ...PanicObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if e, ok := r.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(r)
				}
				stack := make([]byte, maxStack)
				stack = stack[:runtime.Stack(stack, false)]
				rid, _ := c.Get("request_id").(string)

				logger.Error().
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Str("actor", c.Request().Header.Get(ActorHeader)).
					Interface("panic", r).
					Bytes("stack", stack).
					Msg("panic recovered")

				for _, observe := range observers {
					observe(c, r)
				}
				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}

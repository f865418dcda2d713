package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ActorHeader names the staff member acting on a request. It is advisory
// only; there is no authentication in front of the API.
const ActorHeader = "X-Staff-ID"

// AuditEntry describes one state-changing request.
type AuditEntry struct {
	RequestID  string
	Actor      string
	Method     string
	Route      string
	Params     map[string]string
	StatusCode int
	RemoteIP   string
	Timestamp  time.Time
}

// AuditRecorder receives audit entries; Audit always logs them as well.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every request that changes state: queue claims and requeues,
// confirmations, transfers and registrations. Reads pass through silently.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isMutating(req.Method) {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Actor:      req.Header.Get(ActorHeader),
				Method:     req.Method,
				Route:      c.Path(),
				Params:     make(map[string]string, len(c.ParamNames())),
				StatusCode: c.Response().Status,
				RemoteIP:   c.RealIP(),
				Timestamp:  time.Now().UTC(),
			}
			if he, ok := err.(*echo.HTTPError); ok {
				entry.StatusCode = he.Code
			}
			entry.RequestID, _ = c.Get("request_id").(string)
			for i, name := range c.ParamNames() {
				entry.Params[name] = c.ParamValues()[i]
			}

			logger.Info().
				Str("request_id", entry.RequestID).
				Str("actor", entry.Actor).
				Str("method", entry.Method).
				Str("route", entry.Route).
				Interface("params", entry.Params).
				Int("status", entry.StatusCode).
				Msg("audit")

			for _, r := range recorders {
				if rerr := r.RecordAccess(entry); rerr != nil {
					logger.Warn().Err(rerr).Str("request_id", entry.RequestID).Msg("audit recorder failed")
				}
			}
			return err
		}
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

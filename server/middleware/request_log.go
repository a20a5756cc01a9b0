package middleware

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/agenda/server/internal/observability"
)

// RequestLogger attaches a RequestContext to every request, echoes the request
// id back and logs the finished request. Metrics are recorded when m is set.
func RequestLogger(logger *slog.Logger, m *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			reqCtx := observability.NewRequestContextWithID(logger, req.Header.Get(observability.RequestIDHeader), req.Method, req.URL.Path)
			c.Response().Header().Set(observability.RequestIDHeader, reqCtx.RequestID)
			c.SetRequest(req.WithContext(observability.WithRequestContext(req.Context(), reqCtx)))

			err := next(c)
			if err != nil {
				// Let echo write the response so the logged status is final.
				c.Error(err)
			}

			status := c.Response().Status
			if m != nil {
				route := c.Path()
				if route == "" {
					route = req.URL.Path
				}
				m.Record(route, status, reqCtx.Duration())
			}
			attrs := []slog.Attr{
				slog.Int(observability.LogFieldStatus, status),
				slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
			}
			if status >= 500 {
				reqCtx.Warn("http request", attrs...)
			} else {
				reqCtx.Info("http request", attrs...)
			}
			return nil
		}
	}
}

package middleware

import (
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/tour-experience-booking/internal/logger"
)

// RequestLogger tags every request with an id (reusing an incoming
// X-Request-ID) and writes one structured log entry when it finishes.
func RequestLogger() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            id := req.Header.Get(echo.HeaderXRequestID)
            if id == "" {
                id = uuid.NewString()
            }
            c.Response().Header().Set(echo.HeaderXRequestID, id)
            ctx := logger.WithRequestID(req.Context(), id)
            c.SetRequest(req.WithContext(ctx))

            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }

            status := c.Response().Status
            var ev *zerolog.Event
            l := logger.FromContext(ctx)
            switch {
            case status >= 500:
                ev = l.Error().Err(err)
            case status >= 400:
                ev = l.Warn()
            default:
                ev = l.Info()
            }
            ev.Str("method", req.Method).
                Str("path", c.Path()).
                Int("status", status).
                Dur("latency", time.Since(start)).
                Str("ip", c.RealIP()).
                Msg("request")
            return nil
        }
    }
}

package obs

import (
	"io"
	"os"
	"strings"
	"time"

	"billbook/internal/common"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// NewLogger configures a zerolog logger using the provided format and level.
func NewLogger(format, level string) zerolog.Logger {
	return newLogger(os.Stdout, format, level)
}

func newLogger(w io.Writer, format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	out := w
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// RequestLogger emits one structured event per HTTP request.
func RequestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := logger.Info()
			if v.Error != nil || v.Status >= 500 {
				evt = logger.Error().Err(v.Error)
			}
			evt = evt.
				Str("method", v.Method).
				Str("route", v.RoutePath).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Int64("duration_ms", v.Latency.Milliseconds()).
				Str("request_id", v.RequestID)
			if userID, ok := common.GetUserIDFromContext(c.Request().Context()); ok {
				evt = evt.Str("user_id", userID.String())
			}
			if ip := strings.TrimSpace(v.RemoteIP); ip != "" {
				evt = evt.Str("remote_addr", ip)
			}
			if ua := strings.TrimSpace(v.UserAgent); ua != "" {
				evt = evt.Str("user_agent", ua)
			}
			evt.Msg("http_request")
			return nil
		},
	})
}

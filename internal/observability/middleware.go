package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// unmatchedRoute labels requests no route handled, keeping the path label
// bounded.
const unmatchedRoute = "unmatched"

func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return unmatchedRoute
}

func levelFor(status int) zerolog.Level {
	switch {
	case status >= 500:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// RequestLogger writes one line per request. Paths listed in quiet (probes,
// scrapes of /metrics) are logged at debug on success.
func RequestLogger(logger zerolog.Logger, quiet ...string) gin.HandlerFunc {
	quietSet := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		quietSet[p] = struct{}{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := routeOf(c)
		level := levelFor(status)
		if _, ok := quietSet[route]; ok && level == zerolog.InfoLevel {
			level = zerolog.DebugLevel
		}

		event := logger.WithLevel(level).
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int64("request_bytes", c.Request.ContentLength).
			Int("response_bytes", c.Writer.Size())
		if route == unmatchedRoute {
			event = event.Str("path", c.Request.URL.Path)
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			event = event.Str("errors", errs.String())
		}
		event.Msg("http_request")
	}
}

// RequestMetrics records count and latency per route.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
	}
}

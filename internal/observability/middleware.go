package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouteUnmatched labels requests that hit no registered route.
const RouteUnmatched = "unmatched"

// pollRoutes are hit on a timer by scrapers and dashboards.
var pollRoutes = map[string]bool{
	"/metrics": true,
	"/health":  true,
}

// RouteLabel is the registered route template, e.g. /apps/:host, never the
// raw path.
func RouteLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return RouteUnmatched
}

// RequestLogger logs one line per request for node. Successful polls log at
// trace, other successes at debug, client errors at warn and server errors
// at error.
func RequestLogger(logger zerolog.Logger, node string) gin.HandlerFunc {
	logger = logger.With().Str("node", node).Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := RouteLabel(c)

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		case pollRoutes[route]:
			event = logger.Trace()
		default:
			event = logger.Debug()
		}

		if host := c.Param("host"); host != "" {
			event = event.Str("app_host", host)
		}
		if route == RouteUnmatched {
			event = event.Str("path", c.Request.URL.Path)
		}
		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Msg("http_request")
	}
}

// RequestMetricsMiddleware counts requests by route template. Scrapes of
// /metrics are not counted.
func RequestMetricsMiddleware(node string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := RouteLabel(c)
		if route == "/metrics" {
			return
		}
		RecordHTTPRequest(node, c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

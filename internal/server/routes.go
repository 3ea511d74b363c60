package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/ampm/internal/config/document"
	"github.com/danmuck/ampm/internal/node"
	"github.com/danmuck/ampm/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "0.1.0"

func (s *Server) newRouter() *gin.Engine {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(s.logger, s.cfg.ID))
	r.Use(observability.RequestMetricsMiddleware(s.cfg.ID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	return r
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, node.Health(s, s.started, version, gin.H{"apps": s.registry.Len()}))
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The document is re-read per request so edits apply without a restart.
	s.router.GET("/config", func(c *gin.Context) {
		doc, err := document.Load(s.cfg.ConfigPath)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", s.cfg.ConfigPath).Msg("config document unavailable")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	s.router.GET("/apps", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"apps": s.registry.Snapshot()})
	})

	s.router.GET("/apps/:host", func(c *gin.Context) {
		app, ok := s.registry.Get(c.Param("host"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "app not found"})
			return
		}
		c.JSON(http.StatusOK, app)
	})
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}

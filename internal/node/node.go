package node

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Node is a long-running ampm process with an HTTP surface.
type Node interface {
	NodeID() string
	Kind() string
	HTTPRouter() *gin.Engine
}

// Health builds the shared /health body. extra keys override the defaults.
func Health(n Node, started time.Time, version string, extra gin.H) gin.H {
	body := gin.H{
		"status":  "ok",
		"service": n.NodeID(),
		"kind":    n.Kind(),
		"uptime":  time.Since(started).String(),
		"version": version,
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resolvr-ai/resolvr/pkg/health"
)

// handleHealth reports platform degradation. Full degradation returns 503 so
// load balancers stop routing; partial degradation still serves traffic.
func (s *Server) handleHealth(c *gin.Context) {
	if s.deps.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		return
	}

	level := s.deps.Health.Degradation()
	status := "healthy"
	code := http.StatusOK
	switch level {
	case health.DegradationPartial:
		status = "degraded"
	case health.DegradationFull:
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":       status,
		"degradation":  level,
		"dependencies": s.deps.Health.Snapshot(),
	})
}

// Package api is the HTTP surface: channel webhooks feed the dispatch pool,
// the admin and copilot endpoints sit behind a shared-header secret, and
// health plus metrics round out the operational endpoints.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/resolvr-ai/resolvr/pkg/agent"
	"github.com/resolvr-ai/resolvr/pkg/audit"
	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/convstore"
	"github.com/resolvr-ai/resolvr/pkg/flows"
	"github.com/resolvr-ai/resolvr/pkg/health"
	"github.com/resolvr-ai/resolvr/pkg/metrics"
	"github.com/resolvr-ai/resolvr/pkg/models"
	"github.com/resolvr-ai/resolvr/pkg/piivault"
	"github.com/resolvr-ai/resolvr/pkg/sla"
	"github.com/resolvr-ai/resolvr/pkg/tools"
	"github.com/resolvr-ai/resolvr/pkg/voc"
)

// Submitter accepts inbound messages for asynchronous processing.
// Satisfied by the dispatch pool.
type Submitter interface {
	Submit(msg *models.InboundMessage) bool
}

// Deps wires the server's collaborators. Optional members degrade the
// corresponding endpoints to 503 rather than breaking startup.
type Deps struct {
	Config     *config.Config
	AdminKey   string // resolved shared secret; empty locks the admin surface
	Pool       Submitter
	Store      convstore.Store
	Flows      flows.Store
	Vault      piivault.Vault
	Audit      audit.Chain
	Health     *health.Tracker
	Metrics    *metrics.Metrics
	Agent      *agent.Core
	Runtime    *tools.Runtime
	Knowledge  tools.Knowledge
	VOCRecords voc.RecordStore
	SLA        *sla.Engine
}

// Server is the HTTP API server.
type Server struct {
	deps Deps
}

// NewServer creates the API server.
func NewServer(deps Deps) *Server {
	return &Server{deps: deps}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/webhooks/:channel", s.handleWebhook)
	r.GET("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	admin := r.Group("/admin", s.requireAdminKey)
	admin.GET("/flows", s.listFlows)
	admin.POST("/flows", s.createFlow)
	admin.GET("/flows/:id", s.getFlow)
	admin.PUT("/flows/:id", s.updateFlow)
	admin.DELETE("/flows/:id", s.deleteFlow)
	admin.DELETE("/conversations/:id", s.deleteConversation)

	copilot := r.Group("/copilot", s.requireAdminKey)
	copilot.GET("/context/:conversationId", s.copilotContext)
	copilot.POST("/suggest", s.copilotSuggest)
	copilot.POST("/execute-action", s.copilotExecuteAction)
	copilot.POST("/knowledge-search", s.copilotKnowledgeSearch)

	return r
}

// requireAdminKey guards the admin surface with a shared header secret.
// An unset secret rejects everything.
func (s *Server) requireAdminKey(c *gin.Context) {
	key := c.GetHeader("X-Admin-Key")
	if s.deps.AdminKey == "" || key != s.deps.AdminKey {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}

// actor identifies the admin caller for audit events.
func actor(c *gin.Context) string {
	if user := c.GetHeader("X-Forwarded-User"); user != "" {
		return user
	}
	if email := c.GetHeader("X-Forwarded-Email"); email != "" {
		return email
	}
	return "admin-api"
}

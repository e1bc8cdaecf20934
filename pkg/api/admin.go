package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resolvr-ai/resolvr/pkg/audit"
	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/flows"
)

// tenantParam resolves the tenant scope for admin requests.
func tenantParam(c *gin.Context) string {
	if tenant := c.Query("tenant_id"); tenant != "" {
		return tenant
	}
	return config.DefaultTenantID
}

func (s *Server) listFlows(c *gin.Context) {
	listed, err := s.deps.Flows.List(c.Request.Context(), tenantParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing flows failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flows": listed})
}

func (s *Server) createFlow(c *gin.Context) {
	var flow flows.Flow
	if err := c.ShouldBindJSON(&flow); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if flow.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if flow.TenantID == "" {
		flow.TenantID = tenantParam(c)
	}

	if err := s.deps.Flows.Create(c.Request.Context(), &flow); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "creating flow failed"})
		return
	}
	s.adminAudit(c, "flow_created", flow.TenantID, map[string]any{"flow_id": flow.ID, "name": flow.Name})
	c.JSON(http.StatusCreated, flow)
}

func (s *Server) getFlow(c *gin.Context) {
	flow, err := s.deps.Flows.Get(c.Request.Context(), tenantParam(c), c.Param("id"))
	if errors.Is(err, flows.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "flow not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading flow failed"})
		return
	}
	c.JSON(http.StatusOK, flow)
}

func (s *Server) updateFlow(c *gin.Context) {
	var flow flows.Flow
	if err := c.ShouldBindJSON(&flow); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flow.ID = c.Param("id")
	if flow.TenantID == "" {
		flow.TenantID = tenantParam(c)
	}

	err := s.deps.Flows.Update(c.Request.Context(), &flow)
	if errors.Is(err, flows.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "flow not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "updating flow failed"})
		return
	}
	s.adminAudit(c, "flow_updated", flow.TenantID, map[string]any{"flow_id": flow.ID, "version": flow.Version})
	c.JSON(http.StatusOK, flow)
}

func (s *Server) deleteFlow(c *gin.Context) {
	tenantID := tenantParam(c)
	err := s.deps.Flows.Delete(c.Request.Context(), tenantID, c.Param("id"))
	if errors.Is(err, flows.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "flow not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deleting flow failed"})
		return
	}
	s.adminAudit(c, "flow_deleted", tenantID, map[string]any{"flow_id": c.Param("id")})
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// deleteConversation is the GDPR-style erasure endpoint: the conversation
// record and every vault token tied to it are removed, and the erasure
// itself is audited.
func (s *Server) deleteConversation(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	conv, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading conversation failed"})
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}

	if err := s.deps.Store.Delete(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deleting conversation failed"})
		return
	}
	purged := true
	if s.deps.Vault != nil {
		if err := s.deps.Vault.Purge(ctx, id); err != nil {
			purged = false
		}
	}
	if s.deps.Audit != nil {
		_ = s.deps.Audit.Append(ctx, audit.Event{
			Actor:          actor(c),
			Action:         "conversation_erased",
			Category:       audit.CategoryGDPR,
			ConversationID: id,
			TenantID:       conv.TenantID,
			Details:        map[string]any{"pii_purged": purged},
		})
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "pii_purged": purged})
}

// adminAudit records an admin mutation, best-effort.
func (s *Server) adminAudit(c *gin.Context, action, tenantID string, details map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	_ = s.deps.Audit.Append(c.Request.Context(), audit.Event{
		Actor:    actor(c),
		Action:   action,
		Category: audit.CategoryAdminAction,
		TenantID: tenantID,
		Details:  details,
	})
}

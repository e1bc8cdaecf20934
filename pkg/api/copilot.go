package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/resolvr-ai/resolvr/pkg/agent"
	"github.com/resolvr-ai/resolvr/pkg/audit"
	"github.com/resolvr-ai/resolvr/pkg/tools"
)

// copilotContext assembles everything a human agent needs when taking over a
// conversation: the record itself, the SLA clock, and the VOC trail.
func (s *Server) copilotContext(c *gin.Context) {
	id := c.Param("conversationId")
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

	out := gin.H{"conversation": conv}
	if s.deps.SLA != nil {
		if record, err := s.deps.SLA.Get(ctx, id); err == nil && record != nil {
			out["sla"] = record
		}
	}
	if s.deps.VOCRecords != nil {
		if records, err := s.deps.VOCRecords.List(ctx, id); err == nil {
			out["voc_records"] = records
		}
	}
	c.JSON(http.StatusOK, out)
}

type suggestRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Query          string `json:"query"`
}

// copilotSuggest drafts a reply for the human agent. The draft is never sent
// to the customer from here.
func (s *Server) copilotSuggest(c *gin.Context) {
	if s.deps.Agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent unavailable"})
		return
	}
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	conv, err := s.deps.Store.Get(ctx, req.ConversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading conversation failed"})
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}

	text := req.Query
	if text == "" {
		text = "Draft the next reply to the customer based on the conversation so far."
	}
	resp, err := s.deps.Agent.Process(ctx, agent.ProcessInput{
		UserText:  text,
		History:   conv.Turns,
		Memory:    &conv.Memory,
		Channel:   conv.SourceChannel,
		RequestID: uuid.NewString(),
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "suggestion failed"})
		return
	}

	s.copilotAudit(c, "copilot_suggest", conv.TenantID, req.ConversationID, nil)
	out := gin.H{
		"reply":      resp.UserFacingMessage,
		"intent":     resp.Intent,
		"tool_calls": resp.ToolCalls,
	}
	if resp.ConfidenceScore != nil {
		out["confidence"] = *resp.ConfidenceScore
	}
	c.JSON(http.StatusOK, out)
}

type executeActionRequest struct {
	ConversationID string         `json:"conversation_id" binding:"required"`
	Tool           string         `json:"tool" binding:"required"`
	Args           map[string]any `json:"args"`
}

// copilotExecuteAction runs one tool on behalf of the human agent, with
// service-level authorization so restricted tools are reachable.
func (s *Server) copilotExecuteAction(c *gin.Context) {
	if s.deps.Runtime == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tool runtime unavailable"})
		return
	}
	var req executeActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	conv, err := s.deps.Store.Get(ctx, req.ConversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading conversation failed"})
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}

	call := tools.CallContext{
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		RequestID:      uuid.NewString(),
		Channel:        conv.SourceChannel,
		Tenant:         s.deps.Config.Tenants.Resolve(conv.TenantID),
		AuthLevel:      tools.AuthService,
	}
	result := s.deps.Runtime.Execute(ctx, req.Tool, req.Args, call)

	s.copilotAudit(c, "copilot_action", conv.TenantID, conv.ID, map[string]any{
		"tool":    req.Tool,
		"success": result.Success,
	})
	c.JSON(http.StatusOK, result)
}

type knowledgeSearchRequest struct {
	TenantID string `json:"tenant_id"`
	Query    string `json:"query" binding:"required"`
	Limit    int    `json:"limit"`
}

func (s *Server) copilotKnowledgeSearch(c *gin.Context) {
	if s.deps.Knowledge == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "knowledge base unavailable"})
		return
	}
	var req knowledgeSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TenantID == "" {
		req.TenantID = tenantParam(c)
	}
	if req.Limit <= 0 || req.Limit > 10 {
		req.Limit = 5
	}

	hits, err := s.deps.Knowledge.Search(c.Request.Context(), req.TenantID, req.Query, req.Limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "knowledge search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits})
}

func (s *Server) copilotAudit(c *gin.Context, action, tenantID, conversationID string, details map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	_ = s.deps.Audit.Append(c.Request.Context(), audit.Event{
		Actor:          actor(c),
		Action:         action,
		Category:       audit.CategoryCopilot,
		ConversationID: conversationID,
		TenantID:       tenantID,
		Details:        details,
	})
}

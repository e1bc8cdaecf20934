package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/models"
)

// handleWebhook accepts one normalized inbound message from a channel
// adapter and queues it for pipeline processing. 202 means queued, not
// processed.
func (s *Server) handleWebhook(c *gin.Context) {
	channel := models.Channel(c.Param("channel"))
	if !models.ValidChannel(channel) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown channel"})
		return
	}

	var msg models.InboundMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg.Channel = channel
	if msg.ConversationID == "" || msg.Message.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id and message.text are required"})
		return
	}
	if msg.TenantID == "" {
		msg.TenantID = config.DefaultTenantID
	}
	if !s.deps.Config.Tenants.Has(msg.TenantID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tenant"})
		return
	}
	if msg.RequestID == "" {
		msg.RequestID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	if s.deps.Pool == nil || !s.deps.Pool.Submit(&msg) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "not accepting messages"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "request_id": msg.RequestID})
}

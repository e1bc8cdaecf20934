// Package orchestrator composes the per-message pipeline: load state, run
// the VOC pre-processor, invoke the agent, govern tool execution, and write
// everything back. The pipeline never throws to the caller; every step is
// wrapped, failures degrade to the safest defined outcome.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/resolvr-ai/resolvr/pkg/agent"
	"github.com/resolvr-ai/resolvr/pkg/audit"
	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/convstore"
	"github.com/resolvr-ai/resolvr/pkg/customer"
	"github.com/resolvr-ai/resolvr/pkg/experiment"
	"github.com/resolvr-ai/resolvr/pkg/learning"
	"github.com/resolvr-ai/resolvr/pkg/metrics"
	"github.com/resolvr-ai/resolvr/pkg/models"
	"github.com/resolvr-ai/resolvr/pkg/notify"
	"github.com/resolvr-ai/resolvr/pkg/piivault"
	"github.com/resolvr-ai/resolvr/pkg/proactive"
	"github.com/resolvr-ai/resolvr/pkg/routing"
	"github.com/resolvr-ai/resolvr/pkg/sla"
	"github.com/resolvr-ai/resolvr/pkg/state"
	"github.com/resolvr-ai/resolvr/pkg/tools"
	"github.com/resolvr-ai/resolvr/pkg/voc"
)

var tracer = otel.Tracer("github.com/resolvr-ai/resolvr/pkg/orchestrator")

// ChannelOutbound delivers replies back to the customer's channel.
type ChannelOutbound interface {
	SendMessage(ctx context.Context, conversationID, text string, channel models.Channel) error
	SendTyping(ctx context.Context, conversationID string, channel models.Channel) error
	EscalateToHuman(ctx context.Context, conversationID, reason, summary string, channel models.Channel) error
}

// RichOutbound is implemented by outbound adapters that can render rich
// media payloads. Checked by type assertion at send time.
type RichOutbound interface {
	SendRichMessage(ctx context.Context, conversationID string, payload *models.RichPayload, channel models.Channel) error
}

// TicketParams describes the ticket created for a new conversation.
type TicketParams struct {
	ConversationID string
	TenantID       string
	Channel        models.Channel
	Subject        string
}

// Ticketing is the helpdesk collaborator.
type Ticketing interface {
	CreateTicket(ctx context.Context, params TicketParams) (string, error)
	UpdateTicket(ctx context.Context, ticketID string, payload models.TicketUpdatePayload) error
}

// Deps wires the orchestrator's collaborators. Store, Config, VOC, Agent,
// and Outbound are required; everything else degrades to a no-op when nil.
type Deps struct {
	Config      *config.Config
	Store       convstore.Store
	Linker      *customer.Linker
	Profiles    customer.ProfileLoader
	SLA         *sla.Engine
	VOC         *voc.Processor
	VOCRecords  voc.RecordStore
	Proactive   *proactive.Checker
	Agent       *agent.Core
	Runtime     *tools.Runtime
	Experiments *experiment.Engine
	Escalation  *routing.EscalationPolicy
	SkillRouter routing.SkillRouter
	Learning    *learning.Collector
	Notifier    *notify.Service
	Audit       audit.Chain
	Outbound    ChannelOutbound
	Ticketing   Ticketing
	Vault       piivault.Vault
	Metrics     *metrics.Metrics
}

// Orchestrator runs the per-message pipeline. Safe for concurrent use; all
// per-message state lives on the stack.
type Orchestrator struct {
	deps Deps
}

// New creates an orchestrator.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// step runs one named pipeline stage under a span. Errors are recorded and
// absorbed: a failed step degrades, it does not abort the message.
func (o *Orchestrator) step(ctx context.Context, name string, fn func(ctx context.Context) error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if o.deps.Metrics != nil {
			o.deps.Metrics.PipelineStepErrors.WithLabelValues(name).Inc()
		}
		slog.Warn("Pipeline step failed",
			"step", name, "error", err)
	}
}

// ProcessMessage runs the full pipeline for one inbound message. The only
// returned errors are an unknown tenant and an agent failure with no static
// fallback; both mean no reply was sent and nothing was saved.
func (o *Orchestrator) ProcessMessage(ctx context.Context, msg *models.InboundMessage) error {
	start := time.Now()
	tenant, err := o.deps.Config.Tenants.Get(msg.TenantID)
	if err != nil {
		o.countMessage(msg.TenantID, msg.Channel, "rejected")
		return fmt.Errorf("resolving tenant %q: %w", msg.TenantID, err)
	}
	text := msg.Message.Text
	log := slog.With("conversation_id", msg.ConversationID, "tenant_id", msg.TenantID, "request_id", msg.RequestID)

	ctx, span := tracer.Start(ctx, "process_message")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", msg.ConversationID),
		attribute.String("tenant.id", msg.TenantID),
		attribute.String("channel", string(msg.Channel)),
	)

	// Step 1: load or create, with omnichannel linking on create.
	var conv *models.Conversation
	o.step(ctx, "load_conversation", func(ctx context.Context) error {
		loaded, err := o.deps.Store.Get(ctx, msg.ConversationID)
		conv = loaded
		return err
	})
	created := conv == nil
	if created {
		conv = models.NewConversation(msg.ConversationID, msg.TenantID, msg.VisitorID, msg.Channel)
		if o.deps.Linker != nil {
			o.step(ctx, "link_customer", func(ctx context.Context) error {
				return o.deps.Linker.LinkNew(ctx, conv, msg.UserProfile)
			})
		}
	}

	// Step 2: auto-create the backing ticket.
	policy := tenant.ChannelPolicy(msg.Channel)
	if conv.State == models.StateNew && conv.TicketID == "" && policy.AutoCreateTicket && o.deps.Ticketing != nil {
		o.step(ctx, "create_ticket", func(ctx context.Context) error {
			id, err := o.deps.Ticketing.CreateTicket(ctx, TicketParams{
				ConversationID: conv.ID,
				TenantID:       conv.TenantID,
				Channel:        msg.Channel,
				Subject:        firstLine(text),
			})
			if err != nil {
				return err
			}
			conv.TicketID = id
			return nil
		})
	}

	// Step 3: SLA tier assignment and record start.
	var profile *models.CustomerProfile
	if o.deps.Profiles != nil && conv.CustomerID != "" {
		o.step(ctx, "load_profile", func(ctx context.Context) error {
			loaded, err := o.deps.Profiles.Load(ctx, conv.CustomerID)
			profile = loaded
			return err
		})
	}
	if created && o.deps.SLA != nil {
		o.step(ctx, "sla_start", func(ctx context.Context) error {
			return o.deps.SLA.Start(ctx, conv.ID, conv.TenantID, o.deps.SLA.AssignTier(profile))
		})
	}
	firstUserTurn := conv.TurnCount == 0

	// Step 4: append the user turn; fold channel identity into memory.
	conv.AppendTurn(models.RoleUser, text)
	userTurn := conv.TurnCount
	conv.Memory.Set("name", msg.UserProfile.Name)
	conv.Memory.Set("email", msg.UserProfile.Email)
	conv.Memory.Set("phone", msg.UserProfile.Phone)

	// Step 5: typing indicator, best-effort.
	o.step(ctx, "send_typing", func(ctx context.Context) error {
		return o.deps.Outbound.SendTyping(ctx, conv.ID, msg.Channel)
	})

	// Step 6: VOC pre-processing.
	var previousIntents []string
	if o.deps.VOCRecords != nil {
		o.step(ctx, "load_voc_history", func(ctx context.Context) error {
			records, err := o.deps.VOCRecords.List(ctx, conv.ID)
			for _, rec := range records {
				if rec.Intent != "" {
					previousIntents = append(previousIntents, rec.Intent)
				}
			}
			return err
		})
	}
	var vocResult models.VOCResult
	o.step(ctx, "voc", func(_ context.Context) error {
		vocResult = o.deps.VOC.Process(text, tenant, voc.Context{
			TurnCount:          conv.TurnCount,
			ClarificationCount: conv.ClarificationCount,
			PreviousIntents:    previousIntents,
		})
		return nil
	})

	// Vault tokenization: detected contact PII gets an encrypted copy the
	// GDPR purge can reach, keyed by conversation.
	if o.deps.Vault != nil {
		o.step(ctx, "tokenize_pii", func(ctx context.Context) error {
			for _, ent := range vocResult.Entities {
				if ent.Type != models.EntityPhone && ent.Type != models.EntityEmail {
					continue
				}
				token, err := o.deps.Vault.Tokenize(ctx, conv.ID, string(ent.Type), piivault.SeverityHigh, ent.Value)
				if err != nil {
					return err
				}
				conv.Memory.AddPIIToken(string(ent.Type), token)
				o.audit(ctx, audit.Event{
					Actor:          "orchestrator",
					Action:         "pii_tokenized",
					Category:       audit.CategoryPIITokenize,
					ConversationID: conv.ID,
					TenantID:       conv.TenantID,
					Details:        map[string]any{"pii_type": string(ent.Type), "token": token},
				})
			}
			return nil
		})
	}

	// Step 7: proactive order inspection.
	call := tools.CallContext{
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		RequestID:      msg.RequestID,
		Channel:        msg.Channel,
		Tenant:         tenant,
		AuthLevel:      tools.AuthNone,
	}
	proactiveContext := ""
	if o.deps.Proactive != nil {
		o.step(ctx, "proactive_check", func(ctx context.Context) error {
			proactiveContext = o.deps.Proactive.Check(ctx, proactive.Input{
				Entities: vocResult.Entities,
				Memory:   &conv.Memory,
				Call:     call,
			})
			return nil
		})
	}

	// Step 8: Customer-360 context and A/B prompt version.
	customerContext := formatProfile(profile)
	promptVersion := tenant.PromptVersion
	if o.deps.Experiments != nil {
		promptVersion = o.deps.Experiments.PromptVersion(conv.ID, promptVersion)
	}

	// Step 9: prefetch order lookups for high-confidence entities.
	prefetch := o.startPrefetch(ctx, vocResult.Entities, call)

	// Step 10: agent core. The one step that can abort the pipeline.
	processInput := agent.ProcessInput{
		UserText:         text,
		History:          conv.RecentHistory(24),
		Memory:           &conv.Memory,
		Channel:          msg.Channel,
		PromptVersion:    promptVersion,
		RequestID:        msg.RequestID,
		ProactiveContext: proactiveContext,
		CustomerContext:  customerContext,
	}
	processInput.History = trimLastUserTurn(processInput.History, text)

	var resp *models.AgentResponse
	agentCtx, agentSpan := tracer.Start(ctx, "agent_process")
	resp, err = o.deps.Agent.Process(agentCtx, processInput)
	if err != nil {
		agentSpan.RecordError(err)
		agentSpan.SetStatus(codes.Error, err.Error())
	}
	agentSpan.End()
	if err != nil {
		fallback, ok := agent.StaticFallback(conv.PrimaryIntent, tenant.SupportContact)
		if !ok {
			log.Error("Agent failed with no static fallback; dropping message for retry", "error", err)
			o.countMessage(msg.TenantID, msg.Channel, "failed")
			return fmt.Errorf("agent core: %w", err)
		}
		log.Warn("Agent failed, using static fallback", "intent", conv.PrimaryIntent, "error", err)
		resp = fallback
	}
	if conv.PrimaryIntent == "" && resp.Intent != "" && resp.Intent != "unknown" {
		conv.PrimaryIntent = resp.Intent
	}

	// Step 11: confidence routing.
	routing.ApplyConfidence(resp, conv.ClarificationCount)

	// Step 12: escalation policy and state transition.
	if o.deps.Escalation != nil {
		if escalate, reason := o.deps.Escalation.Evaluate(tenant, routing.EscalationInput{
			Response:           resp,
			VOC:                &vocResult,
			MessageText:        text,
			ClarificationCount: conv.ClarificationCount,
			TurnCount:          conv.TurnCount,
			Channel:            msg.Channel,
		}); escalate {
			resp.ShouldEscalate = true
			if resp.EscalationReason == "" {
				resp.EscalationReason = reason
			}
		}
	}
	previousState := conv.State
	state.Apply(conv, state.ResolveTargetState(conv.State, resp.Intent, resp.ShouldEscalate))

	// Step 13: execute tool calls in parallel, reusing prefetched promises.
	results := o.executeTools(ctx, resp.ToolCalls, prefetch, call)
	if handoffSucceeded(results) {
		resp.ShouldEscalate = true
		if resp.EscalationReason == "" {
			resp.EscalationReason = "agent_requested"
		}
		state.Apply(conv, models.StateEscalated)
	}

	// Step 14: fold order lookups into memory.
	mergeOrderResults(conv, results)

	// Step 15: fast path or refinement.
	finalText := resp.UserFacingMessage
	if len(results) > 0 {
		if o.allFastPath(results) {
			finalText = agent.BuildToolResultsFallback(results)
		} else {
			refineCtx, refineSpan := tracer.Start(ctx, "agent_refine")
			refined, err := o.deps.Agent.ProcessWithToolResults(refineCtx, agent.RefineInput{
				ProcessInput:  processInput,
				PreviousReply: resp.UserFacingMessage,
				ToolResults:   results,
			})
			if err != nil {
				refineSpan.RecordError(err)
				refineSpan.SetStatus(codes.Error, err.Error())
				log.Warn("Refinement call failed, using template formatter", "error", err)
				finalText = agent.BuildToolResultsFallback(results)
			} else {
				finalText = refined.UserFacingMessage
				adoptRefinement(resp, refined)
			}
			refineSpan.End()
		}
	}

	// Step 16: merge extracted fields into memory.
	for field, value := range resp.ExtractedFields {
		conv.Memory.Set(field, value)
	}

	// Step 17: ticket update, best-effort.
	if conv.TicketID != "" && o.deps.Ticketing != nil && hasTicketUpdate(resp.TicketUpdate) {
		o.step(ctx, "update_ticket", func(ctx context.Context) error {
			return o.deps.Ticketing.UpdateTicket(ctx, conv.TicketID, resp.TicketUpdate)
		})
	}

	// Step 18: assistant turn and clarification accounting.
	conv.AppendTurn(models.RoleAssistant, finalText)
	if resp.ClarificationNeeded || strings.EqualFold(resp.Intent, "clarification") {
		conv.ClarificationCount++
	}
	if conv.State.IsTerminal() && conv.EndedAt == nil {
		now := time.Now()
		conv.EndedAt = &now
		conv.EndedBy = "assistant"
		if conv.State == models.StateEscalated {
			conv.EndedBy = "escalation"
		}
	}
	if previousState != conv.State {
		o.audit(ctx, audit.Event{
			Actor:          "orchestrator",
			Action:         "state_transition",
			Category:       audit.CategoryStateTransition,
			ConversationID: conv.ID,
			TenantID:       conv.TenantID,
			Details:        map[string]any{"from": previousState, "to": conv.State},
		})
	}

	// VOC record save, best-effort.
	if o.deps.VOCRecords != nil {
		record := &models.VOCRecord{
			MessageID:      voc.BuildMessageID(conv.ID, userTurn),
			ConversationID: conv.ID,
			TenantID:       conv.TenantID,
			Channel:        msg.Channel,
			Text:           text,
			Result:         vocResult,
			Intent:         resp.Intent,
			CreatedAt:      time.Now(),
		}
		if resp.Sentiment != nil {
			score := resp.Sentiment.Score
			record.SentimentScore = &score
		}
		o.step(ctx, "save_voc_record", func(ctx context.Context) error {
			return o.deps.VOCRecords.Save(ctx, record)
		})
	}

	// Step 19: save the record; hand terminal conversations to learning.
	o.step(ctx, "save_conversation", func(ctx context.Context) error {
		return o.deps.Store.Save(ctx, conv)
	})
	if conv.State.IsTerminal() {
		if conv.State == models.StateResolved && o.deps.SLA != nil {
			o.step(ctx, "sla_resolution", func(ctx context.Context) error {
				return o.deps.SLA.RecordResolution(ctx, conv.ID)
			})
		}
		if o.deps.Learning != nil {
			var records []models.VOCRecord
			if o.deps.VOCRecords != nil {
				records, _ = o.deps.VOCRecords.List(ctx, conv.ID)
			}
			o.deps.Learning.Submit(learning.Sample{
				Conversation: conv,
				Records:      records,
				Outcome:      strings.ToLower(string(conv.State)),
			})
		}
	}

	// Escalation outbound: summary, human handoff, ops ping.
	if conv.State == models.StateEscalated {
		summary := buildEscalationSummary(conv, resp, &vocResult)
		o.step(ctx, "escalate_outbound", func(ctx context.Context) error {
			return o.deps.Outbound.EscalateToHuman(ctx, conv.ID, resp.EscalationReason, summary, msg.Channel)
		})
		o.audit(ctx, audit.Event{
			Actor:          "orchestrator",
			Action:         "escalated",
			Category:       audit.CategoryEscalation,
			ConversationID: conv.ID,
			TenantID:       conv.TenantID,
			Details:        map[string]any{"reason": resp.EscalationReason, "summary": summary},
		})
		o.deps.Notifier.Escalation(ctx, notify.EscalationInput{
			ConversationID: conv.ID,
			TenantID:       conv.TenantID,
			Channel:        string(msg.Channel),
			Reason:         resp.EscalationReason,
			Urgency:        string(vocResult.Urgency.Level),
			Summary:        summary,
		})
	}

	// Step 20: outbound reply.
	o.step(ctx, "send_reply", func(ctx context.Context) error {
		if resp.ChannelPayload != nil && policy.RichMedia {
			if rich, ok := o.deps.Outbound.(RichOutbound); ok {
				return rich.SendRichMessage(ctx, conv.ID, resp.ChannelPayload, msg.Channel)
			}
		}
		return o.deps.Outbound.SendMessage(ctx, conv.ID, finalText, msg.Channel)
	})

	// Step 21: SLA first-response and breach check.
	if o.deps.SLA != nil {
		if firstUserTurn {
			o.step(ctx, "sla_first_response", func(ctx context.Context) error {
				return o.deps.SLA.RecordFirstResponse(ctx, conv.ID)
			})
		}
		o.step(ctx, "sla_breaches", func(ctx context.Context) error {
			o.deps.SLA.CheckBreaches(ctx, conv.ID)
			return nil
		})
	}

	// Step 22: audit trail.
	o.audit(ctx, audit.Event{
		Actor:          "orchestrator",
		Action:         "message_processed",
		Category:       audit.CategoryConversation,
		ConversationID: conv.ID,
		TenantID:       conv.TenantID,
		Details: map[string]any{
			"channel":    string(msg.Channel),
			"intent":     resp.Intent,
			"state":      conv.State,
			"tool_calls": len(results),
			"escalated":  conv.State == models.StateEscalated,
		},
	})

	// Step 23: skill routing for escalated conversations.
	if conv.State == models.StateEscalated && o.deps.SkillRouter != nil {
		o.step(ctx, "skill_route", func(ctx context.Context) error {
			assignment, err := o.deps.SkillRouter.Route(ctx, routing.RouteRequest{
				ConversationID: conv.ID,
				TenantID:       conv.TenantID,
				Intent:         conv.PrimaryIntent,
				Language:       primaryLanguage(&vocResult),
				Urgency:        vocResult.Urgency.Level,
			})
			if err != nil || assignment == nil {
				return err
			}
			log.Info("Escalation routed to human agent",
				"agent_id", assignment.AgentID, "agent_name", assignment.AgentName)
			return nil
		})
	}

	o.countMessage(msg.TenantID, msg.Channel, "ok")
	if o.deps.Metrics != nil {
		o.deps.Metrics.PipelineDuration.WithLabelValues(msg.TenantID, string(msg.Channel)).Observe(time.Since(start).Seconds())
	}
	return nil
}

// executeTools runs the agent's tool calls in parallel, awaiting a matching
// prefetched promise instead of re-executing when one exists. Results come
// back in call order.
func (o *Orchestrator) executeTools(ctx context.Context, calls []models.ToolCallRequest, prefetch prefetchSet, call tools.CallContext) []*models.ToolResult {
	if len(calls) == 0 || o.deps.Runtime == nil {
		return nil
	}
	ctx, span := tracer.Start(ctx, "execute_tools")
	defer span.End()
	span.SetAttributes(attribute.Int("tool.count", len(calls)))

	results := make([]*models.ToolResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range calls {
		i, req := i, req
		g.Go(func() error {
			if p := prefetch.match(req); p != nil {
				if result := p.await(gctx); result != nil {
					results[i] = result
					return nil
				}
			}
			results[i] = o.deps.Runtime.Execute(gctx, req.Name, req.Args, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// allFastPath reports whether every executed tool is on the fast-path
// allowlist and succeeded, letting the pipeline skip the refinement call.
func (o *Orchestrator) allFastPath(results []*models.ToolResult) bool {
	allowed := make(map[string]bool)
	if o.deps.Config.Tools != nil {
		for _, tool := range o.deps.Config.Tools.FastPathTools {
			allowed[tool] = true
		}
	}
	for _, result := range results {
		if result == nil || !result.Success || !allowed[result.Tool] {
			return false
		}
	}
	return len(results) > 0
}

// mergeOrderResults copies successful order lookups into structured memory.
func mergeOrderResults(conv *models.Conversation, results []*models.ToolResult) {
	for _, result := range results {
		if result == nil || !result.Success || result.Tool != "lookup_customer_orders" {
			continue
		}
		orders, _ := result.Data["orders"].([]any)
		for _, raw := range orders {
			fields, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			orderNo, _ := fields["order_no"].(string)
			if orderNo == "" {
				continue
			}
			status, _ := fields["status"].(string)
			awb, _ := fields["awb"].(string)
			courier, _ := fields["courier"].(string)
			eta, _ := fields["eta"].(string)
			conv.Memory.CacheOrder(models.CachedOrder{
				OrderNo: orderNo,
				Status:  status,
				AWB:     awb,
				Courier: courier,
				ETA:     eta,
			})
			conv.Memory.AddOrderNumber(orderNo)
		}
	}
}

// adoptRefinement folds the refined response's enrichments back into the
// primary response so ticketing and memory see the final picture.
func adoptRefinement(resp, refined *models.AgentResponse) {
	for field, value := range refined.ExtractedFields {
		if resp.ExtractedFields == nil {
			resp.ExtractedFields = make(map[string]any)
		}
		resp.ExtractedFields[field] = value
	}
	if refined.Receipt != nil {
		resp.Receipt = refined.Receipt
	}
	if refined.ChannelPayload != nil {
		resp.ChannelPayload = refined.ChannelPayload
	}
	if refined.ShouldEscalate {
		resp.ShouldEscalate = true
		if resp.EscalationReason == "" {
			resp.EscalationReason = refined.EscalationReason
		}
	}
	if hasTicketUpdate(refined.TicketUpdate) {
		resp.TicketUpdate = refined.TicketUpdate
	}
}

func handoffSucceeded(results []*models.ToolResult) bool {
	for _, result := range results {
		if result != nil && result.Success && result.Tool == "handoff_to_human" {
			return true
		}
	}
	return false
}

func hasTicketUpdate(p models.TicketUpdatePayload) bool {
	return p.Summary != "" || len(p.Tags) > 0 || p.Status != "" ||
		len(p.LeadFields) > 0 || p.IntentClassification != ""
}

// audit appends best-effort: failures are logged and swallowed, and the
// append survives request cancellation.
func (o *Orchestrator) audit(ctx context.Context, ev audit.Event) {
	if o.deps.Audit == nil {
		return
	}
	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	go func() {
		defer cancel()
		if err := o.deps.Audit.Append(appendCtx, ev); err != nil {
			slog.Warn("Audit append failed",
				"action", ev.Action, "conversation_id", ev.ConversationID, "error", err)
		}
	}()
}

func (o *Orchestrator) countMessage(tenantID string, channel models.Channel, status string) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.MessagesProcessed.WithLabelValues(tenantID, string(channel), status).Inc()
	}
}

// formatProfile renders the Customer-360 profile as prompt context.
func formatProfile(p *models.CustomerProfile) string {
	if p == nil {
		return ""
	}
	var parts []string
	if p.Name != "" {
		parts = append(parts, "Name: "+p.Name)
	}
	if p.Tier != "" {
		parts = append(parts, "Tier: "+p.Tier)
	}
	if p.OrderCount > 0 {
		parts = append(parts, fmt.Sprintf("Orders placed: %d", p.OrderCount))
	}
	if p.LifetimeValuePaise > 0 {
		parts = append(parts, fmt.Sprintf("Lifetime value: ₹%.2f", float64(p.LifetimeValuePaise)/100))
	}
	if p.OpenTickets > 0 {
		parts = append(parts, fmt.Sprintf("Open tickets: %d", p.OpenTickets))
	}
	if len(p.Segments) > 0 {
		parts = append(parts, "Segments: "+strings.Join(p.Segments, ", "))
	}
	return strings.Join(parts, "\n")
}

// trimLastUserTurn drops the just-appended user turn from the history sent
// to the agent, which receives the live text separately.
func trimLastUserTurn(history []models.Turn, text string) []models.Turn {
	if n := len(history); n > 0 && history[n-1].Role == models.RoleUser && history[n-1].Content == text {
		return history[:n-1]
	}
	return history
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	if len(text) > 80 {
		text = text[:80]
	}
	return text
}

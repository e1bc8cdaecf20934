package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/resolvr-ai/resolvr/pkg/health"
	"github.com/resolvr-ai/resolvr/pkg/models"
)

// OMS is the order management collaborator.
type OMS interface {
	OrdersByPhone(ctx context.Context, phone string) ([]models.CachedOrder, error)
	OrderByNumber(ctx context.Context, orderNo string) (*models.CachedOrder, error)
	InitiateRefund(ctx context.Context, orderNo, reason string) (refundID string, err error)
}

// Tracking is the shipment tracking collaborator.
type Tracking interface {
	Track(ctx context.Context, awb string) (map[string]any, error)
}

// Payments is the payment gateway collaborator.
type Payments interface {
	PaymentLink(ctx context.Context, orderNo string, amountPaise int64) (string, error)
}

// Handoff requests a human agent takeover from the ticketing system.
type Handoff interface {
	RequestHuman(ctx context.Context, conversationID, reason string) (ticketRef string, err error)
}

// AR creates augmented-reality product preview sessions.
type AR interface {
	CreateSession(ctx context.Context, productID string) (sessionURL string, err error)
}

// KnowledgeHit is one knowledge base search result.
type KnowledgeHit struct {
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	URL     string  `json:"url,omitempty"`
	Score   float64 `json:"score"`
}

// Knowledge searches the tenant knowledge base.
type Knowledge interface {
	Search(ctx context.Context, tenantID, query string, limit int) ([]KnowledgeHit, error)
}

// Collaborators bundles the external systems the builtin tools call. Nil
// members disable the corresponding tools at registration time.
type Collaborators struct {
	OMS       OMS
	Tracking  Tracking
	Payments  Payments
	Handoff   Handoff
	AR        AR
	Knowledge Knowledge
}

func schema(s string) json.RawMessage { return json.RawMessage(s) }

// RegisterBuiltins registers the platform tool set over the given
// collaborators. orderIndex receives successful order lookups for prefetch
// reuse; it may be nil.
func RegisterBuiltins(reg *Registry, c Collaborators, orderIndex OrderIndex) error {
	defs := builtinDefinitions(c, orderIndex)
	for _, def := range defs {
		if def.Handler == nil {
			continue
		}
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("registering %s: %w", def.Name, err)
		}
	}
	return nil
}

func builtinDefinitions(c Collaborators, orderIndex OrderIndex) []*Definition {
	var lookupOrders Handler
	if c.OMS != nil {
		lookupOrders = func(ctx context.Context, args map[string]any, call CallContext) (map[string]any, error) {
			phone, _ := args["phone"].(string)
			orderNo, _ := args["order_no"].(string)

			switch {
			case orderNo != "":
				order, err := c.OMS.OrderByNumber(ctx, orderNo)
				if err != nil {
					return nil, err
				}
				if order == nil {
					return map[string]any{"orders": []any{}}, nil
				}
				indexOrder(ctx, orderIndex, *order, phone)
				return map[string]any{"orders": []any{orderMap(*order)}}, nil
			case phone != "":
				orders, err := c.OMS.OrdersByPhone(ctx, phone)
				if err != nil {
					return nil, err
				}
				out := make([]any, 0, len(orders))
				for _, order := range orders {
					indexOrder(ctx, orderIndex, order, phone)
					out = append(out, orderMap(order))
				}
				return map[string]any{"orders": out}, nil
			default:
				return nil, fmt.Errorf("validation: either phone or order_no is required")
			}
		}
	}

	var trackShipment Handler
	if c.Tracking != nil {
		trackShipment = func(ctx context.Context, args map[string]any, call CallContext) (map[string]any, error) {
			awb, _ := args["awb"].(string)
			if awb == "" {
				orderNo, _ := args["order_no"].(string)
				if orderNo != "" && c.OMS != nil {
					order, err := c.OMS.OrderByNumber(ctx, orderNo)
					if err != nil {
						return nil, err
					}
					if order != nil {
						awb = order.AWB
					}
				}
			}
			if awb == "" {
				return nil, fmt.Errorf("validation: no AWB found for this shipment")
			}
			return c.Tracking.Track(ctx, awb)
		}
	}

	var initiateRefund Handler
	if c.OMS != nil {
		initiateRefund = func(ctx context.Context, args map[string]any, call CallContext) (map[string]any, error) {
			orderNo, _ := args["order_no"].(string)
			reason, _ := args["reason"].(string)
			refundID, err := c.OMS.InitiateRefund(ctx, orderNo, reason)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"refund_id":         refundID,
				"order_no":          orderNo,
				"expected_timeline": "5-7 business days",
			}, nil
		}
	}

	var paymentLink Handler
	if c.Payments != nil {
		paymentLink = func(ctx context.Context, args map[string]any, call CallContext) (map[string]any, error) {
			orderNo, _ := args["order_no"].(string)
			amount, _ := args["amount_paise"].(float64)
			link, err := c.Payments.PaymentLink(ctx, orderNo, int64(amount))
			if err != nil {
				return nil, err
			}
			return map[string]any{"payment_link": link, "order_no": orderNo}, nil
		}
	}

	var handoff Handler
	if c.Handoff != nil {
		handoff = func(ctx context.Context, args map[string]any, call CallContext) (map[string]any, error) {
			reason, _ := args["reason"].(string)
			ref, err := c.Handoff.RequestHuman(ctx, call.ConversationID, reason)
			if err != nil {
				return nil, err
			}
			return map[string]any{"ticket_ref": ref, "status": "queued_for_human"}, nil
		}
	}

	var arSession Handler
	if c.AR != nil {
		arSession = func(ctx context.Context, args map[string]any, call CallContext) (map[string]any, error) {
			productID, _ := args["product_id"].(string)
			url, err := c.AR.CreateSession(ctx, productID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"session_url": url, "product_id": productID}, nil
		}
	}

	var searchKB Handler
	if c.Knowledge != nil {
		searchKB = func(ctx context.Context, args map[string]any, call CallContext) (map[string]any, error) {
			query, _ := args["query"].(string)
			limit := 5
			if l, ok := args["limit"].(float64); ok && l > 0 {
				limit = int(l)
			}
			hits, err := c.Knowledge.Search(ctx, call.TenantID, query, limit)
			if err != nil {
				return nil, err
			}
			out := make([]any, 0, len(hits))
			for _, h := range hits {
				out = append(out, map[string]any{
					"title": h.Title, "snippet": h.Snippet, "url": h.URL, "score": h.Score,
				})
			}
			return map[string]any{"results": out}, nil
		}
	}

	return []*Definition{
		{
			Name:        "lookup_customer_orders",
			Version:     "1.2.0",
			Description: "Look up a customer's orders by phone number or a single order by number.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"phone": {"type": "string", "pattern": "^[6-9][0-9]{9}$"},
					"order_no": {"type": "string", "minLength": 3}
				},
				"additionalProperties": false
			}`),
			OutputSchema: schema(`{
				"type": "object",
				"properties": {"orders": {"type": "array"}},
				"required": ["orders"]
			}`),
			RateLimitPerMinute: 30,
			FeatureFlagKey:     "order_lookup",
			Cacheable:          true,
			CacheTTLSeconds:    120,
			Dependency:         health.DepOMS,
			Handler:            lookupOrders,
		},
		{
			Name:        "track_shipment",
			Version:     "1.1.0",
			Description: "Track a shipment by AWB or order number.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"awb": {"type": "string", "pattern": "^[0-9]{10,18}$"},
					"order_no": {"type": "string", "minLength": 3}
				},
				"additionalProperties": false
			}`),
			RateLimitPerMinute: 30,
			FeatureFlagKey:     "shipment_tracking",
			Cacheable:          true,
			CacheTTLSeconds:    180,
			Dependency:         health.DepTracking,
			Handler:            trackShipment,
		},
		{
			Name:        "initiate_refund",
			Version:     "1.0.2",
			Description: "Start a refund for a delivered or cancelled order.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"order_no": {"type": "string", "minLength": 3},
					"reason": {"type": "string", "minLength": 3}
				},
				"required": ["order_no", "reason"],
				"additionalProperties": false
			}`),
			RateLimitPerMinute: 10,
			FeatureFlagKey:     "refunds",
			Retryable:          boolPtr(false),
			Dependency:         health.DepOMS,
			Handler:            initiateRefund,
		},
		{
			Name:        "generate_payment_link",
			Version:     "1.0.0",
			Description: "Generate a payment link for an outstanding order amount.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"order_no": {"type": "string", "minLength": 3},
					"amount_paise": {"type": "integer", "minimum": 100}
				},
				"required": ["order_no", "amount_paise"],
				"additionalProperties": false
			}`),
			RateLimitPerMinute: 10,
			FeatureFlagKey:     "payment_links",
			Retryable:          boolPtr(false),
			Dependency:         health.DepPayment,
			Handler:            paymentLink,
		},
		{
			Name:        "handoff_to_human",
			Version:     "1.0.0",
			Description: "Queue the conversation for a human agent.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {"reason": {"type": "string"}},
				"additionalProperties": false
			}`),
			RateLimitPerMinute: 20,
			Dependency:         health.DepTicketing,
			Handler:            handoff,
		},
		{
			Name:        "create_ar_session",
			Version:     "0.9.0",
			Description: "Create an augmented-reality product preview session.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {"product_id": {"type": "string", "minLength": 1}},
				"required": ["product_id"],
				"additionalProperties": false
			}`),
			RateLimitPerMinute: 10,
			AllowedChannels:    []models.Channel{models.ChannelWeb},
			FeatureFlagKey:     "ar_preview",
			Handler:            arSession,
		},
		{
			Name:        "search_knowledge_base",
			Version:     "1.3.1",
			Description: "Search the tenant knowledge base for policy and product answers.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "minLength": 2},
					"limit": {"type": "integer", "minimum": 1, "maximum": 20}
				},
				"required": ["query"],
				"additionalProperties": false
			}`),
			RateLimitPerMinute: 60,
			FeatureFlagKey:     "knowledge_search",
			Cacheable:          true,
			CacheTTLSeconds:    300,
			Dependency:         health.DepSearch,
			Handler:            searchKB,
		},
	}
}

func indexOrder(ctx context.Context, idx OrderIndex, order models.CachedOrder, sourcePhone string) {
	if idx == nil {
		return
	}
	if sourcePhone != "" {
		order.SourcePhone = sourcePhone
	}
	idx.Put(ctx, order)
}

// orderMap flattens a cached order into the tool result shape.
func orderMap(order models.CachedOrder) map[string]any {
	m := map[string]any{
		"order_no": strings.ToUpper(order.OrderNo),
		"status":   order.Status,
	}
	if len(order.Items) > 0 {
		m["items"] = order.Items
	}
	if order.AmountPaise > 0 {
		m["amount_paise"] = order.AmountPaise
	}
	if order.AWB != "" {
		m["awb"] = order.AWB
	}
	if order.Courier != "" {
		m["courier"] = order.Courier
	}
	if order.ETA != "" {
		m["eta"] = order.ETA
	}
	if !order.PlacedAt.IsZero() {
		m["placed_at"] = order.PlacedAt.Format(time.RFC3339)
	}
	return m
}

func boolPtr(b bool) *bool { return &b }

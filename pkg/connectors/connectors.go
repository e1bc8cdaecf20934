// Package connectors provides HTTP implementations of the external-system
// seams: order management, shipment tracking, payments, ticketing, knowledge
// search, and outbound channel delivery. Each connector is enabled by
// configuring its base URL; a disabled connector is simply not wired, which
// switches the dependent tools off at registration time.
package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/resolvr-ai/resolvr/pkg/models"
	"github.com/resolvr-ai/resolvr/pkg/orchestrator"
	"github.com/resolvr-ai/resolvr/pkg/tools"
)

// ErrNotFound is returned when the remote system has no record for the key.
var ErrNotFound = errors.New("not found")

const defaultTimeout = 10 * time.Second

// Config holds the per-system base URLs. An empty URL disables that
// connector.
type Config struct {
	OMSBaseURL         string
	TrackingBaseURL    string
	PaymentsBaseURL    string
	TicketingBaseURL   string
	KnowledgeBaseURL   string
	OutboundBaseURL    string
	Customer360BaseURL string

	// APIKey is sent as a bearer token on every request when set.
	APIKey  string
	Timeout time.Duration
}

// FromEnv reads connector configuration from the environment.
func FromEnv() Config {
	return Config{
		OMSBaseURL:         os.Getenv("OMS_BASE_URL"),
		TrackingBaseURL:    os.Getenv("TRACKING_BASE_URL"),
		PaymentsBaseURL:    os.Getenv("PAYMENTS_BASE_URL"),
		TicketingBaseURL:   os.Getenv("TICKETING_BASE_URL"),
		KnowledgeBaseURL:   os.Getenv("KNOWLEDGE_BASE_URL"),
		OutboundBaseURL:    os.Getenv("OUTBOUND_BASE_URL"),
		Customer360BaseURL: os.Getenv("CUSTOMER360_BASE_URL"),
		APIKey:             os.Getenv("CONNECTOR_API_KEY"),
	}
}

// restClient is a small JSON-over-HTTP helper shared by every connector.
type restClient struct {
	base       string
	apiKey     string
	httpClient *http.Client
}

func newRESTClient(base, apiKey string, timeout time.Duration) *restClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &restClient{
		base:       base,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// do performs one JSON request. out may be nil to discard the body. A 404
// maps to ErrNotFound so callers can distinguish absence from failure.
func (c *restClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// OMSClient implements the order management seam over HTTP.
type OMSClient struct {
	rc *restClient
}

// NewOMSClient creates an OMS connector for the given base URL.
func NewOMSClient(cfg Config) *OMSClient {
	return &OMSClient{rc: newRESTClient(cfg.OMSBaseURL, cfg.APIKey, cfg.Timeout)}
}

type ordersResponse struct {
	Orders []models.CachedOrder `json:"orders"`
}

func (c *OMSClient) OrdersByPhone(ctx context.Context, phone string) ([]models.CachedOrder, error) {
	var resp ordersResponse
	path := "/orders?phone=" + url.QueryEscape(phone)
	if err := c.rc.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return resp.Orders, nil
}

func (c *OMSClient) OrderByNumber(ctx context.Context, orderNo string) (*models.CachedOrder, error) {
	var order models.CachedOrder
	path := "/orders/" + url.PathEscape(orderNo)
	if err := c.rc.do(ctx, http.MethodGet, path, nil, &order); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (c *OMSClient) InitiateRefund(ctx context.Context, orderNo, reason string) (string, error) {
	var resp struct {
		RefundID string `json:"refund_id"`
	}
	path := "/orders/" + url.PathEscape(orderNo) + "/refunds"
	if err := c.rc.do(ctx, http.MethodPost, path, map[string]string{"reason": reason}, &resp); err != nil {
		return "", err
	}
	return resp.RefundID, nil
}

// TrackingClient implements the shipment tracking seam over HTTP.
type TrackingClient struct {
	rc *restClient
}

// NewTrackingClient creates a tracking connector for the given base URL.
func NewTrackingClient(cfg Config) *TrackingClient {
	return &TrackingClient{rc: newRESTClient(cfg.TrackingBaseURL, cfg.APIKey, cfg.Timeout)}
}

func (c *TrackingClient) Track(ctx context.Context, awb string) (map[string]any, error) {
	var out map[string]any
	if err := c.rc.do(ctx, http.MethodGet, "/shipments/"+url.PathEscape(awb), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PaymentsClient implements the payment gateway seam over HTTP.
type PaymentsClient struct {
	rc *restClient
}

// NewPaymentsClient creates a payments connector for the given base URL.
func NewPaymentsClient(cfg Config) *PaymentsClient {
	return &PaymentsClient{rc: newRESTClient(cfg.PaymentsBaseURL, cfg.APIKey, cfg.Timeout)}
}

func (c *PaymentsClient) PaymentLink(ctx context.Context, orderNo string, amountPaise int64) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	body := map[string]any{"order_no": orderNo, "amount_paise": amountPaise}
	if err := c.rc.do(ctx, http.MethodPost, "/payment-links", body, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// TicketingClient implements both the helpdesk seam and the human handoff
// seam over the same HTTP backend.
type TicketingClient struct {
	rc *restClient
}

// NewTicketingClient creates a ticketing connector for the given base URL.
func NewTicketingClient(cfg Config) *TicketingClient {
	return &TicketingClient{rc: newRESTClient(cfg.TicketingBaseURL, cfg.APIKey, cfg.Timeout)}
}

func (c *TicketingClient) CreateTicket(ctx context.Context, params orchestrator.TicketParams) (string, error) {
	var resp struct {
		TicketID string `json:"ticket_id"`
	}
	body := map[string]any{
		"conversation_id": params.ConversationID,
		"tenant_id":       params.TenantID,
		"channel":         params.Channel,
		"subject":         params.Subject,
	}
	if err := c.rc.do(ctx, http.MethodPost, "/tickets", body, &resp); err != nil {
		return "", err
	}
	return resp.TicketID, nil
}

func (c *TicketingClient) UpdateTicket(ctx context.Context, ticketID string, payload models.TicketUpdatePayload) error {
	return c.rc.do(ctx, http.MethodPatch, "/tickets/"+url.PathEscape(ticketID), payload, nil)
}

func (c *TicketingClient) RequestHuman(ctx context.Context, conversationID, reason string) (string, error) {
	var resp struct {
		TicketRef string `json:"ticket_ref"`
	}
	body := map[string]string{"conversation_id": conversationID, "reason": reason}
	if err := c.rc.do(ctx, http.MethodPost, "/tickets/handoff", body, &resp); err != nil {
		return "", err
	}
	return resp.TicketRef, nil
}

// ProfileClient loads Customer-360 profiles from the customer data platform
// over HTTP.
type ProfileClient struct {
	rc *restClient
}

// NewProfileClient creates a Customer-360 connector for the given base URL.
func NewProfileClient(cfg Config) *ProfileClient {
	return &ProfileClient{rc: newRESTClient(cfg.Customer360BaseURL, cfg.APIKey, cfg.Timeout)}
}

// Load fetches the customer's profile. An unknown customer returns nil, nil.
func (c *ProfileClient) Load(ctx context.Context, customerID string) (*models.CustomerProfile, error) {
	var profile models.CustomerProfile
	if err := c.rc.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID), nil, &profile); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// KnowledgeClient implements the knowledge base seam over HTTP.
type KnowledgeClient struct {
	rc *restClient
}

// NewKnowledgeClient creates a knowledge connector for the given base URL.
func NewKnowledgeClient(cfg Config) *KnowledgeClient {
	return &KnowledgeClient{rc: newRESTClient(cfg.KnowledgeBaseURL, cfg.APIKey, cfg.Timeout)}
}

func (c *KnowledgeClient) Search(ctx context.Context, tenantID, query string, limit int) ([]tools.KnowledgeHit, error) {
	var resp struct {
		Hits []tools.KnowledgeHit `json:"hits"`
	}
	path := fmt.Sprintf("/search?tenant_id=%s&q=%s&limit=%d",
		url.QueryEscape(tenantID), url.QueryEscape(query), limit)
	if err := c.rc.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Hits, nil
}

// OutboundWebhook delivers replies to the channel adapter layer over HTTP.
// It also renders rich payloads, satisfying the rich outbound check.
type OutboundWebhook struct {
	rc *restClient
}

// NewOutboundWebhook creates an outbound connector for the given base URL.
func NewOutboundWebhook(cfg Config) *OutboundWebhook {
	return &OutboundWebhook{rc: newRESTClient(cfg.OutboundBaseURL, cfg.APIKey, cfg.Timeout)}
}

func (c *OutboundWebhook) SendMessage(ctx context.Context, conversationID, text string, channel models.Channel) error {
	body := map[string]any{"conversation_id": conversationID, "channel": channel, "text": text}
	return c.rc.do(ctx, http.MethodPost, "/outbound/messages", body, nil)
}

func (c *OutboundWebhook) SendRichMessage(ctx context.Context, conversationID string, payload *models.RichPayload, channel models.Channel) error {
	body := map[string]any{"conversation_id": conversationID, "channel": channel, "payload": payload}
	return c.rc.do(ctx, http.MethodPost, "/outbound/messages", body, nil)
}

func (c *OutboundWebhook) SendTyping(ctx context.Context, conversationID string, channel models.Channel) error {
	body := map[string]any{"conversation_id": conversationID, "channel": channel}
	return c.rc.do(ctx, http.MethodPost, "/outbound/typing", body, nil)
}

func (c *OutboundWebhook) EscalateToHuman(ctx context.Context, conversationID, reason, summary string, channel models.Channel) error {
	body := map[string]any{
		"conversation_id": conversationID,
		"channel":         channel,
		"reason":          reason,
		"summary":         summary,
	}
	return c.rc.do(ctx, http.MethodPost, "/outbound/escalations", body, nil)
}

// Package llm provides the chat-completion client used by the agent core.
// The Client interface is the seam; the OpenAI adapter behind it translates
// requests into Chat Completions API calls via github.com/sashabaranov/go-openai.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/resolvr-ai/resolvr/pkg/config"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string
	Content string
}

// Request is a single completion request.
type Request struct {
	Messages    []Message
	Model       string // empty uses the configured default
	Temperature float32
	MaxTokens   int
	// JSONMode forces the model to emit a single JSON object.
	JSONMode bool
}

// Client is the completion capability the agent core depends on.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ChatClient captures the subset of the go-openai client used by the adapter.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (
		openai.ChatCompletionResponse, error)
}

// OpenAIClient implements Client via the OpenAI Chat Completions API.
type OpenAIClient struct {
	chat ChatClient
	cfg  *config.LLMConfig
}

// New builds the adapter over an existing chat client.
func New(chat ChatClient, cfg *config.LLMConfig) (*OpenAIClient, error) {
	if chat == nil {
		return nil, errors.New("chat client is required")
	}
	if cfg == nil || cfg.Model == "" {
		return nil, errors.New("model is required")
	}
	return &OpenAIClient{chat: chat, cfg: cfg}, nil
}

// NewFromConfig constructs a client reading the API key from the configured
// environment variable.
func NewFromConfig(cfg *config.LLMConfig) (*OpenAIClient, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("LLM API key not set: %s", cfg.APIKeyEnv)
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return New(openai.NewClientWithConfig(clientCfg), cfg)
}

// Complete renders one chat completion and returns the assistant text.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if len(req.Messages) == 0 {
		return "", errors.New("messages are required")
	}
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.cfg.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	request := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSONMode {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := c.chat.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

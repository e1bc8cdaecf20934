// Package notify delivers ops notifications to Slack: SLA breaches and
// escalations land in the configured channel. Everything is fail-open and
// nil-safe so notification trouble never touches the message pipeline.
package notify

import (
	"context"
	"fmt"
	"time"

	goslack "github.com/slack-go/slack"
)

// Client is a thin wrapper around the slack-go SDK.
type Client struct {
	api       *goslack.Client
	channelID string
}

// NewClient creates a Slack API client.
func NewClient(token, channelID string) *Client {
	return &Client{api: goslack.New(token), channelID: channelID}
}

// NewClientWithAPIURL targets a custom API URL. Useful for testing with a
// mock server.
func NewClientWithAPIURL(token, channelID, apiURL string) *Client {
	return &Client{
		api:       goslack.New(token, goslack.OptionAPIURL(apiURL)),
		channelID: channelID,
	}
}

// PostMessage sends Block Kit blocks to the configured channel.
func (c *Client) PostMessage(ctx context.Context, blocks []goslack.Block, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, _, err := c.api.PostMessageContext(ctx, c.channelID, goslack.MsgOptionBlocks(blocks...))
	if err != nil {
		return fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return nil
}

// Package slack publishes digests to a Slack channel.
package slack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// Client posts plain-text messages with a bot token.
type Client struct {
	api    *slack.Client
	logger *slog.Logger
}

// NewClient creates a Slack client. apiURL overrides the Web API base URL
// (it must end with a slash); leave it empty for the public endpoint.
func NewClient(logger *slog.Logger, token, apiURL string) *Client {
	opts := []slack.Option{}
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &Client{api: slack.New(token, opts...), logger: logger}
}

// Publish posts text to channel with chat.postMessage. It is attempted exactly once.
func (c *Client) Publish(ctx context.Context, channel, text string) error {
	c.logger.Info("Posting digest to Slack", "channel", channel)
	respChannel, ts, err := c.api.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("failed to post message to slack channel %s: %w", channel, err)
	}
	c.logger.Info("Successfully posted digest to Slack", "channel", respChannel, "ts", ts)
	return nil
}

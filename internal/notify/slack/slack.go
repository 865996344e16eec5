// Package slack delivers Motorlot notifications to a Slack channel.
package slack

import (
	"context"
	"fmt"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/motorlot/internal/notify"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
)

// client abstracts the Slack API methods we use, enabling test mocks.
type client interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier posts events as attachment messages to one channel.
type Notifier struct {
	client    client
	channelID string
}

// Opts holds parameters for creating a Slack Notifier.
type Opts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client client
}

// New creates a Slack Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	c := opts.Client
	if c == nil {
		c = slackapi.New(opts.BotToken)
	}
	return &Notifier{client: c, channelID: opts.ChannelID}, nil
}

// Notify implements notify.Notifier. Rate-limited calls are retried
// after the interval Slack asks for, up to maxRetries.
func (n *Notifier) Notify(ctx context.Context, ev notify.Event) error {
	attachment := slackapi.Attachment{
		Title:  ev.Summary,
		Color:  colorFor(ev.Kind),
		Fields: fields(ev),
	}

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		_, _, err = n.client.PostMessageContext(ctx, n.channelID,
			slackapi.MsgOptionAttachments(attachment))
		if err == nil {
			return nil
		}
		rateErr, ok := err.(*slackapi.RateLimitedError)
		if !ok {
			break
		}
		select {
		case <-time.After(rateErr.RetryAfter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("slack: post to %s: %w", n.channelID, err)
}

// colorFor maps event kinds to sidebar colors.
func colorFor(kind string) string {
	switch kind {
	case notify.KindReconcileAnomaly:
		return "#d00000"
	case notify.KindPartUse, notify.KindPartRefund:
		return "#439fe0"
	default:
		return "#36a64f"
	}
}

// fields converts event metadata to Slack attachment fields.
func fields(ev notify.Event) []slackapi.AttachmentField {
	out := make([]slackapi.AttachmentField, 0, len(ev.Fields)+2)
	if ev.VIN != "" {
		out = append(out, slackapi.AttachmentField{Title: "VIN", Value: ev.VIN, Short: true})
	}
	if ev.PartNumber != "" {
		out = append(out, slackapi.AttachmentField{Title: "Part", Value: ev.PartNumber, Short: true})
	}
	for _, f := range ev.Fields {
		out = append(out, slackapi.AttachmentField{Title: f.Name, Value: f.Value, Short: true})
	}
	return out
}

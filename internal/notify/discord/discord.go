// Package discord delivers Motorlot notifications to a Discord channel.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/motorlot/internal/notify"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts events as embeds to one channel.
type Notifier struct {
	sess      session
	channelID string
}

// Opts holds parameters for creating a Discord Notifier.
type Opts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real gateway.
	Session session
}

// New creates a Discord Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel is required")
	}
	s := opts.Session
	if s == nil {
		real, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		s = real
	}
	return &Notifier{sess: s, channelID: opts.ChannelID}, nil
}

// Notify implements notify.Notifier.
func (n *Notifier) Notify(ctx context.Context, ev notify.Event) error {
	embed := &discordgo.MessageEmbed{
		Title:  ev.Summary,
		Color:  colorFor(ev.Kind),
		Fields: fields(ev),
	}
	if _, err := n.sess.ChannelMessageSendEmbed(n.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send to %s: %w", n.channelID, err)
	}
	return nil
}

// colorFor maps event kinds to embed colors.
func colorFor(kind string) int {
	switch kind {
	case notify.KindReconcileAnomaly:
		return 0xd00000
	case notify.KindPartUse, notify.KindPartRefund:
		return 0x439fe0
	default:
		return 0x36a64f
	}
}

// fields converts event metadata to embed fields.
func fields(ev notify.Event) []*discordgo.MessageEmbedField {
	out := make([]*discordgo.MessageEmbedField, 0, len(ev.Fields)+2)
	if ev.VIN != "" {
		out = append(out, &discordgo.MessageEmbedField{Name: "VIN", Value: ev.VIN, Inline: true})
	}
	if ev.PartNumber != "" {
		out = append(out, &discordgo.MessageEmbedField{Name: "Part", Value: ev.PartNumber, Inline: true})
	}
	for _, f := range ev.Fields {
		out = append(out, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: true})
	}
	return out
}

package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/motorlot/internal/notify"
)

type mockSession struct {
	embeds   []*discordgo.MessageEmbed
	channels []string
	err      error
}

func (m *mockSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.channels = append(m.channels, channelID)
	m.embeds = append(m.embeds, embed)
	return &discordgo.Message{}, m.err
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{ChannelID: "123"}); err == nil {
		t.Error("expected error for missing token")
	}
	if _, err := New(Opts{BotToken: "tok"}); err == nil {
		t.Error("expected error for missing channel")
	}
}

func TestNotify_SendsEmbed(t *testing.T) {
	mock := &mockSession{}
	n, err := New(Opts{Session: mock, ChannelID: "987"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ev := notify.Event{
		Kind:    notify.KindRepairClosed,
		VIN:     "1HGBH41JXMN109186",
		Summary: "repair rep-1 closed at 300.00",
		Fields:  []notify.Field{{Name: "Total", Value: "300.00"}},
	}
	if err := n.Notify(context.Background(), ev); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if len(mock.embeds) != 1 || mock.channels[0] != "987" {
		t.Fatalf("sends = %d to %v, want one embed to 987", len(mock.embeds), mock.channels)
	}

	embed := mock.embeds[0]
	if embed.Title != ev.Summary {
		t.Errorf("embed.Title = %q, want %q", embed.Title, ev.Summary)
	}
	// VIN field plus the explicit Total field.
	if len(embed.Fields) != 2 {
		t.Errorf("len(embed.Fields) = %d, want 2", len(embed.Fields))
	}
}

func TestNotify_ErrorWrapped(t *testing.T) {
	mock := &mockSession{err: errors.New("missing access")}
	n, err := New(Opts{Session: mock, ChannelID: "987"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := n.Notify(context.Background(), notify.Event{Kind: notify.KindTransition}); err == nil {
		t.Error("expected error, got nil")
	}
}

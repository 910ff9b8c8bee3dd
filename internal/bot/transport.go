package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/mirror"
)

// ChannelTransport posts and edits roster embeds through the Discord
// session. It implements mirror.Transport.
type ChannelTransport struct {
	session *discordgo.Session
}

// Send posts the roster message and returns the new message id.
func (t *ChannelTransport) Send(ctx context.Context, channelID string, m mirror.Message) (string, error) {
	msg, err := t.session.ChannelMessageSendEmbed(channelID, embed(m), discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("sending roster embed: %w", err)
	}
	return msg.ID, nil
}

// Edit replaces the roster message's embed in place.
func (t *ChannelTransport) Edit(ctx context.Context, channelID, messageID string, m mirror.Message) error {
	if _, err := t.session.ChannelMessageEditEmbed(channelID, messageID, embed(m), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("editing roster embed: %w", err)
	}
	return nil
}

// FetchRecent returns the channel's most recent messages with their embed
// footers, newest first.
func (t *ChannelTransport) FetchRecent(ctx context.Context, channelID string, limit int) ([]mirror.Posted, error) {
	msgs, err := t.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching channel messages: %w", err)
	}

	posted := make([]mirror.Posted, 0, len(msgs))
	for _, msg := range msgs {
		footer := ""
		if len(msg.Embeds) > 0 && msg.Embeds[0].Footer != nil {
			footer = msg.Embeds[0].Footer.Text
		}
		posted = append(posted, mirror.Posted{ID: msg.ID, Footer: footer})
	}
	return posted, nil
}

// embed maps the transport-agnostic payload onto a Discord embed. The
// marker footer is what lets the mirror re-adopt the message later.
func embed(m mirror.Message) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       m.Payload.Title,
		Description: m.Payload.Description,
		Footer:      &discordgo.MessageEmbedFooter{Text: m.Footer},
	}
	for _, f := range m.Payload.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:  f.Name,
			Value: f.Value,
		})
	}
	return e
}

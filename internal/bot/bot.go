// Package bot wraps the Discord session: slash command registration and
// the channel transport the roster mirror posts through.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/bot/commands"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/config"
)

// Bot wraps the Discord session and command handlers.
type Bot struct {
	session *discordgo.Session
	cfg     config.DiscordConfig
	logger  *slog.Logger
	cmds    []*discordgo.ApplicationCommand
}

// New creates a new Bot instance. The session is not opened yet; the
// transport is usable for wiring before Start.
func New(cfg config.DiscordConfig, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}

	return &Bot{
		session: session,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Transport returns the mirror transport backed by this session.
func (b *Bot) Transport() *ChannelTransport {
	return &ChannelTransport{session: b.session}
}

// Start opens the Discord connection and registers slash commands.
func (b *Bot) Start(ctx context.Context, handlers *commands.Handlers) error {
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.InfoContext(ctx, "bot is ready", slog.String("user", s.State.User.Username))
	})

	b.session.AddHandler(handlers.InteractionCreate)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}

	// Register slash commands.
	appCmds := commands.SlashCommands()
	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.GuildID, appCmds)
	if err != nil {
		return fmt.Errorf("registering slash commands: %w", err)
	}
	b.cmds = registered

	b.logger.InfoContext(ctx, "slash commands registered", slog.Int("count", len(registered)))
	return nil
}

// Stop gracefully closes the Discord connection.
func (b *Bot) Stop() error {
	// Remove slash commands on shutdown (optional for dev).
	for _, cmd := range b.cmds {
		if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.cfg.GuildID, cmd.ID); err != nil {
			b.logger.Error("failed to delete command", slog.String("command", cmd.Name), slog.Any("error", err))
		}
	}
	return b.session.Close()
}

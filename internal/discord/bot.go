// Package discord provides the Discord bot layer for speechcord. It owns
// the discordgo.Session lifecycle, registers slash commands and routes
// command interactions to their handlers.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/speechcord/pkg/audio"
	discordaudio "github.com/MrWong99/speechcord/pkg/audio/discord"
)

// ErrNotReady is reported by [Bot.Ready] until the gateway handshake completed.
var ErrNotReady = errors.New("discord: gateway not ready")

// Config holds Discord bot configuration.
type Config struct {
	// Token is the bot token without the "Bot " prefix.
	Token string

	// ApplicationID owns the slash commands. Falls back to the bot user ID
	// reported by the gateway when empty.
	ApplicationID string

	// GuildID scopes command registration to one guild. Empty registers
	// the commands globally.
	GuildID string

	// UnregisterOnClose deletes the registered commands on shutdown.
	UnregisterOnClose bool
}

// CommandRegistrar is the subset of *discordgo.Session used to publish
// slash command definitions.
type CommandRegistrar interface {
	ApplicationCommandBulkOverwrite(appID, guildID string, cmds []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

var _ CommandRegistrar = (*discordgo.Session)(nil)

// NewSession creates a discordgo session with the intents the bot needs:
// guild metadata and voice states, which locate the caller's voice channel.
// The session is not opened.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.New("discord: bot token is empty")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	return session, nil
}

// RegisterCommands overwrites the application's commands with the router's
// definitions, guild-scoped when guildID is set.
func RegisterCommands(api CommandRegistrar, appID, guildID string, router *CommandRouter) ([]*discordgo.ApplicationCommand, error) {
	if appID == "" {
		return nil, errors.New("discord: application ID is empty")
	}
	cmds := router.ApplicationCommands()
	registered, err := api.ApplicationCommandBulkOverwrite(appID, guildID, cmds)
	if err != nil {
		return nil, fmt.Errorf("discord: register commands: %w", err)
	}
	return registered, nil
}

// Bot owns the Discord gateway connection and routes interactions
// to registered command handlers.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	platform  *discordaudio.Platform
	router    *CommandRouter
	cfg       Config
	commands  []*discordgo.ApplicationCommand
	closeOnce sync.Once
}

// New creates a Bot, connects to Discord, and registers the interaction handler.
func New(_ context.Context, cfg Config) (*Bot, error) {
	session, err := NewSession(cfg.Token)
	if err != nil {
		return nil, err
	}

	b := &Bot{
		session:  session,
		platform: discordaudio.New(session),
		router:   NewCommandRouter(),
		cfg:      cfg,
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		slog.Info("discord gateway ready", "user", r.User.Username, "guilds", len(r.Guilds))
	})

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	return b, nil
}

// Platform returns the audio.Platform for voice channel connections.
func (b *Bot) Platform() audio.Platform {
	return b.platform
}

// Session returns the underlying discordgo session.
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// VoiceChannel returns the voice channel userID currently occupies in
// guildID, or "" when the user is not connected to voice.
func (b *Bot) VoiceChannel(guildID, userID string) string {
	return voiceChannel(b.Session().State, guildID, userID)
}

func voiceChannel(state *discordgo.State, guildID, userID string) string {
	if state == nil || guildID == "" || userID == "" {
		return ""
	}
	vs, err := state.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

// Ready returns nil once the gateway session is established.
func (b *Bot) Ready(_ context.Context) error {
	s := b.Session()
	s.RLock()
	defer s.RUnlock()
	if !s.DataReady {
		return ErrNotReady
	}
	return nil
}

// applicationID resolves the application that owns the commands.
func (b *Bot) applicationID() string {
	if b.cfg.ApplicationID != "" {
		return b.cfg.ApplicationID
	}
	if s := b.Session(); s.State != nil && s.State.User != nil {
		return s.State.User.ID
	}
	return ""
}

// Run registers slash commands with the Discord API and blocks until
// ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	registered, err := RegisterCommands(b.Session(), b.applicationID(), b.cfg.GuildID, b.router)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.commands = registered
	b.mu.Unlock()
	slog.Info("discord commands registered", "count", len(registered), "guild_id", b.cfg.GuildID)

	<-ctx.Done()
	return ctx.Err()
}

// Close optionally unregisters commands and disconnects from Discord.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		appID := b.applicationID()

		b.mu.Lock()
		defer b.mu.Unlock()

		if b.cfg.UnregisterOnClose {
			unregister(b.session, appID, b.cfg.GuildID, b.commands)
		}

		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("discord: close session: %w", err)
		}
		slog.Info("discord bot closed")
	})
	return closeErr
}

func unregister(api CommandRegistrar, appID, guildID string, cmds []*discordgo.ApplicationCommand) {
	for _, cmd := range cmds {
		if err := api.ApplicationCommandDelete(appID, guildID, cmd.ID); err != nil {
			slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
		}
	}
}

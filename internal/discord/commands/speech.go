// Package commands implements Discord slash command handlers for speechcord.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/speechcord/internal/discord"
	"github.com/MrWong99/speechcord/internal/speech"
)

// MaxTextLength bounds the text option of /speech.
const MaxTextLength = 1000

// Speaker runs speech requests. Implemented by *speech.Pipeline.
type Speaker interface {
	Speak(ctx context.Context, req speech.Request) (*speech.Playback, error)
}

// VoiceLocator finds the voice channel a user is connected to. Implemented
// by *discord.Bot.
type VoiceLocator interface {
	VoiceChannel(guildID, userID string) string
}

// SpeechCommands holds the dependencies for the /speech slash command.
type SpeechCommands struct {
	speaker Speaker
	voices  VoiceLocator
}

// NewSpeechCommands creates a SpeechCommands and registers its handler
// with router.
func NewSpeechCommands(router *discord.CommandRouter, speaker Speaker, voices VoiceLocator) *SpeechCommands {
	sc := &SpeechCommands{speaker: speaker, voices: voices}
	sc.Register(router)
	return sc
}

// Register registers /speech with the router.
func (sc *SpeechCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("speech", sc.Definition(), sc.handleSpeech)
}

// Definition returns the ApplicationCommand definition for Discord.
func (sc *SpeechCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "speech",
		Description: "Say something in your voice channel",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "text",
				Description: "What should be said",
				Required:    true,
				MaxLength:   MaxTextLength,
			},
		},
	}
}

// handleSpeech handles /speech text:<text>. The caller gets exactly one
// message: an ephemeral rejection, or the follow-up to the deferred reply.
func (sc *SpeechCommands) handleSpeech(r discord.Responder, i *discordgo.InteractionCreate) {
	text := stringOption(i.ApplicationCommandData(), "text")
	req := speech.Request{
		GuildID:   i.GuildID,
		ChannelID: sc.voices.VoiceChannel(i.GuildID, interactionUserID(i)),
		UserID:    interactionUserID(i),
		Text:      text,
	}

	// Speak rejects invalid requests up front, so no deferral is needed.
	if speech.Validate(req) != nil {
		_, err := sc.speaker.Speak(context.Background(), req)
		discord.RespondEphemeral(r, i, speech.UserMessage(err))
		return
	}

	// Synthesis and conversion take longer than the interaction deadline.
	discord.DeferReply(r, i)

	pb, err := sc.speaker.Speak(context.Background(), req)
	if err != nil {
		discord.FollowUp(r, i, speech.UserMessage(err))
		return
	}
	discord.FollowUp(r, i, fmt.Sprintf("Text: %s\nI hope it was funny! :D", text))

	if err := pb.Wait(context.Background()); err != nil {
		slog.Warn("speech playback failed", "request_id", pb.Request.ID, "guild_id", pb.Request.GuildID, "err", err)
		return
	}
	slog.Debug("speech playback done", "request_id", pb.Request.ID, "held", pb.Duration())
}

func stringOption(data discordgo.ApplicationCommandInteractionData, name string) string {
	for _, opt := range data.Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}

// interactionUserID extracts the user ID from an interaction, handling
// both guild (Member) and DM (User) contexts.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

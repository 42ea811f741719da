// Package discord provides an [audio.Platform] implementation backed by
// Discord voice channels via the bwmarrin/discordgo library. It bridges
// Discord's Opus-based voice transport with speechcord's PCM [audio.AudioFrame]
// player.
//
// The platform requires an active *discordgo.Session (owned by the bot layer).
// Each call to [Platform.Connect] joins the specified voice channel and returns
// a [Connection] that plays PCM clips into it.
package discord

import (
	"context"
	"fmt"

	"github.com/MrWong99/speechcord/pkg/audio"
	"github.com/bwmarrin/discordgo"
)

// Compile-time interface assertion.
var _ audio.Platform = (*Platform)(nil)

// joinFunc matches discordgo.Session.ChannelVoiceJoin.
type joinFunc func(guildID, channelID string, mute, deaf bool) (*discordgo.VoiceConnection, error)

// Platform implements [audio.Platform] using a discordgo voice connection.
// It requires an active *discordgo.Session (owned by the bot layer).
//
// Platform is safe for concurrent use.
type Platform struct {
	session *discordgo.Session
	join    joinFunc
}

// New creates a new Discord Platform for the given session.
func New(session *discordgo.Session) *Platform {
	return &Platform{
		session: session,
		join:    session.ChannelVoiceJoin,
	}
}

type joinResult struct {
	vc  *discordgo.VoiceConnection
	err error
}

// Connect joins the voice channel identified by channelID and returns an active
// [audio.Connection]. The supplied ctx governs the connection-setup phase only;
// once the Connection is returned it lives until [Connection.Disconnect] is called.
// A join that completes after ctx expired is torn down in the background.
func (p *Platform) Connect(ctx context.Context, guildID, channelID string) (audio.Connection, error) {
	results := make(chan joinResult, 1)
	go func() {
		// mute=false (we send audio), deaf=true (nothing is received).
		vc, err := p.join(guildID, channelID, false, true)
		results <- joinResult{vc: vc, err: err}
	}()

	select {
	case r := <-results:
		if r.err != nil {
			if r.vc != nil {
				_ = r.vc.Disconnect()
			}
			return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, r.err)
		}
		return newConnection(r.vc, channelID), nil
	case <-ctx.Done():
		go func() {
			if r := <-results; r.vc != nil {
				_ = r.vc.Disconnect()
			}
		}()
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, ctx.Err())
	}
}

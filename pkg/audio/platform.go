// Package audio defines the interfaces and types for voice platform
// connectivity and playback within speechcord.
//
// The two primary abstractions are:
//
//   - [Platform] joins a voice channel and returns a [Connection].
//   - [Connection] is an active voice session on that channel. It owns the
//     player: [Connection.Play] streams PCM frames into the channel and hands
//     back a one-shot completion signal.
//
// Implementations of these interfaces are provided by platform-specific
// adapter packages (e.g., audio/discord).
package audio

import (
	"context"
	"errors"
)

// ErrPlayerBusy is delivered by [Connection.Play] when another clip is still
// playing on the same connection.
var ErrPlayerBusy = errors.New("audio: player is busy")

// ErrDisconnected is delivered by [Connection.Play] when the connection is torn
// down before the clip finished.
var ErrDisconnected = errors.New("audio: connection closed")

// Connection represents an active session on a voice channel.
//
// A Connection is obtained by calling [Platform.Connect] and remains valid
// until [Connection.Disconnect] is called.
//
// Implementations must be safe for concurrent use.
type Connection interface {
	// ChannelID returns the platform-specific ID of the joined voice channel.
	ChannelID() string

	// Play streams frames into the voice channel until frames is closed, ctx
	// is cancelled, or the connection is torn down. It does not block: the
	// returned channel receives exactly one value once the player goes idle
	// (nil when every frame was sent) and is then closed.
	Play(ctx context.Context, frames <-chan AudioFrame) <-chan error

	// Disconnect cleanly tears down the connection and stops the player. It is
	// safe to call Disconnect more than once; subsequent calls are no-ops and
	// return nil.
	Disconnect() error
}

// Platform is the entry point for a voice-channel provider.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Connect joins the voice channel channelID in guild guildID and returns an
	// active [Connection]. ctx governs the connection attempt only.
	//
	// Returns an error if the connection cannot be established (missing
	// permissions, unknown channel, network error, etc.).
	Connect(ctx context.Context, guildID, channelID string) (Connection, error)
}

// Package mock provides in-memory mock implementations of the [audio.Platform]
// and [audio.Connection] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	conn := &mock.Connection{ChannelIDResult: "voice-1"}
//	platform := &mock.Platform{ConnectResult: conn}
//	got, err := platform.Connect(ctx, "guild-1", "voice-1")
//	done := got.Play(ctx, frames)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/speechcord/pkg/audio"
)

// ─── Connection ───────────────────────────────────────────────────────────────

// Connection is a mock implementation of [audio.Connection].
// Set the exported Result fields before use; inspect the Call* fields after.
type Connection struct {
	mu sync.Mutex

	// ChannelIDResult is returned by [Connection.ChannelID].
	ChannelIDResult string

	// PlayError is delivered on the channel returned by [Connection.Play]
	// after all frames were consumed.
	PlayError error

	// Hold, if non-nil, makes Play wait until it is closed (or ctx is done)
	// after draining frames. Use it to keep a clip "playing" in tests.
	Hold chan struct{}

	// DisconnectError is returned by [Connection.Disconnect].
	DisconnectError error

	// CallCountPlay records how many times Play was called.
	CallCountPlay int

	// CallCountDisconnect records how many times Disconnect was called.
	CallCountDisconnect int

	// FramesPlayed counts every frame consumed by Play.
	FramesPlayed int
}

// ChannelID implements [audio.Connection].
func (c *Connection) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ChannelIDResult
}

// Play implements [audio.Connection]. It drains frames in the background and
// then delivers PlayError (or ctx.Err() when cancelled first).
func (c *Connection) Play(ctx context.Context, frames <-chan audio.AudioFrame) <-chan error {
	c.mu.Lock()
	c.CallCountPlay++
	hold, playErr := c.Hold, c.PlayError
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		defer close(done)
	drain:
		for {
			select {
			case _, ok := <-frames:
				if !ok {
					break drain
				}
				c.mu.Lock()
				c.FramesPlayed++
				c.mu.Unlock()
			case <-ctx.Done():
				done <- ctx.Err()
				return
			}
		}
		if hold != nil {
			select {
			case <-hold:
			case <-ctx.Done():
				done <- ctx.Err()
				return
			}
		}
		done <- playErr
	}()
	return done
}

// Disconnect implements [audio.Connection]. Returns DisconnectError.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountDisconnect++
	return c.DisconnectError
}

// Frames returns how many frames Play consumed so far.
func (c *Connection) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.FramesPlayed
}

// Disconnects returns how many times Disconnect was called.
func (c *Connection) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCountDisconnect
}

// ─── Platform ─────────────────────────────────────────────────────────────────

// ConnectCall records the arguments of a single [Platform.Connect] invocation.
type ConnectCall struct {
	// GuildID is the guildID argument passed to Connect.
	GuildID string
	// ChannelID is the channelID argument passed to Connect.
	ChannelID string
}

// Platform is a mock implementation of [audio.Platform].
type Platform struct {
	mu sync.Mutex

	// ConnectResult is the [audio.Connection] returned by Connect.
	ConnectResult audio.Connection

	// ConnectError is the error returned by Connect.
	ConnectError error

	// ConnectFunc, if set, replaces ConnectResult / ConnectError. It is
	// called without the mock's lock held.
	ConnectFunc func(ctx context.Context, guildID, channelID string) (audio.Connection, error)

	// ConnectCalls records all Connect invocations.
	ConnectCalls []ConnectCall
}

// Connect implements [audio.Platform]. Records the call and returns ConnectResult / ConnectError.
func (p *Platform) Connect(ctx context.Context, guildID, channelID string) (audio.Connection, error) {
	p.mu.Lock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{GuildID: guildID, ChannelID: channelID})
	fn := p.ConnectFunc
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx, guildID, channelID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ConnectError != nil {
		return nil, p.ConnectError
	}
	return p.ConnectResult, nil
}

// Connects returns the number of Connect invocations so far.
func (p *Platform) Connects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ConnectCalls)
}

// Compile-time interface assertions.
var (
	_ audio.Platform   = (*Platform)(nil)
	_ audio.Connection = (*Connection)(nil)
)

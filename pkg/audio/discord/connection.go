package discord

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/speechcord/pkg/audio"
	"github.com/bwmarrin/discordgo"
)

// trailingSilenceFrames is how many silence packets follow a finished clip.
// The voice sender only buffers a couple of packets, so once these are queued
// the clip itself has gone out and a disconnect no longer clips its tail.
const trailingSilenceFrames = 5

// silenceFrame is the Opus encoding of 20 ms of silence.
var silenceFrame = []byte{0xF8, 0xFF, 0xFE}

// Compile-time interface assertion.
var _ audio.Connection = (*Connection)(nil)

// Connection wraps a discordgo.VoiceConnection and adapts it to the
// [audio.Connection] interface. It owns a single player that encodes
// outgoing PCM frames to Opus for transmission.
//
// Connection is safe for concurrent use.
type Connection struct {
	channelID string

	// opusSend receives encoded packets. Defaults to vc.OpusSend.
	opusSend chan<- []byte

	// speaking toggles the speaking indicator. Defaults to vc.Speaking.
	speaking func(bool) error

	// disconnectVC is called during Disconnect to tear down the voice connection.
	// Defaults to vc.Disconnect; overridden in tests.
	disconnectVC func() error

	playing atomic.Bool
	players sync.WaitGroup

	done      chan struct{}
	closeOnce sync.Once
}

// newConnection initialises a Connection for an already-joined voice channel.
func newConnection(vc *discordgo.VoiceConnection, channelID string) *Connection {
	return &Connection{
		channelID:    channelID,
		opusSend:     vc.OpusSend,
		speaking:     vc.Speaking,
		disconnectVC: vc.Disconnect,
		done:         make(chan struct{}),
	}
}

// ChannelID returns the joined voice channel.
func (c *Connection) ChannelID() string {
	return c.channelID
}

// Play starts the player on frames. Only one clip may play at a time; a second
// call while the player is busy reports [audio.ErrPlayerBusy].
func (c *Connection) Play(ctx context.Context, frames <-chan audio.AudioFrame) <-chan error {
	result := make(chan error, 1)

	select {
	case <-c.done:
		result <- audio.ErrDisconnected
		close(result)
		return result
	default:
	}
	if !c.playing.CompareAndSwap(false, true) {
		result <- audio.ErrPlayerBusy
		close(result)
		return result
	}

	c.players.Add(1)
	go func() {
		defer c.players.Done()
		defer close(result)
		err := c.sendLoop(ctx, frames)
		c.playing.Store(false)
		result <- err
	}()
	return result
}

// sendLoop reads PCM AudioFrames from frames, extracts exact Opus frame-sized
// chunks, encodes them to Opus, and sends the encoded data via the Discord
// voice connection. Once frames is closed it sends trailing silence and
// returns nil.
func (c *Connection) sendLoop(ctx context.Context, frames <-chan audio.AudioFrame) error {
	enc, err := newOpusEncoder()
	if err != nil {
		return err
	}

	c.setSpeaking(true)
	defer c.setSpeaking(false)

	var buf []byte
	for {
		select {
		case <-c.done:
			return audio.ErrDisconnected
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				if len(buf) > 0 {
					slog.Debug("discord: dropping partial trailing frame", "bytes", len(buf))
				}
				return c.sendSilence(ctx)
			}
			if frame.SampleRate != opusSampleRate || frame.Channels != opusChannels {
				slog.Warn("discord: skipping frame with unexpected layout",
					"sample_rate", frame.SampleRate, "channels", frame.Channels)
				continue
			}

			buf = append(buf, frame.Data...)

			// Encode and send complete Opus frames.
			for len(buf) >= opusFrameBytes {
				opus, eErr := enc.encode(buf[:opusFrameBytes])
				buf = buf[opusFrameBytes:]
				if eErr != nil {
					slog.Warn("discord: opus encode error", "error", eErr)
					continue
				}

				select {
				case c.opusSend <- opus:
				case <-c.done:
					return audio.ErrDisconnected
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// sendSilence queues trailingSilenceFrames silence packets after a clip.
func (c *Connection) sendSilence(ctx context.Context) error {
	for range trailingSilenceFrames {
		select {
		case c.opusSend <- silenceFrame:
		case <-c.done:
			return audio.ErrDisconnected
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Disconnect stops the player, then tears down the voice connection. It is
// safe to call more than once; subsequent calls return nil.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.players.Wait()
		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}
	})
	return err
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (c *Connection) setSpeaking(b bool) {
	if c.speaking == nil {
		return
	}
	if err := c.speaking(b); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", b, "error", err)
	}
}

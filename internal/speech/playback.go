package speech

import (
	"context"
	"sync/atomic"
	"time"
)

// State is the position of a guild's voice session in the playback state machine.
type State int32

const (
	// StateIdle: no voice connection is held.
	StateIdle State = iota
	// StateJoining: connecting to the caller's voice channel.
	StateJoining
	// StatePlaying: the clip is streaming.
	StatePlaying
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StateJoining:
		return "joining"
	case StatePlaying:
		return "playing"
	default:
		return "idle"
	}
}

// Playback is the pending outcome of one request whose clip started playing.
// It resolves exactly once, after the voice connection was torn down and the
// temp files were deleted.
type Playback struct {
	// Request is the request being played.
	Request Request

	state    *atomic.Int32
	done     chan struct{}
	err      error
	duration time.Duration
}

func newPlayback(req Request, state *atomic.Int32) *Playback {
	return &Playback{Request: req, state: state, done: make(chan struct{})}
}

// Done is closed once playback reached its terminal state.
func (p *Playback) Done() <-chan struct{} { return p.done }

// Err returns the terminal error. It is nil until Done is closed and nil on
// success.
func (p *Playback) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Duration returns how long the voice connection was held. Zero until Done.
func (p *Playback) Duration() time.Duration {
	select {
	case <-p.done:
		return p.duration
	default:
		return 0
	}
}

// Wait blocks until playback finished or ctx is done.
func (p *Playback) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State reports the current state of the session.
func (p *Playback) State() State {
	select {
	case <-p.done:
		return StateIdle
	default:
		return State(p.state.Load())
	}
}

func (p *Playback) resolve(err error, held time.Duration) {
	p.err = err
	p.duration = held
	close(p.done)
}

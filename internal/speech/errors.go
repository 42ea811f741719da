package speech

import (
	"errors"
	"fmt"

	"github.com/MrWong99/speechcord/internal/observe"
)

// Kind classifies why a speech request did not reach a successful terminal state.
type Kind int

const (
	// KindUnknown is reported for errors that did not come from the pipeline.
	KindUnknown Kind = iota
	// KindPrecondition: the request was invalid (no text, caller not in a voice channel).
	KindPrecondition
	// KindBusy: the bot is already speaking in the guild.
	KindBusy
	// KindRateLimited: the caller sent too many requests.
	KindRateLimited
	// KindSynthesis: the TTS provider call failed.
	KindSynthesis
	// KindConversion: MP3 → WAV conversion failed.
	KindConversion
	// KindPlayback: joining the channel or streaming the clip failed.
	KindPlayback
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindBusy:
		return "busy"
	case KindRateLimited:
		return "rate_limited"
	case KindSynthesis:
		return "synthesis"
	case KindConversion:
		return "conversion"
	case KindPlayback:
		return "playback"
	default:
		return "unknown"
	}
}

// status maps the kind to the metrics status label.
func (k Kind) status() string {
	switch k {
	case KindPrecondition:
		return observe.StatusPrecondition
	case KindBusy:
		return observe.StatusBusy
	case KindRateLimited:
		return observe.StatusRateLimited
	case KindSynthesis:
		return observe.StatusSynthesis
	case KindConversion:
		return observe.StatusConversion
	default:
		return observe.StatusPlayback
	}
}

// Sentinel causes carried by precondition, busy and rate-limit errors.
var (
	ErrEmptyText         = errors.New("speech: text is empty")
	ErrNotInVoiceChannel = errors.New("speech: caller is not in a voice channel")
	ErrGuildBusy         = errors.New("speech: already speaking in this guild")
	ErrRateLimited       = errors.New("speech: too many requests")
)

// Error is returned by the pipeline for every failed request.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("speech: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the [Kind] of the first [*Error] in err's chain, or
// [KindUnknown].
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// Reply texts shown to Discord users.
const (
	MsgNotInVoiceChannel = "You must be in a voice channel to run this command!"
	MsgEmptyText         = "Please give me some text to say."
	MsgBusy              = "I'm already speaking in this server, try again when I'm done."
	MsgRateLimited       = "You're sending speech requests too quickly, slow down a little."
	MsgGeneration        = "Error during audio file generation."
	MsgPlayback          = "I couldn't play the audio in your voice channel."
	MsgShuttingDown      = "I'm restarting right now, try again in a moment."
	MsgUnknown           = "Something went wrong, please try again later."
)

// UserMessage converts a pipeline error into the short reply shown to the
// caller. Internal details never leak into the reply.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotInVoiceChannel):
		return MsgNotInVoiceChannel
	case errors.Is(err, ErrEmptyText):
		return MsgEmptyText
	case errors.Is(err, ErrClosed):
		return MsgShuttingDown
	}
	switch KindOf(err) {
	case KindBusy:
		return MsgBusy
	case KindRateLimited:
		return MsgRateLimited
	case KindSynthesis, KindConversion:
		return MsgGeneration
	case KindPlayback:
		return MsgPlayback
	default:
		return MsgUnknown
	}
}

// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs) and turns
// a piece of text into one encoded audio clip. The returned bytes are in the
// provider's native container (MP3 for ElevenLabs); converting them into a
// playback-ready format is the caller's job.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis requests
// may run in parallel (one per guild).
type Provider interface {
	// Synthesize converts text into a single encoded audio clip using the
	// provider's configured voice. The whole clip is returned at once; no
	// partial result is ever returned together with an error.
	//
	// Returns an error if text is empty, if the provider cannot be reached, if
	// it answers with a non-2xx status, or if ctx is cancelled.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// ListVoices returns all voice profiles available from this provider. The
	// list reflects the provider's current catalogue and may change between
	// calls.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}

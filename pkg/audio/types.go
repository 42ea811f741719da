package audio

import "time"

// Discord voice expects 48 kHz stereo audio in 20 ms frames. Every frame
// produced by this package uses that layout.
const (
	SampleRate    = 48000
	Channels      = 2
	FrameDuration = 20 * time.Millisecond

	// FrameSamples is the number of samples per channel in one frame.
	FrameSamples = SampleRate * int(FrameDuration/time.Millisecond) / 1000 // 960

	// FrameBytes is the size of one frame of interleaved int16 PCM.
	FrameBytes = FrameSamples * Channels * 2
)

// AudioFrame represents a single frame of audio data flowing to the player.
type AudioFrame struct {
	// PCM audio data, interleaved little-endian int16.
	Data []byte

	// SampleRate in Hz (48000 for Discord Opus).
	SampleRate int

	// Channels: 2 for Discord output.
	Channels int

	// Timestamp marks the frame's offset from the start of the clip.
	Timestamp time.Duration
}

package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// resampleQuality is the beep resampler quality used when a WAV file is not
// already at [SampleRate].
const resampleQuality = 4

// WAVSource reads a WAV file and slices it into [AudioFrame] values in the
// layout Discord expects. Files at other sample rates are resampled on the fly;
// mono input is duplicated on both channels by the decoder.
//
// A WAVSource is single-use: call [WAVSource.Frames] once, then [WAVSource.Close].
type WAVSource struct {
	mu       sync.Mutex
	file     *os.File
	decoder  beep.StreamSeekCloser
	stream   beep.Streamer
	duration time.Duration
	err      error
	closed   bool
}

// OpenWAV opens the WAV file at path and prepares it for playback.
func OpenWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open wav: %w", err)
	}
	dec, format, err := wav.Decode(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("audio: decode wav %q: %w", path, err)
	}

	var stream beep.Streamer = dec
	if format.SampleRate != SampleRate {
		stream = beep.Resample(resampleQuality, format.SampleRate, SampleRate, dec)
	}

	return &WAVSource{
		file:     f,
		decoder:  dec,
		stream:   stream,
		duration: format.SampleRate.D(dec.Len()),
	}, nil
}

// Duration returns the playing time of the clip.
func (w *WAVSource) Duration() time.Duration {
	return w.duration
}

// Frames starts reading the clip and returns a channel of full-size frames.
// The last frame is padded with silence. The channel is closed at the end of
// the clip, on a decode error (see [WAVSource.Err]) or when ctx is cancelled.
func (w *WAVSource) Frames(ctx context.Context) <-chan AudioFrame {
	out := make(chan AudioFrame, 8)
	go func() {
		defer close(out)
		samples := make([][2]float64, FrameSamples)
		for idx := 0; ; idx++ {
			n, ok := w.read(samples)
			if n > 0 {
				frame := AudioFrame{
					Data:       samplesToPCM(samples, n),
					SampleRate: SampleRate,
					Channels:   Channels,
					Timestamp:  time.Duration(idx) * FrameDuration,
				}
				select {
				case out <- frame:
				case <-ctx.Done():
					return
				}
			}
			if !ok || n < FrameSamples {
				return
			}
		}
	}()
	return out
}

// read fills samples from the stream under the lock so that a concurrent
// Close cannot pull the decoder away mid-read. Short reads are retried until
// the buffer is full or the stream ends.
func (w *WAVSource) read(samples [][2]float64) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, false
	}
	filled := 0
	for filled < len(samples) {
		n, ok := w.stream.Stream(samples[filled:])
		filled += n
		if !ok {
			if err := w.stream.Err(); err != nil {
				w.err = err
			}
			return filled, false
		}
	}
	return filled, true
}

// Err returns the decode error that ended the frame stream early, if any.
func (w *WAVSource) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close releases the decoder and the underlying file. It is safe to call
// more than once.
func (w *WAVSource) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	decErr := w.decoder.Close()
	fileErr := w.file.Close()
	if errors.Is(fileErr, os.ErrClosed) {
		fileErr = nil
	}
	return errors.Join(decErr, fileErr)
}

// samplesToPCM converts the first n float samples to interleaved
// little-endian int16 stereo and zero-pads the result to a full frame.
func samplesToPCM(samples [][2]float64, n int) []byte {
	b := make([]byte, FrameBytes)
	for i := 0; i < n; i++ {
		for ch := 0; ch < Channels; ch++ {
			v := int16(math.Round(clamp(samples[i][ch]) * math.MaxInt16))
			off := (i*Channels + ch) * 2
			b[off] = byte(v)
			b[off+1] = byte(v >> 8)
		}
	}
	return b
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// Package transcode converts the MP3 clips returned by the synthesis provider
// into 48 kHz stereo 16-bit WAV files that the voice player can stream.
//
// Two engines are available: [FFmpeg] shells out to the ffmpeg binary and
// [Native] decodes in-process with gopxl/beep for hosts without ffmpeg.
// Both report completion asynchronously through a [Result] channel.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Engine names accepted by [New].
const (
	EngineFFmpeg = "ffmpeg"
	EngineNative = "native"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultFFmpegPath = "ffmpeg"

	// outputSampleRate and outputChannels describe the WAV layout every engine produces.
	outputSampleRate = 48000
	outputChannels   = 2
)

// Result is the single value delivered by [Converter.Convert].
type Result struct {
	// Path is the written WAV file. Empty when Err is set.
	Path string
	// Err describes why the conversion failed.
	Err error
}

// Converter turns an MP3 file into a playback-ready WAV file.
//
// Implementations must be safe for concurrent use.
type Converter interface {
	// Convert reads inPath and writes outPath. It returns immediately; the
	// channel receives exactly one Result and is then closed. The input is
	// never deleted and a partially written output is removed on failure.
	Convert(ctx context.Context, inPath, outPath string) <-chan Result

	// Check reports whether the engine can run on this host.
	Check(ctx context.Context) error

	// Name returns the engine name.
	Name() string
}

// Option configures a Converter built by [New].
type Option func(*options)

type options struct {
	timeout    time.Duration
	ffmpegPath string
}

// WithTimeout bounds a single conversion. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithFFmpegPath sets the ffmpeg binary used by the ffmpeg engine. Empty keeps
// the default, which is resolved through PATH.
func WithFFmpegPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.ffmpegPath = path
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{timeout: defaultTimeout, ffmpegPath: defaultFFmpegPath}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// New returns the engine registered under name.
func New(name string, opts ...Option) (Converter, error) {
	switch name {
	case EngineFFmpeg, "":
		return NewFFmpeg(opts...), nil
	case EngineNative:
		return NewNative(opts...), nil
	default:
		return nil, fmt.Errorf("transcode: unknown engine %q", name)
	}
}

// convertFunc performs one blocking conversion.
type convertFunc func(ctx context.Context, inPath, outPath string) error

// runAsync executes fn in its own goroutine under a timeout and reports the
// outcome on a one-shot channel.
func runAsync(ctx context.Context, timeout time.Duration, inPath, outPath string, fn convertFunc) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)

		if _, err := os.Stat(inPath); err != nil {
			out <- Result{Err: fmt.Errorf("transcode: input: %w", err)}
			return
		}

		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := fn(cctx, inPath, outPath)
		if err == nil {
			err = cctx.Err()
		}
		if err != nil {
			removePartial(outPath)
			if errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				err = fmt.Errorf("transcode: timed out after %s: %w", timeout, err)
			}
			out <- Result{Err: err}
			return
		}
		out <- Result{Path: outPath}
	}()
	return out
}

func removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("transcode: failed to remove partial output", "path", path, "error", err)
	}
}

package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// Compile-time interface assertion.
var _ Converter = (*Native)(nil)

// resampleQuality trades CPU for fidelity when the MP3 is not already 48 kHz.
const resampleQuality = 4

// Native converts in-process with gopxl/beep. It needs no external tools.
type Native struct {
	timeout time.Duration
}

// NewNative returns a pure-Go engine. Only [WithTimeout] applies.
func NewNative(opts ...Option) *Native {
	o := buildOptions(opts)
	return &Native{timeout: o.timeout}
}

// Name implements [Converter].
func (n *Native) Name() string { return EngineNative }

// Check implements [Converter]. The native engine is always available.
func (n *Native) Check(context.Context) error { return nil }

// Convert implements [Converter].
func (n *Native) Convert(ctx context.Context, inPath, outPath string) <-chan Result {
	return runAsync(ctx, n.timeout, inPath, outPath, n.run)
}

func (n *Native) run(ctx context.Context, inPath, outPath string) (err error) {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("transcode: open input: %w", err)
	}
	// mp3.Decode takes ownership of in and closes it with the decoder.
	dec, format, err := mp3.Decode(in)
	if err != nil {
		_ = in.Close()
		return fmt.Errorf("transcode: decode mp3: %w", err)
	}
	defer dec.Close()

	var stream beep.Streamer = dec
	if format.SampleRate != outputSampleRate {
		stream = beep.Resample(resampleQuality, format.SampleRate, outputSampleRate, dec)
	}

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("transcode: create output: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("transcode: close output: %w", cerr)
		}
	}()

	var total int
	src := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if ctx.Err() != nil {
			return 0, false
		}
		n, ok := stream.Stream(samples)
		total += n
		return n, ok
	})

	target := beep.Format{SampleRate: outputSampleRate, NumChannels: outputChannels, Precision: 2}
	if err := wav.Encode(out, src, target); err != nil {
		return fmt.Errorf("transcode: encode wav: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transcode: %w", err)
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("transcode: decode mp3: %w", err)
	}
	if total == 0 {
		return errNoAudio
	}
	return nil
}

// errNoAudio is returned when the decoder produced no samples at all.
var errNoAudio = errors.New("transcode: input contains no audio")

package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Compile-time interface assertion.
var _ Converter = (*FFmpeg)(nil)

// waitDelay bounds how long Wait blocks on ffmpeg's pipes after the process
// was killed.
const waitDelay = 2 * time.Second

// FFmpeg converts with the ffmpeg command-line tool.
type FFmpeg struct {
	path    string
	timeout time.Duration
}

// NewFFmpeg returns an ffmpeg engine. See [WithFFmpegPath] and [WithTimeout].
func NewFFmpeg(opts ...Option) *FFmpeg {
	o := buildOptions(opts)
	return &FFmpeg{path: o.ffmpegPath, timeout: o.timeout}
}

// Name implements [Converter].
func (f *FFmpeg) Name() string { return EngineFFmpeg }

// Convert implements [Converter].
func (f *FFmpeg) Convert(ctx context.Context, inPath, outPath string) <-chan Result {
	return runAsync(ctx, f.timeout, inPath, outPath, f.run)
}

func (f *FFmpeg) run(ctx context.Context, inPath, outPath string) error {
	cmd := exec.CommandContext(ctx, f.path, ffmpegArgs(inPath, outPath)...)
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("transcode: ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("transcode: ffmpeg: %w", err)
	}
	return nil
}

// ffmpegArgs builds the argument list for one MP3 → WAV conversion.
func ffmpegArgs(inPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inPath,
		"-ar", strconv.Itoa(outputSampleRate),
		"-ac", strconv.Itoa(outputChannels),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outPath,
	}
}

// Check implements [Converter]. It resolves the binary and runs "-version".
func (f *FFmpeg) Check(ctx context.Context) error {
	bin, err := exec.LookPath(f.path)
	if err != nil {
		return fmt.Errorf("transcode: ffmpeg not available: %w", err)
	}
	cmd := exec.CommandContext(ctx, bin, "-version")
	cmd.WaitDelay = waitDelay
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("transcode: ffmpeg -version: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/MrWong99/speechcord/internal/config"
	"github.com/MrWong99/speechcord/internal/transcode"
	"github.com/MrWong99/speechcord/pkg/provider/tts"
	"github.com/MrWong99/speechcord/pkg/provider/tts/elevenlabs"
)

// NewProvider builds the ElevenLabs client from cfg.
func NewProvider(cfg config.ElevenLabsConfig) (*elevenlabs.Provider, error) {
	opts := []elevenlabs.Option{
		elevenlabs.WithVoiceSettings(tts.VoiceSettings{
			Stability:       cfg.Stability,
			SimilarityBoost: cfg.SimilarityBoost,
		}),
	}
	if cfg.Model != "" {
		opts = append(opts, elevenlabs.WithModel(cfg.Model))
	}
	if cfg.OutputFormat != "" {
		opts = append(opts, elevenlabs.WithOutputFormat(cfg.OutputFormat))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, elevenlabs.WithBaseURL(cfg.BaseURL))
	}
	p, err := elevenlabs.New(cfg.APIKey, cfg.VoiceID, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: build tts provider: %w", err)
	}
	return p, nil
}

// NewConverter builds the configured MP3 → WAV converter.
func NewConverter(cfg config.TranscodeConfig) (transcode.Converter, error) {
	c, err := transcode.New(cfg.Engine,
		transcode.WithTimeout(cfg.Timeout),
		transcode.WithFFmpegPath(cfg.FFmpegPath),
	)
	if err != nil {
		return nil, fmt.Errorf("app: build converter: %w", err)
	}
	return c, nil
}

// Say synthesizes text and writes the converted WAV to outPath without
// involving Discord. The intermediate MP3 is removed before returning.
func Say(ctx context.Context, p tts.Provider, c transcode.Converter, text, outPath string) error {
	audio, err := p.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("app: synthesize: %w", err)
	}
	if len(audio) == 0 {
		return fmt.Errorf("app: synthesize: provider returned no audio")
	}

	mp3Path := filepath.Join(os.TempDir(), "speechcord-say-"+uuid.NewString()+".mp3")
	if err := os.WriteFile(mp3Path, audio, 0o600); err != nil {
		return fmt.Errorf("app: write mp3: %w", err)
	}
	defer os.Remove(mp3Path)

	select {
	case res := <-c.Convert(ctx, mp3Path, outPath):
		if res.Err != nil {
			return fmt.Errorf("app: convert: %w", res.Err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

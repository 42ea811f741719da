// Package config provides the configuration schema and loader for the
// speechcord bot.
package config

import (
	"errors"
	"fmt"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the log handler.
type LogFormat string

const (
	LogFormatText   LogFormat = "text"
	LogFormatJSON   LogFormat = "json"
	LogFormatPretty LogFormat = "pretty"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	switch f {
	case LogFormatText, LogFormatJSON, LogFormatPretty:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded with [Load].
type Config struct {
	Discord    DiscordConfig    `yaml:"discord"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	Transcode  TranscodeConfig  `yaml:"transcode"`
	Speech     SpeechConfig     `yaml:"speech"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// DiscordConfig holds the bot credentials and command registration scope.
type DiscordConfig struct {
	// Token is the bot token.
	Token string `yaml:"token" env:"DISCORD_BOT_TOKEN"`

	// ClientID is the application ID that owns the slash commands.
	ClientID string `yaml:"client_id" env:"DISCORD_CLIENT_ID"`

	// GuildID registers commands in a single guild instead of globally.
	// Guild commands update instantly, global ones can take up to an hour.
	GuildID string `yaml:"guild_id" env:"DISCORD_GUILD_ID"`

	// UnregisterOnExit deletes the registered commands on shutdown.
	UnregisterOnExit bool `yaml:"unregister_on_exit" env:"DISCORD_UNREGISTER_ON_EXIT"`
}

// ElevenLabsConfig configures the text-to-speech provider.
type ElevenLabsConfig struct {
	APIKey  string `yaml:"api_key" env:"ELEVENLABS_API_KEY"`
	VoiceID string `yaml:"voice_id" env:"ELEVENLABS_VOICE_ID"`

	// Model is the ElevenLabs model ID.
	Model string `yaml:"model" env:"ELEVENLABS_MODEL"`

	// OutputFormat is passed as the output_format query parameter. Empty
	// keeps the API default (MP3).
	OutputFormat string `yaml:"output_format" env:"ELEVENLABS_OUTPUT_FORMAT"`

	// BaseURL overrides the API root.
	BaseURL string `yaml:"base_url" env:"ELEVENLABS_BASE_URL"`

	Stability       float64 `yaml:"stability" env:"ELEVENLABS_STABILITY"`
	SimilarityBoost float64 `yaml:"similarity_boost" env:"ELEVENLABS_SIMILARITY_BOOST"`

	// Timeout bounds a single synthesis request.
	Timeout time.Duration `yaml:"timeout" env:"ELEVENLABS_TIMEOUT"`

	// BreakerFailures is the number of consecutive failed synthesis calls
	// after which requests fail fast for BreakerCooldown. Zero disables it.
	BreakerFailures int           `yaml:"breaker_failures" env:"ELEVENLABS_BREAKER_FAILURES"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" env:"ELEVENLABS_BREAKER_COOLDOWN"`
}

// TranscodeConfig selects the MP3 → WAV converter.
type TranscodeConfig struct {
	// Engine is "ffmpeg" or "native".
	Engine string `yaml:"engine" env:"SPEECHCORD_TRANSCODER"`

	// FFmpegPath is the ffmpeg binary, looked up in PATH when relative.
	FFmpegPath string `yaml:"ffmpeg_path" env:"FFMPEG_PATH"`

	Timeout time.Duration `yaml:"timeout" env:"SPEECHCORD_TRANSCODE_TIMEOUT"`
}

// SpeechConfig tunes the playback pipeline.
type SpeechConfig struct {
	// TempDir is where the per-process work directory is created. Empty
	// uses the OS temp dir.
	TempDir string `yaml:"temp_dir" env:"SPEECHCORD_TEMP_DIR"`

	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"SPEECHCORD_CONNECT_TIMEOUT"`
	PlaybackTimeout time.Duration `yaml:"playback_timeout" env:"SPEECHCORD_PLAYBACK_TIMEOUT"`

	// RateLimitPerMinute caps /speech requests per user. Zero disables it.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" env:"SPEECHCORD_RATE_LIMIT"`
}

// ServerConfig holds the ops HTTP server settings.
type ServerConfig struct {
	// ListenAddr serves /healthz, /readyz and /metrics (e.g., ":9090").
	// Empty disables the server.
	ListenAddr string `yaml:"listen_addr" env:"SPEECHCORD_LISTEN_ADDR"`

	// CheckTimeout bounds each readiness check.
	CheckTimeout time.Duration `yaml:"check_timeout" env:"SPEECHCORD_CHECK_TIMEOUT"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  LogLevel  `yaml:"level" env:"SPEECHCORD_LOG_LEVEL"`
	Format LogFormat `yaml:"format" env:"SPEECHCORD_LOG_FORMAT"`
}

// Default returns the built-in configuration that files and environment
// variables are layered on top of.
func Default() *Config {
	return &Config{
		ElevenLabs: ElevenLabsConfig{
			Model:           "eleven_multilingual_v2",
			Stability:       0.75,
			SimilarityBoost: 0.75,
			Timeout:         30 * time.Second,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Transcode: TranscodeConfig{
			Engine:     "ffmpeg",
			FFmpegPath: "ffmpeg",
			Timeout:    30 * time.Second,
		},
		Speech: SpeechConfig{
			ConnectTimeout:  15 * time.Second,
			PlaybackTimeout: 10 * time.Minute,
		},
		Server: ServerConfig{
			CheckTimeout: 2 * time.Second,
		},
		Log: LogConfig{
			Level:  LogInfo,
			Format: LogFormatText,
		},
	}
}

// Requirement selects which credentials [Validate] insists on.
type Requirement uint8

const (
	// RequireDiscord needs the bot token and client ID.
	RequireDiscord Requirement = 1 << iota
	// RequireElevenLabs needs the API key and voice ID.
	RequireElevenLabs

	// RequireAll is what the running bot needs.
	RequireAll = RequireDiscord | RequireElevenLabs
)

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config, req Requirement) error {
	var errs []error

	if req&RequireDiscord != 0 {
		if cfg.Discord.Token == "" {
			errs = append(errs, errors.New("discord.token is required (DISCORD_BOT_TOKEN)"))
		}
		if cfg.Discord.ClientID == "" {
			errs = append(errs, errors.New("discord.client_id is required (DISCORD_CLIENT_ID)"))
		}
	}
	if req&RequireElevenLabs != 0 {
		if cfg.ElevenLabs.APIKey == "" {
			errs = append(errs, errors.New("elevenlabs.api_key is required (ELEVENLABS_API_KEY)"))
		}
		if cfg.ElevenLabs.VoiceID == "" {
			errs = append(errs, errors.New("elevenlabs.voice_id is required (ELEVENLABS_VOICE_ID)"))
		}
	}

	el := cfg.ElevenLabs
	if el.Stability < 0 || el.Stability > 1 {
		errs = append(errs, fmt.Errorf("elevenlabs.stability %.2f is out of range [0, 1]", el.Stability))
	}
	if el.SimilarityBoost < 0 || el.SimilarityBoost > 1 {
		errs = append(errs, fmt.Errorf("elevenlabs.similarity_boost %.2f is out of range [0, 1]", el.SimilarityBoost))
	}

	if el.BreakerFailures < 0 {
		errs = append(errs, fmt.Errorf("elevenlabs.breaker_failures %d must not be negative", el.BreakerFailures))
	}
	if el.BreakerFailures > 0 && el.BreakerCooldown <= 0 {
		errs = append(errs, fmt.Errorf("elevenlabs.breaker_cooldown must be positive, got %s", el.BreakerCooldown))
	}

	switch cfg.Transcode.Engine {
	case "ffmpeg", "native":
	default:
		errs = append(errs, fmt.Errorf("transcode.engine %q is invalid; valid values: ffmpeg, native", cfg.Transcode.Engine))
	}
	if cfg.Transcode.Engine == "ffmpeg" && cfg.Transcode.FFmpegPath == "" {
		errs = append(errs, errors.New("transcode.ffmpeg_path is required when engine is ffmpeg"))
	}

	for name, d := range map[string]time.Duration{
		"elevenlabs.timeout":      el.Timeout,
		"transcode.timeout":       cfg.Transcode.Timeout,
		"speech.connect_timeout":  cfg.Speech.ConnectTimeout,
		"speech.playback_timeout": cfg.Speech.PlaybackTimeout,
		"server.check_timeout":    cfg.Server.CheckTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if cfg.Speech.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("speech.rate_limit_per_minute %d must not be negative", cfg.Speech.RateLimitPerMinute))
	}

	if !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	if !cfg.Log.Format.IsValid() {
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: text, json, pretty", cfg.Log.Format))
	}

	return errors.Join(errs...)
}

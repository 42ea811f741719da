// Package app wires all speechcord subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves Discord and the ops endpoints until the context
// ends, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithBot, WithProvider,
// WithConverter, WithTelemetry). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/speechcord/internal/config"
	"github.com/MrWong99/speechcord/internal/discord"
	"github.com/MrWong99/speechcord/internal/discord/commands"
	"github.com/MrWong99/speechcord/internal/health"
	"github.com/MrWong99/speechcord/internal/observe"
	"github.com/MrWong99/speechcord/internal/resilience"
	"github.com/MrWong99/speechcord/internal/speech"
	"github.com/MrWong99/speechcord/internal/transcode"
	"github.com/MrWong99/speechcord/pkg/audio"
	"github.com/MrWong99/speechcord/pkg/provider/tts"
)

// serverShutdownTimeout bounds the graceful stop of the ops server.
const serverShutdownTimeout = 5 * time.Second

// Bot is the Discord surface the app drives. Implemented by *discord.Bot.
type Bot interface {
	Platform() audio.Platform
	Router() *discord.CommandRouter
	VoiceChannel(guildID, userID string) string
	Ready(ctx context.Context) error
	Run(ctx context.Context) error
	Close() error
}

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	version string

	// Subsystems, initialised in New and torn down in Shutdown.
	telemetry *observe.Telemetry
	provider  tts.Provider
	breaker   *resilience.TTSProvider
	converter transcode.Converter
	workspace *speech.Workspace
	bot       Bot
	pipeline  *speech.Pipeline
	ops       http.Handler
	server    *http.Server

	// ownTelemetry is set when New initialised the SDK itself.
	ownTelemetry bool

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithBot injects the Discord bot instead of connecting a new one.
func WithBot(b Bot) Option {
	return func(a *App) { a.bot = b }
}

// WithProvider injects the TTS provider instead of building ElevenLabs from config.
func WithProvider(p tts.Provider) Option {
	return func(a *App) { a.provider = p }
}

// WithConverter injects the MP3 → WAV converter.
func WithConverter(c transcode.Converter) Option {
	return func(a *App) { a.converter = c }
}

// WithTelemetry injects an initialised OTel SDK. The caller keeps ownership.
func WithTelemetry(t *observe.Telemetry) Option {
	return func(a *App) { a.telemetry = t }
}

// WithVersion sets the service version reported in telemetry.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. On error every
// subsystem created so far is closed again.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	var undo []func(context.Context) error
	defer func() {
		if err != nil {
			for i := len(undo) - 1; i >= 0; i-- {
				_ = undo[i](context.Background())
			}
		}
	}()

	// ── 1. Telemetry ─────────────────────────────────────────────────────
	if a.telemetry == nil {
		tel, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    "speechcord",
			ServiceVersion: a.version,
		})
		if err != nil {
			return nil, fmt.Errorf("app: init telemetry: %w", err)
		}
		a.telemetry = tel
		a.ownTelemetry = true
		undo = append(undo, tel.Shutdown)
	}

	// ── 2. TTS provider ──────────────────────────────────────────────────
	if a.provider == nil {
		p, err := NewProvider(cfg.ElevenLabs)
		if err != nil {
			return nil, err
		}
		a.provider = p
	}
	if cfg.ElevenLabs.BreakerFailures > 0 {
		a.breaker = resilience.NewTTSProvider(a.provider, resilience.BreakerConfig{
			Name:        "elevenlabs",
			MaxFailures: cfg.ElevenLabs.BreakerFailures,
			Cooldown:    cfg.ElevenLabs.BreakerCooldown,
		})
		a.provider = a.breaker
	}

	// ── 3. Converter ─────────────────────────────────────────────────────
	if a.converter == nil {
		c, err := NewConverter(cfg.Transcode)
		if err != nil {
			return nil, err
		}
		a.converter = c
	}
	if err := a.converter.Check(ctx); err != nil {
		return nil, fmt.Errorf("app: converter %s unusable: %w", a.converter.Name(), err)
	}

	// ── 4. Workspace ─────────────────────────────────────────────────────
	ws, err := speech.NewWorkspace(cfg.Speech.TempDir)
	if err != nil {
		return nil, err
	}
	a.workspace = ws
	undo = append(undo, func(context.Context) error { return ws.Close() })
	slog.Info("temp workspace ready", "dir", ws.Dir())

	// ── 5. Discord bot ───────────────────────────────────────────────────
	if a.bot == nil {
		bot, err := discord.New(ctx, discord.Config{
			Token:             cfg.Discord.Token,
			ApplicationID:     cfg.Discord.ClientID,
			GuildID:           cfg.Discord.GuildID,
			UnregisterOnClose: cfg.Discord.UnregisterOnExit,
		})
		if err != nil {
			return nil, err
		}
		a.bot = bot
		undo = append(undo, func(context.Context) error { return bot.Close() })
	}

	// ── 6. Pipeline + commands ───────────────────────────────────────────
	a.pipeline = speech.New(a.provider, a.converter, a.bot.Platform(), ws,
		speech.WithMetrics(a.telemetry.Metrics),
		speech.WithProviderName("elevenlabs"),
		speech.WithSynthesisTimeout(cfg.ElevenLabs.Timeout),
		speech.WithConversionTimeout(cfg.Transcode.Timeout),
		speech.WithConnectTimeout(cfg.Speech.ConnectTimeout),
		speech.WithPlaybackTimeout(cfg.Speech.PlaybackTimeout),
		speech.WithRateLimit(cfg.Speech.RateLimitPerMinute),
	)
	commands.NewSpeechCommands(a.bot.Router(), a.pipeline, a.bot)

	// ── 7. Ops endpoints ─────────────────────────────────────────────────
	a.ops = a.opsHandler()
	if cfg.Server.ListenAddr != "" {
		a.server = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           a.ops,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	// Shutdown order: stop playbacks while the gateway is still up, then
	// the gateway, then files, then telemetry.
	a.closers = append(a.closers,
		func(context.Context) error { return a.pipeline.Close() },
		func(context.Context) error { return a.bot.Close() },
		func(context.Context) error { return ws.Close() },
	)
	if a.ownTelemetry {
		a.closers = append(a.closers, a.telemetry.Shutdown)
	}
	return a, nil
}

func (a *App) opsHandler() http.Handler {
	checkers := []health.Checker{
		{Name: "discord", Check: a.bot.Ready},
		{Name: "transcoder", Check: a.converter.Check},
	}
	if a.breaker != nil {
		checkers = append(checkers, health.Checker{Name: "elevenlabs", Check: a.ttsCircuit})
	}
	checks := health.New(checkers, health.WithCheckTimeout(a.cfg.Server.CheckTimeout))

	mux := http.NewServeMux()
	checks.Register(mux)
	mux.Handle("GET /metrics", a.telemetry.MetricsHandler())
	return observe.Middleware(a.telemetry.Metrics)(mux)
}

// ttsCircuit fails while synthesis requests are being short-circuited.
func (a *App) ttsCircuit(context.Context) error {
	if a.breaker.Breaker().State() == resilience.StateOpen {
		return resilience.ErrCircuitOpen
	}
	return nil
}

// Pipeline returns the speech pipeline.
func (a *App) Pipeline() *speech.Pipeline { return a.pipeline }

// Handler returns the ops HTTP handler (/healthz, /readyz, /metrics).
func (a *App) Handler() http.Handler { return a.ops }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run registers the slash commands, serves the ops endpoints and blocks
// until ctx is cancelled or a subsystem fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.bot.Run(gctx)
	})

	if a.server != nil {
		g.Go(func() error {
			slog.Info("ops server listening", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: ops server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), serverShutdownTimeout)
			defer cancel()
			return a.server.Shutdown(sctx)
		})
	}

	slog.Info("speechcord running")
	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			done := make(chan error, 1)
			go func() { done <- closer(ctx) }()

			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			case err := <-done:
				if err != nil {
					slog.Warn("closer error", "index", i, "err", err)
				}
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

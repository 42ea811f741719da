package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/speechcord/internal/app"
	"github.com/MrWong99/speechcord/internal/config"
)

// shutdownTimeout bounds the graceful stop after SIGINT/SIGTERM.
const shutdownTimeout = 15 * time.Second

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve /speech (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd, flags)
		},
	}
}

func runBot(cmd *cobra.Command, flags *globalFlags) error {
	cfg, err := loadConfig(cmd, flags, config.RequireAll)
	if err != nil {
		return err
	}

	slog.Info("speechcord starting",
		"version", version,
		"voice_id", cfg.ElevenLabs.VoiceID,
		"model", cfg.ElevenLabs.Model,
		"transcoder", cfg.Transcode.Engine,
		"guild_id", cfg.Discord.GuildID,
		"listen_addr", cfg.Server.ListenAddr,
	)

	// ── Signal context ────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, app.WithVersion(version))
	if err != nil {
		return err
	}

	slog.Info("bot ready, press Ctrl+C to shut down")
	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────
	slog.Info("stopping")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("goodbye")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

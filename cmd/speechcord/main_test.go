package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/speechcord/internal/config"
)

func TestNewLogger_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level config.LogLevel
		want  slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
	}
	for _, tt := range tests {
		for _, format := range []config.LogFormat{config.LogFormatText, config.LogFormatJSON, config.LogFormatPretty} {
			l := newLogger(&bytes.Buffer{}, tt.level, format)
			h := l.Handler()
			if !h.Enabled(context.Background(), tt.want) {
				t.Errorf("%s/%s: level %v disabled", tt.level, format, tt.want)
			}
			if h.Enabled(context.Background(), tt.want-1) {
				t.Errorf("%s/%s: level below %v enabled", tt.level, format, tt.want)
			}
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newLogger(&buf, config.LogInfo, config.LogFormatJSON).Info("hello", "guild_id", "g1")
	if !strings.Contains(buf.String(), `"guild_id":"g1"`) {
		t.Errorf("output %q is not JSON with the attribute", buf.String())
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	for _, name := range []string{"run", "register", "say", "voices"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q not found", name)
		}
	}
	if f := root.PersistentFlags().Lookup("env-file"); f == nil || f.DefValue != config.DefaultEnvFile {
		t.Error("--env-file flag missing or wrong default")
	}
}

func TestSayCmd_RequiresText(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	root.SetArgs([]string{"say", "--env-file", filepath.Join(t.TempDir(), "none.env")})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err == nil {
		t.Error("say without text should fail")
	}
}

func TestRegisterCmd_MissingCredentials(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")
	t.Setenv("DISCORD_CLIENT_ID", "")

	root := newRootCmd()
	root.SetArgs([]string{"register", "--env-file", filepath.Join(t.TempDir(), "none.env")})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "DISCORD_BOT_TOKEN") {
		t.Errorf("err = %v, want missing token", err)
	}
}

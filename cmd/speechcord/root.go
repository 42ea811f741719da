package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MrWong99/speechcord/internal/config"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "speechcord",
		Short:         "Discord bot that reads text aloud in voice channels",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd, flags)
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "optional YAML configuration file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", config.DefaultEnvFile, "dotenv file layered under the process environment")

	root.AddCommand(
		newRunCmd(flags),
		newRegisterCmd(flags),
		newSayCmd(flags),
		newVoicesCmd(flags),
	)
	return root
}

// loadConfig reads the configuration and installs the process logger.
func loadConfig(cmd *cobra.Command, flags *globalFlags, req config.Requirement) (*config.Config, error) {
	cfg, err := config.Load(config.Sources{
		Path:    flags.configPath,
		EnvFile: flags.envFile,
	}, req)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found", flags.configPath)
		}
		return nil, err
	}
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format))
	return cfg, nil
}

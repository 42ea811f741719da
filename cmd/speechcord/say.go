package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/speechcord/internal/app"
	"github.com/MrWong99/speechcord/internal/config"
)

func newSayCmd(flags *globalFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "say <text>",
		Short: "Synthesize text to a local WAV file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("text must not be empty")
			}
			cfg, err := loadConfig(cmd, flags, config.RequireElevenLabs)
			if err != nil {
				return err
			}
			provider, err := app.NewProvider(cfg.ElevenLabs)
			if err != nil {
				return err
			}
			conv, err := app.NewConverter(cfg.Transcode)
			if err != nil {
				return err
			}
			if err := conv.Check(cmd.Context()); err != nil {
				return fmt.Errorf("converter %s unusable: %w", conv.Name(), err)
			}
			if err := app.Say(cmd.Context(), provider, conv, text, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "speech.wav", "WAV file to write")
	return cmd
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/speechcord/internal/app"
	"github.com/MrWong99/speechcord/internal/config"
)

func newVoicesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the voices available to the configured ElevenLabs account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags, config.RequireElevenLabs)
			if err != nil {
				return err
			}
			provider, err := app.NewProvider(cfg.ElevenLabs)
			if err != nil {
				return err
			}
			voices, err := provider.ListVoices(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCURRENT")
			for _, v := range voices {
				current := ""
				if v.ID == cfg.ElevenLabs.VoiceID {
					current = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", v.ID, v.Name, current)
			}
			return tw.Flush()
		},
	}
}

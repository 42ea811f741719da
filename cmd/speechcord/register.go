package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/speechcord/internal/config"
	"github.com/MrWong99/speechcord/internal/discord"
	"github.com/MrWong99/speechcord/internal/discord/commands"
)

func newRegisterCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Publish the slash command definitions without starting the bot",
		Long: `Register overwrites the application's slash commands over the REST API.
Commands are guild-scoped when discord.guild_id (DISCORD_GUILD_ID) is set and
global otherwise. Global commands can take up to an hour to appear.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags, config.RequireDiscord)
			if err != nil {
				return err
			}
			session, err := discord.NewSession(cfg.Discord.Token)
			if err != nil {
				return err
			}

			router := discord.NewCommandRouter()
			commands.NewSpeechCommands(router, nil, nil)

			registered, err := discord.RegisterCommands(session, cfg.Discord.ClientID, cfg.Discord.GuildID, router)
			if err != nil {
				return err
			}
			scope := "globally"
			if cfg.Discord.GuildID != "" {
				scope = "in guild " + cfg.Discord.GuildID
			}
			for _, c := range registered {
				fmt.Fprintf(cmd.OutOrStdout(), "registered /%s (%s) %s\n", c.Name, c.ID, scope)
			}
			return nil
		},
	}
}

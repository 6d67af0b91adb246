package command

import (
	"fmt"

	"github.com/adamavenir/huddle/internal/db"
	"github.com/adamavenir/huddle/internal/types"
	"github.com/spf13/cobra"
)

// NewChannelCmd creates the channel command group.
func NewChannelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage channels",
	}
	cmd.AddCommand(newChannelNewCmd())
	return cmd
}

func newChannelNewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			direct, _ := cmd.Flags().GetBool("direct")
			section, _ := cmd.Flags().GetString("section")
			kind := types.ChannelKindGroup
			if direct {
				kind = types.ChannelKindDirect
			}
			var sectionID *string
			if section != "" {
				sectionID = &section
			}

			channel, err := db.CreateChannel(cmd.Context(), ctx.DB, args[0], kind, sectionID)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), channel)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created #%s (%s)\n", channel.Name, channel.ID)
			return nil
		},
	}
	cmd.Flags().Bool("direct", false, "create a direct conversation")
	cmd.Flags().String("section", "", "sidebar section the channel belongs to")
	return cmd
}

// NewChannelsCmd creates the channels command.
func NewChannelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			channels, err := db.ListChannels(cmd.Context(), ctx.DB)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), channels)
			}
			out := cmd.OutOrStdout()
			if len(channels) == 0 {
				fmt.Fprintln(out, "No channels")
				return nil
			}
			for _, ch := range channels {
				kind := ""
				if ch.Kind == types.ChannelKindDirect {
					kind = " (direct)"
				}
				fmt.Fprintf(out, "#%s%s  %s\n", ch.Name, kind, ch.ID)
			}
			return nil
		},
	}
}

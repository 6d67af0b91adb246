package command

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adamavenir/huddle/internal/config"
	"github.com/adamavenir/huddle/internal/core"
	"github.com/adamavenir/huddle/internal/db"
	"github.com/adamavenir/huddle/internal/types"
	"github.com/spf13/cobra"
)

const defaultChannelName = "general"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize huddle in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			force, _ := cmd.Flags().GetBool("force")
			channelName, _ := cmd.Flags().GetString("channel")
			jsonMode, _ := cmd.Flags().GetBool("json")

			project, err := core.InitProject(dir, force)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			configPath, err := config.EnsureProjectConfig(project.Dir())
			if err != nil {
				return writeCommandError(cmd, err)
			}

			conn, err := db.OpenDatabase(project)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer conn.Close()

			channel, err := ensureChannel(cmd.Context(), conn, channelName)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"root":    project.Root,
					"db":      project.DBPath,
					"config":  configPath,
					"channel": channel,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Initialized huddle in %s\n", project.Dir())
			fmt.Fprintf(out, "Created #%s (%s)\n", channel.Name, channel.ID)
			fmt.Fprintln(out, "Next: huddle join <name>")
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "reinitialize, discarding the existing database")
	cmd.Flags().String("channel", defaultChannelName, "name of the first channel")
	return cmd
}

// ensureChannel returns the channel called name, creating it when missing.
func ensureChannel(ctx context.Context, conn *sql.DB, name string) (types.Channel, error) {
	channel, err := db.ResolveChannel(ctx, conn, name)
	if err == nil {
		return channel, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return types.Channel{}, err
	}
	return db.CreateChannel(ctx, conn, name, types.ChannelKindGroup, nil)
}

package command

import (
	"fmt"
	"strings"

	"github.com/adamavenir/huddle/internal/core"
	"github.com/adamavenir/huddle/internal/session"
	"github.com/spf13/cobra"
)

// NewReactCmd creates the react command.
func NewReactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "react <emoji> <message>",
		Short: "Toggle your reaction on a message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			emoji := strings.TrimSpace(args[0])
			if emoji == "" {
				return writeCommandError(cmd, fmt.Errorf("emoji is required"))
			}
			user, err := ctx.User(cmd.Context())
			if err != nil {
				return writeCommandError(cmd, err)
			}
			msg, err := ctx.Message(cmd.Context(), args[1])
			if err != nil {
				return writeCommandError(cmd, err)
			}

			reactions := session.NewReactionAggregator(ctx.Repo)
			if err := reactions.LoadForMessages(cmd.Context(), []string{msg.ID}); err != nil {
				return writeCommandError(cmd, err)
			}
			added, err := reactions.Toggle(cmd.Context(), msg.ID, emoji, user.ID)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"message_id": msg.ID,
					"user_id":    user.ID,
					"emoji":      emoji,
					"added":      added,
					"groups":     reactions.Groups(msg.ID, user.ID),
				})
			}
			verb := "Removed"
			if added {
				verb = "Reacted"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s on #%s\n", verb, emoji, core.ShortID(msg.ID))
			return nil
		},
	}
}

package command

import (
	"fmt"

	"github.com/adamavenir/huddle/internal/core"
	"github.com/adamavenir/huddle/internal/types"
	"github.com/spf13/cobra"
)

// NewEditCmd creates the edit command.
func NewEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <message> <new text>",
		Short: "Edit one of your messages",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			msg, err := ownMessage(cmd, ctx, args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			updated, err := ctx.Repo.UpdateMessageContent(cmd.Context(), msg.ID, args[1])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), updated)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Edited #%s\n", core.ShortID(updated.ID))
			return nil
		},
	}
}

// NewRmCmd creates the rm command.
func NewRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <message>",
		Short: "Delete one of your messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			msg, err := ownMessage(cmd, ctx, args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.Repo.SoftDeleteMessage(cmd.Context(), msg.ID); err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"id": msg.ID, "deleted": true})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted #%s\n", core.ShortID(msg.ID))
			return nil
		},
	}
}

func ownMessage(cmd *cobra.Command, ctx *CommandContext, ref string) (types.Message, error) {
	user, err := ctx.User(cmd.Context())
	if err != nil {
		return types.Message{}, err
	}
	msg, err := ctx.Message(cmd.Context(), ref)
	if err != nil {
		return types.Message{}, err
	}
	if msg.SenderID != user.ID {
		return types.Message{}, fmt.Errorf("#%s was posted by someone else", core.ShortID(msg.ID))
	}
	return msg, nil
}

package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/adamavenir/huddle/internal/core"
	"github.com/adamavenir/huddle/internal/types"
	"github.com/spf13/cobra"
)

// NewPostCmd creates the post command.
func NewPostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post <message>",
		Short: "Post a message to a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postDraft(cmd, types.Draft{Content: args[0]})
		},
	}
}

// NewPollCmd creates the poll command.
func NewPollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll <question> <option> <option>...",
		Short: "Post a poll",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			multi, _ := cmd.Flags().GetBool("multi")
			poll := types.PollMetadata{Question: args[0], Multi: multi}
			for i, label := range args[1:] {
				poll.Options = append(poll.Options, types.PollOption{ID: strconv.Itoa(i + 1), Label: label})
			}
			return postDraft(cmd, types.Draft{Content: args[0], Kind: types.MessageKindPoll, Metadata: poll})
		},
	}
	cmd.Flags().Bool("multi", false, "allow voting for several options")
	return cmd
}

func postDraft(cmd *cobra.Command, draft types.Draft) error {
	ctx, err := GetContext(cmd)
	if err != nil {
		return writeCommandError(cmd, err)
	}
	defer ctx.Close()

	user, err := ctx.User(cmd.Context())
	if err != nil {
		return writeCommandError(cmd, err)
	}
	channel, err := ctx.Channel(cmd.Context(), "")
	if err != nil {
		return writeCommandError(cmd, err)
	}
	draft.SenderID = user.ID
	draft.Content = strings.TrimSpace(draft.Content)

	msg, err := ctx.Repo.InsertMessage(cmd.Context(), channel.ID, draft)
	if err != nil {
		return writeCommandError(cmd, err)
	}
	if ctx.JSONMode {
		return writeJSON(cmd.OutOrStdout(), msg)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[%s] Posted to #%s as @%s\n", core.ShortID(msg.ID), channel.Name, user.Name)
	return nil
}

// NewVoteCmd creates the vote command.
func NewVoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vote <message> <option>",
		Short: "Vote on a poll (voting again for the same option withdraws)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			user, err := ctx.User(cmd.Context())
			if err != nil {
				return writeCommandError(cmd, err)
			}
			msg, err := ctx.Message(cmd.Context(), args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			updated, err := ctx.Repo.VotePoll(cmd.Context(), msg.ID, user.ID, args[1])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), updated)
			}
			poll, _ := updated.Metadata.(types.PollMetadata)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Voted on #%s: %s\n", core.ShortID(updated.ID), poll.Question)
			for _, opt := range poll.Options {
				fmt.Fprintf(out, "  [%s] %s (%d)\n", opt.ID, opt.Label, len(opt.Voters))
			}
			return nil
		},
	}
}

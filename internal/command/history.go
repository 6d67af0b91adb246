package command

import (
	"fmt"

	"github.com/adamavenir/huddle/internal/db"
	"github.com/adamavenir/huddle/internal/session"
	"github.com/adamavenir/huddle/internal/types"
	"github.com/spf13/cobra"
)

type historyEntry struct {
	Message   types.Message         `json:"message"`
	Reactions []types.ReactionGroup `json:"reactions,omitempty"`
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [channel]",
		Short: "Show recent messages of a channel",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			ref := ""
			if len(args) > 0 {
				ref = args[0]
			}
			channel, err := ctx.Channel(cmd.Context(), ref)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			limit, _ := cmd.Flags().GetInt("limit")
			pages, _ := cmd.Flags().GetInt("pages")
			if limit <= 0 {
				limit = ctx.Config.PageSize
			}

			store := session.NewMessageStore(ctx.Repo, channel.ID, limit, nil)
			if err := store.LoadInitialPage(cmd.Context()); err != nil {
				return writeCommandError(cmd, err)
			}
			for i := 1; i < pages && store.HasMore(); i++ {
				if _, err := store.LoadOlderPage(cmd.Context()); err != nil {
					return writeCommandError(cmd, err)
				}
			}

			viewer := ""
			if user, err := ctx.User(cmd.Context()); err == nil {
				viewer = user.ID
			}
			reactions := session.NewReactionAggregator(ctx.Repo)
			if err := reactions.LoadForMessages(cmd.Context(), store.IDs()); err != nil {
				return writeCommandError(cmd, err)
			}

			msgs := store.Messages()
			if ctx.JSONMode {
				entries := make([]historyEntry, 0, len(msgs))
				for _, msg := range msgs {
					entries = append(entries, historyEntry{Message: msg, Reactions: reactions.Groups(msg.ID, viewer)})
				}
				return writeJSON(cmd.OutOrStdout(), entries)
			}

			participants, err := db.ListParticipants(cmd.Context(), ctx.DB)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			n := namesOf(participants)
			out := cmd.OutOrStdout()
			if len(msgs) == 0 {
				fmt.Fprintf(out, "No messages in #%s\n", channel.Name)
				return nil
			}
			for _, msg := range msgs {
				fmt.Fprintln(out, formatMessage(msg, n.of, reactions.Groups(msg.ID, viewer)))
			}
			if store.HasMore() {
				fmt.Fprintln(out, "(older messages available: use --pages)")
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 0, "messages per page (default: config page_size)")
	cmd.Flags().Int("pages", 1, "number of pages to load")
	return cmd
}

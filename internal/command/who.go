package command

import (
	"fmt"

	"github.com/adamavenir/huddle/internal/db"
	"github.com/spf13/cobra"
)

// NewWhoCmd creates the who command.
func NewWhoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "who",
		Short: "List participants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			participants, err := db.ListParticipants(cmd.Context(), ctx.DB)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), participants)
			}
			out := cmd.OutOrStdout()
			if len(participants) == 0 {
				fmt.Fprintln(out, "No participants. Use 'huddle join <name>'")
				return nil
			}
			for _, p := range participants {
				line := "@" + p.Name
				if p.Email != "" {
					line += " <" + p.Email + ">"
				}
				fmt.Fprintf(out, "%s  joined %s\n", line, p.JoinedAt.Local().Format("2006-01-02"))
			}
			return nil
		},
	}
}

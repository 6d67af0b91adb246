package command

import (
	"fmt"
	"strings"

	"github.com/adamavenir/huddle/internal/db"
	"github.com/spf13/cobra"
)

// NewJoinCmd creates the join command.
func NewJoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join <name>",
		Short: "Register a participant in the directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			email, _ := cmd.Flags().GetString("email")
			name := strings.TrimPrefix(strings.TrimSpace(args[0]), "@")
			participant, err := db.UpsertParticipant(cmd.Context(), ctx.DB, name, email)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), participant)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Joined as @%s (%s)\n", participant.Name, participant.ID)
			return nil
		},
	}
	cmd.Flags().String("email", "", "email address used for mention matching")
	return cmd
}

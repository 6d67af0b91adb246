package command

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/adamavenir/huddle/internal/chat"
	"github.com/adamavenir/huddle/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const chatLogFile = "chat.log"

// NewChatCmd creates the interactive chat command.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [channel]",
		Short: "Open the interactive chat for a channel",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			if ctx.JSONMode {
				return writeCommandError(cmd, errors.New("chat is interactive and does not support --json"))
			}
			ref := ""
			if len(args) > 0 {
				ref = args[0]
			}
			channel, err := ctx.Channel(cmd.Context(), ref)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			user, err := ctx.User(cmd.Context())
			if err != nil {
				return writeCommandError(cmd, err)
			}
			noNotify, _ := cmd.Flags().GetBool("no-notify")

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			changes := chat.NewChanges()
			mgr := session.NewManager(session.Deps{
				Messages:  ctx.Repo,
				Reactions: ctx.Repo,
				Directory: ctx.Repo,
				Feed:      ctx.Drivers.Source,
				Presence:  ctx.Drivers.Presence,
			}, session.Options{
				Self:          user,
				PageSize:      ctx.Config.PageSize,
				TypingTimeout: ctx.Config.TypingTimeout,
				Logger:        ctx.Logger,
				Observer:      changes.Observe,
			})
			defer mgr.Close()

			sess, err := mgr.SelectChannel(runCtx, channel.ID)
			if err != nil && sess == nil {
				return writeCommandError(cmd, err)
			}
			if err != nil {
				ctx.Logger.Warn("initial page failed", zap.String("channel", channel.ID), zap.Error(err))
			}

			var notify chat.Notifier
			if !noNotify {
				notify = chat.DesktopNotifier
			}
			return chat.Run(runCtx, chat.Options{
				Manager:     mgr,
				Changes:     changes,
				ChannelName: channel.Name,
				ProjectName: filepath.Base(ctx.Project.Root),
				Notify:      notify,
				Logger:      ctx.Logger,
			})
		},
	}
	cmd.Flags().Bool("no-notify", false, "disable desktop notifications for @mentions")
	return cmd
}

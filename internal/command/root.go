package command

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/adamavenir/huddle/internal/core"
	"github.com/adamavenir/huddle/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const AppName = "huddle"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

type loggerKey struct{}

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Huddle - real-time channel messaging",
		Long:          "Huddle is real-time channel messaging. It keeps a channel's messages, reactions, typing and mentions in sync across clients.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if value, ok := os.LookupEnv("HUDDLE_DEBUG"); ok {
				if b, err := strconv.ParseBool(value); err == nil {
					debug = debug || b
				}
			}
			jsonLogs, _ := cmd.Flags().GetBool("json")
			logger, err := logging.New(logging.Options{Debug: debug, JSON: jsonLogs, Path: logPathFor(cmd, debug)})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, loggerKey{}, logger))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = loggerFrom(cmd).Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("dir", "", "project directory (default: current directory)")
	cmd.PersistentFlags().String("in", "", "operate in channel (name or id)")
	cmd.PersistentFlags().String("as", "", "participant to act as (default: config user)")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	cmd.AddCommand(
		NewInitCmd(),
		NewChannelCmd(),
		NewChannelsCmd(),
		NewJoinCmd(),
		NewWhoCmd(),
		NewPostCmd(),
		NewPollCmd(),
		NewVoteCmd(),
		NewEditCmd(),
		NewRmCmd(),
		NewReactCmd(),
		NewHistoryCmd(),
		NewWatchCmd(),
		NewChatCmd(),
		NewConfigCmd(),
	)

	return cmd
}

func Execute() error {
	return NewRootCmd(Version).Execute()
}

// loggerFrom returns the logger installed by the root command, or a no-op.
func loggerFrom(cmd *cobra.Command) *zap.Logger {
	if ctx := cmd.Context(); ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
			return logger
		}
	}
	return zap.NewNop()
}

// logPathFor keeps full-screen commands from writing logs over the UI.
// With --debug the chat log goes to the project state directory instead.
func logPathFor(cmd *cobra.Command, debug bool) string {
	if cmd.Name() != "chat" {
		return ""
	}
	if debug {
		dir, _ := cmd.Flags().GetString("dir")
		if project, err := core.DiscoverProject(dir); err == nil {
			return filepath.Join(project.Dir(), chatLogFile)
		}
	}
	return os.DevNull
}

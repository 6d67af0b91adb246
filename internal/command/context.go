package command

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/adamavenir/huddle/internal/config"
	"github.com/adamavenir/huddle/internal/core"
	"github.com/adamavenir/huddle/internal/db"
	"github.com/adamavenir/huddle/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CommandContext provides shared command resources.
type CommandContext struct {
	DB       *sql.DB
	Repo     *db.Repository
	Project  core.Project
	Config   *config.Config
	Logger   *zap.Logger
	JSONMode bool
	Drivers  *Drivers

	channelRef string
	userRef    string
}

// GetContext discovers the project, loads config, opens the database and
// wires the change feed publisher into the repository.
func GetContext(cmd *cobra.Command) (*CommandContext, error) {
	dir, _ := cmd.Flags().GetString("dir")
	jsonMode, _ := cmd.Flags().GetBool("json")
	channelRef, _ := cmd.Flags().GetString("in")
	userRef, _ := cmd.Flags().GetString("as")
	logger := loggerFrom(cmd)

	project, err := core.DiscoverProject(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.NewLoader(logger).Load(project.Dir())
	if err != nil {
		return nil, err
	}
	conn, err := db.OpenDatabase(project)
	if err != nil {
		return nil, err
	}
	drivers, err := OpenDrivers(cfg, project, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &CommandContext{
		DB:         conn,
		Repo:       db.NewRepository(conn, drivers.Publisher, logger),
		Project:    project,
		Config:     cfg,
		Logger:     logger,
		JSONMode:   jsonMode,
		Drivers:    drivers,
		channelRef: channelRef,
		userRef:    userRef,
	}, nil
}

// Close releases the database and any transport connection.
func (c *CommandContext) Close() {
	c.Drivers.Close()
	_ = c.DB.Close()
}

// Channel resolves ref, falling back to --in and then the only or "general"
// channel of the project.
func (c *CommandContext) Channel(ctx context.Context, ref string) (types.Channel, error) {
	if ref == "" {
		ref = c.channelRef
	}
	if ref != "" {
		channel, err := db.ResolveChannel(ctx, c.DB, ref)
		if errors.Is(err, db.ErrNotFound) {
			return types.Channel{}, fmt.Errorf("channel not found: %s. Use 'huddle channel new %s' first", ref, strings.TrimPrefix(ref, "#"))
		}
		return channel, err
	}
	channels, err := db.ListChannels(ctx, c.DB)
	if err != nil {
		return types.Channel{}, err
	}
	if len(channels) == 1 {
		return channels[0], nil
	}
	for _, channel := range channels {
		if channel.Name == defaultChannelName {
			return channel, nil
		}
	}
	return types.Channel{}, errors.New("no channel context: use --in <channel>")
}

// User resolves the acting participant from --as or the configured user.
func (c *CommandContext) User(ctx context.Context) (types.Participant, error) {
	ref := strings.TrimPrefix(c.userRef, "@")
	if ref == "" {
		ref = c.Config.User
	}
	if ref == "" {
		return types.Participant{}, errors.New("--as is required (or set user in config / HUDDLE_USER)")
	}
	participant, err := db.GetParticipantByName(ctx, c.DB, ref)
	if errors.Is(err, db.ErrNotFound) {
		return types.Participant{}, fmt.Errorf("participant not found: @%s. Use 'huddle join %s' first", ref, ref)
	}
	return participant, err
}

// Message resolves a message by id or unique id prefix.
func (c *CommandContext) Message(ctx context.Context, ref string) (types.Message, error) {
	msg, err := db.GetMessageByPrefix(ctx, c.DB, ref)
	if errors.Is(err, db.ErrNotFound) {
		return types.Message{}, fmt.Errorf("message %s not found", strings.TrimPrefix(ref, "#"))
	}
	return msg, err
}

package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/adamavenir/huddle/internal/feed"
	"github.com/adamavenir/huddle/internal/types"
	"go.uber.org/zap"
)

// Repository is the persistence the engine talks to. Every committed write is
// followed by a change event on the configured publisher; publish failures
// are logged and do not fail the write.
type Repository struct {
	db     *sql.DB
	pub    feed.Publisher
	logger *zap.Logger
}

// NewRepository wraps db. A nil publisher discards events.
func NewRepository(db *sql.DB, pub feed.Publisher, logger *zap.Logger) *Repository {
	if pub == nil {
		pub = feed.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, pub: pub, logger: logger}
}

// DB exposes the underlying handle for read-only CLI queries.
func (r *Repository) DB() *sql.DB {
	return r.db
}

func (r *Repository) publish(ctx context.Context, ev feed.Event) {
	if err := r.pub.Publish(ctx, ev); err != nil {
		r.logger.Warn("publish change event failed",
			zap.String("type", string(ev.Type)),
			zap.String("channel", ev.ChannelID),
			zap.Error(err))
	}
}

func (r *Repository) ListMessages(ctx context.Context, channelID string, page types.PageRange) ([]types.Message, error) {
	return ListMessages(ctx, r.db, channelID, page)
}

func (r *Repository) InsertMessage(ctx context.Context, channelID string, draft types.Draft) (types.Message, error) {
	msg, err := InsertMessage(ctx, r.db, channelID, draft)
	if err != nil {
		return types.Message{}, err
	}
	r.publish(ctx, feed.NewMessageEvent(feed.MessageInserted, msg))
	return msg, nil
}

func (r *Repository) SoftDeleteMessage(ctx context.Context, id string) error {
	msg, err := SoftDeleteMessage(ctx, r.db, id)
	if err != nil {
		return err
	}
	r.publish(ctx, feed.NewMessageEvent(feed.MessageUpdated, msg))
	return nil
}

// UpdateMessageContent edits a message and emits an update event.
func (r *Repository) UpdateMessageContent(ctx context.Context, id, content string) (types.Message, error) {
	msg, err := UpdateMessageContent(ctx, r.db, id, content)
	if err != nil {
		return types.Message{}, err
	}
	r.publish(ctx, feed.NewMessageEvent(feed.MessageUpdated, msg))
	return msg, nil
}

// VotePoll records a poll vote and emits an update event.
func (r *Repository) VotePoll(ctx context.Context, id, userID, optionID string) (types.Message, error) {
	msg, err := VotePoll(ctx, r.db, id, userID, optionID)
	if err != nil {
		return types.Message{}, err
	}
	r.publish(ctx, feed.NewMessageEvent(feed.MessageUpdated, msg))
	return msg, nil
}

func (r *Repository) ListReactions(ctx context.Context, messageIDs []string) ([]types.Reaction, error) {
	return ListReactions(ctx, r.db, messageIDs)
}

func (r *Repository) InsertReaction(ctx context.Context, reaction types.Reaction) (types.Reaction, error) {
	stored, created, err := InsertReaction(ctx, r.db, reaction)
	if err != nil {
		return types.Reaction{}, err
	}
	if created {
		r.publishReaction(ctx, feed.ReactionInserted, stored)
	}
	return stored, nil
}

// DeleteReaction removes the reaction row with id. A row that is already gone
// counts as removed and publishes nothing.
func (r *Repository) DeleteReaction(ctx context.Context, id string) error {
	removed, err := DeleteReaction(ctx, r.db, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	r.publishReaction(ctx, feed.ReactionDeleted, removed)
	return nil
}

func (r *Repository) publishReaction(ctx context.Context, eventType feed.EventType, reaction types.Reaction) {
	msg, err := GetMessage(ctx, r.db, reaction.MessageID)
	if err != nil {
		r.logger.Warn("reaction event without channel", zap.String("message", reaction.MessageID), zap.Error(err))
		return
	}
	r.publish(ctx, feed.NewReactionEvent(eventType, msg.ChannelID, reaction))
}

func (r *Repository) ListParticipants(ctx context.Context) ([]types.Participant, error) {
	return ListParticipants(ctx, r.db)
}

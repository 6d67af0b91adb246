// Package session keeps one client's view of a channel consistent: the
// ordered message list, reaction groups, typing summary and mention state,
// reconciled against the change feed.
package session

import (
	"context"
	"errors"

	"github.com/adamavenir/huddle/internal/types"
)

var (
	// ErrSuperseded is returned by SelectChannel when a newer selection
	// started before it finished.
	ErrSuperseded = errors.New("channel selection superseded")
	// ErrNoSession is returned by Manager actions when no channel is selected.
	ErrNoSession = errors.New("no channel selected")
	// ErrToggleInFlight is returned when the same reaction toggle is already
	// waiting on the store.
	ErrToggleInFlight = errors.New("reaction toggle already in flight")
	// ErrClosed is returned by actions on a session that has been closed.
	ErrClosed = errors.New("session closed")
)

// MessageRepository is the message persistence the store reads and writes.
type MessageRepository interface {
	// ListMessages returns non-deleted rows of channelID, newest first.
	ListMessages(ctx context.Context, channelID string, r types.PageRange) ([]types.Message, error)
	InsertMessage(ctx context.Context, channelID string, draft types.Draft) (types.Message, error)
	SoftDeleteMessage(ctx context.Context, id string) error
}

// ReactionRepository is the reaction persistence behind the aggregator.
type ReactionRepository interface {
	ListReactions(ctx context.Context, messageIDs []string) ([]types.Reaction, error)
	InsertReaction(ctx context.Context, r types.Reaction) (types.Reaction, error)
	DeleteReaction(ctx context.Context, id string) error
}

// Directory lists participant identities for mention suggestions and names.
type Directory interface {
	ListParticipants(ctx context.Context) ([]types.Participant, error)
}

// Package feed delivers change notifications for the rows of one channel.
//
// A Source hands out per-channel subscriptions; a Publisher emits events after
// the store commits a write. Drivers: Hub (in process), NATS, and Journal
// (a JSONL file tailed with fsnotify, for several local processes).
package feed

import (
	"context"
	"time"

	"github.com/adamavenir/huddle/internal/types"
	"github.com/google/uuid"
)

// EventType names the row change an event describes.
type EventType string

const (
	MessageInserted  EventType = "message.insert"
	MessageUpdated   EventType = "message.update"
	ReactionInserted EventType = "reaction.insert"
	ReactionUpdated  EventType = "reaction.update"
	ReactionDeleted  EventType = "reaction.delete"
)

// IsReaction reports whether the event concerns the reactions table.
func (t EventType) IsReaction() bool {
	switch t {
	case ReactionInserted, ReactionUpdated, ReactionDeleted:
		return true
	}
	return false
}

// Event is the envelope every driver carries.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	ChannelID string          `json:"channel_id"`
	Message   *types.Message  `json:"message,omitempty"`
	Reaction  *types.Reaction `json:"reaction,omitempty"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// NewMessageEvent builds an insert or update event for msg.
func NewMessageEvent(eventType EventType, msg types.Message) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ChannelID: msg.ChannelID,
		Message:   &msg,
		EmittedAt: time.Now().UTC(),
	}
}

// NewReactionEvent builds a reaction change event scoped to channelID.
func NewReactionEvent(eventType EventType, channelID string, reaction types.Reaction) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ChannelID: channelID,
		Reaction:  &reaction,
		EmittedAt: time.Now().UTC(),
	}
}

// Handlers receive the three routed event classes. Nil handlers are skipped.
// Reaction inserts, updates and deletes all go to OnReactionChange.
type Handlers struct {
	OnMessageInsert  func(types.Message)
	OnMessageUpdate  func(types.Message)
	OnReactionChange func(Event)
}

// Dispatch routes ev to the matching handler. It reports whether a handler ran.
func Dispatch(h Handlers, ev Event) bool {
	switch {
	case ev.Type == MessageInserted && ev.Message != nil:
		if h.OnMessageInsert != nil {
			h.OnMessageInsert(*ev.Message)
			return true
		}
	case ev.Type == MessageUpdated && ev.Message != nil:
		if h.OnMessageUpdate != nil {
			h.OnMessageUpdate(*ev.Message)
			return true
		}
	case ev.Type.IsReaction():
		if h.OnReactionChange != nil {
			h.OnReactionChange(ev)
			return true
		}
	}
	return false
}

// Subscription is a live subscription handle.
type Subscription interface {
	// Unsubscribe stops delivery. No handler runs after it returns.
	// It must not be called from inside a handler.
	Unsubscribe() error
}

// Source opens subscriptions scoped to one channel.
type Source interface {
	Subscribe(ctx context.Context, channelID string, handlers Handlers) (Subscription, error)
}

// Publisher emits events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) error { return nil }

package types

import "time"

// ChannelKind distinguishes group conversations from direct ones.
type ChannelKind string

const (
	ChannelKindGroup  ChannelKind = "group"
	ChannelKindDirect ChannelKind = "direct"
)

// Channel is a conversation scope that owns a message history.
type Channel struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Kind      ChannelKind `json:"kind"`
	SectionID *string     `json:"section_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// MessageKind identifies the payload variant a message carries.
type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindImage  MessageKind = "image"
	MessageKindFile   MessageKind = "file"
	MessageKindPoll   MessageKind = "poll"
	MessageKindSystem MessageKind = "system"
)

// Valid reports whether the kind is one of the known variants.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindFile, MessageKindPoll, MessageKindSystem:
		return true
	}
	return false
}

// Message represents a channel message.
// Metadata is nil for text messages; otherwise its Kind() matches Kind.
type Message struct {
	ID        string      `json:"id"`
	ChannelID string      `json:"channel_id"`
	SenderID  string      `json:"sender_id"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"kind"`
	Metadata  Metadata    `json:"-"`
	CreatedAt time.Time   `json:"created_at"`
	DeletedAt *time.Time  `json:"deleted_at,omitempty"`
}

// Deleted reports whether the message carries a tombstone.
func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// Before reports whether m sorts before other in channel order.
// Ties on CreatedAt are broken by ID so the order is total.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// Draft is a message that has not been stored yet.
type Draft struct {
	SenderID string      `json:"sender_id"`
	Content  string      `json:"content"`
	Kind     MessageKind `json:"kind"`
	Metadata Metadata    `json:"-"`
}

// Reaction is a single user's emoji on a message.
type Reaction struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionGroup is the display aggregate of one emoji on one message.
type ReactionGroup struct {
	Emoji       string   `json:"emoji"`
	UserIDs     []string `json:"user_ids"`
	SelfReacted bool     `json:"self_reacted"`
}

// Participant is a directory identity record.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	JoinedAt time.Time `json:"joined_at"`
}

// MentionCandidate is the projection of a participant offered as a suggestion.
type MentionCandidate struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// PresenceRecord is the ephemeral state of one connected participant.
type PresenceRecord struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Typing      bool   `json:"typing"`
}

// PageRange selects a window of a channel's history, newest first.
type PageRange struct {
	Offset int
	Limit  int
}

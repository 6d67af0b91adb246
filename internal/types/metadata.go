package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMetadataKind is returned when a metadata payload does not match its message kind.
var ErrMetadataKind = errors.New("metadata does not match message kind")

// Metadata is the kind-specific payload of a message.
// Implementations: ImageMetadata, FileMetadata, PollMetadata, SystemMetadata.
type Metadata interface {
	Kind() MessageKind
	isMetadata()
}

// Attachment is an uploaded blob referenced by a message.
type Attachment struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// ImageMetadata carries the images of an image message.
type ImageMetadata struct {
	Attachments []Attachment `json:"attachments"`
}

// FileMetadata carries the files of a file message.
type FileMetadata struct {
	Attachments []Attachment `json:"attachments"`
}

// PollOption is one choice of a poll and the users who picked it.
type PollOption struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	Voters []string `json:"voters,omitempty"`
}

// PollMetadata carries poll state.
type PollMetadata struct {
	Question string       `json:"question"`
	Options  []PollOption `json:"options"`
	Multi    bool         `json:"multi,omitempty"`
	Closed   bool         `json:"closed,omitempty"`
}

// SystemMetadata describes a channel event rendered as a message.
type SystemMetadata struct {
	Event   string `json:"event"`
	ActorID string `json:"actor_id,omitempty"`
}

func (ImageMetadata) Kind() MessageKind  { return MessageKindImage }
func (FileMetadata) Kind() MessageKind   { return MessageKindFile }
func (PollMetadata) Kind() MessageKind   { return MessageKindPoll }
func (SystemMetadata) Kind() MessageKind { return MessageKindSystem }

func (ImageMetadata) isMetadata()  {}
func (FileMetadata) isMetadata()   {}
func (PollMetadata) isMetadata()   {}
func (SystemMetadata) isMetadata() {}

// Vote records userID's choice of optionID, replacing earlier choices unless
// the poll allows several. Voting again for the same option withdraws the vote.
func (p PollMetadata) Vote(userID, optionID string) (PollMetadata, error) {
	if p.Closed {
		return p, fmt.Errorf("poll is closed")
	}
	found := false
	out := PollMetadata{Question: p.Question, Multi: p.Multi, Closed: p.Closed}
	out.Options = make([]PollOption, len(p.Options))
	for i, opt := range p.Options {
		voters := make([]string, 0, len(opt.Voters)+1)
		had := false
		for _, v := range opt.Voters {
			if v == userID {
				had = true
				continue
			}
			voters = append(voters, v)
		}
		if opt.ID == optionID {
			found = true
			if !had {
				voters = append(voters, userID)
			}
		} else if had && p.Multi {
			voters = append(voters, userID)
		}
		out.Options[i] = PollOption{ID: opt.ID, Label: opt.Label, Voters: voters}
	}
	if !found {
		return p, fmt.Errorf("unknown poll option: %s", optionID)
	}
	return out, nil
}

// ValidateMetadata checks that meta is the variant kind requires.
func ValidateMetadata(kind MessageKind, meta Metadata) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown message kind: %q", kind)
	}
	if meta == nil {
		if kind == MessageKindText {
			return nil
		}
		return fmt.Errorf("%w: %s message without metadata", ErrMetadataKind, kind)
	}
	if meta.Kind() != kind {
		return fmt.Errorf("%w: %s payload on %s message", ErrMetadataKind, meta.Kind(), kind)
	}
	return nil
}

// EncodeMetadata serializes the payload of meta. Text messages encode to nil.
func EncodeMetadata(meta Metadata) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	return json.Marshal(meta)
}

// DecodeMetadata parses a payload by message kind.
func DecodeMetadata(kind MessageKind, data []byte) (Metadata, error) {
	if len(data) == 0 || string(data) == "null" {
		if kind == MessageKindText || kind == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s message without metadata", ErrMetadataKind, kind)
	}
	switch kind {
	case MessageKindText, "":
		return nil, nil
	case MessageKindImage:
		var meta ImageMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("decode image metadata: %w", err)
		}
		return meta, nil
	case MessageKindFile:
		var meta FileMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("decode file metadata: %w", err)
		}
		return meta, nil
	case MessageKindPoll:
		var meta PollMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("decode poll metadata: %w", err)
		}
		return meta, nil
	case MessageKindSystem:
		var meta SystemMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("decode system metadata: %w", err)
		}
		return meta, nil
	}
	return nil, fmt.Errorf("unknown message kind: %q", kind)
}

// MarshalJSON writes the message with its metadata payload inline.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	raw, err := EncodeMetadata(m.Metadata)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		plain
		Metadata json.RawMessage `json:"metadata,omitempty"`
	}{plain: plain(m), Metadata: raw})
}

// UnmarshalJSON reads a message and decodes its metadata by kind.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var aux struct {
		plain
		Metadata json.RawMessage `json:"metadata,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	meta, err := DecodeMetadata(aux.Kind, aux.Metadata)
	if err != nil {
		return err
	}
	*m = Message(aux.plain)
	if m.Kind == "" {
		m.Kind = MessageKindText
	}
	m.Metadata = meta
	return nil
}

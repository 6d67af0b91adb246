package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestValidateMetadata(t *testing.T) {
	cases := []struct {
		name string
		kind MessageKind
		meta Metadata
		ok   bool
	}{
		{"text without payload", MessageKindText, nil, true},
		{"poll with poll payload", MessageKindPoll, PollMetadata{Question: "lunch?"}, true},
		{"image without payload", MessageKindImage, nil, false},
		{"file with image payload", MessageKindFile, ImageMetadata{}, false},
		{"unknown kind", MessageKind("sticker"), nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateMetadata(tc.kind, tc.meta)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestDecodeMetadataMismatch(t *testing.T) {
	if _, err := DecodeMetadata(MessageKindPoll, nil); !errors.Is(err, ErrMetadataKind) {
		t.Fatalf("expected ErrMetadataKind, got %v", err)
	}
	if _, err := DecodeMetadata(MessageKindFile, []byte(`{"attachments":"nope"}`)); err == nil {
		t.Fatalf("expected decode error")
	}
	meta, err := DecodeMetadata(MessageKindText, []byte(`{"ignored":true}`))
	if err != nil || meta != nil {
		t.Fatalf("text payload should decode to nil: %v %v", meta, err)
	}
}

func TestMessageJSONKeepsMetadata(t *testing.T) {
	msg := Message{
		ID:        "msg-1",
		ChannelID: "ch-1",
		SenderID:  "usr-1",
		Kind:      MessageKindImage,
		Metadata:  ImageMetadata{Attachments: []Attachment{{Name: "cat.png", URL: "https://example.com/cat.png"}}},
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(msg, got); diff != "" {
		t.Fatalf("message mismatch (-want +got):\n%s", diff)
	}

	var legacy Message
	if err := json.Unmarshal([]byte(`{"id":"msg-2","content":"hi"}`), &legacy); err != nil {
		t.Fatalf("unmarshal without kind: %v", err)
	}
	if legacy.Kind != MessageKindText {
		t.Fatalf("kind = %q, want text", legacy.Kind)
	}
}

func TestPollVote(t *testing.T) {
	poll := PollMetadata{
		Question: "lunch?",
		Options:  []PollOption{{ID: "a", Label: "tacos"}, {ID: "b", Label: "ramen"}},
	}

	poll, err := poll.Vote("usr-1", "a")
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	poll, err = poll.Vote("usr-1", "b")
	if err != nil {
		t.Fatalf("revote: %v", err)
	}
	if len(poll.Options[0].Voters) != 0 || len(poll.Options[1].Voters) != 1 {
		t.Fatalf("single-choice poll kept both votes: %+v", poll.Options)
	}

	poll, err = poll.Vote("usr-1", "b")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if len(poll.Options[1].Voters) != 0 {
		t.Fatalf("vote was not withdrawn: %+v", poll.Options)
	}

	poll.Multi = true
	poll, _ = poll.Vote("usr-1", "a")
	poll, _ = poll.Vote("usr-1", "b")
	if len(poll.Options[0].Voters) != 1 || len(poll.Options[1].Voters) != 1 {
		t.Fatalf("multi poll should keep both votes: %+v", poll.Options)
	}

	if _, err := poll.Vote("usr-1", "zzz"); err == nil {
		t.Fatalf("expected unknown option error")
	}
	poll.Closed = true
	if _, err := poll.Vote("usr-2", "a"); err == nil {
		t.Fatalf("expected closed poll error")
	}
}

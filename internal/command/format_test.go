package command

import (
	"strings"
	"testing"
	"time"

	"github.com/adamavenir/huddle/internal/types"
)

func TestFormatMessage(t *testing.T) {
	n := namesOf([]types.Participant{{ID: "usr-alice", Name: "alice"}})
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local)

	tests := []struct {
		name   string
		msg    types.Message
		groups []types.ReactionGroup
		want   []string
	}{
		{
			name: "text",
			msg:  types.Message{ID: "msg-abcd1234", SenderID: "usr-alice", Content: "hi", Kind: types.MessageKindText, CreatedAt: created},
			want: []string{"[2026-03-01 09:30]", "@alice: hi"},
		},
		{
			name: "unknown sender falls back to id",
			msg:  types.Message{ID: "msg-abcd1234", SenderID: "usr-ghost", Content: "boo", CreatedAt: created},
			want: []string{"@usr-ghost: boo"},
		},
		{
			name: "poll",
			msg: types.Message{ID: "msg-abcd1234", SenderID: "usr-alice", Content: "lunch?", Kind: types.MessageKindPoll, CreatedAt: created,
				Metadata: types.PollMetadata{Question: "lunch?", Closed: true, Options: []types.PollOption{
					{ID: "1", Label: "tacos", Voters: []string{"usr-alice"}},
					{ID: "2", Label: "ramen"},
				}}},
			want: []string{"poll: lunch? (closed)", "[1] tacos (1)", "[2] ramen (0)"},
		},
		{
			name: "attachments",
			msg: types.Message{ID: "msg-abcd1234", SenderID: "usr-alice", Content: "", Kind: types.MessageKindFile, CreatedAt: created,
				Metadata: types.FileMetadata{Attachments: []types.Attachment{{Name: "notes.txt", URL: "https://example.com/notes.txt"}}}},
			want: []string{"notes.txt <https://example.com/notes.txt>"},
		},
		{
			name:   "reactions",
			msg:    types.Message{ID: "msg-abcd1234", SenderID: "usr-alice", Content: "ship", CreatedAt: created},
			groups: []types.ReactionGroup{{Emoji: "🚀", UserIDs: []string{"a", "b"}}, {Emoji: "👍", UserIDs: []string{"a"}}},
			want:   []string{"🚀 2  👍 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMessage(tt.msg, n.of, tt.groups)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Fatalf("expected %q in %q", want, got)
				}
			}
		})
	}
}

func TestReactionKey(t *testing.T) {
	if got := reactionKey(nil); got != "" {
		t.Fatalf("expected empty key, got %q", got)
	}
	groups := []types.ReactionGroup{{Emoji: "👍", UserIDs: []string{"a", "b"}}}
	if got := reactionKey(groups); got != "👍 2" {
		t.Fatalf("unexpected key %q", got)
	}
}

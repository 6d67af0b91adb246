package chat

import (
	"testing"

	"github.com/adamavenir/huddle/internal/types"
)

func TestParseCommand(t *testing.T) {
	name, args := parseCommand("/React  abcd  👍")
	if name != "react" || len(args) != 2 || args[0] != "abcd" || args[1] != "👍" {
		t.Fatalf("unexpected parse: %q %q", name, args)
	}
	if name, _ := parseCommand("/"); name != "" {
		t.Fatalf("expected empty command, got %q", name)
	}
}

func TestResolveMessage(t *testing.T) {
	msgs := []types.Message{
		{ID: "msg-abcd1234"},
		{ID: "msg-abzz0000"},
		{ID: "msg-q1w2e3r4"},
	}
	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{ref: "msg-abcd1234", want: "msg-abcd1234"},
		{ref: "#abcd", want: "msg-abcd1234"},
		{ref: "q1w2", want: "msg-q1w2e3r4"},
		{ref: "ab", wantErr: true},
		{ref: "nope", wantErr: true},
		{ref: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := resolveMessage(msgs, tt.ref)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("resolveMessage(%q): expected error, got %s", tt.ref, got.ID)
			}
			continue
		}
		if err != nil || got.ID != tt.want {
			t.Fatalf("resolveMessage(%q) = %s, %v; want %s", tt.ref, got.ID, err, tt.want)
		}
	}
}

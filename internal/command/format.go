package command

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/adamavenir/huddle/internal/core"
	"github.com/adamavenir/huddle/internal/types"
)

// names maps participant ids to display names for text output.
type names map[string]string

func namesOf(participants []types.Participant) names {
	out := make(names, len(participants))
	for _, p := range participants {
		out[p.ID] = p.Name
	}
	return out
}

func (n names) of(id string) string {
	if name, ok := n[id]; ok && name != "" {
		return name
	}
	return id
}

func formatMessage(msg types.Message, nameOf func(string) string, groups []types.ReactionGroup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] #%s @%s: %s", msg.CreatedAt.Local().Format("2006-01-02 15:04"), core.ShortID(msg.ID), nameOf(msg.SenderID), msg.Content)
	switch meta := msg.Metadata.(type) {
	case types.PollMetadata:
		fmt.Fprintf(&b, "\n  poll: %s", meta.Question)
		if meta.Closed {
			b.WriteString(" (closed)")
		}
		for _, opt := range meta.Options {
			fmt.Fprintf(&b, "\n    [%s] %s (%d)", opt.ID, opt.Label, len(opt.Voters))
		}
	case types.ImageMetadata:
		writeAttachments(&b, meta.Attachments)
	case types.FileMetadata:
		writeAttachments(&b, meta.Attachments)
	}
	if len(groups) > 0 {
		pills := make([]string, 0, len(groups))
		for _, g := range groups {
			pills = append(pills, fmt.Sprintf("%s %d", g.Emoji, len(g.UserIDs)))
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(pills, "  "))
	}
	return b.String()
}

func writeAttachments(b *strings.Builder, attachments []types.Attachment) {
	for _, a := range attachments {
		fmt.Fprintf(b, "\n  %s <%s>", a.Name, a.URL)
	}
}

func writeJSON(out io.Writer, value any) error {
	return json.NewEncoder(out).Encode(value)
}

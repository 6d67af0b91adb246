package chat

import (
	"fmt"
	"strings"

	"github.com/adamavenir/huddle/internal/core"
	"github.com/adamavenir/huddle/internal/mention"
	"github.com/adamavenir/huddle/internal/session"
	"github.com/adamavenir/huddle/internal/types"
	"github.com/charmbracelet/lipgloss"
)

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	parts := []string{m.renderHeader(), m.viewport.View(), m.renderTyping()}
	if suggestions := m.renderSuggestions(); suggestions != "" {
		parts = append(parts, suggestions)
	}
	parts = append(parts, m.renderStatus(), m.input.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.input.SetWidth(m.width)
	used := 3 + m.input.Height() // header, typing, status
	if s := m.renderSuggestions(); s != "" {
		used += lipgloss.Height(s)
	}
	height := m.height - used
	if height < 1 {
		height = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = height
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	sess := m.mgr.Current()
	if sess == nil {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(renderMessages(sess, m.messages(), m.width))
	if m.stickBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderHeader() string {
	title := " #" + m.channelName
	if m.projectName != "" {
		title += " · " + m.projectName
	}
	if sess := m.mgr.Current(); sess != nil && sess.FeedState() != session.Active {
		title += " · offline"
	}
	style := lipgloss.NewStyle().Foreground(headerColor).Background(headerBg).Bold(true)
	if m.width > 0 {
		style = style.Width(m.width)
	}
	return style.Render(title)
}

func (m *Model) renderTyping() string {
	sess := m.mgr.Current()
	if sess == nil {
		return ""
	}
	summary, ok := sess.TypingSummary()
	if !ok {
		return " "
	}
	return lipgloss.NewStyle().Foreground(metaColor).Italic(true).Render(summary)
}

func (m *Model) renderStatus() string {
	var status string
	if sess := m.mgr.Current(); sess != nil {
		switch {
		case sess.IsLoadingOlder():
			status = "loading older messages…"
		case sess.HasMore():
			status = "PgUp for older messages"
		}
	}
	if m.status != "" {
		status = m.status
	}
	style := lipgloss.NewStyle().Foreground(metaColor)
	if m.statusErr && m.status != "" {
		style = style.Foreground(errorColor)
	}
	return style.Render(truncateLine(status, m.width))
}

func (m *Model) renderSuggestions() string {
	sess := m.mgr.Current()
	if sess == nil {
		return ""
	}
	return formatSuggestions(sess.MentionState(), m.width)
}

func formatSuggestions(state *mention.State, width int) string {
	if state == nil || len(state.Suggestions) == 0 {
		return ""
	}
	normalStyle := lipgloss.NewStyle().Foreground(metaColor)
	selectedStyle := lipgloss.NewStyle().Foreground(selfByline.bg).Bold(true)

	lines := make([]string, 0, len(state.Suggestions))
	for i, candidate := range state.Suggestions {
		prefix := "  "
		style := normalStyle
		if i == state.HighlightedIndex {
			prefix = "> "
			style = selectedStyle
		}
		line := prefix + "@" + candidate.Name
		if candidate.Email != "" {
			line += "  " + candidate.Email
		}
		lines = append(lines, style.Render(truncateLine(line, width)))
	}
	return strings.Join(lines, "\n")
}

// nameResolver is the part of a session the message renderer needs.
type nameResolver interface {
	DisplayName(userID string) string
	ReactionsFor(messageID string) []types.ReactionGroup
	Self() types.Participant
}

func renderMessages(sess nameResolver, msgs []types.Message, width int) string {
	if len(msgs) == 0 {
		return lipgloss.NewStyle().Foreground(metaColor).Render("No messages yet.")
	}
	blocks := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		blocks = append(blocks, renderMessage(sess, msg, width))
	}
	return strings.Join(blocks, "\n\n")
}

func renderMessage(sess nameResolver, msg types.Message, width int) string {
	name := sess.DisplayName(msg.SenderID)
	color := bylineFor(msg.SenderID)
	if msg.SenderID == sess.Self().ID {
		color = selfByline
	}
	meta := lipgloss.NewStyle().Foreground(metaColor).
		Render(fmt.Sprintf(" %s #%s", msg.CreatedAt.Local().Format("15:04"), core.ShortID(msg.ID)))
	lines := []string{renderByline(name, color) + meta}

	body := formatBody(msg)
	bodyStyle := lipgloss.NewStyle().Foreground(textColor)
	if msg.Kind == types.MessageKindSystem {
		bodyStyle = bodyStyle.Foreground(metaColor).Italic(true)
	}
	if width > 2 {
		bodyStyle = bodyStyle.Width(width - 2)
	}
	if body != "" {
		lines = append(lines, bodyStyle.Render(body))
	}
	if pills := formatReactionPills(sess.ReactionsFor(msg.ID)); pills != "" {
		lines = append(lines, pills)
	}
	return strings.Join(lines, "\n")
}

func renderByline(name string, color bylineColor) string {
	style := lipgloss.NewStyle().Background(color.bg).Foreground(color.fg).Bold(true)
	return style.Render(" " + name + " ")
}

// formatBody renders the content plus the kind-specific payload.
func formatBody(msg types.Message) string {
	var b strings.Builder
	b.WriteString(msg.Content)
	switch meta := msg.Metadata.(type) {
	case types.ImageMetadata:
		writeAttachments(&b, "🖼", meta.Attachments)
	case types.FileMetadata:
		writeAttachments(&b, "📎", meta.Attachments)
	case types.PollMetadata:
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("📊 " + meta.Question)
		if meta.Closed {
			b.WriteString(" (closed)")
		}
		for _, opt := range meta.Options {
			fmt.Fprintf(&b, "\n  [%s] %s · %d", opt.ID, opt.Label, len(opt.Voters))
		}
	case types.SystemMetadata:
		if b.Len() == 0 {
			b.WriteString(meta.Event)
		}
	}
	return b.String()
}

func writeAttachments(b *strings.Builder, icon string, attachments []types.Attachment) {
	for _, a := range attachments {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(b, "%s %s <%s>", icon, a.Name, a.URL)
	}
}

// formatReactionPills renders groups in the order given; the viewer's own
// reactions are highlighted.
func formatReactionPills(groups []types.ReactionGroup) string {
	if len(groups) == 0 {
		return ""
	}
	treeBar := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("└─")
	pills := make([]string, 0, len(groups))
	for _, group := range groups {
		if len(group.UserIDs) == 0 {
			continue
		}
		bg := pillBg
		if group.SelfReacted {
			bg = pillSelfBg
		}
		emoji := lipgloss.NewStyle().Background(bg).Render(group.Emoji)
		count := lipgloss.NewStyle().Foreground(reactionColor).Background(bg).Bold(true).
			Render(fmt.Sprintf(" %d", len(group.UserIDs)))
		pills = append(pills, lipgloss.NewStyle().Background(bg).Padding(0, 1).Render(emoji+count))
	}
	if len(pills) == 0 {
		return ""
	}
	return treeBar + " " + strings.Join(pills, " ")
}

func truncateLine(value string, maxLen int) string {
	if maxLen <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= maxLen {
		return value
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

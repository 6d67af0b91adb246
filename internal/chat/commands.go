package chat

import (
	"fmt"
	"strings"

	"github.com/adamavenir/huddle/internal/core"
	"github.com/adamavenir/huddle/internal/session"
	"github.com/adamavenir/huddle/internal/types"
	tea "github.com/charmbracelet/bubbletea"
)

const helpText = "/react <id> <emoji> · /rm <id> · /more · /reload · /quit"

type opResultMsg struct {
	notice string
	err    error
}

func parseCommand(input string) (string, []string) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(input), "/"))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

// resolveMessage finds a loaded message by full id, id without prefix, or a
// unique prefix of either.
func resolveMessage(msgs []types.Message, ref string) (types.Message, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	if ref == "" {
		return types.Message{}, fmt.Errorf("message id is required")
	}
	full := ref
	if !strings.HasPrefix(ref, core.PrefixMessage+"-") {
		full = core.PrefixMessage + "-" + ref
	}
	var matches []types.Message
	for _, msg := range msgs {
		if msg.ID == ref || msg.ID == full {
			return msg, nil
		}
		if strings.HasPrefix(msg.ID, full) {
			matches = append(matches, msg)
		}
	}
	switch len(matches) {
	case 0:
		return types.Message{}, fmt.Errorf("no loaded message matches #%s", ref)
	case 1:
		return matches[0], nil
	}
	return types.Message{}, fmt.Errorf("#%s matches %d messages", ref, len(matches))
}

func (m *Model) runCommand(input string) tea.Cmd {
	name, args := parseCommand(input)
	sess := m.mgr.Current()
	switch name {
	case "quit", "q", "exit":
		m.quitting = true
		return tea.Quit
	case "help", "?":
		m.status = helpText
		return nil
	}
	if sess == nil {
		m.setError(session.ErrNoSession)
		return nil
	}

	ctx := m.ctx
	switch name {
	case "react":
		if len(args) < 2 {
			m.status = "usage: /react <id> <emoji>"
			return nil
		}
		msg, err := resolveMessage(sess.Messages(), args[0])
		if err != nil {
			m.setError(err)
			return nil
		}
		emoji := strings.Join(args[1:], " ")
		return func() tea.Msg {
			added, err := sess.ToggleReaction(ctx, msg.ID, emoji)
			if err != nil {
				return opResultMsg{err: err}
			}
			verb := "removed"
			if added {
				verb = "added"
			}
			return opResultMsg{notice: fmt.Sprintf("%s %s on #%s", verb, emoji, core.ShortID(msg.ID))}
		}
	case "rm", "delete":
		if len(args) != 1 {
			m.status = "usage: /rm <id>"
			return nil
		}
		msg, err := resolveMessage(sess.Messages(), args[0])
		if err != nil {
			m.setError(err)
			return nil
		}
		return func() tea.Msg {
			if err := sess.DeleteMessage(ctx, msg.ID); err != nil {
				return opResultMsg{err: err}
			}
			return opResultMsg{notice: "deleted #" + core.ShortID(msg.ID)}
		}
	case "more":
		return m.loadOlder()
	case "reload":
		return func() tea.Msg {
			if err := sess.Reload(ctx); err != nil {
				return opResultMsg{err: err}
			}
			return opResultMsg{notice: "reloaded"}
		}
	}
	m.status = fmt.Sprintf("unknown command /%s (%s)", name, helpText)
	return nil
}

func (m *Model) loadOlder() tea.Cmd {
	sess := m.mgr.Current()
	if sess == nil || !sess.HasMore() || sess.IsLoadingOlder() {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		if err := sess.LoadOlderPage(ctx); err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{}
	}
}

func (m *Model) sendMessage(content string) tea.Cmd {
	mgr := m.mgr
	ctx := m.ctx
	return func() tea.Msg {
		if _, err := mgr.SendMessage(ctx, types.Draft{Content: content}); err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{}
	}
}

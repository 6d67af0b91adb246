// Package chat is the terminal client for one channel session.
package chat

import (
	"context"
	"fmt"

	"github.com/adamavenir/huddle/internal/session"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// Options configure chat.
type Options struct {
	Manager     *session.Manager
	Changes     *Changes
	ChannelName string
	ProjectName string
	// Notify sends desktop notifications; nil disables them.
	Notify Notifier
	Logger *zap.Logger
}

// Run starts the chat UI for the manager's current session.
func Run(ctx context.Context, opts Options) error {
	model, err := NewModel(ctx, opts)
	if err != nil {
		return err
	}
	title := "huddle · #" + opts.ChannelName
	if opts.ProjectName != "" {
		title = opts.ProjectName + " · #" + opts.ChannelName
	}
	fmt.Printf("\033]0;%s\007", title)

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	model.Close()
	return err
}

type changeMsg struct {
	kind session.ChangeKind
}

// Changes carries session observer callbacks into the bubbletea loop.
type Changes struct {
	ch   chan session.ChangeKind
	done chan struct{}
}

// NewChanges returns a bridge; pass Observe as the session observer.
func NewChanges() *Changes {
	return &Changes{ch: make(chan session.ChangeKind, 64), done: make(chan struct{})}
}

// Observe never blocks. When the buffer is full the change is dropped; the
// view is rebuilt from session state on the next one anyway.
func (c *Changes) Observe(_ string, kind session.ChangeKind) {
	select {
	case c.ch <- kind:
	default:
	}
}

func (c *Changes) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case kind := <-c.ch:
			return changeMsg{kind: kind}
		case <-c.done:
			return nil
		}
	}
}

// Close releases a pending wait.
func (c *Changes) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

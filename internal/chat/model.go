package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/adamavenir/huddle/internal/mention"
	"github.com/adamavenir/huddle/internal/session"
	"github.com/adamavenir/huddle/internal/types"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// Model implements the chat UI.
type Model struct {
	ctx         context.Context
	mgr         *session.Manager
	changes     *Changes
	notify      Notifier
	logger      *zap.Logger
	channelName string
	projectName string

	viewport       viewport.Model
	input          textarea.Model
	status         string
	statusErr      bool
	width          int
	height         int
	seen           map[string]struct{}
	lastInputValue string
	lastInputPos   int
	stickBottom    bool
	quitting       bool
}

// NewModel creates a chat model for the manager's current session.
func NewModel(ctx context.Context, opts Options) (*Model, error) {
	if opts.Manager == nil || opts.Manager.Current() == nil {
		return nil, session.ErrNoSession
	}
	if opts.Changes == nil {
		return nil, errors.New("chat needs a change bridge")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Model{
		ctx:         ctx,
		mgr:         opts.Manager,
		changes:     opts.Changes,
		notify:      opts.Notify,
		logger:      logger,
		channelName: opts.ChannelName,
		projectName: opts.ProjectName,
		viewport:    viewport.New(0, 0),
		input:       newInputModel(),
		seen:        make(map[string]struct{}),
		stickBottom: true,
	}
	for _, msg := range m.mgr.Current().Messages() {
		m.seen[msg.ID] = struct{}{}
	}
	if err := m.mgr.Current().LastError(); err != nil {
		m.setError(err)
	}
	return m, nil
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.changes.wait())
}

// Close stops waiting for session changes.
func (m *Model) Close() {
	m.changes.Close()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case changeMsg:
		if msg.kind == session.ChangeMessages {
			m.notifyMentions()
		}
		m.refreshViewport()
		return m, m.changes.wait()
	case opResultMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else if msg.notice != "" {
			m.status = msg.notice
			m.statusErr = false
		}
		m.refreshViewport()
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusErr = true
}

func mentionKey(msg tea.KeyMsg) (mention.Key, bool) {
	switch msg.Type {
	case tea.KeyUp:
		return mention.KeyUp, true
	case tea.KeyDown:
		return mention.KeyDown, true
	case tea.KeyEnter:
		return mention.KeyEnter, true
	case tea.KeyTab:
		return mention.KeyTab, true
	case tea.KeyEsc:
		return mention.KeyEscape, true
	}
	return 0, false
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	sess := m.mgr.Current()
	if sess != nil && sess.MentionState() != nil {
		if key, ok := mentionKey(msg); ok {
			res := m.mgr.HandleMentionKey(key)
			if res.Committed {
				m.setInput(res.Text, res.Cursor)
				m.mgr.OnTextChanged(m.input.Value(), m.inputCursorPos())
			}
			if res.Handled {
				m.resize()
				return m, nil
			}
		}
	}

	switch msg.Type {
	case tea.KeyEnter:
		return m, m.submit()
	case tea.KeyPgUp:
		m.viewport.PageUp()
		m.stickBottom = false
		if m.viewport.AtTop() {
			return m, m.loadOlder()
		}
		return m, nil
	case tea.KeyPgDown:
		m.viewport.PageDown()
		m.stickBottom = m.viewport.AtBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	value := m.input.Value()
	pos := m.inputCursorPos()
	if value != m.lastInputValue || pos != m.lastInputPos {
		if value != m.lastInputValue && value != "" {
			m.mgr.OnLocalKeystroke(m.ctx)
		}
		m.lastInputValue = value
		m.lastInputPos = pos
		m.mgr.OnTextChanged(value, pos)
		m.resize()
	}
	return m, cmd
}

func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	m.input.Reset()
	m.lastInputValue = ""
	m.lastInputPos = 0
	m.mgr.OnTextChanged("", 0)
	m.stickBottom = true
	m.resize()
	if strings.HasPrefix(text, "/") {
		return m.runCommand(text)
	}
	return m.sendMessage(text)
}

// notifyMentions raises a notification for each newly seen message from
// someone else that mentions the viewer.
func (m *Model) notifyMentions() {
	sess := m.mgr.Current()
	if sess == nil {
		return
	}
	self := sess.Self()
	for _, msg := range sess.Messages() {
		if _, ok := m.seen[msg.ID]; ok {
			continue
		}
		m.seen[msg.ID] = struct{}{}
		if m.notify == nil || msg.SenderID == self.ID || !Mentions(msg.Content, self.Name) {
			continue
		}
		title, body := notificationFor(msg, sess.DisplayName(msg.SenderID), m.channelName, m.projectName)
		if err := m.notify(title, body); err != nil {
			m.logger.Debug("notification failed", zap.String("message", msg.ID), zap.Error(err))
		}
	}
}

func (m *Model) messages() []types.Message {
	if sess := m.mgr.Current(); sess != nil {
		return sess.Messages()
	}
	return nil
}

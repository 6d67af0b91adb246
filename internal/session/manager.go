package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/adamavenir/huddle/internal/mention"
	"github.com/adamavenir/huddle/internal/types"
	"go.uber.org/zap"
)

// Manager owns the single active Session. Selections are serialized; a new
// selection cancels one still in progress, and the previous session is torn
// down before the next one subscribes.
type Manager struct {
	deps   Deps
	opts   Options
	logger *zap.Logger

	// mu serializes selection and teardown.
	mu      sync.Mutex
	current atomic.Pointer[Session]

	pendingMu     sync.Mutex
	pendingSeq    uint64
	pendingCancel context.CancelFunc
}

// NewManager returns a manager with no channel selected.
func NewManager(deps Deps, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{deps: deps, opts: opts, logger: opts.Logger}
}

// Current returns the active session, or nil.
func (m *Manager) Current() *Session {
	return m.current.Load()
}

// SelectChannel switches to channelID. It returns ErrSuperseded when another
// selection started before this one finished. When only the first page fails
// the session is still installed and returned with the error.
func (m *Manager) SelectChannel(ctx context.Context, channelID string) (*Session, error) {
	selCtx, seq := m.beginSelection(ctx)
	defer m.endSelection(seq)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.superseded(seq) {
		return nil, ErrSuperseded
	}
	if prev := m.current.Swap(nil); prev != nil {
		prev.Close()
		m.logger.Debug("session closed", zap.String("channel", prev.ChannelID()))
	}

	sess := newSession(channelID, m.deps, m.opts)
	err := sess.start(selCtx)
	if m.superseded(seq) {
		sess.Close()
		return nil, ErrSuperseded
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		sess.Close()
		return nil, ctxErr
	}
	if err != nil && errors.Is(err, context.Canceled) {
		sess.Close()
		return nil, ErrSuperseded
	}

	m.current.Store(sess)
	m.logger.Debug("session active", zap.String("channel", channelID))
	return sess, err
}

func (m *Manager) beginSelection(ctx context.Context) (context.Context, uint64) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	if m.pendingCancel != nil {
		m.pendingCancel()
	}
	selCtx, cancel := context.WithCancel(ctx)
	m.pendingSeq++
	m.pendingCancel = cancel
	return selCtx, m.pendingSeq
}

func (m *Manager) endSelection(seq uint64) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	if m.pendingSeq == seq && m.pendingCancel != nil {
		m.pendingCancel()
		m.pendingCancel = nil
	}
}

func (m *Manager) superseded(seq uint64) bool {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return m.pendingSeq != seq
}

// Close tears down the active session.
func (m *Manager) Close() {
	m.pendingMu.Lock()
	if m.pendingCancel != nil {
		m.pendingCancel()
	}
	m.pendingMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess := m.current.Swap(nil); sess != nil {
		sess.Close()
	}
}

func (m *Manager) session() (*Session, error) {
	if sess := m.current.Load(); sess != nil {
		return sess, nil
	}
	return nil, ErrNoSession
}

// LoadOlderPage pages the active session's history.
func (m *Manager) LoadOlderPage(ctx context.Context) error {
	sess, err := m.session()
	if err != nil {
		return err
	}
	return sess.LoadOlderPage(ctx)
}

// SendMessage posts draft in the active channel.
func (m *Manager) SendMessage(ctx context.Context, draft types.Draft) (types.Message, error) {
	sess, err := m.session()
	if err != nil {
		return types.Message{}, err
	}
	return sess.SendMessage(ctx, draft)
}

// ToggleReaction flips the viewer's emoji on a message of the active channel.
func (m *Manager) ToggleReaction(ctx context.Context, messageID, emoji string) (bool, error) {
	sess, err := m.session()
	if err != nil {
		return false, err
	}
	return sess.ToggleReaction(ctx, messageID, emoji)
}

// OnLocalKeystroke forwards a composer keystroke to the active session.
func (m *Manager) OnLocalKeystroke(ctx context.Context) {
	if sess := m.current.Load(); sess != nil {
		sess.OnLocalKeystroke(ctx)
	}
}

// OnTextChanged forwards composer text to the active session.
func (m *Manager) OnTextChanged(text string, cursor int) {
	if sess := m.current.Load(); sess != nil {
		sess.OnTextChanged(text, cursor)
	}
}

// HandleMentionKey forwards a navigation key to the active session.
func (m *Manager) HandleMentionKey(key mention.Key) mention.KeyResult {
	if sess := m.current.Load(); sess != nil {
		return sess.HandleMentionKey(key)
	}
	return mention.KeyResult{}
}

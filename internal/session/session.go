package session

import (
	"context"
	"sync"
	"time"

	"github.com/adamavenir/huddle/internal/clock"
	"github.com/adamavenir/huddle/internal/feed"
	"github.com/adamavenir/huddle/internal/mention"
	"github.com/adamavenir/huddle/internal/presence"
	"github.com/adamavenir/huddle/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ChangeKind tells an observer which part of a session changed.
type ChangeKind int

const (
	ChangeMessages ChangeKind = iota + 1
	ChangeReactions
	ChangeTyping
	ChangeMentions
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeMessages:
		return "messages"
	case ChangeReactions:
		return "reactions"
	case ChangeTyping:
		return "typing"
	case ChangeMentions:
		return "mentions"
	}
	return "unknown"
}

// Observer is told about state changes of the session for channelID. It may
// run on feed or presence goroutines and must not block on the Manager.
type Observer func(channelID string, kind ChangeKind)

// Deps are the collaborators a session talks to. Feed and Presence may be
// nil, which disables live updates or typing respectively.
type Deps struct {
	Messages  MessageRepository
	Reactions ReactionRepository
	Directory Directory
	Feed      feed.Source
	Presence  presence.Transport
}

// Options configure sessions.
type Options struct {
	Self          types.Participant
	PageSize      int
	TypingTimeout time.Duration
	Clock         clock.Clock
	Logger        *zap.Logger
	Metrics       *Metrics
	Observer      Observer
}

// Session is the state of one selected channel. It is built by the Manager
// and discarded wholesale on channel switch.
type Session struct {
	channelID string
	self      types.Participant
	deps      Deps
	logger    *zap.Logger
	metrics   *Metrics
	observer  Observer

	store     *MessageStore
	reactions *ReactionAggregator
	listener  *Listener
	presence  *presence.Coordinator
	mentions  *mention.Resolver

	// ctx scopes work started by feed callbacks; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	names  map[string]string
	closed bool
}

func newSession(channelID string, deps Deps, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("channel", channelID))
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		channelID: channelID,
		self:      opts.Self,
		deps:      deps,
		logger:    logger,
		metrics:   opts.Metrics,
		observer:  opts.Observer,
		store:     NewMessageStore(deps.Messages, channelID, opts.PageSize, opts.Metrics),
		reactions: NewReactionAggregator(deps.Reactions),
		mentions:  mention.NewResolver(nil),
		ctx:       ctx,
		cancel:    cancel,
		names:     make(map[string]string),
	}
	if deps.Feed != nil {
		s.listener = NewListener(deps.Feed, channelID, Routes{
			Insert:    s.onFeedInsert,
			Update:    s.onFeedUpdate,
			Reactions: s.onFeedReactions,
		}, logger, opts.Metrics)
	}
	if deps.Presence != nil {
		s.presence = presence.NewCoordinator(deps.Presence, channelID,
			types.PresenceRecord{UserID: opts.Self.ID, DisplayName: opts.Self.Name},
			presence.CoordinatorOptions{
				TypingTimeout: opts.TypingTimeout,
				Clock:         opts.Clock,
				Logger:        logger,
				OnChange:      func() { s.notify(ChangeTyping) },
			})
	}
	return s
}

// start runs the selection sequence: first page and directory together, then
// reactions, then the feed, then presence. A page failure is returned after
// the rest has started so the session stays usable for Reload.
func (s *Session) start(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		return s.store.LoadInitialPage(ctx)
	})
	g.Go(func() error {
		s.loadDirectory(ctx)
		return nil
	})
	pageErr := g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	if pageErr == nil {
		s.notify(ChangeMessages)
		s.loadReactions(ctx)
	} else {
		s.logger.Warn("initial page load failed", zap.Error(pageErr))
	}

	if s.listener != nil {
		// Failures are logged by the listener; the session carries on without
		// live updates.
		_ = s.listener.Start(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.presence != nil {
		if err := s.presence.Start(ctx); err != nil {
			s.logger.Debug("presence unavailable", zap.Error(err))
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return pageErr
}

func (s *Session) loadDirectory(ctx context.Context) {
	if s.deps.Directory == nil {
		return
	}
	participants, err := s.deps.Directory.ListParticipants(ctx)
	if err != nil {
		s.logger.Warn("directory unavailable; mentions disabled", zap.Error(err))
		return
	}
	candidates := make([]types.MentionCandidate, 0, len(participants))
	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.ID] = p.Name
		if p.ID == s.self.ID {
			continue
		}
		candidates = append(candidates, types.MentionCandidate{UserID: p.ID, Name: p.Name, Email: p.Email})
	}
	s.mentions.SetCandidates(candidates)
	s.mu.Lock()
	s.names = names
	s.mu.Unlock()
}

func (s *Session) loadReactions(ctx context.Context) {
	if err := s.reactions.LoadForMessages(ctx, s.store.IDs()); err != nil {
		s.logger.Warn("reaction load failed", zap.Error(err))
		return
	}
	s.notify(ChangeReactions)
}

func (s *Session) notify(kind ChangeKind) {
	if s.observer == nil || s.Closed() {
		return
	}
	s.observer(s.channelID, kind)
}

func (s *Session) onFeedInsert(msg types.Message) {
	if s.store.ApplyInsert(msg) {
		s.notify(ChangeMessages)
	}
}

func (s *Session) onFeedUpdate(msg types.Message) {
	if s.store.ApplyUpdate(msg) {
		s.notify(ChangeMessages)
	}
}

// onFeedReactions reloads reactions for every loaded message; the event
// payload is not used to patch a single message.
func (s *Session) onFeedReactions() {
	s.metrics.reactionResync()
	s.loadReactions(s.ctx)
}

// ChannelID returns the channel this session shows.
func (s *Session) ChannelID() string { return s.channelID }

// Self returns the viewing participant.
func (s *Session) Self() types.Participant { return s.self }

func (s *Session) Messages() []types.Message { return s.store.Messages() }

func (s *Session) HasMore() bool { return s.store.HasMore() }

func (s *Session) IsLoadingOlder() bool { return s.store.IsLoadingOlder() }

// LastError returns the last page-load failure, if it has not been recovered.
func (s *Session) LastError() error { return s.store.LastError() }

// ReactionsFor returns the grouped reactions of a message for the viewer.
func (s *Session) ReactionsFor(messageID string) []types.ReactionGroup {
	return s.reactions.Groups(messageID, s.self.ID)
}

// TypingSummary returns who else is typing and whether to show it.
func (s *Session) TypingSummary() (string, bool) {
	if s.presence == nil {
		return "", false
	}
	return s.presence.TypingSummary()
}

// MentionState returns the active mention trigger, or nil.
func (s *Session) MentionState() *mention.State {
	return s.mentions.State()
}

// FeedState reports the change feed listener state.
func (s *Session) FeedState() ListenerState {
	if s.listener == nil {
		return Unsubscribed
	}
	return s.listener.State()
}

// DisplayName returns the directory name of a user, or the id itself.
func (s *Session) DisplayName(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name, ok := s.names[userID]; ok && name != "" {
		return name
	}
	return userID
}

// LoadOlderPage prepends older history and reloads reactions for all loaded
// messages.
func (s *Session) LoadOlderPage(ctx context.Context) error {
	if s.Closed() {
		return ErrClosed
	}
	loaded, err := s.store.LoadOlderPage(ctx)
	if err != nil {
		return err
	}
	if !loaded {
		return nil
	}
	s.notify(ChangeMessages)
	s.loadReactions(ctx)
	return nil
}

// SendMessage stores draft and shows the stored row without waiting for the
// feed echo.
func (s *Session) SendMessage(ctx context.Context, draft types.Draft) (types.Message, error) {
	if s.Closed() {
		return types.Message{}, ErrClosed
	}
	if draft.SenderID == "" {
		draft.SenderID = s.self.ID
	}
	msg, err := s.deps.Messages.InsertMessage(ctx, s.channelID, draft)
	if err != nil {
		return types.Message{}, err
	}
	if s.store.ApplyInsert(msg) {
		s.notify(ChangeMessages)
	}
	return msg, nil
}

// DeleteMessage soft-deletes a message and drops it locally.
func (s *Session) DeleteMessage(ctx context.Context, id string) error {
	if s.Closed() {
		return ErrClosed
	}
	if err := s.deps.Messages.SoftDeleteMessage(ctx, id); err != nil {
		return err
	}
	if s.store.RemoveLocal(id) {
		s.notify(ChangeMessages)
	}
	return nil
}

// ToggleReaction flips the viewer's emoji on a message.
func (s *Session) ToggleReaction(ctx context.Context, messageID, emoji string) (added bool, err error) {
	if s.Closed() {
		return false, ErrClosed
	}
	added, err = s.reactions.Toggle(ctx, messageID, emoji, s.self.ID)
	if err != nil {
		return false, err
	}
	s.notify(ChangeReactions)
	return added, nil
}

// OnLocalKeystroke broadcasts that the viewer is typing.
func (s *Session) OnLocalKeystroke(ctx context.Context) {
	if s.presence != nil {
		s.presence.OnLocalKeystroke(ctx)
	}
}

// OnTextChanged re-evaluates the mention trigger for the composer.
func (s *Session) OnTextChanged(text string, cursor int) {
	before := s.mentions.State()
	s.mentions.OnTextChanged(text, cursor)
	after := s.mentions.State()
	if before != nil || after != nil {
		s.notify(ChangeMentions)
	}
}

// HandleMentionKey applies a navigation key to the mention state.
func (s *Session) HandleMentionKey(key mention.Key) mention.KeyResult {
	res := s.mentions.HandleKey(key)
	if res.Handled {
		s.notify(ChangeMentions)
	}
	return res
}

// Reload refetches the first page and its reactions. A feed that failed to
// subscribe is tried again.
func (s *Session) Reload(ctx context.Context) error {
	if s.Closed() {
		return ErrClosed
	}
	if err := s.store.LoadInitialPage(ctx); err != nil {
		return err
	}
	s.notify(ChangeMessages)
	s.loadReactions(ctx)
	if s.listener != nil && s.listener.State() == Unsubscribed {
		_ = s.listener.Start(ctx)
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close unsubscribes the feed and stops presence. Nothing mutates the
// session afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Debug("feed unsubscribe failed", zap.Error(err))
		}
	}
	if s.presence != nil {
		s.presence.Stop()
	}
}

package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adamavenir/huddle/internal/clock"
	"github.com/adamavenir/huddle/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTypingTimeout is how long self stays typing after the last keystroke.
const DefaultTypingTimeout = 3000 * time.Millisecond

// CoordinatorOptions configure a Coordinator.
type CoordinatorOptions struct {
	TypingTimeout time.Duration
	Clock         clock.Clock
	Logger        *zap.Logger
	// OnChange runs after the typing summary changes. It must not call back
	// into the coordinator's Stop.
	OnChange func()
}

// Coordinator owns self presence for one channel and derives the summary of
// who else is typing.
type Coordinator struct {
	transport Transport
	channelID string
	self      types.PresenceRecord
	key       string
	logger    *zap.Logger
	onChange  func()
	debounce  *Debouncer

	mu         sync.Mutex
	ch         Channel
	selfTyping bool
	typing     []types.PresenceRecord
	stopped    bool
}

// NewCoordinator prepares a coordinator for self in channelID. Nothing is
// published until Start.
func NewCoordinator(transport Transport, channelID string, self types.PresenceRecord, opts CoordinatorOptions) *Coordinator {
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = DefaultTypingTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	self.Typing = false
	return &Coordinator{
		transport: transport,
		channelID: channelID,
		self:      self,
		key:       uuid.NewString(),
		logger:    opts.Logger,
		onChange:  opts.OnChange,
		debounce:  NewDebouncer(opts.Clock, opts.TypingTimeout),
	}
}

// Start joins the channel and tracks self as not typing.
func (c *Coordinator) Start(ctx context.Context) error {
	ch, err := c.transport.Join(ctx, c.channelID, c.key)
	if err != nil {
		return fmt.Errorf("join presence for %s: %w", c.channelID, err)
	}
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		_ = ch.Leave()
		return context.Canceled
	}
	c.ch = ch
	c.mu.Unlock()

	ch.OnSync(c.OnPresenceSync)
	c.track(ctx, false)
	return nil
}

// OnLocalKeystroke marks self typing and restarts the quiet timer. The
// broadcast happens on the transition to typing.
func (c *Coordinator) OnLocalKeystroke(ctx context.Context) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	wasTyping := c.selfTyping
	c.selfTyping = true
	c.debounce.Trigger(c.typingExpired)
	c.mu.Unlock()

	if !wasTyping {
		c.track(ctx, true)
	}
}

func (c *Coordinator) typingExpired() {
	c.mu.Lock()
	if c.stopped || !c.selfTyping {
		c.mu.Unlock()
		return
	}
	c.selfTyping = false
	c.mu.Unlock()
	c.track(context.Background(), false)
}

// track publishes self. Failures are not surfaced.
func (c *Coordinator) track(ctx context.Context, typing bool) {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	if ch == nil {
		return
	}
	rec := c.self
	rec.Typing = typing
	if err := ch.Track(ctx, rec); err != nil {
		c.logger.Debug("presence track failed",
			zap.String("channel", c.channelID),
			zap.Bool("typing", typing),
			zap.Error(err))
	}
}

// OnPresenceSync replaces the typing set from a full snapshot. Self is
// excluded; a user present under several keys counts once.
func (c *Coordinator) OnPresenceSync(snap Snapshot) {
	seen := make(map[string]struct{})
	typing := make([]types.PresenceRecord, 0)
	for _, rec := range snap {
		if rec.UserID == c.self.UserID || !rec.Typing {
			continue
		}
		if _, dup := seen[rec.UserID]; dup {
			continue
		}
		seen[rec.UserID] = struct{}{}
		typing = append(typing, rec)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	before, _ := Summarize(c.typing)
	c.typing = typing
	after, _ := Summarize(typing)
	c.mu.Unlock()

	if before != after && c.onChange != nil {
		c.onChange()
	}
}

// SelfTyping reports whether self is currently broadcast as typing.
func (c *Coordinator) SelfTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfTyping
}

// TypingSummary returns the display line and whether it should be shown.
func (c *Coordinator) TypingSummary() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Summarize(c.typing)
}

// Stop cancels the timer, leaves the channel and discards all records.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	ch := c.ch
	c.ch = nil
	c.typing = nil
	c.selfTyping = false
	c.mu.Unlock()

	c.debounce.Stop()
	if ch != nil {
		if err := ch.Leave(); err != nil {
			c.logger.Debug("presence leave failed", zap.String("channel", c.channelID), zap.Error(err))
		}
	}
}

// Summarize renders the typing line for the given records.
func Summarize(typing []types.PresenceRecord) (string, bool) {
	switch len(typing) {
	case 0:
		return "", false
	case 1:
		return displayName(typing[0]) + " is typing…", true
	case 2:
		return displayName(typing[0]) + " and " + displayName(typing[1]) + " are typing…", true
	}
	return fmt.Sprintf("%d people are typing…", len(typing)), true
}

func displayName(rec types.PresenceRecord) string {
	if rec.DisplayName != "" {
		return rec.DisplayName
	}
	return rec.UserID
}

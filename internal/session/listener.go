package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/adamavenir/huddle/internal/feed"
	"github.com/adamavenir/huddle/internal/types"
	"go.uber.org/zap"
)

// ListenerState is the lifecycle of a change feed listener.
type ListenerState int

const (
	Unsubscribed ListenerState = iota
	Subscribing
	Active
)

func (s ListenerState) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Active:
		return "active"
	}
	return "unsubscribed"
}

var errListenerClosed = errors.New("listener closed")

// Routes are the targets of the three routed event classes.
type Routes struct {
	Insert    func(types.Message)
	Update    func(types.Message)
	Reactions func()
}

// Listener subscribes to the change feed of one channel and routes its events.
// Events for other channels, or arriving while not Active, are dropped. A
// failed subscription is not retried.
type Listener struct {
	source    feed.Source
	channelID string
	routes    Routes
	logger    *zap.Logger
	metrics   *Metrics

	mu     sync.Mutex
	state  ListenerState
	sub    feed.Subscription
	closed bool
}

// NewListener prepares a listener; nothing is subscribed until Start.
func NewListener(source feed.Source, channelID string, routes Routes, logger *zap.Logger, metrics *Metrics) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{source: source, channelID: channelID, routes: routes, logger: logger, metrics: metrics}
}

// Start subscribes. On failure the error is logged and the listener stays
// Unsubscribed.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errListenerClosed
	}
	if l.state != Unsubscribed {
		l.mu.Unlock()
		return nil
	}
	l.state = Subscribing
	l.mu.Unlock()

	sub, err := l.source.Subscribe(ctx, l.channelID, feed.Handlers{
		OnMessageInsert:  l.onInsert,
		OnMessageUpdate:  l.onUpdate,
		OnReactionChange: l.onReactionChange,
	})

	l.mu.Lock()
	if err != nil {
		l.state = Unsubscribed
		l.mu.Unlock()
		l.metrics.subscribeFailure()
		l.logger.Warn("change feed subscription failed; live updates disabled",
			zap.String("channel", l.channelID), zap.Error(err))
		return fmt.Errorf("subscribe to %s: %w", l.channelID, err)
	}
	if l.closed {
		// Closed while the subscription was resolving.
		l.state = Unsubscribed
		l.mu.Unlock()
		if uerr := sub.Unsubscribe(); uerr != nil {
			l.logger.Debug("late unsubscribe failed", zap.String("channel", l.channelID), zap.Error(uerr))
		}
		return errListenerClosed
	}
	l.sub = sub
	l.state = Active
	l.mu.Unlock()
	l.logger.Debug("change feed active", zap.String("channel", l.channelID))
	return nil
}

// State returns the current lifecycle state.
func (l *Listener) State() ListenerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Close unsubscribes. No route runs after Close returns.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	sub := l.sub
	l.sub = nil
	l.state = Unsubscribed
	l.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Unsubscribe()
}

func (l *Listener) accept(eventType feed.EventType, channelID string) bool {
	l.mu.Lock()
	active := l.state == Active
	l.mu.Unlock()
	if !active {
		l.metrics.dropped("inactive")
		return false
	}
	if channelID != l.channelID {
		l.metrics.dropped("foreign_channel")
		return false
	}
	l.metrics.feedEvent(string(eventType))
	return true
}

func (l *Listener) onInsert(msg types.Message) {
	if l.accept(feed.MessageInserted, msg.ChannelID) && l.routes.Insert != nil {
		l.routes.Insert(msg)
	}
}

func (l *Listener) onUpdate(msg types.Message) {
	if l.accept(feed.MessageUpdated, msg.ChannelID) && l.routes.Update != nil {
		l.routes.Update(msg)
	}
}

func (l *Listener) onReactionChange(ev feed.Event) {
	if l.accept(ev.Type, ev.ChannelID) && l.routes.Reactions != nil {
		l.routes.Reactions()
	}
}

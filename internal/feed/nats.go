package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const natsFlushTimeout = 5 * time.Second

// NATS carries events over core NATS subjects, one subject per channel.
type NATS struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATS wraps an established connection. prefix namespaces the subjects.
func NewNATS(nc *nats.Conn, prefix string, logger *zap.Logger) *NATS {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "huddle"
	}
	return &NATS{nc: nc, prefix: prefix, logger: logger}
}

// Subject returns the subject carrying events for channelID.
func Subject(prefix, channelID string) string {
	return fmt.Sprintf("%s.channel.%s.events", prefix, channelID)
}

func (n *NATS) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := Subject(n.prefix, ev.ChannelID)
	if err := n.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a subscription and waits for the server to acknowledge
// it, so events published after Subscribe returns are not missed.
func (n *NATS) Subscribe(ctx context.Context, channelID string, handlers Handlers) (Subscription, error) {
	subject := Subject(n.prefix, channelID)
	handle := &natsSub{}
	sub, err := n.nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			n.logger.Warn("dropping undecodable event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		if ev.ChannelID != channelID {
			return
		}
		handle.mu.Lock()
		defer handle.mu.Unlock()
		if handle.closed {
			return
		}
		Dispatch(handlers, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	flushCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		flushCtx, cancel = context.WithTimeout(ctx, natsFlushTimeout)
		defer cancel()
	}
	if err := n.nc.FlushWithContext(flushCtx); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription %s: %w", subject, err)
	}
	n.logger.Debug("subscribed", zap.String("subject", subject))
	handle.sub = sub
	return handle, nil
}

type natsSub struct {
	sub *nats.Subscription

	mu     sync.Mutex // held while a handler runs
	closed bool
}

// Unsubscribe drains nothing: pending deliveries for this subscription are
// discarded, matching the teardown semantics of the other drivers.
func (s *natsSub) Unsubscribe() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	if err := s.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
		return err
	}
	return nil
}

package feed

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

// Hub is an in-process Source and Publisher. Publish delivers to every
// matching subscriber on the calling goroutine, in subscription order,
// before returning.
type Hub struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]*hubSub
}

type hubSub struct {
	hub       *Hub
	id        uint64
	channelID string
	handlers  Handlers
	closed    atomic.Bool
	// deliver serializes handler calls with Unsubscribe.
	deliver sync.Mutex
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*hubSub)}
}

func (h *Hub) Subscribe(ctx context.Context, channelID string, handlers Handlers) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	sub := &hubSub{hub: h, id: h.next, channelID: channelID, handlers: handlers}
	h.subs[sub.id] = sub
	return sub, nil
}

func (h *Hub) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, sub := range h.matching(ev.ChannelID) {
		sub.deliver.Lock()
		if !sub.closed.Load() {
			Dispatch(sub.handlers, ev)
		}
		sub.deliver.Unlock()
	}
	return nil
}

// Subscribers returns the number of live subscriptions for channelID.
func (h *Hub) Subscribers(channelID string) int {
	return len(h.matching(channelID))
}

func (h *Hub) matching(channelID string) []*hubSub {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*hubSub, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.channelID == channelID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (s *hubSub) Unsubscribe() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.hub.mu.Lock()
	delete(s.hub.subs, s.id)
	s.hub.mu.Unlock()
	// Wait out a delivery already in progress.
	s.deliver.Lock()
	s.deliver.Unlock()
	return nil
}

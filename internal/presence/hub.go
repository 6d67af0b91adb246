package presence

import (
	"context"
	"sync"

	"github.com/adamavenir/huddle/internal/types"
)

// Hub is an in-process Transport. Track and Leave deliver the new snapshot to
// every member of the room on the calling goroutine.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room
}

type room struct {
	members   map[string]types.PresenceRecord
	listeners map[string]*hubChannel
}

type hubChannel struct {
	hub       *Hub
	channelID string
	key       string

	mu     sync.Mutex // serializes callbacks with Leave
	onSync func(Snapshot)
	left   bool
}

// NewHub returns an empty presence hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*room)}
}

func (h *Hub) Join(ctx context.Context, channelID, key string) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.rooms[channelID]
	if r == nil {
		r = &room{
			members:   make(map[string]types.PresenceRecord),
			listeners: make(map[string]*hubChannel),
		}
		h.rooms[channelID] = r
	}
	ch := &hubChannel{hub: h, channelID: channelID, key: key}
	r.listeners[key] = ch
	return ch, nil
}

// Members returns the current snapshot of channelID.
func (h *Hub) Members(channelID string) Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.rooms[channelID]
	if r == nil {
		return nil
	}
	return sortedSnapshot(r.members)
}

func (h *Hub) broadcast(channelID string) {
	h.mu.Lock()
	r := h.rooms[channelID]
	if r == nil {
		h.mu.Unlock()
		return
	}
	snap := sortedSnapshot(r.members)
	listeners := make([]*hubChannel, 0, len(r.listeners))
	for _, l := range r.listeners {
		listeners = append(listeners, l)
	}
	h.mu.Unlock()

	for _, l := range listeners {
		l.deliver(snap)
	}
}

func (c *hubChannel) deliver(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.left || c.onSync == nil {
		return
	}
	c.onSync(append(Snapshot(nil), snap...))
}

func (c *hubChannel) Track(ctx context.Context, record types.PresenceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.hub.mu.Lock()
	r := c.hub.rooms[c.channelID]
	if r == nil || r.listeners[c.key] != c {
		c.hub.mu.Unlock()
		return errLeft
	}
	r.members[c.key] = record
	c.hub.mu.Unlock()
	c.hub.broadcast(c.channelID)
	return nil
}

func (c *hubChannel) OnSync(fn func(Snapshot)) {
	c.mu.Lock()
	c.onSync = fn
	c.mu.Unlock()
}

func (c *hubChannel) Leave() error {
	c.mu.Lock()
	if c.left {
		c.mu.Unlock()
		return nil
	}
	c.left = true
	c.mu.Unlock()

	c.hub.mu.Lock()
	if r := c.hub.rooms[c.channelID]; r != nil {
		delete(r.members, c.key)
		delete(r.listeners, c.key)
		if len(r.listeners) == 0 {
			delete(c.hub.rooms, c.channelID)
		}
	}
	c.hub.mu.Unlock()
	c.hub.broadcast(c.channelID)
	return nil
}

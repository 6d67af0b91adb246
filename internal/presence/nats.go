package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adamavenir/huddle/internal/clock"
	"github.com/adamavenir/huddle/internal/types"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSOptions tune the heartbeat protocol.
type NATSOptions struct {
	Prefix    string
	Heartbeat time.Duration
	TTL       time.Duration
	Clock     clock.Clock
	Logger    *zap.Logger
}

// NATSTransport shares presence over a core NATS subject per channel. Each
// member republishes its record every heartbeat; members not heard from
// within TTL are dropped from the snapshot.
type NATSTransport struct {
	nc   *nats.Conn
	opts NATSOptions
}

// NewNATSTransport wraps an established connection.
func NewNATSTransport(nc *nats.Conn, opts NATSOptions) *NATSTransport {
	if opts.Prefix == "" {
		opts.Prefix = "huddle"
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 5 * time.Second
	}
	if opts.TTL <= 0 {
		opts.TTL = 3 * opts.Heartbeat
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &NATSTransport{nc: nc, opts: opts}
}

// PresenceSubject returns the subject carrying presence for channelID.
func PresenceSubject(prefix, channelID string) string {
	return fmt.Sprintf("%s.channel.%s.presence", prefix, channelID)
}

type wireMessage struct {
	Key    string               `json:"key"`
	Record types.PresenceRecord `json:"record"`
	Leave  bool                 `json:"leave,omitempty"`
}

type remoteMember struct {
	record types.PresenceRecord
	seen   time.Time
}

type natsChannel struct {
	t       *NATSTransport
	subject string
	key     string
	sub     *nats.Subscription

	cbMu   sync.Mutex // held while onSync runs
	onSync func(Snapshot)
	left   bool

	mu      sync.Mutex
	self    *types.PresenceRecord
	members map[string]remoteMember
	timer   clock.Timer
}

func (t *NATSTransport) Join(ctx context.Context, channelID, key string) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := &natsChannel{
		t:       t,
		subject: PresenceSubject(t.opts.Prefix, channelID),
		key:     key,
		members: make(map[string]remoteMember),
	}
	sub, err := t.nc.Subscribe(ch.subject, ch.receive)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", ch.subject, err)
	}
	ch.sub = sub

	ch.mu.Lock()
	ch.timer = t.opts.Clock.AfterFunc(t.opts.Heartbeat, ch.tick)
	ch.mu.Unlock()
	return ch, nil
}

func (c *natsChannel) receive(msg *nats.Msg) {
	var wire wireMessage
	if err := json.Unmarshal(msg.Data, &wire); err != nil {
		c.t.opts.Logger.Debug("dropping undecodable presence message", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	if wire.Key == c.key {
		return
	}

	c.mu.Lock()
	_, known := c.members[wire.Key]
	if wire.Leave {
		delete(c.members, wire.Key)
	} else {
		c.members[wire.Key] = remoteMember{record: wire.Record, seen: c.t.opts.Clock.Now()}
	}
	// Answer a newcomer right away instead of making it wait a heartbeat.
	var reply *types.PresenceRecord
	if !known && !wire.Leave && c.self != nil {
		rec := *c.self
		reply = &rec
	}
	c.mu.Unlock()

	if reply != nil {
		if err := c.publish(wireMessage{Key: c.key, Record: *reply}); err != nil {
			c.t.opts.Logger.Debug("presence reply failed", zap.Error(err))
		}
	}
	c.emit()
}

func (c *natsChannel) tick() {
	c.mu.Lock()
	if c.timer == nil {
		c.mu.Unlock()
		return
	}
	now := c.t.opts.Clock.Now()
	expired := false
	for key, m := range c.members {
		if now.Sub(m.seen) > c.t.opts.TTL {
			delete(c.members, key)
			expired = true
		}
	}
	var self *types.PresenceRecord
	if c.self != nil {
		rec := *c.self
		self = &rec
	}
	c.timer = c.t.opts.Clock.AfterFunc(c.t.opts.Heartbeat, c.tick)
	c.mu.Unlock()

	if self != nil {
		if err := c.publish(wireMessage{Key: c.key, Record: *self}); err != nil {
			c.t.opts.Logger.Debug("presence heartbeat failed", zap.Error(err))
		}
	}
	if expired {
		c.emit()
	}
}

func (c *natsChannel) snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := make(map[string]types.PresenceRecord, len(c.members)+1)
	for key, m := range c.members {
		all[key] = m.record
	}
	if c.self != nil {
		all[c.key] = *c.self
	}
	return sortedSnapshot(all)
}

func (c *natsChannel) emit() {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	if c.left || c.onSync == nil {
		return
	}
	c.onSync(c.snapshot())
}

func (c *natsChannel) publish(wire wireMessage) error {
	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}
	return c.t.nc.Publish(c.subject, data)
}

func (c *natsChannel) Track(ctx context.Context, record types.PresenceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.timer == nil {
		c.mu.Unlock()
		return errLeft
	}
	c.self = &record
	c.mu.Unlock()

	if err := c.publish(wireMessage{Key: c.key, Record: record}); err != nil {
		return fmt.Errorf("publish presence: %w", err)
	}
	c.emit()
	return nil
}

func (c *natsChannel) OnSync(fn func(Snapshot)) {
	c.cbMu.Lock()
	c.onSync = fn
	c.cbMu.Unlock()
}

func (c *natsChannel) Leave() error {
	c.cbMu.Lock()
	if c.left {
		c.cbMu.Unlock()
		return nil
	}
	c.left = true
	c.cbMu.Unlock()

	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	tracked := c.self != nil
	c.self = nil
	c.members = make(map[string]remoteMember)
	c.mu.Unlock()

	var errs []error
	if tracked {
		if err := c.publish(wireMessage{Key: c.key, Leave: true}); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	if err := c.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

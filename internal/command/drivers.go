package command

import (
	"fmt"

	"github.com/adamavenir/huddle/internal/config"
	"github.com/adamavenir/huddle/internal/core"
	"github.com/adamavenir/huddle/internal/feed"
	"github.com/adamavenir/huddle/internal/presence"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Drivers are the change feed and presence transports selected by config.
type Drivers struct {
	Publisher feed.Publisher
	Source    feed.Source
	Presence  presence.Transport

	nc *nats.Conn
}

// OpenDrivers builds the configured transports. A NATS connection is opened
// only when a driver needs one and is shared between feed and presence.
func OpenDrivers(cfg *config.Config, project core.Project, logger *zap.Logger) (*Drivers, error) {
	d := &Drivers{}
	connect := func() (*nats.Conn, error) {
		if d.nc != nil {
			return d.nc, nil
		}
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.NATS.Name),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn("nats disconnected", zap.Error(err))
				}
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("connect to nats at %s: %w", cfg.NATS.URL, err)
		}
		d.nc = nc
		return nc, nil
	}

	switch cfg.Feed.Driver {
	case config.FeedJournal:
		journal := feed.NewJournal(project.JournalPath(), logger)
		d.Publisher, d.Source = journal, journal
	case config.FeedNATS:
		nc, err := connect()
		if err != nil {
			return nil, err
		}
		bus := feed.NewNATS(nc, cfg.Feed.SubjectPrefix, logger)
		d.Publisher, d.Source = bus, bus
	case config.FeedMemory:
		hub := feed.NewHub()
		d.Publisher, d.Source = hub, hub
	default:
		return nil, fmt.Errorf("unknown feed driver: %q", cfg.Feed.Driver)
	}

	switch cfg.Presence.Driver {
	case config.PresenceMemory:
		d.Presence = presence.NewHub()
	case config.PresenceNATS:
		nc, err := connect()
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Presence = presence.NewNATSTransport(nc, presence.NATSOptions{
			Prefix:    cfg.Feed.SubjectPrefix,
			Heartbeat: cfg.Presence.Heartbeat,
			TTL:       cfg.Presence.TTL,
			Logger:    logger,
		})
	default:
		d.Close()
		return nil, fmt.Errorf("unknown presence driver: %q", cfg.Presence.Driver)
	}
	return d, nil
}

// Close drains the shared NATS connection, if any.
func (d *Drivers) Close() {
	if d == nil || d.nc == nil {
		return
	}
	if err := d.nc.Drain(); err != nil {
		d.nc.Close()
	}
	d.nc = nil
}

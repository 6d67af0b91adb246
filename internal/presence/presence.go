// Package presence tracks which participants are connected to a channel and
// whether they are typing. Transports deliver full snapshots, never deltas.
package presence

import (
	"context"
	"errors"
	"sort"

	"github.com/adamavenir/huddle/internal/types"
)

var errLeft = errors.New("presence channel already left")

// Snapshot is the full set of presence records for one channel.
type Snapshot []types.PresenceRecord

// Transport joins per-channel presence rooms.
type Transport interface {
	// Join enters channelID under key, a per-connection member key. The same
	// user may hold several keys (one per client).
	Join(ctx context.Context, channelID, key string) (Channel, error)
}

// Channel is a joined presence room.
type Channel interface {
	// Track publishes this member's record.
	Track(ctx context.Context, record types.PresenceRecord) error
	// OnSync registers the snapshot callback, replacing any earlier one.
	OnSync(fn func(Snapshot))
	// Leave removes the member and stops delivery. No callback runs after it
	// returns.
	Leave() error
}

type member struct {
	key    string
	record types.PresenceRecord
}

func sortedSnapshot(members map[string]types.PresenceRecord) Snapshot {
	list := make([]member, 0, len(members))
	for key, rec := range members {
		list = append(list, member{key: key, record: rec})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].record.UserID == list[j].record.UserID {
			return list[i].key < list[j].key
		}
		return list[i].record.UserID < list[j].record.UserID
	})
	out := make(Snapshot, len(list))
	for i, m := range list {
		out[i] = m.record
	}
	return out
}

package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/adamavenir/huddle/internal/types"
)

// DefaultPageSize is the number of messages fetched per history page.
const DefaultPageSize = 50

// MessageStore is the ordered, de-duplicated message list of one channel.
// Messages are ascending by (CreatedAt, ID) and never carry a tombstone.
type MessageStore struct {
	repo      MessageRepository
	channelID string
	pageSize  int
	metrics   *Metrics

	mu           sync.Mutex
	messages     []types.Message
	offset       int
	exhausted    bool
	loadingOlder bool
	lastErr      error
	// gen invalidates older-page loads started before a reload.
	gen uint64
	// While an initial page is in flight, live changes are kept by id so
	// they survive the page replacing the contents.
	reloading bool
	arrived   map[string]liveChange
	order     []string
}

type liveChange struct {
	msg      types.Message
	inserted bool
}

// NewMessageStore returns an empty store for channelID.
func NewMessageStore(repo MessageRepository, channelID string, pageSize int, metrics *Metrics) *MessageStore {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &MessageStore{repo: repo, channelID: channelID, pageSize: pageSize, metrics: metrics}
}

// ChannelID returns the channel the store belongs to.
func (s *MessageStore) ChannelID() string {
	return s.channelID
}

// LoadInitialPage replaces the contents with the most recent page, keeping
// live changes applied while it was in flight. On failure the contents are
// left unchanged. A load superseded by a newer one changes nothing.
func (s *MessageStore) LoadInitialPage(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if !s.reloading {
		s.reloading = true
		s.arrived = make(map[string]liveChange)
		s.order = nil
	}
	s.mu.Unlock()

	rows, err := s.repo.ListMessages(ctx, s.channelID, types.PageRange{Offset: 0, Limit: s.pageSize})
	s.metrics.pageLoad("initial", err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// A newer reload owns the contents and the error state.
		if err != nil {
			return fmt.Errorf("load messages for %s: %w", s.channelID, err)
		}
		return nil
	}
	arrived, order := s.arrived, s.order
	s.reloading = false
	s.arrived = nil
	s.order = nil
	if err != nil {
		err = fmt.Errorf("load messages for %s: %w", s.channelID, err)
		s.lastErr = err
		return err
	}
	page := ascending(rows)
	s.messages = s.messages[:0]
	seen := make(map[string]int, len(page))
	for _, msg := range page {
		if _, dup := seen[msg.ID]; dup || msg.Deleted() {
			continue
		}
		seen[msg.ID] = len(s.messages)
		s.messages = append(s.messages, msg)
	}
	// The page may predate changes delivered while it was fetched.
	var dropped map[string]struct{}
	for _, id := range order {
		change := arrived[id]
		msg := change.msg
		idx, ok := seen[id]
		switch {
		case msg.Deleted() && ok:
			if dropped == nil {
				dropped = make(map[string]struct{})
			}
			dropped[id] = struct{}{}
		case msg.Deleted():
		case ok:
			s.messages[idx] = msg
		case change.inserted:
			seen[id] = len(s.messages)
			s.messages = append(s.messages, msg)
		}
	}
	if len(dropped) > 0 {
		kept := s.messages[:0]
		for _, msg := range s.messages {
			if _, gone := dropped[msg.ID]; !gone {
				kept = append(kept, msg)
			}
		}
		s.messages = kept
	}
	s.sortLocked()
	s.offset = s.pageSize
	s.exhausted = len(rows) < s.pageSize
	s.loadingOlder = false
	s.lastErr = nil
	return nil
}

// LoadOlderPage prepends the next older page. It is a no-op when history is
// exhausted or another older load is in flight; loaded reports whether a page
// was merged.
func (s *MessageStore) LoadOlderPage(ctx context.Context) (loaded bool, err error) {
	s.mu.Lock()
	if s.exhausted || s.loadingOlder {
		s.mu.Unlock()
		return false, nil
	}
	s.loadingOlder = true
	offset := s.offset
	gen := s.gen
	s.mu.Unlock()

	rows, err := s.repo.ListMessages(ctx, s.channelID, types.PageRange{Offset: offset, Limit: s.pageSize})
	s.metrics.pageLoad("older", err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false, nil
	}
	s.loadingOlder = false
	if err != nil {
		err = fmt.Errorf("load older messages for %s: %w", s.channelID, err)
		s.lastErr = err
		return false, err
	}

	present := make(map[string]struct{}, len(s.messages))
	for _, msg := range s.messages {
		present[msg.ID] = struct{}{}
	}
	older := make([]types.Message, 0, len(rows))
	// Inserts since the first page shift the offset window; rows seen twice
	// are skipped.
	for _, msg := range ascending(rows) {
		if _, dup := present[msg.ID]; dup || msg.Deleted() {
			continue
		}
		present[msg.ID] = struct{}{}
		older = append(older, msg)
	}
	s.messages = append(older, s.messages...)
	s.sortLocked()
	s.offset += s.pageSize
	s.exhausted = len(rows) < s.pageSize
	s.lastErr = nil
	return true, nil
}

// ApplyInsert adds msg unless its id is already loaded or it is tombstoned.
// It reports whether the store changed.
func (s *MessageStore) ApplyInsert(msg types.Message) bool {
	if msg.Deleted() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.arrived[msg.ID]; s.reloading && !seen {
		s.noteLocked(msg, true)
	}
	if s.indexLocked(msg.ID) >= 0 {
		s.metrics.duplicateInsert()
		return false
	}
	// New messages are almost always newest: scan from the tail.
	pos := len(s.messages)
	for pos > 0 && msg.Before(s.messages[pos-1]) {
		pos--
	}
	s.messages = append(s.messages, types.Message{})
	copy(s.messages[pos+1:], s.messages[pos:])
	s.messages[pos] = msg
	return true
}

// ApplyUpdate replaces the loaded message with the same id in place, or
// removes it when msg carries a tombstone. Unknown ids are ignored.
func (s *MessageStore) ApplyUpdate(msg types.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reloading {
		s.noteLocked(msg, false)
	}
	idx := s.indexLocked(msg.ID)
	if idx < 0 {
		return false
	}
	if msg.Deleted() {
		s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
		return true
	}
	s.messages[idx] = msg
	return true
}

// RemoveLocal drops a message after a local delete.
func (s *MessageStore) RemoveLocal(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reloading {
		ts := time.Now().UTC()
		s.noteLocked(types.Message{ID: id, ChannelID: s.channelID, DeletedAt: &ts}, false)
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	return true
}

// Messages returns a copy of the loaded messages in ascending order.
func (s *MessageStore) Messages() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Message(nil), s.messages...)
}

// IDs returns the loaded message ids in ascending order.
func (s *MessageStore) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.messages))
	for i, msg := range s.messages {
		ids[i] = msg.ID
	}
	return ids
}

// Get returns the loaded message with id.
func (s *MessageStore) Get(id string) (types.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return types.Message{}, false
	}
	return s.messages[idx], true
}

// Len returns the number of loaded messages.
func (s *MessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// HasMore reports whether older history may remain.
func (s *MessageStore) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.exhausted
}

// IsLoadingOlder reports whether an older page is being fetched.
func (s *MessageStore) IsLoadingOlder() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingOlder
}

// LastError returns the error of the most recent failed page load, cleared by
// the next successful one.
func (s *MessageStore) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// noteLocked records the latest live version of msg during a reload. Only an
// insert may add a message the page does not hold.
func (s *MessageStore) noteLocked(msg types.Message, inserted bool) {
	prev, ok := s.arrived[msg.ID]
	if !ok {
		s.order = append(s.order, msg.ID)
	}
	s.arrived[msg.ID] = liveChange{msg: msg, inserted: inserted || prev.inserted}
}

func (s *MessageStore) indexLocked(id string) int {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *MessageStore) sortLocked() {
	less := func(i, j int) bool { return s.messages[i].Before(s.messages[j]) }
	if !sort.SliceIsSorted(s.messages, less) {
		sort.SliceStable(s.messages, less)
	}
}

// ascending reverses a newest-first page.
func ascending(rows []types.Message) []types.Message {
	out := make([]types.Message, len(rows))
	for i, msg := range rows {
		out[len(rows)-1-i] = msg
	}
	return out
}

package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/adamavenir/huddle/internal/types"
)

type toggleKey struct {
	messageID string
	userID    string
	emoji     string
}

// ReactionAggregator holds the reaction rows of the loaded messages. The
// local map only changes after the store confirms a write.
type ReactionAggregator struct {
	repo ReactionRepository

	mu        sync.Mutex
	byMessage map[string][]types.Reaction
	inFlight  map[toggleKey]struct{}
	loadGen   uint64
	applied   uint64
}

// NewReactionAggregator returns an empty aggregator.
func NewReactionAggregator(repo ReactionRepository) *ReactionAggregator {
	return &ReactionAggregator{
		repo:      repo,
		byMessage: make(map[string][]types.Reaction),
		inFlight:  make(map[toggleKey]struct{}),
	}
}

// LoadForMessages replaces the whole map with fresh rows for ids. A load
// that finishes after a newer one is discarded.
func (a *ReactionAggregator) LoadForMessages(ctx context.Context, ids []string) error {
	a.mu.Lock()
	a.loadGen++
	gen := a.loadGen
	a.mu.Unlock()

	var rows []types.Reaction
	if len(ids) > 0 {
		var err error
		rows, err = a.repo.ListReactions(ctx, ids)
		if err != nil {
			return fmt.Errorf("load reactions: %w", err)
		}
	}

	next := make(map[string][]types.Reaction, len(ids))
	seen := make(map[toggleKey]struct{}, len(rows))
	for _, r := range rows {
		key := toggleKey{messageID: r.MessageID, userID: r.UserID, emoji: r.Emoji}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		next[r.MessageID] = append(next[r.MessageID], r)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen < a.applied {
		return nil
	}
	a.applied = gen
	a.byMessage = next
	return nil
}

// Toggle removes userID's emoji on messageID when present and adds it
// otherwise. added reports the resulting direction.
func (a *ReactionAggregator) Toggle(ctx context.Context, messageID, emoji, userID string) (added bool, err error) {
	key := toggleKey{messageID: messageID, userID: userID, emoji: emoji}

	a.mu.Lock()
	if _, busy := a.inFlight[key]; busy {
		a.mu.Unlock()
		return false, ErrToggleInFlight
	}
	a.inFlight[key] = struct{}{}
	existing, found := a.findLocked(key)
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.inFlight, key)
		a.mu.Unlock()
	}()

	if found {
		if err := a.repo.DeleteReaction(ctx, existing.ID); err != nil {
			return false, fmt.Errorf("remove reaction: %w", err)
		}
		a.mu.Lock()
		a.supersedeLoadsLocked()
		a.removeLocked(key)
		a.mu.Unlock()
		return false, nil
	}

	stored, err := a.repo.InsertReaction(ctx, types.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji})
	if err != nil {
		return false, fmt.Errorf("add reaction: %w", err)
	}
	a.mu.Lock()
	a.supersedeLoadsLocked()
	// A resync triggered by our own write may already hold the row.
	if _, present := a.findLocked(key); !present {
		a.byMessage[messageID] = append(a.byMessage[messageID], stored)
	}
	a.mu.Unlock()
	return true, nil
}

// supersedeLoadsLocked discards loads that started before a confirmed write;
// their snapshot may not contain it.
func (a *ReactionAggregator) supersedeLoadsLocked() {
	a.loadGen++
	a.applied = a.loadGen
}

// Groups returns the reaction groups of messageID in first-seen emoji order.
func (a *ReactionAggregator) Groups(messageID, viewerID string) []types.ReactionGroup {
	a.mu.Lock()
	defer a.mu.Unlock()
	rows := a.byMessage[messageID]
	if len(rows) == 0 {
		return nil
	}
	var groups []types.ReactionGroup
	index := make(map[string]int)
	for _, r := range rows {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, types.ReactionGroup{Emoji: r.Emoji})
		}
		g := &groups[i]
		if !containsString(g.UserIDs, r.UserID) {
			g.UserIDs = append(g.UserIDs, r.UserID)
		}
		if r.UserID == viewerID {
			g.SelfReacted = true
		}
	}
	return groups
}

// Reactions returns a copy of the raw rows for messageID.
func (a *ReactionAggregator) Reactions(messageID string) []types.Reaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]types.Reaction(nil), a.byMessage[messageID]...)
}

func (a *ReactionAggregator) findLocked(key toggleKey) (types.Reaction, bool) {
	for _, r := range a.byMessage[key.messageID] {
		if r.UserID == key.userID && r.Emoji == key.emoji {
			return r, true
		}
	}
	return types.Reaction{}, false
}

func (a *ReactionAggregator) removeLocked(key toggleKey) {
	rows := a.byMessage[key.messageID]
	kept := rows[:0]
	for _, r := range rows {
		if r.UserID == key.userID && r.Emoji == key.emoji {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		delete(a.byMessage, key.messageID)
		return
	}
	a.byMessage[key.messageID] = kept
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// Package mention detects an "@" trigger around the compose cursor and offers
// participant suggestions for it.
package mention

import (
	"strings"
	"sync"

	"github.com/adamavenir/huddle/internal/types"
)

// SuggestionLimit caps the number of suggestions offered.
const SuggestionLimit = 8

// Key is a navigation key the resolver understands.
type Key int

const (
	KeyUp Key = iota + 1
	KeyDown
	KeyEnter
	KeyTab
	KeyEscape
)

// State is the visible mention state. HighlightedIndex is -1 when nothing is
// highlighted. TriggerPos is the rune index just after the "@".
type State struct {
	Active           bool
	Query            string
	Suggestions      []types.MentionCandidate
	HighlightedIndex int
	TriggerPos       int
}

// KeyResult reports what HandleKey did. When Committed is set, Text and
// Cursor hold the rewritten composer contents.
type KeyResult struct {
	Handled   bool
	Committed bool
	Text      string
	Cursor    int
}

// Resolver holds the active trigger for one composer.
type Resolver struct {
	mu         sync.Mutex
	candidates []types.MentionCandidate
	text       string
	cursor     int
	active     bool
	triggerPos int
	query      string
	matches    []types.MentionCandidate
	index      int
}

// NewResolver returns a resolver over candidates, kept in directory order.
func NewResolver(candidates []types.MentionCandidate) *Resolver {
	return &Resolver{candidates: append([]types.MentionCandidate(nil), candidates...), index: -1}
}

// SetCandidates replaces the directory and recomputes active suggestions.
func (r *Resolver) SetCandidates(candidates []types.MentionCandidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates = append([]types.MentionCandidate(nil), candidates...)
	if r.active {
		r.matches = filter(r.candidates, r.query)
		r.index = -1
	}
}

// FindTrigger scans backward from cursor (a rune index) for an "@" that
// starts a mention. It returns the index just after the "@" and the query
// between it and the cursor.
func FindTrigger(text string, cursor int) (triggerPos int, query string, ok bool) {
	runes := []rune(text)
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(runes) {
		cursor = len(runes)
	}
	for i := cursor - 1; i >= 0; i-- {
		if isBreak(runes[i]) {
			return 0, "", false
		}
		if runes[i] != '@' {
			continue
		}
		if i > 0 && !isBreak(runes[i-1]) {
			return 0, "", false
		}
		return i + 1, string(runes[i+1 : cursor]), true
	}
	return 0, "", false
}

func isBreak(r rune) bool {
	return r == ' ' || r == '\n'
}

// OnTextChanged re-evaluates the trigger for the composer text and cursor.
func (r *Resolver) OnTextChanged(text string, cursor int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text = text
	r.cursor = cursor
	pos, query, ok := FindTrigger(text, cursor)
	if !ok {
		r.clearLocked()
		return
	}
	if r.active && r.triggerPos == pos && r.query == query {
		return
	}
	r.active = true
	r.triggerPos = pos
	r.query = query
	r.matches = filter(r.candidates, query)
	r.index = -1
}

// SuggestionsFor returns candidates whose name or email contains query,
// ignoring case, in directory order.
func (r *Resolver) SuggestionsFor(query string) []types.MentionCandidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return filter(r.candidates, query)
}

func filter(candidates []types.MentionCandidate, query string) []types.MentionCandidate {
	q := strings.ToLower(query)
	out := make([]types.MentionCandidate, 0, SuggestionLimit)
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Email), q) {
			out = append(out, c)
			if len(out) >= SuggestionLimit {
				break
			}
		}
	}
	return out
}

// HandleKey applies a navigation key to the active trigger. Keys are not
// handled when no trigger is active or there are no suggestions.
func (r *Resolver) HandleKey(key Key) KeyResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return KeyResult{}
	}
	if key == KeyEscape {
		r.clearLocked()
		return KeyResult{Handled: true}
	}
	n := len(r.matches)
	if n == 0 {
		return KeyResult{}
	}
	switch key {
	case KeyDown:
		if r.index < 0 {
			r.index = 0
		} else {
			r.index = (r.index + 1) % n
		}
		return KeyResult{Handled: true}
	case KeyUp:
		if r.index < 0 {
			r.index = n - 1
		} else {
			r.index = (r.index - 1 + n) % n
		}
		return KeyResult{Handled: true}
	case KeyTab:
		if r.index < 0 {
			r.index = 0
		}
		return r.commitLocked()
	case KeyEnter:
		// Enter with nothing highlighted belongs to the composer (send).
		if r.index < 0 {
			return KeyResult{}
		}
		return r.commitLocked()
	}
	return KeyResult{}
}

func (r *Resolver) commitLocked() KeyResult {
	text, cursor := Commit(r.matches[r.index], r.text, r.triggerPos, r.cursor)
	r.text = text
	r.cursor = cursor
	r.clearLocked()
	return KeyResult{Handled: true, Committed: true, Text: text, Cursor: cursor}
}

// Commit replaces the span from the "@" (triggerPos-1) up to cursor with
// "@<name> " and returns the new text and the cursor just after the space.
func Commit(candidate types.MentionCandidate, text string, triggerPos, cursor int) (string, int) {
	runes := []rune(text)
	start := triggerPos - 1
	if start < 0 {
		start = 0
	}
	if cursor > len(runes) {
		cursor = len(runes)
	}
	if cursor < start {
		cursor = start
	}
	insert := []rune("@" + candidate.Name + " ")
	out := make([]rune, 0, len(runes)-(cursor-start)+len(insert))
	out = append(out, runes[:start]...)
	out = append(out, insert...)
	out = append(out, runes[cursor:]...)
	return string(out), start + len(insert)
}

// Escape clears the active trigger.
func (r *Resolver) Escape() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
}

func (r *Resolver) clearLocked() {
	r.active = false
	r.triggerPos = 0
	r.query = ""
	r.matches = nil
	r.index = -1
}

// State returns the active mention state, or nil when no trigger is active.
func (r *Resolver) State() *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil
	}
	return &State{
		Active:           true,
		Query:            r.query,
		Suggestions:      append([]types.MentionCandidate(nil), r.matches...),
		HighlightedIndex: r.index,
		TriggerPos:       r.triggerPos,
	}
}

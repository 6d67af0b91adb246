package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/adamavenir/huddle/internal/types"
	"github.com/google/go-cmp/cmp"
)

func TestToggleTwiceRestoresState(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{reactions: []types.Reaction{
		{ID: "rxn-1", MessageID: "msg-1", UserID: "usr-b", Emoji: "👍"},
	}}
	agg := NewReactionAggregator(repo)
	if err := agg.LoadForMessages(ctx, []string{"msg-1"}); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := agg.Groups("msg-1", "usr-a")

	added, err := agg.Toggle(ctx, "msg-1", "👍", "usr-a")
	if err != nil || !added {
		t.Fatalf("first toggle: added=%v err=%v", added, err)
	}
	mid := agg.Groups("msg-1", "usr-a")
	if len(mid) != 1 || !mid[0].SelfReacted || len(mid[0].UserIDs) != 2 {
		t.Fatalf("unexpected groups after add: %+v", mid)
	}

	added, err = agg.Toggle(ctx, "msg-1", "👍", "usr-a")
	if err != nil || added {
		t.Fatalf("second toggle: added=%v err=%v", added, err)
	}
	if diff := cmp.Diff(before, agg.Groups("msg-1", "usr-a")); diff != "" {
		t.Fatalf("state not restored (-before +after):\n%s", diff)
	}
	if len(repo.reactions) != 1 {
		t.Fatalf("expected the store to be back to one row, got %d", len(repo.reactions))
	}
}

func TestToggleFailureLeavesMap(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{reactions: []types.Reaction{
		{ID: "rxn-1", MessageID: "msg-1", UserID: "usr-a", Emoji: "🎉"},
	}}
	agg := NewReactionAggregator(repo)
	if err := agg.LoadForMessages(ctx, []string{"msg-1"}); err != nil {
		t.Fatalf("load: %v", err)
	}
	boom := errors.New("write refused")
	repo.insertReactionErr = boom
	repo.deleteReactionErr = boom

	if _, err := agg.Toggle(ctx, "msg-1", "👍", "usr-a"); !errors.Is(err, boom) {
		t.Fatalf("expected insert failure, got %v", err)
	}
	if _, err := agg.Toggle(ctx, "msg-1", "🎉", "usr-a"); !errors.Is(err, boom) {
		t.Fatalf("expected delete failure, got %v", err)
	}
	want := []types.ReactionGroup{{Emoji: "🎉", UserIDs: []string{"usr-a"}, SelfReacted: true}}
	if diff := cmp.Diff(want, agg.Groups("msg-1", "usr-a")); diff != "" {
		t.Fatalf("map changed after failures (-want +got):\n%s", diff)
	}
}

func TestConcurrentToggleOfSameTripleIsRejected(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	repo := &fakeRepo{reactionGate: gate}
	agg := NewReactionAggregator(repo)

	done := make(chan error, 1)
	go func() {
		_, err := agg.Toggle(ctx, "msg-1", "👍", "usr-a")
		done <- err
	}()
	waitFor(t, func() bool {
		agg.mu.Lock()
		defer agg.mu.Unlock()
		return len(agg.inFlight) == 1
	})

	if _, err := agg.Toggle(ctx, "msg-1", "👍", "usr-a"); !errors.Is(err, ErrToggleInFlight) {
		t.Fatalf("expected ErrToggleInFlight, got %v", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if groups := agg.Groups("msg-1", "usr-a"); len(groups) != 1 || !groups[0].SelfReacted {
		t.Fatalf("first toggle not applied: %+v", groups)
	}
}

func TestGroupsKeepFirstSeenOrder(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{reactions: []types.Reaction{
		{ID: "rxn-1", MessageID: "msg-1", UserID: "usr-b", Emoji: "🎉"},
		{ID: "rxn-2", MessageID: "msg-1", UserID: "usr-c", Emoji: "👍"},
		{ID: "rxn-3", MessageID: "msg-1", UserID: "usr-a", Emoji: "🎉"},
		{ID: "rxn-4", MessageID: "msg-2", UserID: "usr-a", Emoji: "👀"},
	}}
	agg := NewReactionAggregator(repo)
	if err := agg.LoadForMessages(ctx, []string{"msg-1"}); err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []types.ReactionGroup{
		{Emoji: "🎉", UserIDs: []string{"usr-b", "usr-a"}, SelfReacted: true},
		{Emoji: "👍", UserIDs: []string{"usr-c"}, SelfReacted: false},
	}
	if diff := cmp.Diff(want, agg.Groups("msg-1", "usr-a")); diff != "" {
		t.Fatalf("groups mismatch (-want +got):\n%s", diff)
	}
	if groups := agg.Groups("msg-2", "usr-a"); groups != nil {
		t.Fatalf("unloaded message should have no groups, got %+v", groups)
	}
}

func TestToggleSupersedesResyncInFlight(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name     string
		existing []types.Reaction
		added    bool
		want     []types.ReactionGroup
	}{
		{
			name:  "add",
			added: true,
			want:  []types.ReactionGroup{{Emoji: "👍", UserIDs: []string{"usr-a"}, SelfReacted: true}},
		},
		{
			name:     "remove",
			existing: []types.Reaction{{ID: "rxn-1", MessageID: "msg-1", UserID: "usr-a", Emoji: "👍"}},
			added:    false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepo{reactions: append([]types.Reaction(nil), tc.existing...)}
			agg := NewReactionAggregator(repo)
			if err := agg.LoadForMessages(ctx, []string{"msg-1"}); err != nil {
				t.Fatalf("load: %v", err)
			}

			listed := make(chan struct{})
			release := make(chan struct{})
			var once sync.Once
			repo.afterListReactions = func() {
				once.Do(func() {
					close(listed)
					<-release
				})
			}

			done := make(chan error, 1)
			go func() { done <- agg.LoadForMessages(ctx, []string{"msg-1"}) }()
			<-listed

			added, err := agg.Toggle(ctx, "msg-1", "👍", "usr-a")
			if err != nil || added != tc.added {
				t.Fatalf("toggle: added=%v err=%v", added, err)
			}
			close(release)
			if err := <-done; err != nil {
				t.Fatalf("resync: %v", err)
			}

			if diff := cmp.Diff(tc.want, agg.Groups("msg-1", "usr-a")); diff != "" {
				t.Fatalf("resync read before the toggle overwrote it (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToggleRemoveOfVanishedRowConverges(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{reactions: []types.Reaction{
		{ID: "rxn-1", MessageID: "msg-1", UserID: "usr-a", Emoji: "🎉"},
	}}
	agg := NewReactionAggregator(repo)
	if err := agg.LoadForMessages(ctx, []string{"msg-1"}); err != nil {
		t.Fatalf("load: %v", err)
	}
	// Removed elsewhere before the toggle reached the store.
	repo.mu.Lock()
	repo.reactions = nil
	repo.mu.Unlock()

	added, err := agg.Toggle(ctx, "msg-1", "🎉", "usr-a")
	if err != nil || added {
		t.Fatalf("toggle: added=%v err=%v", added, err)
	}
	if groups := agg.Groups("msg-1", "usr-a"); len(groups) != 0 {
		t.Fatalf("expected the local entry to be gone, got %+v", groups)
	}
	added, err = agg.Toggle(ctx, "msg-1", "🎉", "usr-a")
	if err != nil || !added {
		t.Fatalf("re-add: added=%v err=%v", added, err)
	}
}

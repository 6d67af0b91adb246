package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adamavenir/huddle/internal/clock"
	"github.com/adamavenir/huddle/internal/types"
)

func newTestCoordinator(t *testing.T, hub Transport, clk clock.Clock, userID, name string) *Coordinator {
	t.Helper()
	c := NewCoordinator(hub, "ch-a", types.PresenceRecord{UserID: userID, DisplayName: name}, CoordinatorOptions{Clock: clk})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start %s: %v", userID, err)
	}
	t.Cleanup(c.Stop)
	return c
}

func TestTypingClearsAtTimeout(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	hub := NewHub()
	self := newTestCoordinator(t, hub, clk, "usr-self", "me")

	self.OnLocalKeystroke(context.Background())
	if !self.SelfTyping() {
		t.Fatalf("expected typing after keystroke")
	}
	clk.Advance(2999 * time.Millisecond)
	if !self.SelfTyping() {
		t.Fatalf("typing cleared before 3000ms")
	}
	clk.Advance(time.Millisecond)
	if self.SelfTyping() {
		t.Fatalf("typing not cleared at 3000ms")
	}

	snap := hub.Members("ch-a")
	if len(snap) != 1 || snap[0].Typing {
		t.Fatalf("expected self tracked as not typing, got %+v", snap)
	}
}

func TestKeystrokeResetsTypingWindow(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	self := newTestCoordinator(t, NewHub(), clk, "usr-self", "me")

	self.OnLocalKeystroke(context.Background())
	clk.Advance(2000 * time.Millisecond)
	self.OnLocalKeystroke(context.Background())

	clk.Advance(2999 * time.Millisecond)
	if !self.SelfTyping() {
		t.Fatalf("typing cleared before 3000ms after the second keystroke")
	}
	clk.Advance(time.Millisecond)
	if self.SelfTyping() {
		t.Fatalf("typing not cleared 3000ms after the second keystroke")
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", clk.Pending())
	}
}

func TestOthersTypingSummary(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	hub := NewHub()
	self := newTestCoordinator(t, hub, clk, "usr-self", "me")
	alice := newTestCoordinator(t, hub, clk, "usr-alice", "Alice")

	if _, ok := self.TypingSummary(); ok {
		t.Fatalf("summary visible with nobody typing")
	}
	alice.OnLocalKeystroke(context.Background())
	got, ok := self.TypingSummary()
	if !ok || got != "Alice is typing…" {
		t.Fatalf("unexpected summary %q (visible=%v)", got, ok)
	}
	if _, ok := alice.TypingSummary(); ok {
		t.Fatalf("self typing must not appear in own summary")
	}

	clk.Advance(DefaultTypingTimeout)
	if _, ok := self.TypingSummary(); ok {
		t.Fatalf("summary still visible after Alice stopped typing")
	}
}

func TestSummaryDeduplicatesUsers(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	self := NewCoordinator(NewHub(), "ch-a", types.PresenceRecord{UserID: "usr-self"}, CoordinatorOptions{Clock: clk})
	self.OnPresenceSync(Snapshot{
		{UserID: "usr-bob", DisplayName: "Bob", Typing: true},
		{UserID: "usr-bob", DisplayName: "Bob", Typing: true},
		{UserID: "usr-self", DisplayName: "me", Typing: true},
	})
	got, _ := self.TypingSummary()
	if got != "Bob is typing…" {
		t.Fatalf("got %q", got)
	}
}

func TestSummarize(t *testing.T) {
	rec := func(name string) types.PresenceRecord {
		return types.PresenceRecord{UserID: "usr-" + name, DisplayName: name, Typing: true}
	}
	cases := []struct {
		name    string
		typing  []types.PresenceRecord
		want    string
		visible bool
	}{
		{name: "none", typing: nil, want: "", visible: false},
		{name: "one", typing: []types.PresenceRecord{rec("ana")}, want: "ana is typing…", visible: true},
		{name: "two", typing: []types.PresenceRecord{rec("ana"), rec("bo")}, want: "ana and bo are typing…", visible: true},
		{name: "three", typing: []types.PresenceRecord{rec("ana"), rec("bo"), rec("cy")}, want: "3 people are typing…", visible: true},
		{name: "no display name", typing: []types.PresenceRecord{{UserID: "usr-x", Typing: true}}, want: "usr-x is typing…", visible: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, visible := Summarize(tc.typing)
			if got != tc.want || visible != tc.visible {
				t.Fatalf("Summarize = (%q, %v), want (%q, %v)", got, visible, tc.want, tc.visible)
			}
		})
	}
}

type failingTransport struct{ ch *failingChannel }

type failingChannel struct{ tracks int }

func (f *failingTransport) Join(context.Context, string, string) (Channel, error) { return f.ch, nil }
func (c *failingChannel) Track(context.Context, types.PresenceRecord) error {
	c.tracks++
	return errors.New("track refused")
}
func (c *failingChannel) OnSync(func(Snapshot)) {}
func (c *failingChannel) Leave() error          { return nil }

func TestTrackFailuresAreSwallowed(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	transport := &failingTransport{ch: &failingChannel{}}
	c := NewCoordinator(transport, "ch-a", types.PresenceRecord{UserID: "usr-self"}, CoordinatorOptions{Clock: clk})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.OnLocalKeystroke(context.Background())
	clk.Advance(DefaultTypingTimeout)
	c.Stop()
	if transport.ch.tracks != 3 {
		t.Fatalf("expected 3 track attempts, got %d", transport.ch.tracks)
	}
}

func TestStopCancelsTimerAndLeaves(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	hub := NewHub()
	c := NewCoordinator(hub, "ch-a", types.PresenceRecord{UserID: "usr-self"}, CoordinatorOptions{Clock: clk})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.OnLocalKeystroke(context.Background())
	c.Stop()
	if clk.Pending() != 0 {
		t.Fatalf("timer still pending after Stop")
	}
	if len(hub.Members("ch-a")) != 0 {
		t.Fatalf("member still present after Stop")
	}
	c.OnLocalKeystroke(context.Background())
	if c.SelfTyping() {
		t.Fatalf("keystroke after Stop must be ignored")
	}
}

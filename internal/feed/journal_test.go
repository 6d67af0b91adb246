package feed

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/adamavenir/huddle/internal/types"
)

type syncRecorder struct {
	mu      sync.Mutex
	inserts []string
}

func (r *syncRecorder) add(m types.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts = append(r.inserts, m.ID)
}

func (r *syncRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.inserts...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestJournalDeliversNewLinesForChannel(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	journal := NewJournal(path, nil)

	// Written before subscribing: must not be replayed.
	if err := journal.Publish(ctx, NewMessageEvent(MessageInserted, testMessage("msg-old", "ch-a"))); err != nil {
		t.Fatalf("publish: %v", err)
	}

	rec := &syncRecorder{}
	sub, err := journal.Subscribe(ctx, "ch-a", Handlers{OnMessageInsert: rec.add})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	for _, ev := range []Event{
		NewMessageEvent(MessageInserted, testMessage("msg-1", "ch-a")),
		NewMessageEvent(MessageInserted, testMessage("msg-x", "ch-b")),
		NewMessageEvent(MessageInserted, testMessage("msg-2", "ch-a")),
	} {
		if err := journal.Publish(ctx, ev); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	waitFor(t, func() bool { return len(rec.snapshot()) == 2 })
	got := rec.snapshot()
	if got[0] != "msg-1" || got[1] != "msg-2" {
		t.Fatalf("unexpected delivery order %v", got)
	}
}

func TestJournalUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	journal := NewJournal(path, nil)

	rec := &syncRecorder{}
	sub, err := journal.Subscribe(ctx, "ch-a", Handlers{OnMessageInsert: rec.add})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("second unsubscribe: %v", err)
	}
	if err := journal.Publish(ctx, NewMessageEvent(MessageInserted, testMessage("msg-1", "ch-a"))); err != nil {
		t.Fatalf("publish: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("delivery after unsubscribe: %v", got)
	}
}

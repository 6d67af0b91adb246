package feed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/adamavenir/huddle/internal/types"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	inserts   []string
	updates   []string
	reactions []EventType
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnMessageInsert:  func(m types.Message) { r.inserts = append(r.inserts, m.ID) },
		OnMessageUpdate:  func(m types.Message) { r.updates = append(r.updates, m.ID) },
		OnReactionChange: func(ev Event) { r.reactions = append(r.reactions, ev.Type) },
	}
}

func testMessage(id, channelID string) types.Message {
	return types.Message{
		ID:        id,
		ChannelID: channelID,
		SenderID:  "usr-a",
		Content:   "hi",
		Kind:      types.MessageKindText,
		CreatedAt: time.UnixMilli(1_700_000_000_000).UTC(),
	}
}

func TestDispatchRoutesEventClasses(t *testing.T) {
	rec := &recorder{}
	h := rec.handlers()

	Dispatch(h, NewMessageEvent(MessageInserted, testMessage("msg-1", "ch-a")))
	Dispatch(h, NewMessageEvent(MessageUpdated, testMessage("msg-1", "ch-a")))
	for _, typ := range []EventType{ReactionInserted, ReactionUpdated, ReactionDeleted} {
		Dispatch(h, NewReactionEvent(typ, "ch-a", types.Reaction{ID: "rxn-1", MessageID: "msg-1"}))
	}
	if handled := Dispatch(h, Event{Type: MessageInserted}); handled {
		t.Fatalf("insert without message should not be handled")
	}

	if len(rec.inserts) != 1 || len(rec.updates) != 1 {
		t.Fatalf("unexpected message routing: %+v", rec)
	}
	if len(rec.reactions) != 3 {
		t.Fatalf("expected every reaction change to reach OnReactionChange, got %v", rec.reactions)
	}
}

func TestHubScopesByChannel(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	a, b := &recorder{}, &recorder{}

	subA, err := hub.Subscribe(ctx, "ch-a", a.handlers())
	if err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	if _, err := hub.Subscribe(ctx, "ch-b", b.handlers()); err != nil {
		t.Fatalf("subscribe b: %v", err)
	}

	_ = hub.Publish(ctx, NewMessageEvent(MessageInserted, testMessage("msg-1", "ch-a")))
	_ = hub.Publish(ctx, NewMessageEvent(MessageInserted, testMessage("msg-2", "ch-b")))

	if len(a.inserts) != 1 || a.inserts[0] != "msg-1" {
		t.Fatalf("channel a got %v", a.inserts)
	}
	if len(b.inserts) != 1 || b.inserts[0] != "msg-2" {
		t.Fatalf("channel b got %v", b.inserts)
	}

	if err := subA.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	_ = hub.Publish(ctx, NewMessageEvent(MessageInserted, testMessage("msg-3", "ch-a")))
	if len(a.inserts) != 1 {
		t.Fatalf("delivery after unsubscribe: %v", a.inserts)
	}
	if hub.Subscribers("ch-a") != 0 {
		t.Fatalf("expected no subscribers left on ch-a")
	}
}

func TestHubSubscribeHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHub().Subscribe(ctx, "ch-a", Handlers{}); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

func TestEventJSONCarriesMetadata(t *testing.T) {
	msg := testMessage("msg-1", "ch-a")
	msg.Kind = types.MessageKindPoll
	msg.Metadata = types.PollMetadata{
		Question: "lunch?",
		Options:  []types.PollOption{{ID: "a", Label: "tacos"}},
	}
	data, err := json.Marshal(NewMessageEvent(MessageInserted, msg))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	poll, ok := decoded.Message.Metadata.(types.PollMetadata)
	if !ok || poll.Question != "lunch?" {
		t.Fatalf("metadata lost in transit: %#v", decoded.Message.Metadata)
	}
}

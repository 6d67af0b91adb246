package chat

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/adamavenir/huddle/internal/db"
	"github.com/adamavenir/huddle/internal/feed"
	"github.com/adamavenir/huddle/internal/session"
	"github.com/adamavenir/huddle/internal/types"
	tea "github.com/charmbracelet/bubbletea"
)

type notification struct {
	title string
	body  string
}

type chatFixture struct {
	model   *Model
	repo    *db.Repository
	channel types.Channel
	alice   types.Participant
	bob     types.Participant
	sent    []notification
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	ctx := context.Background()
	sqlDB, err := db.Open(filepath.Join(t.TempDir(), "huddle.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	f := &chatFixture{}
	f.channel, err = db.CreateChannel(ctx, sqlDB, "general", types.ChannelKindGroup, nil)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if f.alice, err = db.UpsertParticipant(ctx, sqlDB, "alice", "alice@example.com"); err != nil {
		t.Fatalf("upsert alice: %v", err)
	}
	if f.bob, err = db.UpsertParticipant(ctx, sqlDB, "bob", "bob@example.com"); err != nil {
		t.Fatalf("upsert bob: %v", err)
	}

	hub := feed.NewHub()
	f.repo = db.NewRepository(sqlDB, hub, nil)
	changes := NewChanges()
	mgr := session.NewManager(session.Deps{
		Messages:  f.repo,
		Reactions: f.repo,
		Directory: f.repo,
		Feed:      hub,
	}, session.Options{Self: f.alice, Observer: changes.Observe})
	t.Cleanup(mgr.Close)
	if _, err := mgr.SelectChannel(ctx, f.channel.ID); err != nil {
		t.Fatalf("select: %v", err)
	}

	f.model, err = NewModel(ctx, Options{
		Manager:     mgr,
		Changes:     changes,
		ChannelName: "general",
		Notify: func(title, body string) error {
			f.sent = append(f.sent, notification{title, body})
			return nil
		},
	})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	t.Cleanup(f.model.Close)
	f.model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return f
}

func (f *chatFixture) typeText(text string) {
	f.model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// press sends a key and runs any command it returns once, feeding the
// result back like the bubbletea loop would.
func (f *chatFixture) press(t *testing.T, key tea.KeyType) {
	t.Helper()
	_, cmd := f.model.Update(tea.KeyMsg{Type: key})
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		f.model.Update(msg)
	}
}

func TestEnterSendsMessage(t *testing.T) {
	f := newChatFixture(t)
	f.typeText("hello there")
	f.press(t, tea.KeyEnter)

	msgs := f.model.mgr.Current().Messages()
	if len(msgs) != 1 || msgs[0].Content != "hello there" || msgs[0].SenderID != f.alice.ID {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if f.model.input.Value() != "" {
		t.Fatalf("composer not cleared: %q", f.model.input.Value())
	}
	if f.model.statusErr {
		t.Fatalf("unexpected error status: %s", f.model.status)
	}
}

func TestTabCompletesMention(t *testing.T) {
	f := newChatFixture(t)
	f.typeText("hi @bo")
	state := f.model.mgr.Current().MentionState()
	if state == nil || len(state.Suggestions) != 1 || state.Suggestions[0].UserID != f.bob.ID {
		t.Fatalf("unexpected mention state: %+v", state)
	}

	f.press(t, tea.KeyTab)
	if got := f.model.input.Value(); got != "hi @bob " {
		t.Fatalf("composer = %q", got)
	}
	if f.model.mgr.Current().MentionState() != nil {
		t.Fatalf("mention state should clear after commit")
	}
}

func TestEscapeClosesSuggestionsWithoutSending(t *testing.T) {
	f := newChatFixture(t)
	f.typeText("@b")
	f.press(t, tea.KeyEsc)
	if f.model.mgr.Current().MentionState() != nil {
		t.Fatalf("escape did not clear the trigger")
	}
	if f.model.input.Value() != "@b" {
		t.Fatalf("escape changed the composer: %q", f.model.input.Value())
	}
	if len(f.model.mgr.Current().Messages()) != 0 {
		t.Fatalf("escape sent a message")
	}
}

func TestMentionOfSelfNotifies(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	if _, err := f.repo.InsertMessage(ctx, f.channel.ID, types.Draft{SenderID: f.bob.ID, Content: "@alice ready?"}); err != nil {
		t.Fatalf("bob posts: %v", err)
	}
	if _, err := f.repo.InsertMessage(ctx, f.channel.ID, types.Draft{SenderID: f.bob.ID, Content: "no mention here"}); err != nil {
		t.Fatalf("bob posts: %v", err)
	}
	f.model.Update(changeMsg{kind: session.ChangeMessages})
	f.model.Update(changeMsg{kind: session.ChangeMessages})

	if len(f.sent) != 1 {
		t.Fatalf("expected one notification, got %+v", f.sent)
	}
	if f.sent[0].title != "bob in #general" || f.sent[0].body != "@alice ready?" {
		t.Fatalf("unexpected notification: %+v", f.sent[0])
	}
}

func TestReactCommandTogglesReaction(t *testing.T) {
	f := newChatFixture(t)
	f.typeText("ship it")
	f.press(t, tea.KeyEnter)
	msg := f.model.mgr.Current().Messages()[0]

	f.typeText("/react " + msg.ID + " 🚀")
	f.press(t, tea.KeyEnter)
	groups := f.model.mgr.Current().ReactionsFor(msg.ID)
	if len(groups) != 1 || groups[0].Emoji != "🚀" || !groups[0].SelfReacted {
		t.Fatalf("unexpected groups: %+v", groups)
	}

	f.typeText("/react " + msg.ID + " 🚀")
	f.press(t, tea.KeyEnter)
	if groups := f.model.mgr.Current().ReactionsFor(msg.ID); len(groups) != 0 {
		t.Fatalf("second toggle should remove the reaction: %+v", groups)
	}

	f.typeText("/rm " + msg.ID)
	f.press(t, tea.KeyEnter)
	if n := len(f.model.mgr.Current().Messages()); n != 0 {
		t.Fatalf("expected message removed, %d left", n)
	}
}

func TestUnknownCommandSetsStatus(t *testing.T) {
	f := newChatFixture(t)
	f.typeText("/dance")
	f.press(t, tea.KeyEnter)
	if f.model.status == "" {
		t.Fatalf("expected a status for an unknown command")
	}
}

func TestChangesCloseReleasesWait(t *testing.T) {
	c := NewChanges()
	c.Observe("ch", session.ChangeTyping)
	if msg := c.wait()(); msg != (changeMsg{kind: session.ChangeTyping}) {
		t.Fatalf("unexpected msg: %#v", msg)
	}
	c.Close()
	c.Close()
	if msg := c.wait()(); msg != nil {
		t.Fatalf("expected nil after close, got %#v", msg)
	}
}

package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/adamavenir/huddle/internal/types"
)

func TestListMessagesPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	ch := createTestChannel(t, db, "general")
	other := createTestChannel(t, db, "random")

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, postText(t, db, ch.ID, "usr-a", fmt.Sprintf("m%d", i)).ID)
	}
	postText(t, db, other.ID, "usr-a", "elsewhere")

	first, err := ListMessages(ctx, db, ch.ID, types.PageRange{Offset: 0, Limit: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(first))
	}
	for i := 1; i < len(first); i++ {
		if !first[i].Before(first[i-1]) {
			t.Fatalf("page not in descending order: %v then %v", first[i-1].ID, first[i].ID)
		}
	}

	second, err := ListMessages(ctx, db, ch.ID, types.PageRange{Offset: 3, Limit: 3})
	if err != nil {
		t.Fatalf("list older: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("expected 2 older rows, got %d", len(second))
	}
	seen := map[string]bool{}
	for _, m := range append(first, second...) {
		if seen[m.ID] {
			t.Fatalf("duplicate across pages: %s", m.ID)
		}
		seen[m.ID] = true
		if m.ChannelID != ch.ID {
			t.Fatalf("row from another channel: %+v", m)
		}
	}
	if len(seen) != len(ids) {
		t.Fatalf("expected %d distinct rows, got %d", len(ids), len(seen))
	}
}

func TestSoftDeleteHidesMessage(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	ch := createTestChannel(t, db, "general")
	keep := postText(t, db, ch.ID, "usr-a", "keep")
	gone := postText(t, db, ch.ID, "usr-a", "gone")

	deleted, err := SoftDeleteMessage(ctx, db, gone.ID)
	if err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if !deleted.Deleted() {
		t.Fatalf("expected tombstone on returned row")
	}
	again, err := SoftDeleteMessage(ctx, db, gone.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if !again.DeletedAt.Equal(*deleted.DeletedAt) {
		t.Fatalf("second delete moved the tombstone")
	}

	rows, err := ListMessages(ctx, db, ch.ID, types.PageRange{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != keep.ID {
		t.Fatalf("expected only the live message, got %+v", rows)
	}

	if _, err := SoftDeleteMessage(ctx, db, "msg-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := UpdateMessageContent(ctx, db, gone.ID, "edited"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("editing a deleted message should fail with ErrNotFound, got %v", err)
	}
}

func TestInsertMessageValidatesMetadata(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	ch := createTestChannel(t, db, "general")

	_, err := InsertMessage(ctx, db, ch.ID, types.Draft{
		SenderID: "usr-a",
		Kind:     types.MessageKindImage,
		Metadata: types.PollMetadata{Question: "?"},
	})
	if !errors.Is(err, types.ErrMetadataKind) {
		t.Fatalf("expected ErrMetadataKind, got %v", err)
	}
	if _, err := InsertMessage(ctx, db, ch.ID, types.Draft{SenderID: "usr-a", Content: "  "}); err == nil {
		t.Fatalf("expected error for empty text message")
	}
	if _, err := InsertMessage(ctx, db, "ch-missing", types.Draft{SenderID: "usr-a", Content: "hi"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown channel, got %v", err)
	}

	img, err := InsertMessage(ctx, db, ch.ID, types.Draft{
		SenderID: "usr-a",
		Kind:     types.MessageKindImage,
		Metadata: types.ImageMetadata{Attachments: []types.Attachment{{Name: "cat.png", URL: "https://example.com/cat.png"}}},
	})
	if err != nil {
		t.Fatalf("insert image: %v", err)
	}
	loaded, err := GetMessage(ctx, db, img.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	meta, ok := loaded.Metadata.(types.ImageMetadata)
	if !ok || len(meta.Attachments) != 1 || meta.Attachments[0].Name != "cat.png" {
		t.Fatalf("metadata not round-tripped: %#v", loaded.Metadata)
	}
}

func TestVotePoll(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	ch := createTestChannel(t, db, "general")
	poll, err := InsertMessage(ctx, db, ch.ID, types.Draft{
		SenderID: "usr-a",
		Content:  "lunch?",
		Kind:     types.MessageKindPoll,
		Metadata: types.PollMetadata{
			Question: "lunch?",
			Options:  []types.PollOption{{ID: "1", Label: "tacos"}, {ID: "2", Label: "ramen"}},
		},
	})
	if err != nil {
		t.Fatalf("insert poll: %v", err)
	}

	if _, err := VotePoll(ctx, db, poll.ID, "usr-b", "1"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	updated, err := VotePoll(ctx, db, poll.ID, "usr-b", "2")
	if err != nil {
		t.Fatalf("revote: %v", err)
	}
	meta := updated.Metadata.(types.PollMetadata)
	if len(meta.Options[0].Voters) != 0 || len(meta.Options[1].Voters) != 1 {
		t.Fatalf("single-choice poll kept both votes: %+v", meta.Options)
	}

	text := postText(t, db, ch.ID, "usr-a", "not a poll")
	if _, err := VotePoll(ctx, db, text.ID, "usr-b", "1"); err == nil {
		t.Fatalf("expected error voting on a text message")
	}
}

func TestGetMessageByPrefix(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	ch := createTestChannel(t, db, "general")
	msg := postText(t, db, ch.ID, "usr-a", "hello")

	for _, ref := range []string{msg.ID, msg.ID[4:], "#" + msg.ID[4:8]} {
		got, err := GetMessageByPrefix(ctx, db, ref)
		if err != nil {
			t.Fatalf("resolve %q: %v", ref, err)
		}
		if got.ID != msg.ID {
			t.Fatalf("resolve %q = %s", ref, got.ID)
		}
	}
	if _, err := GetMessageByPrefix(ctx, db, "zzzzzzzzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChannelsAndParticipants(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	section := "eng"
	ch, err := CreateChannel(ctx, db, "General", types.ChannelKindGroup, strPtr(section))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := CreateChannel(ctx, db, "General", types.ChannelKindGroup, nil); err == nil {
		t.Fatalf("expected duplicate name error")
	}
	got, err := ResolveChannel(ctx, db, "#general")
	if err != nil || got.ID != ch.ID || got.SectionID == nil || *got.SectionID != section {
		t.Fatalf("resolve by name: %+v, %v", got, err)
	}

	first, err := UpsertParticipant(ctx, db, "marco", "")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	again, err := UpsertParticipant(ctx, db, "marco", "marco@example.com")
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if again.ID != first.ID || again.Email != "marco@example.com" {
		t.Fatalf("upsert should update in place: %+v", again)
	}
	if _, err := UpsertParticipant(ctx, db, "maria", "maria@example.com"); err != nil {
		t.Fatalf("upsert maria: %v", err)
	}
	list, err := ListParticipants(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "marco" || list[1].Name != "maria" {
		t.Fatalf("unexpected directory %+v", list)
	}
}

package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/adamavenir/huddle/internal/types"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func createTestChannel(t *testing.T, db *sql.DB, name string) types.Channel {
	t.Helper()
	ch, err := CreateChannel(context.Background(), db, name, types.ChannelKindGroup, nil)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	return ch
}

func postText(t *testing.T, db *sql.DB, channelID, sender, content string) types.Message {
	t.Helper()
	msg, err := InsertMessage(context.Background(), db, channelID, types.Draft{SenderID: sender, Content: content})
	if err != nil {
		t.Fatalf("insert message: %v", err)
	}
	return msg
}

func strPtr(value string) *string {
	return &value
}

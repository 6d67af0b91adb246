package db

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

const schemaSQL = `
-- Conversation scopes
CREATE TABLE IF NOT EXISTS huddle_channels (
  guid TEXT PRIMARY KEY,               -- e.g., "ch-a1b2c3d4"
  name TEXT NOT NULL UNIQUE,
  kind TEXT NOT NULL DEFAULT 'group',  -- 'group' or 'direct'
  section_id TEXT,                     -- owning section, if any
  created_at INTEGER NOT NULL          -- unix ms
);

-- Directory
CREATE TABLE IF NOT EXISTS huddle_participants (
  guid TEXT PRIMARY KEY,               -- e.g., "usr-x9y8z7w6"
  name TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL DEFAULT '',
  joined_at INTEGER NOT NULL           -- unix ms
);

-- Channel messages
CREATE TABLE IF NOT EXISTS huddle_messages (
  guid TEXT PRIMARY KEY,               -- e.g., "msg-a1b2c3d4"
  channel_id TEXT NOT NULL,
  sender_id TEXT NOT NULL,
  content TEXT NOT NULL DEFAULT '',
  kind TEXT NOT NULL DEFAULT 'text',   -- text, image, file, poll, system
  metadata TEXT,                       -- JSON payload for non-text kinds
  created_at INTEGER NOT NULL,         -- unix ms
  deleted_at INTEGER,                  -- unix ms tombstone
  FOREIGN KEY (channel_id) REFERENCES huddle_channels(guid)
);

CREATE INDEX IF NOT EXISTS idx_huddle_messages_channel_created ON huddle_messages(channel_id, created_at);

-- One row per (message, user, emoji)
CREATE TABLE IF NOT EXISTS huddle_reactions (
  guid TEXT PRIMARY KEY,               -- e.g., "rxn-a1b2c3d4"
  message_guid TEXT NOT NULL,
  user_id TEXT NOT NULL,
  emoji TEXT NOT NULL,
  created_at INTEGER NOT NULL,         -- unix ms
  UNIQUE (message_guid, user_id, emoji),
  FOREIGN KEY (message_guid) REFERENCES huddle_messages(guid)
);

CREATE INDEX IF NOT EXISTS idx_huddle_reactions_message ON huddle_reactions(message_guid);
`

// InitSchema creates the tables and records the schema version.
func InitSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(schemaSQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the version recorded in the database.
func SchemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

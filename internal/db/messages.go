package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adamavenir/huddle/internal/core"
	"github.com/adamavenir/huddle/internal/types"
)

// messageColumns is the explicit column list for SELECT queries.
const messageColumns = `guid, channel_id, sender_id, content, kind, metadata, created_at, deleted_at`

// ListMessages returns non-deleted messages of a channel, newest first,
// windowed by r.
func ListMessages(ctx context.Context, db *sql.DB, channelID string, r types.PageRange) ([]types.Message, error) {
	if r.Limit <= 0 {
		return nil, fmt.Errorf("page limit must be positive")
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM huddle_messages
		WHERE channel_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC, guid DESC
		LIMIT ? OFFSET ?
	`, channelID, r.Limit, r.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// InsertMessage stores draft in channelID and returns the stored row.
func InsertMessage(ctx context.Context, db *sql.DB, channelID string, draft types.Draft) (types.Message, error) {
	kind := draft.Kind
	if kind == "" {
		kind = types.MessageKindText
	}
	if err := types.ValidateMetadata(kind, draft.Metadata); err != nil {
		return types.Message{}, err
	}
	if kind == types.MessageKindText && strings.TrimSpace(draft.Content) == "" {
		return types.Message{}, fmt.Errorf("message content is required")
	}
	if strings.TrimSpace(draft.SenderID) == "" {
		return types.Message{}, fmt.Errorf("message sender is required")
	}
	if _, err := GetChannel(ctx, db, channelID); err != nil {
		return types.Message{}, fmt.Errorf("channel %s: %w", channelID, err)
	}

	meta, err := types.EncodeMetadata(draft.Metadata)
	if err != nil {
		return types.Message{}, fmt.Errorf("encode metadata: %w", err)
	}
	guid, err := generateUniqueGUIDForTable(ctx, db, "huddle_messages", core.PrefixMessage)
	if err != nil {
		return types.Message{}, err
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	_, err = db.ExecContext(ctx, `
		INSERT INTO huddle_messages (guid, channel_id, sender_id, content, kind, metadata, created_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
	`, guid, channelID, draft.SenderID, draft.Content, string(kind), nullableJSON(meta), now.UnixMilli())
	if err != nil {
		return types.Message{}, err
	}

	return types.Message{
		ID:        guid,
		ChannelID: channelID,
		SenderID:  draft.SenderID,
		Content:   draft.Content,
		Kind:      kind,
		Metadata:  draft.Metadata,
		CreatedAt: now,
	}, nil
}

// GetMessage returns a message by guid, tombstoned or not.
func GetMessage(ctx context.Context, db *sql.DB, id string) (types.Message, error) {
	row := db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM huddle_messages WHERE guid = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Message{}, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return msg, err
}

// GetMessageByPrefix resolves a full guid or an unambiguous short id.
func GetMessageByPrefix(ctx context.Context, db *sql.DB, prefix string) (types.Message, error) {
	normalized := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(prefix), "#"), "msg-")
	if normalized == "" {
		return types.Message{}, fmt.Errorf("message id is required")
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM huddle_messages
		WHERE guid LIKE ?
		ORDER BY created_at DESC
		LIMIT 2
	`, fmt.Sprintf("msg-%s%%", strings.ToLower(normalized)))
	if err != nil {
		return types.Message{}, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return types.Message{}, err
	}
	switch len(messages) {
	case 0:
		return types.Message{}, fmt.Errorf("message %s: %w", prefix, ErrNotFound)
	case 1:
		return messages[0], nil
	}
	return types.Message{}, fmt.Errorf("message id %s is ambiguous", prefix)
}

// SoftDeleteMessage sets the tombstone of a message. Deleting an already
// deleted message keeps the first tombstone.
func SoftDeleteMessage(ctx context.Context, db *sql.DB, id string) (types.Message, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if _, err := db.ExecContext(ctx, `
		UPDATE huddle_messages SET deleted_at = ? WHERE guid = ? AND deleted_at IS NULL
	`, now.UnixMilli(), id); err != nil {
		return types.Message{}, err
	}
	return GetMessage(ctx, db, id)
}

// UpdateMessageContent replaces the content of a live message.
func UpdateMessageContent(ctx context.Context, db *sql.DB, id, content string) (types.Message, error) {
	if strings.TrimSpace(content) == "" {
		return types.Message{}, fmt.Errorf("message content is required")
	}
	result, err := db.ExecContext(ctx, `
		UPDATE huddle_messages SET content = ? WHERE guid = ? AND deleted_at IS NULL
	`, content, id)
	if err != nil {
		return types.Message{}, err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return types.Message{}, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return GetMessage(ctx, db, id)
}

// VotePoll records userID's vote on a poll message.
func VotePoll(ctx context.Context, db *sql.DB, id, userID, optionID string) (types.Message, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return types.Message{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM huddle_messages WHERE guid = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Message{}, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.Message{}, err
	}
	if msg.Deleted() {
		return types.Message{}, fmt.Errorf("message %s is deleted", id)
	}
	poll, ok := msg.Metadata.(types.PollMetadata)
	if !ok {
		return types.Message{}, fmt.Errorf("message %s is not a poll", id)
	}
	updated, err := poll.Vote(userID, optionID)
	if err != nil {
		return types.Message{}, err
	}
	data, err := types.EncodeMetadata(updated)
	if err != nil {
		return types.Message{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE huddle_messages SET metadata = ? WHERE guid = ?`, string(data), id); err != nil {
		return types.Message{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Message{}, err
	}
	msg.Metadata = updated
	return msg, nil
}

func nullableJSON(data []byte) any {
	if data == nil {
		return nil
	}
	return string(data)
}

func scanMessages(rows *sql.Rows) ([]types.Message, error) {
	var messages []types.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func scanMessage(scanner interface{ Scan(dest ...any) error }) (types.Message, error) {
	var (
		msg       types.Message
		kind      string
		metadata  sql.NullString
		createdAt int64
		deletedAt sql.NullInt64
	)
	if err := scanner.Scan(&msg.ID, &msg.ChannelID, &msg.SenderID, &msg.Content, &kind, &metadata, &createdAt, &deletedAt); err != nil {
		return types.Message{}, err
	}
	msg.Kind = types.MessageKind(kind)
	if metadata.Valid {
		meta, err := types.DecodeMetadata(msg.Kind, []byte(metadata.String))
		if err != nil {
			return types.Message{}, fmt.Errorf("message %s: %w", msg.ID, err)
		}
		msg.Metadata = meta
	} else if msg.Kind != types.MessageKindText {
		return types.Message{}, fmt.Errorf("message %s: %w", msg.ID, types.ErrMetadataKind)
	}
	msg.CreatedAt = time.UnixMilli(createdAt).UTC()
	if deletedAt.Valid {
		ts := time.UnixMilli(deletedAt.Int64).UTC()
		msg.DeletedAt = &ts
	}
	return msg, nil
}

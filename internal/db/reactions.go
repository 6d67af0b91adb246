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

const reactionColumns = `guid, message_guid, user_id, emoji, created_at`

// ListReactions loads reactions for multiple messages in creation order.
func ListReactions(ctx context.Context, db *sql.DB, messageIDs []string) ([]types.Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(messageIDs))
	args := make([]any, len(messageIDs))
	for i, guid := range messageIDs {
		placeholders[i] = "?"
		args[i] = guid
	}

	query := `
		SELECT ` + reactionColumns + `
		FROM huddle_reactions
		WHERE message_guid IN (` + strings.Join(placeholders, ",") + `)
		ORDER BY created_at ASC, guid ASC
	`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []types.Reaction
	for rows.Next() {
		r, err := scanReaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// InsertReaction stores a reaction and returns the stored row. When the
// (message, user, emoji) triple already exists the existing row is returned
// and created reports false.
func InsertReaction(ctx context.Context, db *sql.DB, r types.Reaction) (stored types.Reaction, created bool, err error) {
	if r.MessageID == "" || r.UserID == "" || r.Emoji == "" {
		return types.Reaction{}, false, fmt.Errorf("reaction needs a message, a user and an emoji")
	}
	if _, err := GetMessage(ctx, db, r.MessageID); err != nil {
		return types.Reaction{}, false, err
	}
	guid, err := generateUniqueGUIDForTable(ctx, db, "huddle_reactions", core.PrefixReaction)
	if err != nil {
		return types.Reaction{}, false, err
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	result, err := db.ExecContext(ctx, `
		INSERT INTO huddle_reactions (guid, message_guid, user_id, emoji, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(message_guid, user_id, emoji) DO NOTHING
	`, guid, r.MessageID, r.UserID, r.Emoji, now.UnixMilli())
	if err != nil {
		return types.Reaction{}, false, err
	}
	n, _ := result.RowsAffected()

	row := db.QueryRowContext(ctx, `
		SELECT `+reactionColumns+` FROM huddle_reactions
		WHERE message_guid = ? AND user_id = ? AND emoji = ?
	`, r.MessageID, r.UserID, r.Emoji)
	stored, err = scanReaction(row)
	if err != nil {
		return types.Reaction{}, false, err
	}
	return stored, n > 0, nil
}

// GetReaction returns a reaction by guid.
func GetReaction(ctx context.Context, db *sql.DB, id string) (types.Reaction, error) {
	row := db.QueryRowContext(ctx, `SELECT `+reactionColumns+` FROM huddle_reactions WHERE guid = ?`, id)
	r, err := scanReaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Reaction{}, fmt.Errorf("reaction %s: %w", id, ErrNotFound)
	}
	return r, err
}

// FindReaction returns the reaction for an exact triple.
func FindReaction(ctx context.Context, db *sql.DB, messageID, userID, emoji string) (types.Reaction, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+reactionColumns+` FROM huddle_reactions
		WHERE message_guid = ? AND user_id = ? AND emoji = ?
	`, messageID, userID, emoji)
	r, err := scanReaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Reaction{}, ErrNotFound
	}
	return r, err
}

// DeleteReaction removes a reaction and returns the removed row.
func DeleteReaction(ctx context.Context, db *sql.DB, id string) (types.Reaction, error) {
	r, err := GetReaction(ctx, db, id)
	if err != nil {
		return types.Reaction{}, err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM huddle_reactions WHERE guid = ?`, id); err != nil {
		return types.Reaction{}, err
	}
	return r, nil
}

func scanReaction(scanner interface{ Scan(dest ...any) error }) (types.Reaction, error) {
	var (
		r         types.Reaction
		createdAt int64
	)
	if err := scanner.Scan(&r.ID, &r.MessageID, &r.UserID, &r.Emoji, &createdAt); err != nil {
		return types.Reaction{}, err
	}
	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	return r, nil
}

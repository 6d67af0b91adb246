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

const participantColumns = `guid, name, email, joined_at`

// UpsertParticipant registers name in the directory, updating the email of an
// existing entry when one is given.
func UpsertParticipant(ctx context.Context, db *sql.DB, name, email string) (types.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Participant{}, fmt.Errorf("participant name is required")
	}
	existing, err := GetParticipantByName(ctx, db, name)
	if err == nil {
		if email != "" && email != existing.Email {
			if _, err := db.ExecContext(ctx, `UPDATE huddle_participants SET email = ? WHERE guid = ?`, email, existing.ID); err != nil {
				return types.Participant{}, err
			}
			existing.Email = email
		}
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return types.Participant{}, err
	}

	guid, err := generateUniqueGUIDForTable(ctx, db, "huddle_participants", core.PrefixParticipant)
	if err != nil {
		return types.Participant{}, err
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if _, err := db.ExecContext(ctx, `
		INSERT INTO huddle_participants (guid, name, email, joined_at) VALUES (?, ?, ?, ?)
	`, guid, name, email, now.UnixMilli()); err != nil {
		return types.Participant{}, err
	}
	return types.Participant{ID: guid, Name: name, Email: email, JoinedAt: now}, nil
}

// GetParticipantByName looks a participant up by exact name.
func GetParticipantByName(ctx context.Context, db *sql.DB, name string) (types.Participant, error) {
	row := db.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM huddle_participants WHERE name = ?`, name)
	return scanParticipant(row)
}

// ListParticipants returns the directory in join order.
func ListParticipants(ctx context.Context, db *sql.DB) ([]types.Participant, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+participantColumns+` FROM huddle_participants ORDER BY joined_at ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanParticipant(scanner interface{ Scan(dest ...any) error }) (types.Participant, error) {
	var (
		p        types.Participant
		joinedAt int64
	)
	if err := scanner.Scan(&p.ID, &p.Name, &p.Email, &joinedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Participant{}, ErrNotFound
		}
		return types.Participant{}, err
	}
	p.JoinedAt = time.UnixMilli(joinedAt).UTC()
	return p, nil
}

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

const channelColumns = `guid, name, kind, section_id, created_at`

// CreateChannel inserts a channel. Names are unique.
func CreateChannel(ctx context.Context, db *sql.DB, name string, kind types.ChannelKind, sectionID *string) (types.Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Channel{}, fmt.Errorf("channel name is required")
	}
	if kind == "" {
		kind = types.ChannelKindGroup
	}
	if kind != types.ChannelKindGroup && kind != types.ChannelKindDirect {
		return types.Channel{}, fmt.Errorf("unknown channel kind: %q", kind)
	}

	guid, err := generateUniqueGUIDForTable(ctx, db, "huddle_channels", core.PrefixChannel)
	if err != nil {
		return types.Channel{}, err
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	_, err = db.ExecContext(ctx, `
		INSERT INTO huddle_channels (guid, name, kind, section_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, guid, name, string(kind), nullableValue(sectionID), now.UnixMilli())
	if err != nil {
		if isConstraintError(err) {
			return types.Channel{}, fmt.Errorf("channel %q already exists", name)
		}
		return types.Channel{}, err
	}
	return types.Channel{ID: guid, Name: name, Kind: kind, SectionID: sectionID, CreatedAt: now}, nil
}

// GetChannel returns a channel by guid.
func GetChannel(ctx context.Context, db *sql.DB, id string) (types.Channel, error) {
	row := db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM huddle_channels WHERE guid = ?`, id)
	return scanChannel(row)
}

// ResolveChannel finds a channel by guid or name (case-insensitive).
func ResolveChannel(ctx context.Context, db *sql.DB, ref string) (types.Channel, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	row := db.QueryRowContext(ctx, `
		SELECT `+channelColumns+` FROM huddle_channels
		WHERE guid = ? OR lower(name) = lower(?)
		LIMIT 1
	`, ref, ref)
	ch, err := scanChannel(row)
	if errors.Is(err, ErrNotFound) {
		return types.Channel{}, fmt.Errorf("channel %q: %w", ref, ErrNotFound)
	}
	return ch, err
}

// ListChannels returns all channels by name.
func ListChannels(ctx context.Context, db *sql.DB) ([]types.Channel, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+channelColumns+` FROM huddle_channels ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []types.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func scanChannel(scanner interface{ Scan(dest ...any) error }) (types.Channel, error) {
	var (
		ch        types.Channel
		kind      string
		sectionID sql.NullString
		createdAt int64
	)
	if err := scanner.Scan(&ch.ID, &ch.Name, &kind, &sectionID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Channel{}, ErrNotFound
		}
		return types.Channel{}, err
	}
	ch.Kind = types.ChannelKind(kind)
	if sectionID.Valid {
		value := sectionID.String
		ch.SectionID = &value
	}
	ch.CreatedAt = time.UnixMilli(createdAt).UTC()
	return ch, nil
}

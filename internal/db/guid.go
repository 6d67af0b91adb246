package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adamavenir/huddle/internal/core"
)

func generateUniqueGUIDForTable(ctx context.Context, db *sql.DB, table, prefix string) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		guid, err := core.GenerateGUID(prefix)
		if err != nil {
			return "", err
		}
		row := db.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE guid = ?", table), guid)
		var exists int
		err = row.Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return guid, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("failed to generate unique %s GUID", prefix)
}

func nullableValue[T any](value *T) any {
	if value == nil {
		return nil
	}
	return *value
}

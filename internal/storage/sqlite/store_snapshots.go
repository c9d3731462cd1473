package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alignmentgames/secretagi/internal/storage"
)

// PutSnapshot stores a full-state snapshot. The per-turn snapshot (empty
// label) is unique per (game, turn); named checkpoints may share the turn.
func (s *Store) PutSnapshot(ctx context.Context, record storage.SnapshotRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.q == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("snapshot id is required")
	}
	if strings.TrimSpace(record.GameID) == "" {
		return fmt.Errorf("game id is required")
	}
	if len(record.StateJSON) == 0 {
		return fmt.Errorf("state blob is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.Checksum == "" {
		digest, err := storage.SnapshotChecksum(record.StateJSON)
		if err != nil {
			return err
		}
		record.Checksum = digest
	}

	_, err := s.q.ExecContext(ctx, `
INSERT INTO game_states (id, game_id, turn_number, label, state_blob, created_at, checksum)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.GameID,
		record.TurnNumber,
		record.Label,
		string(record.StateJSON),
		toMillis(record.CreatedAt),
		record.Checksum,
	)
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves the per-turn snapshot for a game and turn.
func (s *Store) GetSnapshot(ctx context.Context, gameID string, turnNumber int) (storage.SnapshotRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SnapshotRecord{}, err
	}
	if s == nil || s.q == nil {
		return storage.SnapshotRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(gameID) == "" {
		return storage.SnapshotRecord{}, fmt.Errorf("game id is required")
	}

	row := s.q.QueryRowContext(ctx, `
SELECT id, game_id, turn_number, label, state_blob, created_at, checksum
FROM game_states WHERE game_id = ? AND turn_number = ? AND label = ''`,
		gameID, turnNumber)
	return scanSnapshot(row)
}

// GetLatestSnapshot retrieves the newest per-turn snapshot for a game.
func (s *Store) GetLatestSnapshot(ctx context.Context, gameID string) (storage.SnapshotRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SnapshotRecord{}, err
	}
	if s == nil || s.q == nil {
		return storage.SnapshotRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(gameID) == "" {
		return storage.SnapshotRecord{}, fmt.Errorf("game id is required")
	}

	row := s.q.QueryRowContext(ctx, `
SELECT id, game_id, turn_number, label, state_blob, created_at, checksum
FROM game_states WHERE game_id = ? AND label = ''
ORDER BY turn_number DESC LIMIT 1`, gameID)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (storage.SnapshotRecord, error) {
	var record storage.SnapshotRecord
	var blob string
	var createdAt int64
	if err := row.Scan(&record.ID, &record.GameID, &record.TurnNumber, &record.Label, &blob, &createdAt, &record.Checksum); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SnapshotRecord{}, storage.ErrNotFound
		}
		return storage.SnapshotRecord{}, fmt.Errorf("get snapshot: %w", err)
	}
	record.StateJSON = json.RawMessage(blob)
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

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

// CreateGame persists a new game row.
func (s *Store) CreateGame(ctx context.Context, record storage.GameRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.q == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("game id is required")
	}
	if record.Status == "" {
		record.Status = storage.GameStatusActive
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	if len(record.ConfigJSON) == 0 {
		record.ConfigJSON = json.RawMessage("{}")
	}
	if len(record.MetadataJSON) == 0 {
		record.MetadataJSON = json.RawMessage("{}")
	}

	_, err := s.q.ExecContext(ctx, `
INSERT INTO games (id, created_at, updated_at, status, config, current_turn, final_outcome, metadata)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
		string(record.Status),
		string(record.ConfigJSON),
		record.CurrentTurn,
		toNullString(string(record.FinalOutcomeJSON)),
		string(record.MetadataJSON),
	)
	if err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	return nil
}

// GetGame retrieves a game row by id.
func (s *Store) GetGame(ctx context.Context, gameID string) (storage.GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.GameRecord{}, err
	}
	if s == nil || s.q == nil {
		return storage.GameRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(gameID) == "" {
		return storage.GameRecord{}, fmt.Errorf("game id is required")
	}

	row := s.q.QueryRowContext(ctx, `
SELECT id, created_at, updated_at, status, config, current_turn, final_outcome, metadata
FROM games WHERE id = ?`, gameID)

	var record storage.GameRecord
	var createdAt, updatedAt int64
	var status, config, metadata string
	var finalOutcome sql.NullString
	if err := row.Scan(&record.ID, &createdAt, &updatedAt, &status, &config, &record.CurrentTurn, &finalOutcome, &metadata); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.GameRecord{}, storage.ErrNotFound
		}
		return storage.GameRecord{}, fmt.Errorf("get game: %w", err)
	}

	parsedStatus, err := storage.ParseGameStatus(status)
	if err != nil {
		return storage.GameRecord{}, fmt.Errorf("get game: %w", err)
	}

	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	record.Status = parsedStatus
	record.ConfigJSON = json.RawMessage(config)
	record.MetadataJSON = json.RawMessage(metadata)
	if finalOutcome.Valid {
		record.FinalOutcomeJSON = json.RawMessage(finalOutcome.String)
	}
	return record, nil
}

// UpdateGameProgress advances a game's status and turn pointer.
func (s *Store) UpdateGameProgress(ctx context.Context, gameID string, status storage.GameStatus, currentTurn int, finalOutcome json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.q == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(gameID) == "" {
		return fmt.Errorf("game id is required")
	}

	result, err := s.q.ExecContext(ctx, `
UPDATE games SET status = ?, current_turn = ?, final_outcome = ?, updated_at = ?
WHERE id = ?`,
		string(status),
		currentTurn,
		toNullString(string(finalOutcome)),
		toMillis(time.Now().UTC()),
		gameID,
	)
	if err != nil {
		return fmt.Errorf("update game progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update game progress: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListGameIDsByStatus returns game ids with the given status, oldest first.
func (s *Store) ListGameIDsByStatus(ctx context.Context, status storage.GameStatus) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.q == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.q.QueryContext(ctx, `
SELECT id FROM games WHERE status = ? ORDER BY created_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list games by status: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read game ids: %w", err)
	}
	return ids, nil
}

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

const actionColumns = "id, game_id, turn_number, actor_id, kind, params, is_valid, error_message, processing_ms, created_at"

// InsertAction records an action attempt. A nil IsValid marks the attempt as
// in flight; recovery later reconciles attempts that never completed.
func (s *Store) InsertAction(ctx context.Context, record storage.ActionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.q == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("action id is required")
	}
	if strings.TrimSpace(record.GameID) == "" {
		return fmt.Errorf("game id is required")
	}
	if strings.TrimSpace(record.Kind) == "" {
		return fmt.Errorf("action kind is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	params := record.ParamsJSON
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}

	_, err := s.q.ExecContext(ctx, `
INSERT INTO actions (`+actionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.GameID,
		record.TurnNumber,
		record.ActorID,
		record.Kind,
		string(params),
		toNullBool(record.IsValid),
		toNullString(record.ErrorMessage),
		toNullInt64(record.ProcessingMs),
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// CompleteAction finalizes an in-flight action attempt with its result.
func (s *Store) CompleteAction(ctx context.Context, actionID string, isValid bool, errorMessage string, processingMs int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.q == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(actionID) == "" {
		return fmt.Errorf("action id is required")
	}

	result, err := s.q.ExecContext(ctx, `
UPDATE actions SET is_valid = ?, error_message = ?, processing_ms = ?
WHERE id = ?`,
		boolToInt(isValid),
		toNullString(errorMessage),
		processingMs,
		actionID,
	)
	if err != nil {
		return fmt.Errorf("complete action: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete action: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CountValidActions counts a game's accepted actions. The result equals the
// turn number of the newest consistent snapshot.
func (s *Store) CountValidActions(ctx context.Context, gameID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.q == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(gameID) == "" {
		return 0, fmt.Errorf("game id is required")
	}

	var count int
	row := s.q.QueryRowContext(ctx, `
SELECT COUNT(*) FROM actions WHERE game_id = ? AND is_valid = 1`, gameID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count valid actions: %w", err)
	}
	return count, nil
}

// CountInvalidActionsByActor counts an actor's rejected attempts in a game.
func (s *Store) CountInvalidActionsByActor(ctx context.Context, gameID, actorID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.q == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(gameID) == "" {
		return 0, fmt.Errorf("game id is required")
	}
	if strings.TrimSpace(actorID) == "" {
		return 0, fmt.Errorf("actor id is required")
	}

	var count int
	row := s.q.QueryRowContext(ctx, `
SELECT COUNT(*) FROM actions WHERE game_id = ? AND actor_id = ? AND is_valid = 0`, gameID, actorID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count invalid actions: %w", err)
	}
	return count, nil
}

// ListPendingActions returns a game's in-flight attempts, oldest first.
func (s *Store) ListPendingActions(ctx context.Context, gameID string) ([]storage.ActionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.q == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(gameID) == "" {
		return nil, fmt.Errorf("game id is required")
	}

	rows, err := s.q.QueryContext(ctx, `
SELECT `+actionColumns+` FROM actions
WHERE game_id = ? AND is_valid IS NULL ORDER BY created_at`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list pending actions: %w", err)
	}
	defer rows.Close()
	return collectActions(rows)
}

// MarkPendingActionsFailed fails every in-flight attempt for a game and
// returns how many were reconciled.
func (s *Store) MarkPendingActionsFailed(ctx context.Context, gameID, message string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.q == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(gameID) == "" {
		return 0, fmt.Errorf("game id is required")
	}

	result, err := s.q.ExecContext(ctx, `
UPDATE actions SET is_valid = 0, error_message = ?
WHERE game_id = ? AND is_valid IS NULL`, message, gameID)
	if err != nil {
		return 0, fmt.Errorf("mark pending actions failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark pending actions failed: %w", err)
	}
	return int(affected), nil
}

// LatestAction returns a game's newest attempt.
func (s *Store) LatestAction(ctx context.Context, gameID string) (storage.ActionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ActionRecord{}, err
	}
	if s == nil || s.q == nil {
		return storage.ActionRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(gameID) == "" {
		return storage.ActionRecord{}, fmt.Errorf("game id is required")
	}

	rows, err := s.q.QueryContext(ctx, `
SELECT `+actionColumns+` FROM actions
WHERE game_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, gameID)
	if err != nil {
		return storage.ActionRecord{}, fmt.Errorf("latest action: %w", err)
	}
	defer rows.Close()

	records, err := collectActions(rows)
	if err != nil {
		return storage.ActionRecord{}, err
	}
	if len(records) == 0 {
		return storage.ActionRecord{}, storage.ErrNotFound
	}
	return records[0], nil
}

func collectActions(rows *sql.Rows) ([]storage.ActionRecord, error) {
	var records []storage.ActionRecord
	for rows.Next() {
		var record storage.ActionRecord
		var params string
		var isValid sql.NullBool
		var errorMessage sql.NullString
		var processingMs sql.NullInt64
		var createdAt int64
		if err := rows.Scan(
			&record.ID,
			&record.GameID,
			&record.TurnNumber,
			&record.ActorID,
			&record.Kind,
			&params,
			&isValid,
			&errorMessage,
			&processingMs,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		record.ParamsJSON = json.RawMessage(params)
		record.IsValid = fromNullBool(isValid)
		record.ErrorMessage = fromNullString(errorMessage)
		record.ProcessingMs = fromNullInt64(processingMs)
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read actions: %w", err)
	}
	return records, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alignmentgames/secretagi/internal/storage"
)

const eventColumns = "id, game_id, turn_number, type, actor_id, payload, created_at"

// AppendEvents stores a batch of emitted events in emission order.
func (s *Store) AppendEvents(ctx context.Context, records []storage.EventRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.q == nil {
		return fmt.Errorf("storage is not configured")
	}

	for _, record := range records {
		if strings.TrimSpace(record.ID) == "" {
			return fmt.Errorf("event id is required")
		}
		if strings.TrimSpace(record.GameID) == "" {
			return fmt.Errorf("game id is required")
		}
		if strings.TrimSpace(record.Type) == "" {
			return fmt.Errorf("event type is required")
		}
		createdAt := record.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		payload := record.PayloadJSON
		if len(payload) == 0 {
			payload = json.RawMessage("{}")
		}

		if _, err := s.q.ExecContext(ctx, `
INSERT INTO events (`+eventColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.ID,
			record.GameID,
			record.TurnNumber,
			record.Type,
			toNullString(record.ActorID),
			string(payload),
			toMillis(createdAt),
		); err != nil {
			return fmt.Errorf("append event %s: %w", record.Type, err)
		}
	}
	return nil
}

// ListEvents returns a game's events after sinceTurn, in global order.
func (s *Store) ListEvents(ctx context.Context, gameID string, sinceTurn int) ([]storage.EventRecord, error) {
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
SELECT `+eventColumns+` FROM events
WHERE game_id = ? AND turn_number > ?
ORDER BY turn_number, rowid`, gameID, sinceTurn)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListEventsByType returns a game's events of one type, in global order.
func (s *Store) ListEventsByType(ctx context.Context, gameID, eventType string) ([]storage.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.q == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(gameID) == "" {
		return nil, fmt.Errorf("game id is required")
	}
	if strings.TrimSpace(eventType) == "" {
		return nil, fmt.Errorf("event type is required")
	}

	rows, err := s.q.QueryContext(ctx, `
SELECT `+eventColumns+` FROM events
WHERE game_id = ? AND type = ?
ORDER BY turn_number, rowid`, gameID, eventType)
	if err != nil {
		return nil, fmt.Errorf("list events by type: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]storage.EventRecord, error) {
	var records []storage.EventRecord
	for rows.Next() {
		var record storage.EventRecord
		var actorID sql.NullString
		var payload string
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.GameID, &record.TurnNumber, &record.Type, &actorID, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		record.ActorID = fromNullString(actorID)
		record.PayloadJSON = json.RawMessage(payload)
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return records, nil
}

package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alignmentgames/secretagi/internal/storage"
)

// AppendChatMessages stores a batch of chat messages.
func (s *Store) AppendChatMessages(ctx context.Context, records []storage.ChatRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.q == nil {
		return fmt.Errorf("storage is not configured")
	}

	for _, record := range records {
		if strings.TrimSpace(record.ID) == "" {
			return fmt.Errorf("chat message id is required")
		}
		if strings.TrimSpace(record.GameID) == "" {
			return fmt.Errorf("game id is required")
		}
		if strings.TrimSpace(record.SpeakerID) == "" {
			return fmt.Errorf("speaker id is required")
		}
		createdAt := record.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		if _, err := s.q.ExecContext(ctx, `
INSERT INTO chat_messages (id, game_id, turn_number, speaker_id, message, phase, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.ID,
			record.GameID,
			record.TurnNumber,
			record.SpeakerID,
			record.Message,
			record.Phase,
			toMillis(createdAt),
		); err != nil {
			return fmt.Errorf("append chat message: %w", err)
		}
	}
	return nil
}

// ListChatMessages returns a game's chat after sinceTurn, in global order.
func (s *Store) ListChatMessages(ctx context.Context, gameID string, sinceTurn int) ([]storage.ChatRecord, error) {
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
SELECT id, game_id, turn_number, speaker_id, message, phase, created_at
FROM chat_messages
WHERE game_id = ? AND turn_number > ?
ORDER BY turn_number, rowid`, gameID, sinceTurn)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var records []storage.ChatRecord
	for rows.Next() {
		var record storage.ChatRecord
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.GameID, &record.TurnNumber, &record.SpeakerID, &record.Message, &record.Phase, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read chat messages: %w", err)
	}
	return records, nil
}

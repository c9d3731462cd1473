package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alignmentgames/secretagi/internal/storage"
)

// AppendAgentMetric stores one per-action agent measurement.
func (s *Store) AppendAgentMetric(ctx context.Context, record storage.MetricRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.q == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("metric id is required")
	}
	if strings.TrimSpace(record.GameID) == "" {
		return fmt.Errorf("game id is required")
	}
	if strings.TrimSpace(record.ActorID) == "" {
		return fmt.Errorf("actor id is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, `
INSERT INTO agent_metrics (id, game_id, actor_id, turn_number, tokens, response_ms, invalid_attempts, state_size, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.GameID,
		record.ActorID,
		record.TurnNumber,
		toNullInt64(record.Tokens),
		toNullInt64(record.ResponseMs),
		record.InvalidAttempts,
		toNullInt64(record.StateSize),
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append agent metric: %w", err)
	}
	return nil
}

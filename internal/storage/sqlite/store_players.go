package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alignmentgames/secretagi/internal/storage"
)

// PutPlayers stores the seat assignments for a game.
func (s *Store) PutPlayers(ctx context.Context, records []storage.PlayerRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.q == nil {
		return fmt.Errorf("storage is not configured")
	}

	for _, record := range records {
		if strings.TrimSpace(record.ID) == "" {
			return fmt.Errorf("player row id is required")
		}
		if strings.TrimSpace(record.GameID) == "" {
			return fmt.Errorf("game id is required")
		}
		if strings.TrimSpace(record.SeatID) == "" {
			return fmt.Errorf("seat id is required")
		}
		agentConfig := record.AgentConfigJSON
		if len(agentConfig) == 0 {
			agentConfig = json.RawMessage("{}")
		}

		if _, err := s.q.ExecContext(ctx, `
INSERT INTO players (id, game_id, seat_id, agent_type, agent_config, role, allegiance, alive)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id, seat_id) DO UPDATE SET alive = excluded.alive`,
			record.ID,
			record.GameID,
			record.SeatID,
			record.AgentType,
			string(agentConfig),
			record.Role,
			record.Allegiance,
			boolToInt(record.Alive),
		); err != nil {
			return fmt.Errorf("put player %s: %w", record.SeatID, err)
		}
	}
	return nil
}

// ListPlayers returns a game's seat assignments in insertion order.
func (s *Store) ListPlayers(ctx context.Context, gameID string) ([]storage.PlayerRecord, error) {
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
SELECT id, game_id, seat_id, agent_type, agent_config, role, allegiance, alive
FROM players WHERE game_id = ? ORDER BY rowid`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var records []storage.PlayerRecord
	for rows.Next() {
		var record storage.PlayerRecord
		var agentConfig string
		var alive int
		if err := rows.Scan(&record.ID, &record.GameID, &record.SeatID, &record.AgentType, &agentConfig, &record.Role, &record.Allegiance, &alive); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		record.AgentConfigJSON = json.RawMessage(agentConfig)
		record.Alive = alive != 0
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read players: %w", err)
	}
	return records, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// Package storage defines the persistence records and interfaces for the
// event store. Events, chat, snapshots and metrics are append-only; action
// rows are completed in place and game rows track progress.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound indicates a missing record.
var ErrNotFound = errors.New("record not found")

// GameStatus is the lifecycle state of a stored game.
type GameStatus string

const (
	// GameStatusActive marks a game still accepting actions.
	GameStatusActive GameStatus = "active"
	// GameStatusCompleted marks a finished game.
	GameStatusCompleted GameStatus = "completed"
	// GameStatusFailed marks a game abandoned after an unrecoverable fault.
	GameStatusFailed GameStatus = "failed"
	// GameStatusPaused marks a game suspended by its operator.
	GameStatusPaused GameStatus = "paused"
)

// ParseGameStatus converts a stored status string back to a GameStatus.
func ParseGameStatus(value string) (GameStatus, error) {
	switch GameStatus(strings.TrimSpace(value)) {
	case GameStatusActive:
		return GameStatusActive, nil
	case GameStatusCompleted:
		return GameStatusCompleted, nil
	case GameStatusFailed:
		return GameStatusFailed, nil
	case GameStatusPaused:
		return GameStatusPaused, nil
	}
	return "", fmt.Errorf("unknown game status %q", value)
}

// GameRecord is one row in the games table.
type GameRecord struct {
	ID               string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Status           GameStatus
	ConfigJSON       json.RawMessage
	CurrentTurn      int
	FinalOutcomeJSON json.RawMessage
	MetadataJSON     json.RawMessage
}

// SnapshotRecord is one full-state snapshot. Label is empty for the per-turn
// snapshot and distinguishes named checkpoints sharing a turn.
type SnapshotRecord struct {
	ID         string
	GameID     string
	TurnNumber int
	Label      string
	StateJSON  json.RawMessage
	CreatedAt  time.Time
	Checksum   string
}

// PlayerRecord is one seat assignment.
type PlayerRecord struct {
	ID              string
	GameID          string
	SeatID          string
	AgentType       string
	AgentConfigJSON json.RawMessage
	Role            string
	Allegiance      string
	Alive           bool
}

// ActionRecord is one action attempt. IsValid is nil while the action is in
// flight; recovery treats lingering nils as interrupted work.
type ActionRecord struct {
	ID           string
	GameID       string
	TurnNumber   int
	ActorID      string
	Kind         string
	ParamsJSON   json.RawMessage
	IsValid      *bool
	ErrorMessage string
	ProcessingMs *int64
	CreatedAt    time.Time
}

// EventRecord is one emitted event.
type EventRecord struct {
	ID          string
	GameID      string
	TurnNumber  int
	Type        string
	ActorID     string
	PayloadJSON json.RawMessage
	CreatedAt   time.Time
}

// ChatRecord is one chat message.
type ChatRecord struct {
	ID         string
	GameID     string
	TurnNumber int
	SpeakerID  string
	Message    string
	Phase      string
	CreatedAt  time.Time
}

// MetricRecord is one per-action agent measurement.
type MetricRecord struct {
	ID              string
	GameID          string
	ActorID         string
	TurnNumber      int
	Tokens          *int64
	ResponseMs      *int64
	InvalidAttempts int
	StateSize       *int64
	CreatedAt       time.Time
}

// GameStore manages game rows.
type GameStore interface {
	CreateGame(ctx context.Context, record GameRecord) error
	GetGame(ctx context.Context, gameID string) (GameRecord, error)
	UpdateGameProgress(ctx context.Context, gameID string, status GameStatus, currentTurn int, finalOutcome json.RawMessage) error
	ListGameIDsByStatus(ctx context.Context, status GameStatus) ([]string, error)
}

// SnapshotStore manages full-state snapshots.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, record SnapshotRecord) error
	GetSnapshot(ctx context.Context, gameID string, turnNumber int) (SnapshotRecord, error)
	GetLatestSnapshot(ctx context.Context, gameID string) (SnapshotRecord, error)
}

// PlayerStore manages seat assignments.
type PlayerStore interface {
	PutPlayers(ctx context.Context, records []PlayerRecord) error
	ListPlayers(ctx context.Context, gameID string) ([]PlayerRecord, error)
}

// ActionStore manages action attempts.
type ActionStore interface {
	InsertAction(ctx context.Context, record ActionRecord) error
	CompleteAction(ctx context.Context, actionID string, isValid bool, errorMessage string, processingMs int64) error
	CountValidActions(ctx context.Context, gameID string) (int, error)
	CountInvalidActionsByActor(ctx context.Context, gameID, actorID string) (int, error)
	ListPendingActions(ctx context.Context, gameID string) ([]ActionRecord, error)
	MarkPendingActionsFailed(ctx context.Context, gameID, message string) (int, error)
	LatestAction(ctx context.Context, gameID string) (ActionRecord, error)
}

// EventStore manages emitted events.
type EventStore interface {
	AppendEvents(ctx context.Context, records []EventRecord) error
	ListEvents(ctx context.Context, gameID string, sinceTurn int) ([]EventRecord, error)
	ListEventsByType(ctx context.Context, gameID, eventType string) ([]EventRecord, error)
}

// ChatStore manages chat messages.
type ChatStore interface {
	AppendChatMessages(ctx context.Context, records []ChatRecord) error
	ListChatMessages(ctx context.Context, gameID string, sinceTurn int) ([]ChatRecord, error)
}

// MetricStore manages agent metrics.
type MetricStore interface {
	AppendAgentMetric(ctx context.Context, record MetricRecord) error
}

// Store bundles every table interface.
type Store interface {
	GameStore
	SnapshotStore
	PlayerStore
	ActionStore
	EventStore
	ChatStore
	MetricStore
}

// UnitOfWork scopes a group of writes to one atomic transaction. The store
// passed to fn shares the transaction; returning an error rolls everything
// back.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

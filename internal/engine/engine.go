// Package engine orchestrates games end to end: creation, action processing
// under a transaction, reload, recovery, and simulation.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alignmentgames/secretagi/internal/game"
	"github.com/alignmentgames/secretagi/internal/game/action"
	"github.com/alignmentgames/secretagi/internal/game/event"
	"github.com/alignmentgames/secretagi/internal/recovery"
	"github.com/alignmentgames/secretagi/internal/storage"
)

var (
	// ErrNoActiveGame indicates the engine has no loaded game.
	ErrNoActiveGame = errors.New("no active game")
)

// Store is the persistence surface the engine needs: every table plus the
// transactional unit of work.
type Store interface {
	storage.Store
	storage.UnitOfWork
}

// Engine owns one game's in-memory state. Callers never mutate the state;
// PerformAction is the only way forward.
type Engine struct {
	store  Store
	tracer trace.Tracer

	state  *game.State
	gameID string

	// lastSeen tracks, per actor, the turn through which events and chat
	// were already delivered.
	lastSeen map[string]int
}

// New creates an engine bound to a store.
func New(store Store) *Engine {
	return &Engine{
		store:    store,
		tracer:   otel.Tracer("secretagi/engine"),
		lastSeen: make(map[string]int),
	}
}

// GameID returns the loaded game's id, or empty.
func (e *Engine) GameID() string {
	return e.gameID
}

// State returns the current state for inspection. Callers must not mutate it.
func (e *Engine) State() *game.State {
	return e.state
}

// UpdateError is the machine-readable failure attached to an update.
type UpdateError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Update is the player-filtered response to an action.
type Update struct {
	Success      bool
	Error        *UpdateError
	Events       []event.Event
	Chat         []event.Event
	View         game.PlayerView
	ValidActions []action.Type
}

// FinalOutcome summarizes a finished game for the games table.
type FinalOutcome struct {
	Winners    []string `json:"winners"`
	Turns      int      `json:"turns"`
	Rounds     int      `json:"rounds"`
	Capability int      `json:"capability"`
	Safety     int      `json:"safety"`
}

// CreateGame deals a new game and persists the game row, seats, and the
// turn-zero snapshot in one transaction.
func (e *Engine) CreateGame(ctx context.Context, cfg game.Config) (string, error) {
	if e == nil || e.store == nil {
		return "", errors.New("engine store is required")
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	gameID := uuid.NewString()
	state, err := game.NewState(gameID, cfg)
	if err != nil {
		return "", err
	}

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal game config: %w", err)
	}
	snapshot, err := e.snapshotRecord(state, "")
	if err != nil {
		return "", err
	}

	players := make([]storage.PlayerRecord, 0, len(state.Players))
	for _, p := range state.Players {
		players = append(players, storage.PlayerRecord{
			ID:         uuid.NewString(),
			GameID:     gameID,
			SeatID:     p.ID,
			Role:       string(p.Role),
			Allegiance: string(p.Allegiance),
			Alive:      p.Alive,
		})
	}

	err = e.store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if err := tx.CreateGame(ctx, storage.GameRecord{
			ID:         gameID,
			Status:     storage.GameStatusActive,
			ConfigJSON: configJSON,
		}); err != nil {
			return err
		}
		if err := tx.PutPlayers(ctx, players); err != nil {
			return err
		}
		return tx.PutSnapshot(ctx, snapshot)
	})
	if err != nil {
		return "", fmt.Errorf("persist new game: %w", err)
	}

	e.state = state
	e.gameID = gameID
	e.lastSeen = make(map[string]int)
	return gameID, nil
}

// PerformAction validates and applies one action under a transaction and
// returns the acting player's filtered update.
func (e *Engine) PerformAction(ctx context.Context, actorID string, kind action.Type, params action.Params) (Update, error) {
	if e == nil || e.state == nil || e.gameID == "" {
		return Update{}, ErrNoActiveGame
	}

	ctx, span := e.tracer.Start(ctx, "engine.perform_action",
		trace.WithAttributes(
			attribute.String("game.id", e.gameID),
			attribute.String("action.kind", string(kind)),
		))
	defer span.End()

	paramsJSON, err := action.MarshalParams(params)
	if err != nil {
		return Update{}, err
	}

	// The pending action record commits before processing so a crash leaves
	// a visible interruption marker for recovery.
	actionID := uuid.NewString()
	if err := e.store.InsertAction(ctx, storage.ActionRecord{
		ID:         actionID,
		GameID:     e.gameID,
		TurnNumber: e.state.TurnNumber + 1,
		ActorID:    actorID,
		Kind:       string(kind),
		ParamsJSON: paramsJSON,
	}); err != nil {
		return Update{}, fmt.Errorf("record action attempt: %w", err)
	}

	started := time.Now()
	result := action.Apply(e.state, action.Request{ActorID: actorID, Kind: kind, Params: params})
	processingMs := time.Since(started).Milliseconds()

	if !result.Outcome.Valid {
		return e.finishInvalid(ctx, actionID, actorID, result, processingMs)
	}
	return e.finishValid(ctx, actionID, actorID, result, processingMs)
}

// finishValid commits the accepted action's writes as one unit and advances
// the in-memory state. A failed commit leaves the pre-action state
// authoritative.
func (e *Engine) finishValid(ctx context.Context, actionID, actorID string, result action.Result, processingMs int64) (Update, error) {
	newState := result.State

	snapshot, err := e.snapshotRecord(newState, "")
	if err != nil {
		outcome := action.Outcome{Code: action.CodeInternal, Message: err.Error()}
		return e.updateFor(actorID, outcome), nil
	}

	status := storage.GameStatusActive
	var finalOutcome json.RawMessage
	if newState.IsGameOver {
		status = storage.GameStatusCompleted
		outcome := FinalOutcome{
			Turns:      newState.TurnNumber,
			Rounds:     newState.RoundNumber,
			Capability: newState.Capability,
			Safety:     newState.Safety,
		}
		for _, role := range newState.Winners {
			outcome.Winners = append(outcome.Winners, string(role))
		}
		finalOutcome, err = json.Marshal(outcome)
		if err != nil {
			return Update{}, fmt.Errorf("marshal final outcome: %w", err)
		}
	}

	events := e.eventRecords(result.Events)
	chat := e.chatRecords(result.Events)
	stateSize := int64(len(snapshot.StateJSON))

	err = e.store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if err := tx.CompleteAction(ctx, actionID, true, "", processingMs); err != nil {
			return err
		}
		if err := tx.PutSnapshot(ctx, snapshot); err != nil {
			return err
		}
		if err := tx.AppendEvents(ctx, events); err != nil {
			return err
		}
		if len(chat) > 0 {
			if err := tx.AppendChatMessages(ctx, chat); err != nil {
				return err
			}
		}
		if err := tx.UpdateGameProgress(ctx, e.gameID, status, newState.TurnNumber, finalOutcome); err != nil {
			return err
		}
		return tx.AppendAgentMetric(ctx, storage.MetricRecord{
			ID:         uuid.NewString(),
			GameID:     e.gameID,
			ActorID:    actorID,
			TurnNumber: newState.TurnNumber,
			ResponseMs: &processingMs,
			StateSize:  &stateSize,
		})
	})
	if err != nil {
		// The pre-action state stays authoritative; the pending action row
		// is reconciled by recovery.
		outcome := action.Outcome{Code: action.CodeInternal, Message: fmt.Sprintf("commit action: %v", err)}
		return e.updateFor(actorID, outcome), nil
	}

	e.state = newState
	return e.updateFor(actorID, result.Outcome), nil
}

// finishInvalid records the rejected attempt and its audit trail without
// touching the game state.
func (e *Engine) finishInvalid(ctx context.Context, actionID, actorID string, result action.Result, processingMs int64) (Update, error) {
	events := e.eventRecords(result.Events)

	err := e.store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if err := tx.CompleteAction(ctx, actionID, false, result.Outcome.Message, processingMs); err != nil {
			return err
		}
		if err := tx.AppendEvents(ctx, events); err != nil {
			return err
		}
		return tx.AppendAgentMetric(ctx, storage.MetricRecord{
			ID:              uuid.NewString(),
			GameID:          e.gameID,
			ActorID:         actorID,
			TurnNumber:      e.state.TurnNumber,
			ResponseMs:      &processingMs,
			InvalidAttempts: 1,
		})
	})
	if err != nil {
		return e.updateFor(actorID, result.Outcome), nil
	}
	return e.updateFor(actorID, result.Outcome), nil
}

// updateFor builds the filtered update for an actor after an action settles.
func (e *Engine) updateFor(actorID string, outcome action.Outcome) Update {
	update := Update{Success: outcome.Valid}
	if !outcome.Valid {
		update.Error = &UpdateError{Code: string(outcome.Code), Message: outcome.Message}
	}

	if view, err := game.BuildPlayerView(e.state, actorID); err == nil {
		update.View = view
		update.ValidActions = action.ValidActions(e.state, actorID)

		since := e.lastSeen[actorID]
		for _, evt := range game.VisibleEvents(e.state, actorID, since) {
			if evt.Type == event.TypeChatMessage {
				update.Chat = append(update.Chat, evt)
				continue
			}
			update.Events = append(update.Events, evt)
		}
		e.lastSeen[actorID] = e.state.TurnNumber
	}
	return update
}

// LoadGame reconstructs the state at a turn (latest when turn is nil) and
// makes it current.
func (e *Engine) LoadGame(ctx context.Context, gameID string, turn *int) error {
	if e == nil || e.store == nil {
		return errors.New("engine store is required")
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return errors.New("game id is required")
	}
	if _, err := e.store.GetGame(ctx, gameID); err != nil {
		return fmt.Errorf("load game %s: %w", gameID, err)
	}

	var snapshot storage.SnapshotRecord
	var err error
	if turn != nil {
		snapshot, err = e.store.GetSnapshot(ctx, gameID, *turn)
	} else {
		snapshot, err = e.store.GetLatestSnapshot(ctx, gameID)
	}
	if err != nil {
		return fmt.Errorf("load snapshot for %s: %w", gameID, err)
	}
	if err := storage.VerifySnapshot(snapshot); err != nil {
		return fmt.Errorf("verify snapshot: %w", err)
	}

	state, err := recovery.DecodeState(snapshot.StateJSON)
	if err != nil {
		return err
	}

	e.state = state
	e.gameID = gameID
	e.lastSeen = make(map[string]int)
	return nil
}

// FindInterrupted lists active games with in-flight action records.
func (e *Engine) FindInterrupted(ctx context.Context) ([]string, error) {
	if e == nil || e.store == nil {
		return nil, errors.New("engine store is required")
	}
	return recovery.FindInterrupted(ctx, e.store)
}

// Recover reconciles an interrupted game and binds the engine to its last
// consistent state.
func (e *Engine) Recover(ctx context.Context, gameID string) (recovery.Result, error) {
	if e == nil || e.store == nil {
		return recovery.Result{}, errors.New("engine store is required")
	}

	result, err := recovery.Recover(ctx, e.store, gameID)
	if err != nil {
		return recovery.Result{}, err
	}

	e.state = result.State
	e.gameID = gameID
	e.lastSeen = make(map[string]int)
	return result, nil
}

// Checkpoint writes an additional named snapshot for the current turn and
// returns its id.
func (e *Engine) Checkpoint(ctx context.Context) (string, error) {
	if e == nil || e.state == nil || e.gameID == "" {
		return "", ErrNoActiveGame
	}

	label := fmt.Sprintf("checkpoint-%s", uuid.NewString())
	snapshot, err := e.snapshotRecord(e.state, label)
	if err != nil {
		return "", err
	}
	if err := e.store.PutSnapshot(ctx, snapshot); err != nil {
		return "", fmt.Errorf("write checkpoint: %w", err)
	}
	return snapshot.ID, nil
}

// snapshotRecord serializes a state into a snapshot row with its checksum.
func (e *Engine) snapshotRecord(state *game.State, label string) (storage.SnapshotRecord, error) {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return storage.SnapshotRecord{}, fmt.Errorf("marshal state: %w", err)
	}
	checksum, err := storage.SnapshotChecksum(stateJSON)
	if err != nil {
		return storage.SnapshotRecord{}, err
	}
	return storage.SnapshotRecord{
		ID:         uuid.NewString(),
		GameID:     state.GameID,
		TurnNumber: state.TurnNumber,
		Label:      label,
		StateJSON:  stateJSON,
		Checksum:   checksum,
	}, nil
}

// eventRecords converts emitted events into store rows.
func (e *Engine) eventRecords(events []event.Event) []storage.EventRecord {
	records := make([]storage.EventRecord, 0, len(events))
	for _, evt := range events {
		records = append(records, storage.EventRecord{
			ID:          evt.ID,
			GameID:      e.gameID,
			TurnNumber:  evt.TurnNumber,
			Type:        string(evt.Type),
			ActorID:     evt.ActorID,
			PayloadJSON: evt.PayloadJSON,
		})
	}
	return records
}

// chatRecords extracts chat rows from emitted events.
func (e *Engine) chatRecords(events []event.Event) []storage.ChatRecord {
	var records []storage.ChatRecord
	for _, evt := range events {
		if evt.Type != event.TypeChatMessage {
			continue
		}
		var payload event.ChatMessagePayload
		if err := evt.Decode(&payload); err != nil {
			continue
		}
		records = append(records, storage.ChatRecord{
			ID:         uuid.NewString(),
			GameID:     e.gameID,
			TurnNumber: evt.TurnNumber,
			SpeakerID:  evt.ActorID,
			Message:    payload.Message,
			Phase:      payload.Phase,
		})
	}
	return records
}

// Stats summarizes the loaded game.
type Stats struct {
	GameID          string   `json:"game_id"`
	TurnNumber      int      `json:"turn_number"`
	RoundNumber     int      `json:"round_number"`
	PlayerCount     int      `json:"player_count"`
	AliveCount      int      `json:"alive_count"`
	Capability      int      `json:"capability"`
	Safety          int      `json:"safety"`
	DeckSize        int      `json:"deck_size"`
	DiscardSize     int      `json:"discard_size"`
	FailedProposals int      `json:"failed_proposals"`
	Phase           string   `json:"phase"`
	IsGameOver      bool     `json:"is_game_over"`
	Winners         []string `json:"winners,omitempty"`
}

// Stats returns the loaded game's summary.
func (e *Engine) Stats() Stats {
	if e == nil || e.state == nil {
		return Stats{}
	}
	s := e.state
	stats := Stats{
		GameID:          s.GameID,
		TurnNumber:      s.TurnNumber,
		RoundNumber:     s.RoundNumber,
		PlayerCount:     len(s.Players),
		AliveCount:      s.AliveCount(),
		Capability:      s.Capability,
		Safety:          s.Safety,
		DeckSize:        len(s.Deck),
		DiscardSize:     len(s.Discard),
		FailedProposals: s.FailedProposals,
		Phase:           string(s.CurrentPhase),
		IsGameOver:      s.IsGameOver,
	}
	for _, role := range s.Winners {
		stats.Winners = append(stats.Winners, string(role))
	}
	return stats
}

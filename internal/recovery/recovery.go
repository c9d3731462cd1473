// Package recovery reconciles games interrupted mid-action and restores the
// last consistent state.
package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/alignmentgames/secretagi/internal/game"
	"github.com/alignmentgames/secretagi/internal/storage"
)

// RecoveryMessage is written on every pending action failed by recovery.
const RecoveryMessage = "recovered from interruption"

var (
	// ErrGameIDRequired indicates a missing game id.
	ErrGameIDRequired = errors.New("game id is required")
	// ErrNoConsistentState indicates no snapshot matches the valid action
	// count.
	ErrNoConsistentState = errors.New("no consistent state to recover to")
)

// FailureType classifies why a game needed recovery.
type FailureType string

const (
	// FailureIncompleteAction marks a crash between action insert and
	// completion.
	FailureIncompleteAction FailureType = "incomplete_action"
	// FailureTransactionFailure marks a snapshot missing for the last valid
	// action.
	FailureTransactionFailure FailureType = "transaction_failure"
	// FailureAgentTimeout marks a stall with consistent storage.
	FailureAgentTimeout FailureType = "agent_timeout"
)

// Store is the read/reconcile surface recovery needs.
type Store interface {
	ListGameIDsByStatus(ctx context.Context, status storage.GameStatus) ([]string, error)
	ListPendingActions(ctx context.Context, gameID string) ([]storage.ActionRecord, error)
	MarkPendingActionsFailed(ctx context.Context, gameID, message string) (int, error)
	CountValidActions(ctx context.Context, gameID string) (int, error)
	GetSnapshot(ctx context.Context, gameID string, turnNumber int) (storage.SnapshotRecord, error)
}

// Analysis describes an interrupted game.
type Analysis struct {
	GameID           string
	Type             FailureType
	LastValidTurn    int
	PendingActionIDs []string
}

// Result reports a completed recovery.
type Result struct {
	Analysis Analysis
	// PendingFailed is how many in-flight actions were reconciled.
	PendingFailed int
	// State is the restored game state.
	State *game.State
}

// FindInterrupted returns ids of active games with in-flight action records.
func FindInterrupted(ctx context.Context, store Store) ([]string, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}

	active, err := store.ListGameIDsByStatus(ctx, storage.GameStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active games: %w", err)
	}

	var interrupted []string
	for _, gameID := range active {
		pending, err := store.ListPendingActions(ctx, gameID)
		if err != nil {
			return nil, fmt.Errorf("list pending actions for %s: %w", gameID, err)
		}
		if len(pending) > 0 {
			interrupted = append(interrupted, gameID)
		}
	}
	return interrupted, nil
}

// Analyze classifies a game's failure mode from its newest records.
func Analyze(ctx context.Context, store Store, gameID string) (Analysis, error) {
	if store == nil {
		return Analysis{}, errors.New("store is required")
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return Analysis{}, ErrGameIDRequired
	}

	pending, err := store.ListPendingActions(ctx, gameID)
	if err != nil {
		return Analysis{}, fmt.Errorf("list pending actions: %w", err)
	}
	validCount, err := store.CountValidActions(ctx, gameID)
	if err != nil {
		return Analysis{}, fmt.Errorf("count valid actions: %w", err)
	}

	analysis := Analysis{GameID: gameID, LastValidTurn: validCount}
	for _, record := range pending {
		analysis.PendingActionIDs = append(analysis.PendingActionIDs, record.ID)
	}

	_, snapshotErr := store.GetSnapshot(ctx, gameID, validCount)
	switch {
	case len(pending) > 0:
		analysis.Type = FailureIncompleteAction
	case snapshotErr != nil:
		analysis.Type = FailureTransactionFailure
	default:
		analysis.Type = FailureAgentTimeout
	}
	if snapshotErr != nil && !errors.Is(snapshotErr, storage.ErrNotFound) {
		return Analysis{}, fmt.Errorf("inspect snapshot at turn %d: %w", validCount, snapshotErr)
	}

	return analysis, nil
}

// Recover marks in-flight actions failed and restores the newest snapshot
// whose turn matches the valid action count. It is idempotent: rerunning on a
// recovered game reconciles nothing and restores the same state.
func Recover(ctx context.Context, store Store, gameID string) (Result, error) {
	analysis, err := Analyze(ctx, store, gameID)
	if err != nil {
		return Result{}, err
	}

	failed, err := store.MarkPendingActionsFailed(ctx, gameID, RecoveryMessage)
	if err != nil {
		return Result{}, fmt.Errorf("mark pending actions failed: %w", err)
	}

	snapshot, err := store.GetSnapshot(ctx, gameID, analysis.LastValidTurn)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: game %s turn %d", ErrNoConsistentState, gameID, analysis.LastValidTurn)
		}
		return Result{}, fmt.Errorf("load snapshot at turn %d: %w", analysis.LastValidTurn, err)
	}
	if err := storage.VerifySnapshot(snapshot); err != nil {
		return Result{}, fmt.Errorf("verify snapshot: %w", err)
	}

	state, err := DecodeState(snapshot.StateJSON)
	if err != nil {
		return Result{}, err
	}

	return Result{Analysis: analysis, PendingFailed: failed, State: state}, nil
}

// DecodeState reconstructs a game state from a snapshot blob.
func DecodeState(stateJSON json.RawMessage) (*game.State, error) {
	var state game.State
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return nil, fmt.Errorf("decode state blob: %w", err)
	}
	return &state, nil
}

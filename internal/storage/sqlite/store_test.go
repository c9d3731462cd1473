package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alignmentgames/secretagi/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secretagi.sqlite")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func seedGame(t *testing.T, store *Store, gameID string) {
	t.Helper()
	err := store.CreateGame(context.Background(), storage.GameRecord{
		ID:         gameID,
		Status:     storage.GameStatusActive,
		ConfigJSON: json.RawMessage(`{"player_count":5}`),
	})
	if err != nil {
		t.Fatalf("seed game %s: %v", gameID, err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestGameRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedGame(t, store, "g1")

	record, err := store.GetGame(ctx, "g1")
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if record.Status != storage.GameStatusActive {
		t.Fatalf("expected active, got %s", record.Status)
	}
	if record.CurrentTurn != 0 {
		t.Fatalf("expected turn 0, got %d", record.CurrentTurn)
	}
	if record.CreatedAt.IsZero() || record.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC created_at, got %v", record.CreatedAt)
	}

	outcome := json.RawMessage(`{"winners":["Safety"]}`)
	if err := store.UpdateGameProgress(ctx, "g1", storage.GameStatusCompleted, 42, outcome); err != nil {
		t.Fatalf("update progress: %v", err)
	}

	record, err = store.GetGame(ctx, "g1")
	if err != nil {
		t.Fatalf("get updated game: %v", err)
	}
	if record.Status != storage.GameStatusCompleted || record.CurrentTurn != 42 {
		t.Fatalf("unexpected record %+v", record)
	}
	if string(record.FinalOutcomeJSON) != string(outcome) {
		t.Fatalf("expected final outcome persisted, got %s", record.FinalOutcomeJSON)
	}

	if _, err := store.GetGame(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.UpdateGameProgress(ctx, "missing", storage.GameStatusFailed, 1, nil); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListGameIDsByStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedGame(t, store, "g1")
	seedGame(t, store, "g2")
	if err := store.UpdateGameProgress(ctx, "g2", storage.GameStatusCompleted, 9, nil); err != nil {
		t.Fatalf("complete g2: %v", err)
	}

	active, err := store.ListGameIDsByStatus(ctx, storage.GameStatusActive)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0] != "g1" {
		t.Fatalf("expected [g1], got %v", active)
	}
}

func TestSnapshotRoundTripAndUniqueness(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedGame(t, store, "g1")

	blob := json.RawMessage(`{"game_id":"g1","turn_number":1,"capability":2}`)
	record := storage.SnapshotRecord{ID: "s1", GameID: "g1", TurnNumber: 1, StateJSON: blob}
	if err := store.PutSnapshot(ctx, record); err != nil {
		t.Fatalf("put snapshot: %v", err)
	}

	got, err := store.GetSnapshot(ctx, "g1", 1)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if got.Checksum == "" {
		t.Fatal("expected a computed checksum")
	}
	if err := storage.VerifySnapshot(got); err != nil {
		t.Fatalf("verify snapshot: %v", err)
	}

	// The per-turn snapshot is unique.
	dup := storage.SnapshotRecord{ID: "s2", GameID: "g1", TurnNumber: 1, StateJSON: blob}
	if err := store.PutSnapshot(ctx, dup); err == nil {
		t.Fatal("expected unique violation for duplicate turn snapshot")
	}

	// A named checkpoint may share the turn.
	checkpoint := storage.SnapshotRecord{ID: "s3", GameID: "g1", TurnNumber: 1, Label: "checkpoint-a", StateJSON: blob}
	if err := store.PutSnapshot(ctx, checkpoint); err != nil {
		t.Fatalf("put checkpoint: %v", err)
	}

	latestBlob := json.RawMessage(`{"game_id":"g1","turn_number":2}`)
	if err := store.PutSnapshot(ctx, storage.SnapshotRecord{ID: "s4", GameID: "g1", TurnNumber: 2, StateJSON: latestBlob}); err != nil {
		t.Fatalf("put second snapshot: %v", err)
	}

	latest, err := store.GetLatestSnapshot(ctx, "g1")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest.TurnNumber != 2 {
		t.Fatalf("expected latest turn 2, got %d", latest.TurnNumber)
	}

	if _, err := store.GetSnapshot(ctx, "g1", 99); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestActionLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedGame(t, store, "g1")

	record := storage.ActionRecord{
		ID:         "a1",
		GameID:     "g1",
		TurnNumber: 1,
		ActorID:    "p1",
		Kind:       "nominate",
		ParamsJSON: json.RawMessage(`{"target_id":"p2"}`),
	}
	if err := store.InsertAction(ctx, record); err != nil {
		t.Fatalf("insert action: %v", err)
	}

	pending, err := store.ListPendingActions(ctx, "g1")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "a1" || pending[0].IsValid != nil {
		t.Fatalf("expected one pending action, got %+v", pending)
	}

	if err := store.CompleteAction(ctx, "a1", true, "", 12); err != nil {
		t.Fatalf("complete action: %v", err)
	}

	pending, err = store.ListPendingActions(ctx, "g1")
	if err != nil {
		t.Fatalf("list pending after completion: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending actions, got %d", len(pending))
	}

	count, err := store.CountValidActions(ctx, "g1")
	if err != nil {
		t.Fatalf("count valid: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 valid action, got %d", count)
	}

	invalid := storage.ActionRecord{ID: "a2", GameID: "g1", TurnNumber: 1, ActorID: "p2", Kind: "vote_team"}
	if err := store.InsertAction(ctx, invalid); err != nil {
		t.Fatalf("insert second action: %v", err)
	}
	if err := store.CompleteAction(ctx, "a2", false, "duplicate vote", 3); err != nil {
		t.Fatalf("complete invalid action: %v", err)
	}

	invalidCount, err := store.CountInvalidActionsByActor(ctx, "g1", "p2")
	if err != nil {
		t.Fatalf("count invalid: %v", err)
	}
	if invalidCount != 1 {
		t.Fatalf("expected 1 invalid action for p2, got %d", invalidCount)
	}

	latest, err := store.LatestAction(ctx, "g1")
	if err != nil {
		t.Fatalf("latest action: %v", err)
	}
	if latest.ID != "a2" || latest.ErrorMessage != "duplicate vote" {
		t.Fatalf("unexpected latest action %+v", latest)
	}
	if latest.IsValid == nil || *latest.IsValid {
		t.Fatal("expected the latest action marked invalid")
	}

	if err := store.CompleteAction(ctx, "missing", true, "", 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkPendingActionsFailed(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedGame(t, store, "g1")

	for _, id := range []string{"a1", "a2"} {
		if err := store.InsertAction(ctx, storage.ActionRecord{ID: id, GameID: "g1", TurnNumber: 1, ActorID: "p1", Kind: "observe"}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	reconciled, err := store.MarkPendingActionsFailed(ctx, "g1", "recovered")
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if reconciled != 2 {
		t.Fatalf("expected 2 reconciled, got %d", reconciled)
	}

	again, err := store.MarkPendingActionsFailed(ctx, "g1", "recovered")
	if err != nil {
		t.Fatalf("second mark failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected idempotent reconciliation, got %d", again)
	}
}

func TestEventsAppendAndQuery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedGame(t, store, "g1")

	records := []storage.EventRecord{
		{ID: "e1", GameID: "g1", TurnNumber: 1, Type: "action_attempted", ActorID: "p1"},
		{ID: "e2", GameID: "g1", TurnNumber: 1, Type: "vote_completed"},
		{ID: "e3", GameID: "g1", TurnNumber: 2, Type: "paper_published", ActorID: "p2", PayloadJSON: json.RawMessage(`{"paper_id":"paper-00"}`)},
	}
	if err := store.AppendEvents(ctx, records); err != nil {
		t.Fatalf("append events: %v", err)
	}

	all, err := store.ListEvents(ctx, "g1", 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if all[0].ID != "e1" || all[2].ID != "e3" {
		t.Fatalf("expected emission order preserved, got %v", []string{all[0].ID, all[1].ID, all[2].ID})
	}
	if all[1].ActorID != "" {
		t.Fatalf("expected empty actor for e2, got %q", all[1].ActorID)
	}

	since, err := store.ListEvents(ctx, "g1", 1)
	if err != nil {
		t.Fatalf("list events since: %v", err)
	}
	if len(since) != 1 || since[0].ID != "e3" {
		t.Fatalf("expected only e3 after turn 1, got %v", since)
	}

	published, err := store.ListEventsByType(ctx, "g1", "paper_published")
	if err != nil {
		t.Fatalf("list by type: %v", err)
	}
	if len(published) != 1 || published[0].ID != "e3" {
		t.Fatalf("expected e3, got %v", published)
	}
}

func TestChatRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedGame(t, store, "g1")

	records := []storage.ChatRecord{
		{ID: "c1", GameID: "g1", TurnNumber: 1, SpeakerID: "p1", Message: "trust me", Phase: "TeamProposal"},
		{ID: "c2", GameID: "g1", TurnNumber: 3, SpeakerID: "p2", Message: "no", Phase: "Research"},
	}
	if err := store.AppendChatMessages(ctx, records); err != nil {
		t.Fatalf("append chat: %v", err)
	}

	all, err := store.ListChatMessages(ctx, "g1", 0)
	if err != nil {
		t.Fatalf("list chat: %v", err)
	}
	if len(all) != 2 || all[0].Message != "trust me" {
		t.Fatalf("unexpected chat %v", all)
	}

	late, err := store.ListChatMessages(ctx, "g1", 2)
	if err != nil {
		t.Fatalf("list chat since: %v", err)
	}
	if len(late) != 1 || late[0].ID != "c2" {
		t.Fatalf("expected only c2, got %v", late)
	}
}

func TestPlayersRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedGame(t, store, "g1")

	records := []storage.PlayerRecord{
		{ID: "r1", GameID: "g1", SeatID: "p1", Role: "Safety", Allegiance: "Safety", Alive: true},
		{ID: "r2", GameID: "g1", SeatID: "p2", Role: "AGI", Allegiance: "Acceleration", Alive: true},
	}
	if err := store.PutPlayers(ctx, records); err != nil {
		t.Fatalf("put players: %v", err)
	}

	players, err := store.ListPlayers(ctx, "g1")
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	if len(players) != 2 || players[0].SeatID != "p1" || players[1].Role != "AGI" {
		t.Fatalf("unexpected players %v", players)
	}

	// Upserting a seat updates liveness without duplicating the row.
	records[1].Alive = false
	if err := store.PutPlayers(ctx, records[1:]); err != nil {
		t.Fatalf("upsert player: %v", err)
	}
	players, err = store.ListPlayers(ctx, "g1")
	if err != nil {
		t.Fatalf("list players after upsert: %v", err)
	}
	if len(players) != 2 || players[1].Alive {
		t.Fatalf("expected p2 dead without duplication, got %v", players)
	}
}

func TestAgentMetrics(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedGame(t, store, "g1")

	responseMs := int64(420)
	err := store.AppendAgentMetric(ctx, storage.MetricRecord{
		ID:              "m1",
		GameID:          "g1",
		ActorID:         "p1",
		TurnNumber:      1,
		ResponseMs:      &responseMs,
		InvalidAttempts: 2,
	})
	if err != nil {
		t.Fatalf("append metric: %v", err)
	}

	if err := store.AppendAgentMetric(ctx, storage.MetricRecord{ID: "m2", GameID: "g1", ActorID: ""}); err == nil {
		t.Fatal("expected error for missing actor id")
	}
}

func TestWithinTxCommitsAtomically(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedGame(t, store, "g1")

	err := store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if err := tx.InsertAction(ctx, storage.ActionRecord{ID: "a1", GameID: "g1", TurnNumber: 1, ActorID: "p1", Kind: "observe"}); err != nil {
			return err
		}
		return tx.AppendEvents(ctx, []storage.EventRecord{{ID: "e1", GameID: "g1", TurnNumber: 1, Type: "action_attempted"}})
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}

	events, err := store.ListEvents(ctx, "g1", 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected the committed event, got %d", len(events))
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedGame(t, store, "g1")

	sentinel := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if err := tx.InsertAction(ctx, storage.ActionRecord{ID: "a1", GameID: "g1", TurnNumber: 1, ActorID: "p1", Kind: "observe"}); err != nil {
			return err
		}
		if err := tx.UpdateGameProgress(ctx, "g1", storage.GameStatusCompleted, 7, nil); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected the sentinel error, got %v", err)
	}

	pending, err := store.ListPendingActions(ctx, "g1")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatal("expected the action insert rolled back")
	}

	record, err := store.GetGame(ctx, "g1")
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if record.Status != storage.GameStatusActive || record.CurrentTurn != 0 {
		t.Fatalf("expected the game row untouched, got %+v", record)
	}
}

func TestNilStoreIsSafe(t *testing.T) {
	var store *Store
	if err := store.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
	if _, err := store.GetGame(context.Background(), "g1"); err == nil {
		t.Fatal("expected error from nil store")
	}
	if err := store.WithinTx(context.Background(), func(context.Context, storage.Store) error { return nil }); err == nil {
		t.Fatal("expected error from nil store")
	}
}

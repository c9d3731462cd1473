package action

import (
	"testing"

	"github.com/alignmentgames/secretagi/internal/game"
	"github.com/alignmentgames/secretagi/internal/game/event"
)

func TestApplyDoesNotMutateInput(t *testing.T) {
	state := fiveState()
	result := Apply(state, Request{ActorID: "p1", Kind: TypeNominate, Params: Params{TargetID: "p2"}})

	if !result.Outcome.Valid {
		t.Fatalf("nomination rejected: %+v", result.Outcome)
	}
	if state.NominatedEngineerID != "" {
		t.Fatal("the input state was mutated")
	}
	if state.TurnNumber != 0 {
		t.Fatal("the input turn counter was mutated")
	}
	if result.State == state {
		t.Fatal("expected a fresh state value")
	}
	if result.State.TurnNumber != 1 {
		t.Fatalf("expected turn 1 on the new state, got %d", result.State.TurnNumber)
	}
}

func TestApplyRecordsAuditEventPerAction(t *testing.T) {
	state := fiveState()
	result := Apply(state, Request{ActorID: "p1", Kind: TypeNominate, Params: Params{TargetID: "p2"}})

	if len(result.Events) == 0 || result.Events[0].Type != event.TypeActionAttempted {
		t.Fatalf("expected a leading audit event, got %v", result.Events)
	}
	var payload event.ActionAttemptedPayload
	if err := result.Events[0].Decode(&payload); err != nil {
		t.Fatalf("decode audit payload: %v", err)
	}
	if !payload.Valid || payload.Action != string(TypeNominate) || payload.Target != "p2" {
		t.Fatalf("unexpected audit payload %+v", payload)
	}
}

func TestApplyInvalidEmitsStandaloneAudit(t *testing.T) {
	state := fiveState()
	result := Apply(state, Request{ActorID: "p2", Kind: TypeNominate, Params: Params{TargetID: "p3"}})

	if result.Outcome.Valid {
		t.Fatal("expected rejection")
	}
	if len(result.Events) != 1 {
		t.Fatalf("expected exactly one audit event, got %d", len(result.Events))
	}
	var payload event.ActionAttemptedPayload
	if err := result.Events[0].Decode(&payload); err != nil {
		t.Fatalf("decode audit payload: %v", err)
	}
	if payload.Valid || payload.Error != string(CodeNotActor) {
		t.Fatalf("unexpected audit payload %+v", payload)
	}
	if len(state.Events) != 0 {
		t.Fatal("invalid attempts must not enter the state's event log")
	}
}

func TestApplyUnknownKind(t *testing.T) {
	state := fiveState()
	result := Apply(state, Request{ActorID: "p1", Kind: Type("teleport")})
	if result.Outcome.Valid || result.Outcome.Code != CodeInternal {
		t.Fatalf("expected internal rejection, got %+v", result.Outcome)
	}
}

func TestEveryAcceptedActionIncrementsTurn(t *testing.T) {
	state := fiveState()
	turn := 0
	step := func(actor string, kind Type, params Params) {
		t.Helper()
		state = mustApply(t, state, actor, kind, params)
		turn++
		if state.TurnNumber != turn {
			t.Fatalf("expected turn %d, got %d", turn, state.TurnNumber)
		}
	}

	step("p1", TypeObserve, Params{})
	step("p2", TypeSendChatMessage, Params{Text: "hello"})
	step("p1", TypeNominate, Params{TargetID: "p2"})
	step("p1", TypeVoteTeam, Params{Vote: boolPtr(true)})

	// A rejected action leaves the counter alone.
	mustReject(t, state, "p1", TypeVoteTeam, Params{Vote: boolPtr(true)}, CodeDuplicateVote)
	if state.TurnNumber != turn {
		t.Fatalf("rejected action advanced the turn to %d", state.TurnNumber)
	}
}

func TestGameOverRejectsEverything(t *testing.T) {
	state := fiveState()
	state.IsGameOver = true
	state.CurrentPhase = game.PhaseGameOver
	state.Winners = game.SafetyWinners()

	for _, kind := range []Type{TypeObserve, TypeNominate, TypeVoteTeam, TypeSendChatMessage, TypePublishPaper} {
		mustReject(t, state, "p1", kind, Params{TargetID: "p2", PaperID: "x", Vote: boolPtr(true), Text: "hi"}, CodeGameOver)
	}
}

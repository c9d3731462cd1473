package action

import (
	"testing"

	"github.com/alignmentgames/secretagi/internal/game"
	"github.com/alignmentgames/secretagi/internal/game/event"
)

func TestNominateValidation(t *testing.T) {
	state := fiveState()

	mustReject(t, state, "p2", TypeNominate, Params{TargetID: "p3"}, CodeNotActor)
	mustReject(t, state, "p1", TypeNominate, Params{}, CodeIneligibleTarget)
	mustReject(t, state, "p1", TypeNominate, Params{TargetID: "ghost"}, CodeIneligibleTarget)

	state.Players[2].WasLastEngineer = true
	mustReject(t, state, "p1", TypeNominate, Params{TargetID: "p3"}, CodeIneligibleTarget)
	state.Players[2].WasLastEngineer = false

	state.Players[3].Alive = false
	mustReject(t, state, "p1", TypeNominate, Params{TargetID: "p4"}, CodeIneligibleTarget)
	state.Players[3].Alive = true

	next := mustApply(t, state, "p1", TypeNominate, Params{TargetID: "p2"})
	if next.NominatedEngineerID != "p2" {
		t.Fatalf("expected nominee p2, got %s", next.NominatedEngineerID)
	}
	if next.TurnNumber != 1 {
		t.Fatalf("expected turn 1, got %d", next.TurnNumber)
	}

	mustReject(t, next, "p1", TypeNominate, Params{TargetID: "p3"}, CodeInvalidPhase)
}

func TestTeamVotePassMovesToResearch(t *testing.T) {
	state := fiveState()
	state = mustApply(t, state, "p1", TypeNominate, Params{TargetID: "p2"})
	state = voteTeamAll(t, state, true)

	if state.CurrentPhase != game.PhaseResearch {
		t.Fatalf("expected research, got %s", state.CurrentPhase)
	}
	if len(state.DirectorCards) != 3 {
		t.Fatalf("expected 3 director cards, got %d", len(state.DirectorCards))
	}
	if len(state.Deck) != game.DeckSize-3 {
		t.Fatalf("expected %d papers left, got %d", game.DeckSize-3, len(state.Deck))
	}
	if state.FailedProposals != 0 {
		t.Fatalf("expected failed proposals reset, got %d", state.FailedProposals)
	}
	if got := countEvents(state, event.TypeVoteCompleted); got != 1 {
		t.Fatalf("expected one vote_completed event, got %d", got)
	}
	if got := countEvents(state, event.TypePhaseTransition); got != 1 {
		t.Fatalf("expected one phase_transition event, got %d", got)
	}
	if state.TotalPapers() != game.DeckSize {
		t.Fatalf("paper conservation broken: %d", state.TotalPapers())
	}
}

func TestTeamVoteTieFailsAndRotatesDirector(t *testing.T) {
	state := fiveState()
	state.Players[3].Alive = false // four voters so a 2-2 tie is possible

	state = mustApply(t, state, "p1", TypeNominate, Params{TargetID: "p2"})
	state = mustApply(t, state, "p1", TypeVoteTeam, Params{Vote: boolPtr(true)})
	state = mustApply(t, state, "p2", TypeVoteTeam, Params{Vote: boolPtr(true)})
	state = mustApply(t, state, "p3", TypeVoteTeam, Params{Vote: boolPtr(false)})
	state = mustApply(t, state, "p5", TypeVoteTeam, Params{Vote: boolPtr(false)})

	if state.CurrentPhase != game.PhaseTeamProposal {
		t.Fatalf("expected team proposal after tie, got %s", state.CurrentPhase)
	}
	if state.FailedProposals != 1 {
		t.Fatalf("expected one failed proposal, got %d", state.FailedProposals)
	}
	if state.NominatedEngineerID != "" {
		t.Fatal("expected nominee cleared after failed vote")
	}
	if director := state.CurrentDirector(); director.ID != "p2" {
		t.Fatalf("expected director rotation to p2, got %s", director.ID)
	}
}

func TestTeamVoteDuplicateAndOrderingRules(t *testing.T) {
	state := fiveState()
	mustReject(t, state, "p1", TypeVoteTeam, Params{Vote: boolPtr(true)}, CodeInvalidPhase)

	state = mustApply(t, state, "p1", TypeNominate, Params{TargetID: "p2"})
	state = mustApply(t, state, "p1", TypeVoteTeam, Params{Vote: boolPtr(true)})
	mustReject(t, state, "p1", TypeVoteTeam, Params{Vote: boolPtr(false)}, CodeDuplicateVote)
	mustReject(t, state, "p2", TypeVoteTeam, Params{}, CodeIneligibleTarget)
}

func TestThreeFailedProposalsAutoPublish(t *testing.T) {
	state := fiveState()
	topPaper := state.Deck[0]

	expectedFailed := []int{1, 2}
	for round := 0; round < 2; round++ {
		director := state.CurrentDirector()
		state = mustApply(t, state, director.ID, TypeNominate, Params{TargetID: "p3"})
		state = voteTeamAll(t, state, false)
		if state.FailedProposals != expectedFailed[round] {
			t.Fatalf("expected %d failed proposals, got %d", expectedFailed[round], state.FailedProposals)
		}
	}

	state.Players[1].WasLastEngineer = true // proves the eligibility reset

	director := state.CurrentDirector()
	state = mustApply(t, state, director.ID, TypeNominate, Params{TargetID: "p3"})
	state = voteTeamAll(t, state, false)

	if state.FailedProposals != 0 {
		t.Fatalf("expected failed proposals reset after auto-publish, got %d", state.FailedProposals)
	}
	if state.Capability != topPaper.Capability || state.Safety != topPaper.Safety {
		t.Fatalf("expected meters %d/%d, got %d/%d", topPaper.Capability, topPaper.Safety, state.Capability, state.Safety)
	}
	if len(state.Deck) != game.DeckSize-1 {
		t.Fatalf("expected one paper consumed, got %d left", len(state.Deck))
	}
	for _, p := range state.Players {
		if p.WasLastEngineer {
			t.Fatalf("player %s still flagged as last engineer after auto-publish", p.ID)
		}
	}

	published := 0
	for _, evt := range state.Events {
		if evt.Type != event.TypePaperPublished {
			continue
		}
		published++
		var payload event.PaperPublishedPayload
		if err := evt.Decode(&payload); err != nil {
			t.Fatalf("decode publication: %v", err)
		}
		if !payload.AutoPublished {
			t.Fatal("expected the publication to be marked auto_published")
		}
	}
	if published != 1 {
		t.Fatalf("expected exactly one publication, got %d", published)
	}
	if state.RoundNumber != 2 {
		t.Fatalf("expected round 2 after auto-publish, got %d", state.RoundNumber)
	}
	if state.TotalPapers() != game.DeckSize {
		t.Fatalf("paper conservation broken: %d", state.TotalPapers())
	}
}

func TestEmergencySafetyFlow(t *testing.T) {
	state := fiveState()
	state.Capability = 4
	state.Safety = 0

	state = mustApply(t, state, "p3", TypeCallEmergencySafety, Params{})
	if !state.EmergencyVoteOpen || !state.EmergencySafetyCalledThisRound {
		t.Fatal("expected an open emergency vote")
	}
	mustReject(t, state, "p4", TypeCallEmergencySafety, Params{}, CodeDuplicateVote)

	// Team votes must wait for the emergency vote.
	state2 := mustApply(t, state.Clone(), "p1", TypeNominate, Params{TargetID: "p2"})
	mustReject(t, state2, "p1", TypeVoteTeam, Params{Vote: boolPtr(true)}, CodeInvalidPhase)

	for _, voter := range []string{"p1", "p2", "p3"} {
		state = mustApply(t, state, voter, TypeVoteEmergency, Params{Vote: boolPtr(true)})
	}
	mustReject(t, state, "p1", TypeVoteEmergency, Params{Vote: boolPtr(true)}, CodeDuplicateVote)
	for _, voter := range []string{"p4", "p5"} {
		state = mustApply(t, state, voter, TypeVoteEmergency, Params{Vote: boolPtr(false)})
	}

	if state.EmergencyVoteOpen {
		t.Fatal("expected the emergency vote closed")
	}
	if !state.EmergencySafetyActive {
		t.Fatal("expected emergency safety active after 3-2 vote")
	}
}

func TestEmergencySafetyReducesNextPublication(t *testing.T) {
	state := fiveState()
	state.Capability = 4
	state.Safety = 0
	state.Deck = append([]game.Paper{
		{ID: "paper-a", Capability: 0, Safety: 1},
		{ID: "paper-b", Capability: 0, Safety: 1},
		{ID: "paper-c", Capability: 3, Safety: 1},
	}, uniformDeck(5)...)
	state.EmergencySafetyActive = true

	state = toResearch(t, state, "p2")
	state = mustApply(t, state, "p1", TypeDiscardPaper, Params{PaperID: "paper-a"})
	state = mustApply(t, state, "p2", TypePublishPaper, Params{PaperID: "paper-c"})

	// Capability delta is reduced by exactly one: 4 + (3-1) = 6.
	if state.Capability != 6 {
		t.Fatalf("expected capability 6, got %d", state.Capability)
	}
	if state.Safety != 1 {
		t.Fatalf("expected safety 1, got %d", state.Safety)
	}
	if state.EmergencySafetyActive {
		t.Fatal("expected the emergency flag cleared by the publication")
	}
}

func TestEmergencySafetyFloorsAtZero(t *testing.T) {
	state := fiveState()
	state.Capability = 4
	state.Safety = 0
	state.Deck = append([]game.Paper{
		{ID: "paper-a", Capability: 1, Safety: 0},
		{ID: "paper-b", Capability: 1, Safety: 0},
		{ID: "paper-z", Capability: 0, Safety: 2},
	}, uniformDeck(5)...)
	state.EmergencySafetyActive = true

	state = toResearch(t, state, "p2")
	state = mustApply(t, state, "p1", TypeDiscardPaper, Params{PaperID: "paper-a"})
	state = mustApply(t, state, "p2", TypePublishPaper, Params{PaperID: "paper-z"})

	if state.Capability != 4 {
		t.Fatalf("zero-capability paper must stay zero, got capability %d", state.Capability)
	}
	if state.Safety != 2 {
		t.Fatalf("expected safety 2, got %d", state.Safety)
	}
}

func TestEmergencyCallRequiresGap(t *testing.T) {
	state := fiveState()
	state.Capability = 3
	state.Safety = 0
	mustReject(t, state, "p1", TypeCallEmergencySafety, Params{}, CodeInvalidPhase)
}

func TestAGIEngineerWinAtTeamApproval(t *testing.T) {
	state := fiveState()
	state.Capability = 8
	state.Safety = 4

	state = mustApply(t, state, "p1", TypeNominate, Params{TargetID: "p5"})
	state = voteTeamAll(t, state, true)

	if !state.IsGameOver {
		t.Fatal("expected the game to end the instant the AGI team is approved")
	}
	if state.CurrentPhase != game.PhaseGameOver {
		t.Fatalf("expected game over phase, got %s", state.CurrentPhase)
	}
	want := game.EvilWinners()
	if len(state.Winners) != len(want) || state.Winners[0] != want[0] || state.Winners[1] != want[1] {
		t.Fatalf("expected evil winners, got %v", state.Winners)
	}
	if len(state.DirectorCards) != 0 {
		t.Fatal("research must never start")
	}

	mustReject(t, state, "p1", TypeObserve, Params{}, CodeGameOver)
}

func TestAGIEngineerBelowThresholdPlays(t *testing.T) {
	state := fiveState()
	state.Capability = 7
	state.Safety = 4

	state = toResearch(t, state, "p5")
	if state.IsGameOver {
		t.Fatal("capability 7 must not trigger the AGI engineer win")
	}
}

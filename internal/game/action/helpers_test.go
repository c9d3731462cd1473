package action

import (
	"fmt"
	"testing"

	"github.com/alignmentgames/secretagi/internal/game"
	"github.com/alignmentgames/secretagi/internal/game/event"
)

// fiveState builds a deterministic five-player state. The deck is uniform
// (1,1) papers so publications never end the game by accident.
func fiveState() *game.State {
	players := []game.Player{
		{ID: "p1", Role: game.RoleSafety, Allegiance: game.AllegianceSafety, Alive: true},
		{ID: "p2", Role: game.RoleSafety, Allegiance: game.AllegianceSafety, Alive: true},
		{ID: "p3", Role: game.RoleSafety, Allegiance: game.AllegianceSafety, Alive: true},
		{ID: "p4", Role: game.RoleAccelerationist, Allegiance: game.AllegianceAcceleration, Alive: true},
		{ID: "p5", Role: game.RoleAGI, Allegiance: game.AllegianceAcceleration, Alive: true},
	}
	return &game.State{
		GameID:               "g1",
		RoundNumber:          1,
		Players:              players,
		Deck:                 uniformDeck(game.DeckSize),
		Discard:              []game.Paper{},
		CurrentDirectorIndex: 0,
		CurrentPhase:         game.PhaseTeamProposal,
	}
}

func uniformDeck(n int) []game.Paper {
	deck := make([]game.Paper, 0, n)
	for i := 0; i < n; i++ {
		deck = append(deck, game.Paper{ID: fmt.Sprintf("paper-%02d", i), Capability: 1, Safety: 1})
	}
	return deck
}

// mustApply applies an action and fails the test if it is rejected.
func mustApply(t *testing.T, state *game.State, actorID string, kind Type, params Params) *game.State {
	t.Helper()
	result := Apply(state, Request{ActorID: actorID, Kind: kind, Params: params})
	if !result.Outcome.Valid {
		t.Fatalf("%s by %s rejected: %s %s", kind, actorID, result.Outcome.Code, result.Outcome.Message)
	}
	return result.State
}

// mustReject applies an action and fails the test unless it is rejected with
// the given code. It also asserts the state was not touched.
func mustReject(t *testing.T, state *game.State, actorID string, kind Type, params Params, code Code) {
	t.Helper()
	before := state.TurnNumber
	result := Apply(state, Request{ActorID: actorID, Kind: kind, Params: params})
	if result.Outcome.Valid {
		t.Fatalf("%s by %s unexpectedly accepted", kind, actorID)
	}
	if result.Outcome.Code != code {
		t.Fatalf("%s by %s: expected code %s, got %s (%s)", kind, actorID, code, result.Outcome.Code, result.Outcome.Message)
	}
	if result.State != state || state.TurnNumber != before {
		t.Fatalf("%s by %s: invalid action mutated state", kind, actorID)
	}
	if len(result.Events) != 1 || result.Events[0].Type != event.TypeActionAttempted {
		t.Fatalf("%s by %s: expected a single audit event, got %v", kind, actorID, result.Events)
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// voteTeamAll casts the same team ballot for every alive player, in seat
// order, and returns the final state.
func voteTeamAll(t *testing.T, state *game.State, vote bool) *game.State {
	t.Helper()
	for _, player := range state.AlivePlayers() {
		state = mustApply(t, state, player.ID, TypeVoteTeam, Params{Vote: boolPtr(vote)})
		if state.IsGameOver || state.CurrentPhase != game.PhaseTeamProposal || state.NominatedEngineerID == "" {
			break
		}
	}
	return state
}

// toResearch nominates a target and passes the vote unanimously.
func toResearch(t *testing.T, state *game.State, target string) *game.State {
	t.Helper()
	director := state.CurrentDirector()
	state = mustApply(t, state, director.ID, TypeNominate, Params{TargetID: target})
	state = voteTeamAll(t, state, true)
	if !state.IsGameOver && state.CurrentPhase != game.PhaseResearch {
		t.Fatalf("expected research phase after unanimous vote, got %s", state.CurrentPhase)
	}
	return state
}

// countEvents counts events of a type in a state's log.
func countEvents(state *game.State, eventType event.Type) int {
	count := 0
	for _, evt := range state.Events {
		if evt.Type == eventType {
			count++
		}
	}
	return count
}

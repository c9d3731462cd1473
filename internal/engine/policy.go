package engine

import (
	"math/rand"

	"github.com/alignmentgames/secretagi/internal/game"
	"github.com/alignmentgames/secretagi/internal/game/action"
)

// Policy chooses an action for a player during simulation. Policies receive
// the full state; they are trusted harness components, not players.
type Policy interface {
	Choose(state *game.State, actorID string, valid []action.Type) (action.Request, bool)
}

// RandomPolicy picks uniformly among the legal game actions. It is the
// reference policy for completeness testing.
type RandomPolicy struct {
	rng *rand.Rand
}

// NewRandomPolicy creates a seeded random policy.
func NewRandomPolicy(seed int64) *RandomPolicy {
	return &RandomPolicy{rng: rand.New(rand.NewSource(seed))}
}

// Choose picks a legal action and fills in its parameters. Observe and chat
// are skipped so simulations always make progress.
func (p *RandomPolicy) Choose(state *game.State, actorID string, valid []action.Type) (action.Request, bool) {
	kinds := make([]action.Type, 0, len(valid))
	for _, kind := range valid {
		if kind == action.TypeObserve || kind == action.TypeSendChatMessage {
			continue
		}
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		return action.Request{}, false
	}

	kind := kinds[p.rng.Intn(len(kinds))]
	req := action.Request{ActorID: actorID, Kind: kind}

	switch kind {
	case action.TypeNominate:
		eligible := game.EligibleEngineers(state)
		if len(eligible) == 0 {
			return action.Request{}, false
		}
		req.Params.TargetID = eligible[p.rng.Intn(len(eligible))]

	case action.TypeVoteTeam, action.TypeVoteEmergency:
		vote := p.rng.Intn(2) == 0
		req.Params.Vote = &vote

	case action.TypeDiscardPaper:
		if len(state.DirectorCards) == 0 {
			return action.Request{}, false
		}
		req.Params.PaperID = state.DirectorCards[p.rng.Intn(len(state.DirectorCards))].ID

	case action.TypePublishPaper:
		if len(state.EngineerCards) == 0 {
			return action.Request{}, false
		}
		req.Params.PaperID = state.EngineerCards[p.rng.Intn(len(state.EngineerCards))].ID

	case action.TypeRespondVeto:
		agree := p.rng.Intn(2) == 0
		req.Params.Agree = &agree

	case action.TypeUsePower:
		var targets []string
		for _, player := range state.Players {
			if player.Alive && player.ID != actorID {
				targets = append(targets, player.ID)
			}
		}
		if len(targets) == 0 {
			return action.Request{}, false
		}
		req.Params.TargetID = targets[p.rng.Intn(len(targets))]
	}

	return req, true
}

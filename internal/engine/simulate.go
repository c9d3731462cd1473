package engine

import (
	"context"
	"fmt"

	"github.com/alignmentgames/secretagi/internal/game"
	"github.com/alignmentgames/secretagi/internal/game/action"
)

// DefaultTurnCap bounds simulations that never terminate on their own.
const DefaultTurnCap = 1000

// Summary reports a finished (or capped) simulation.
type Summary struct {
	GameID          string      `json:"game_id"`
	Completed       bool        `json:"completed"`
	Winners         []game.Role `json:"winners,omitempty"`
	Turns           int         `json:"turns"`
	FinalCapability int         `json:"final_capability"`
	FinalSafety     int         `json:"final_safety"`
}

// SimulateToCompletion drives the loaded game with the policy until it ends
// or the turn cap is reached. A nil policy falls back to a seeded random
// policy.
func (e *Engine) SimulateToCompletion(ctx context.Context, policy Policy, turnCap int) (Summary, error) {
	if e == nil || e.state == nil {
		return Summary{}, ErrNoActiveGame
	}
	if policy == nil {
		policy = NewRandomPolicy(0)
	}
	if turnCap <= 0 {
		turnCap = DefaultTurnCap
	}

	turns := 0
	for !e.state.IsGameOver && turns < turnCap {
		if err := ctx.Err(); err != nil {
			return e.summary(turns), err
		}

		acted := false
		for _, player := range e.state.AlivePlayers() {
			valid := action.ValidActions(e.state, player.ID)
			req, ok := policy.Choose(e.state, player.ID, valid)
			if !ok {
				continue
			}

			update, err := e.PerformAction(ctx, req.ActorID, req.Kind, req.Params)
			if err != nil {
				return e.summary(turns), err
			}
			if update.Success {
				acted = true
				turns++
				break
			}
		}

		if !acted {
			return e.summary(turns), fmt.Errorf("game %s stalled at turn %d: no player has a legal action", e.gameID, e.state.TurnNumber)
		}
	}

	return e.summary(turns), nil
}

func (e *Engine) summary(turns int) Summary {
	s := e.state
	return Summary{
		GameID:          e.gameID,
		Completed:       s.IsGameOver,
		Winners:         append([]game.Role(nil), s.Winners...),
		Turns:           turns,
		FinalCapability: s.Capability,
		FinalSafety:     s.Safety,
	}
}

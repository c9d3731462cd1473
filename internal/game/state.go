package game

import (
	"github.com/alignmentgames/secretagi/internal/game/event"
)

// State is the complete game state. It is treated as a versioned value: the
// action processor clones it, applies one action to the clone, and emits the
// clone. Emitted values are never mutated again, so snapshots can be stored
// by reference.
type State struct {
	GameID      string `json:"game_id"`
	TurnNumber  int    `json:"turn_number"`
	RoundNumber int    `json:"round_number"`

	Players []Player `json:"players"`

	Capability int `json:"capability"`
	Safety     int `json:"safety"`

	Deck    []Paper `json:"deck"`
	Discard []Paper `json:"discard"`

	CurrentDirectorIndex int `json:"current_director_index"`
	FailedProposals      int `json:"failed_proposals"`

	CurrentPhase Phase `json:"current_phase"`

	NominatedEngineerID string  `json:"nominated_engineer_id,omitempty"`
	DirectorCards       []Paper `json:"director_cards,omitempty"`
	EngineerCards       []Paper `json:"engineer_cards,omitempty"`

	TeamVotes      map[string]bool `json:"team_votes,omitempty"`
	EmergencyVotes map[string]bool `json:"emergency_votes,omitempty"`

	// EmergencyVoteOpen is set between call_emergency_safety and the vote
	// completing.
	EmergencyVoteOpen bool `json:"emergency_vote_open,omitempty"`
	// EmergencySafetyCalledThisRound blocks a second call until the round
	// ends with a publication or auto-publish; an agreed veto does not clear it.
	EmergencySafetyCalledThisRound bool `json:"emergency_safety_called_this_round,omitempty"`
	// EmergencySafetyActive reduces the next publication's capability gain
	// by one, floored at zero.
	EmergencySafetyActive bool `json:"emergency_safety_active,omitempty"`

	// VetoDeclared is set between declare_veto and the director's response.
	VetoDeclared bool `json:"veto_declared,omitempty"`

	VetoUnlocked  bool `json:"veto_unlocked,omitempty"`
	AGIMustReveal bool `json:"agi_must_reveal,omitempty"`

	// PendingPowers holds capability thresholds whose effects still need a
	// director-supplied target, in ascending order.
	PendingPowers []int `json:"pending_powers,omitempty"`

	// NextDirectorOverrideID is the capability-9 selection, applied instead
	// of rotation when the next round begins.
	NextDirectorOverrideID string `json:"next_director_override_id,omitempty"`

	// ViewedAllegiances maps viewer id to the allegiances that viewer has
	// privately seen, keyed by target id.
	ViewedAllegiances map[string]map[string]Allegiance `json:"viewed_allegiances,omitempty"`

	IsGameOver bool   `json:"is_game_over"`
	Winners    []Role `json:"winners,omitempty"`

	// Rules carries the configuration knobs resolved at creation.
	Rules RulesOptions `json:"rules"`

	Events []event.Event `json:"events,omitempty"`
}

// RulesOptions resolves the rule interpretations left open by the source
// material.
type RulesOptions struct {
	// PowerC9Immediate replaces the sitting director at once instead of
	// selecting the next one.
	PowerC9Immediate bool `json:"power_c9_immediate,omitempty"`
	// AGIWinAtPublish delays the AGI-engineer win until publication.
	AGIWinAtPublish bool `json:"agi_win_at_publish,omitempty"`
}

// AGIWinAtPublish reports whether the AGI-engineer win waits for publication.
func (s *State) AGIWinAtPublish() bool {
	return s.Rules.AGIWinAtPublish
}

// PowerC9Immediate reports whether the capability-9 power replaces the
// sitting director immediately.
func (s *State) PowerC9Immediate() bool {
	return s.Rules.PowerC9Immediate
}

// Clone returns a deep copy of the state. Paper values are immutable, so the
// copies share no mutable memory with the source.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	cloned := *s
	cloned.Players = append([]Player(nil), s.Players...)
	cloned.Deck = append([]Paper(nil), s.Deck...)
	cloned.Discard = append([]Paper(nil), s.Discard...)
	if s.DirectorCards != nil {
		cloned.DirectorCards = append([]Paper(nil), s.DirectorCards...)
	}
	if s.EngineerCards != nil {
		cloned.EngineerCards = append([]Paper(nil), s.EngineerCards...)
	}
	if s.TeamVotes != nil {
		cloned.TeamVotes = make(map[string]bool, len(s.TeamVotes))
		for k, v := range s.TeamVotes {
			cloned.TeamVotes[k] = v
		}
	}
	if s.EmergencyVotes != nil {
		cloned.EmergencyVotes = make(map[string]bool, len(s.EmergencyVotes))
		for k, v := range s.EmergencyVotes {
			cloned.EmergencyVotes[k] = v
		}
	}
	if s.PendingPowers != nil {
		cloned.PendingPowers = append([]int(nil), s.PendingPowers...)
	}
	if s.ViewedAllegiances != nil {
		cloned.ViewedAllegiances = make(map[string]map[string]Allegiance, len(s.ViewedAllegiances))
		for viewer, targets := range s.ViewedAllegiances {
			inner := make(map[string]Allegiance, len(targets))
			for target, allegiance := range targets {
				inner[target] = allegiance
			}
			cloned.ViewedAllegiances[viewer] = inner
		}
	}
	if s.Winners != nil {
		cloned.Winners = append([]Role(nil), s.Winners...)
	}
	cloned.Events = append([]event.Event(nil), s.Events...)
	return &cloned
}

// PlayerByID returns the seated player with the given id, or nil.
func (s *State) PlayerByID(id string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// CurrentDirector returns the sitting director.
func (s *State) CurrentDirector() *Player {
	if s.CurrentDirectorIndex < 0 || s.CurrentDirectorIndex >= len(s.Players) {
		return nil
	}
	return &s.Players[s.CurrentDirectorIndex]
}

// AlivePlayers returns the alive players in seat order.
func (s *State) AlivePlayers() []Player {
	alive := make([]Player, 0, len(s.Players))
	for _, p := range s.Players {
		if p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}

// AliveCount returns how many players are alive.
func (s *State) AliveCount() int {
	count := 0
	for _, p := range s.Players {
		if p.Alive {
			count++
		}
	}
	return count
}

// NextDirectorIndex returns the seat index of the next alive player clockwise
// from the current director.
func (s *State) NextDirectorIndex() int {
	n := len(s.Players)
	for offset := 1; offset <= n; offset++ {
		idx := (s.CurrentDirectorIndex + offset) % n
		if s.Players[idx].Alive {
			return idx
		}
	}
	return s.CurrentDirectorIndex
}

// AGIPlayer returns the AGI, or nil if the seat list is malformed.
func (s *State) AGIPlayer() *Player {
	for i := range s.Players {
		if s.Players[i].Role == RoleAGI {
			return &s.Players[i]
		}
	}
	return nil
}

// TotalPapers counts every paper across the deck, discard, and draw buffers.
// Published papers live in the discard, so the total stays at the deck size
// for the whole game.
func (s *State) TotalPapers() int {
	return len(s.Deck) + len(s.Discard) + len(s.DirectorCards) + len(s.EngineerCards)
}

// AwaitingPower reports whether a triggered power still needs a target.
func (s *State) AwaitingPower() bool {
	return len(s.PendingPowers) > 0
}

// PendingPower returns the lowest unresolved power threshold, or zero.
func (s *State) PendingPower() int {
	if len(s.PendingPowers) == 0 {
		return 0
	}
	return s.PendingPowers[0]
}

// AppendEvent records an event in the state's ordered log.
func (s *State) AppendEvent(evt event.Event) {
	s.Events = append(s.Events, evt)
}

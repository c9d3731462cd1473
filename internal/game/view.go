package game

import (
	"fmt"

	"github.com/alignmentgames/secretagi/internal/game/event"
)

// SeatView is the public slice of a seated player.
type SeatView struct {
	ID              string `json:"id"`
	Alive           bool   `json:"alive"`
	WasLastEngineer bool   `json:"was_last_engineer"`
}

// PlayerView is the state as one player may see it: public scalars plus that
// player's private knowledge. It never includes the deck contents or another
// player's hand.
type PlayerView struct {
	GameID      string `json:"game_id"`
	TurnNumber  int    `json:"turn_number"`
	RoundNumber int    `json:"round_number"`
	Phase       Phase  `json:"phase"`

	Capability      int `json:"capability"`
	Safety          int `json:"safety"`
	FailedProposals int `json:"failed_proposals"`
	DeckCount       int `json:"deck_count"`
	DiscardCount    int `json:"discard_count"`

	Players             []SeatView `json:"players"`
	CurrentDirectorID   string     `json:"current_director_id"`
	NominatedEngineerID string     `json:"nominated_engineer_id,omitempty"`

	EmergencyVoteOpen     bool `json:"emergency_vote_open"`
	EmergencySafetyActive bool `json:"emergency_safety_active"`
	VetoUnlocked          bool `json:"veto_unlocked"`
	VetoDeclared          bool `json:"veto_declared"`
	AGIMustReveal         bool `json:"agi_must_reveal"`
	AwaitingPowerTarget   bool `json:"awaiting_power_target"`
	PendingPower          int  `json:"pending_power,omitempty"`

	IsGameOver bool   `json:"is_game_over"`
	Winners    []Role `json:"winners,omitempty"`

	// Private slice for the viewing player.
	Role              Role                  `json:"role"`
	Allegiance        Allegiance            `json:"allegiance"`
	Allies            []string              `json:"allies,omitempty"`
	ViewedAllegiances map[string]Allegiance `json:"viewed_allegiances,omitempty"`
	Hand              []Paper               `json:"hand,omitempty"`
}

// BuildPlayerView assembles the filtered state for one player.
func BuildPlayerView(s *State, playerID string) (PlayerView, error) {
	player := s.PlayerByID(playerID)
	if player == nil {
		return PlayerView{}, fmt.Errorf("player %s is not seated in game %s", playerID, s.GameID)
	}

	seats := make([]SeatView, 0, len(s.Players))
	for _, p := range s.Players {
		seats = append(seats, SeatView{ID: p.ID, Alive: p.Alive, WasLastEngineer: p.WasLastEngineer})
	}

	view := PlayerView{
		GameID:                s.GameID,
		TurnNumber:            s.TurnNumber,
		RoundNumber:           s.RoundNumber,
		Phase:                 s.CurrentPhase,
		Capability:            s.Capability,
		Safety:                s.Safety,
		FailedProposals:       s.FailedProposals,
		DeckCount:             len(s.Deck),
		DiscardCount:          len(s.Discard),
		Players:               seats,
		NominatedEngineerID:   s.NominatedEngineerID,
		EmergencyVoteOpen:     s.EmergencyVoteOpen,
		EmergencySafetyActive: s.EmergencySafetyActive,
		VetoUnlocked:          s.VetoUnlocked,
		VetoDeclared:          s.VetoDeclared,
		AGIMustReveal:         s.AGIMustReveal,
		AwaitingPowerTarget:   s.AwaitingPower(),
		PendingPower:          s.PendingPower(),
		IsGameOver:            s.IsGameOver,
		Winners:               append([]Role(nil), s.Winners...),
		Role:                  player.Role,
		Allegiance:            player.Allegiance,
	}
	if director := s.CurrentDirector(); director != nil {
		view.CurrentDirectorID = director.ID
	}

	// Accelerationists and the AGI know each other.
	if player.Allegiance == AllegianceAcceleration {
		for _, p := range s.Players {
			if p.ID != player.ID && p.Allegiance == AllegianceAcceleration {
				view.Allies = append(view.Allies, p.ID)
			}
		}
	}

	if viewed, ok := s.ViewedAllegiances[playerID]; ok {
		view.ViewedAllegiances = make(map[string]Allegiance, len(viewed))
		for target, allegiance := range viewed {
			view.ViewedAllegiances[target] = allegiance
		}
	}

	if director := s.CurrentDirector(); director != nil && director.ID == playerID && len(s.DirectorCards) > 0 {
		view.Hand = append([]Paper(nil), s.DirectorCards...)
	}
	if s.NominatedEngineerID == playerID && len(s.EngineerCards) > 0 {
		view.Hand = append([]Paper(nil), s.EngineerCards...)
	}

	return view, nil
}

// VisibleEvents returns the events a player may see, in emission order,
// restricted to turns strictly after sinceTurn.
func VisibleEvents(s *State, playerID string, sinceTurn int) []event.Event {
	player := s.PlayerByID(playerID)
	if player == nil {
		return nil
	}
	var visible []event.Event
	for _, evt := range s.Events {
		if evt.TurnNumber <= sinceTurn {
			continue
		}
		if evt.VisibleTo(playerID, player.Alive) {
			visible = append(visible, evt)
		}
	}
	return visible
}

package action

import (
	"github.com/alignmentgames/secretagi/internal/game"
)

// ValidActions lists the action kinds a player could submit right now.
// Observe is always available to seated players; everything else follows the
// same preconditions Apply enforces.
func ValidActions(s *game.State, playerID string) []Type {
	valid := []Type{TypeObserve}

	player := s.PlayerByID(playerID)
	if player == nil || !player.Alive || s.IsGameOver {
		return valid
	}
	valid = append(valid, TypeSendChatMessage)

	director := s.CurrentDirector()
	isDirector := director != nil && director.ID == playerID

	if s.AwaitingPower() {
		if isDirector {
			valid = append(valid, TypeUsePower)
		}
		return valid
	}

	switch s.CurrentPhase {
	case game.PhaseTeamProposal:
		if s.EmergencyVoteOpen {
			if _, voted := s.EmergencyVotes[playerID]; !voted {
				valid = append(valid, TypeVoteEmergency)
			}
			return valid
		}
		if isDirector && s.NominatedEngineerID == "" {
			valid = append(valid, TypeNominate)
		}
		if game.EmergencySafetyAllowed(s) && !s.EmergencySafetyCalledThisRound {
			valid = append(valid, TypeCallEmergencySafety)
		}
		if s.NominatedEngineerID != "" {
			if _, voted := s.TeamVotes[playerID]; !voted {
				valid = append(valid, TypeVoteTeam)
			}
		}

	case game.PhaseResearch:
		if isDirector {
			if len(s.DirectorCards) > 0 {
				valid = append(valid, TypeDiscardPaper)
			}
			if s.VetoDeclared {
				valid = append(valid, TypeRespondVeto)
			}
		}
		if s.NominatedEngineerID == playerID && len(s.EngineerCards) > 0 && !s.VetoDeclared {
			valid = append(valid, TypePublishPaper)
			if s.VetoUnlocked && !vetoRefusedThisResearch(s) {
				valid = append(valid, TypeDeclareVeto)
			}
		}
	}

	return valid
}

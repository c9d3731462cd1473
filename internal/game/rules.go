package game

import "sort"

// Win reasons recorded on the game_ended event.
const (
	WinReasonSafetyThreshold = "safety_threshold"
	WinReasonCapabilityCap   = "capability_capped_safely"
	WinReasonAGIEliminated   = "agi_eliminated"
	WinReasonCapabilityRun   = "capability_runaway"
	WinReasonCapabilityGap   = "capability_gap"
	WinReasonAGIEngineer     = "agi_engineer"
	WinReasonDeckExhausted   = "deck_exhausted"
)

// powerThresholds are the capability levels that trigger powers.
var powerThresholds = []int{3, 6, 9, 10, 11, 12}

// sizeGatedThresholds fire only in 9-10 player games.
var sizeGatedThresholds = map[int]bool{3: true, 11: true}

// WinResult reports every win condition triggered by a state.
type WinResult struct {
	GameOver bool
	Winners  []Role
	Reason   string
}

// EvilWinners is the winner set when the acceleration faction wins.
func EvilWinners() []Role {
	return []Role{RoleAccelerationist, RoleAGI}
}

// SafetyWinners is the winner set when the safety faction wins.
func SafetyWinners() []Role {
	return []Role{RoleSafety}
}

// CheckWinConditions evaluates all win conditions simultaneously. Every
// triggered condition is collected; when both factions have a triggered
// condition, the acceleration faction wins.
func CheckWinConditions(s *State) WinResult {
	var safetyReasons, evilReasons []string

	if agi := s.AGIPlayer(); agi != nil && !agi.Alive {
		safetyReasons = append(safetyReasons, WinReasonAGIEliminated)
	}
	if s.Capability == 10 && s.Safety >= s.Capability {
		safetyReasons = append(safetyReasons, WinReasonCapabilityCap)
	}
	if s.Safety >= 15 {
		safetyReasons = append(safetyReasons, WinReasonSafetyThreshold)
	}

	if s.Capability >= 15 && s.Safety < 10 {
		evilReasons = append(evilReasons, WinReasonCapabilityRun)
	}
	if s.Capability-s.Safety >= 6 {
		evilReasons = append(evilReasons, WinReasonCapabilityGap)
	}

	if len(s.Deck) == 0 {
		if s.Safety >= s.Capability {
			safetyReasons = append(safetyReasons, WinReasonDeckExhausted)
		} else {
			evilReasons = append(evilReasons, WinReasonDeckExhausted)
		}
	}

	switch {
	case len(evilReasons) > 0:
		return WinResult{GameOver: true, Winners: EvilWinners(), Reason: evilReasons[0]}
	case len(safetyReasons) > 0:
		return WinResult{GameOver: true, Winners: SafetyWinners(), Reason: safetyReasons[0]}
	}
	return WinResult{}
}

// EmergencySafetyAllowed reports whether emergency safety can be called:
// the capability lead over safety must be exactly 4 or 5.
func EmergencySafetyAllowed(s *State) bool {
	gap := s.Capability - s.Safety
	return gap == 4 || gap == 5
}

// EligibleEngineers lists alive players who may be nominated.
func EligibleEngineers(s *State) []string {
	eligible := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		if p.Alive && !p.WasLastEngineer {
			eligible = append(eligible, p.ID)
		}
	}
	return eligible
}

// PowersTriggered returns the power thresholds crossed by a capability
// increase, ascending. Size-gated thresholds are dropped below nine players.
func PowersTriggered(oldCapability, newCapability, playerCount int) []int {
	var triggered []int
	for _, threshold := range powerThresholds {
		if sizeGatedThresholds[threshold] && playerCount < 9 {
			continue
		}
		if oldCapability < threshold && threshold <= newCapability {
			triggered = append(triggered, threshold)
		}
	}
	sort.Ints(triggered)
	return triggered
}

// PowerNeedsTarget reports whether a threshold's effect requires a
// director-supplied target.
func PowerNeedsTarget(threshold int) bool {
	switch threshold {
	case 3, 6, 9, 11:
		return true
	}
	return false
}

// aliveVotes filters a ballot down to alive voters.
func aliveVotes(s *State, ballots map[string]bool) map[string]bool {
	alive := make(map[string]bool, len(ballots))
	for _, p := range s.Players {
		if !p.Alive {
			continue
		}
		if vote, ok := ballots[p.ID]; ok {
			alive[p.ID] = vote
		}
	}
	return alive
}

// VoteComplete reports whether every alive player has cast a ballot.
func VoteComplete(s *State, ballots map[string]bool) bool {
	return len(aliveVotes(s, ballots)) == s.AliveCount()
}

// VotePasses reports whether a completed vote has a strict majority of yes
// ballots among alive voters. Ties fail.
func VotePasses(s *State, ballots map[string]bool) bool {
	votes := aliveVotes(s, ballots)
	if len(votes) != s.AliveCount() {
		return false
	}
	yes := 0
	for _, vote := range votes {
		if vote {
			yes++
		}
	}
	return yes > len(votes)/2
}

// ResetEngineerEligibility clears every player's was-last-engineer flag.
func ResetEngineerEligibility(s *State) {
	for i := range s.Players {
		s.Players[i].WasLastEngineer = false
	}
}

package action

import (
	"github.com/alignmentgames/secretagi/internal/game"
	"github.com/alignmentgames/secretagi/internal/game/event"
)

func validateNominate(s *game.State, req Request) Outcome {
	if s.CurrentPhase != game.PhaseTeamProposal {
		return reject(CodeInvalidPhase, "nomination is only allowed during team proposal")
	}
	if s.AwaitingPower() {
		return reject(CodeInvalidPhase, "a power target must be chosen first")
	}
	if director := s.CurrentDirector(); director == nil || director.ID != req.ActorID {
		return reject(CodeNotActor, "only the director can nominate")
	}
	if s.NominatedEngineerID != "" {
		return reject(CodeInvalidPhase, "an engineer is already nominated this round")
	}
	target := req.Params.TargetID
	if target == "" {
		return reject(CodeIneligibleTarget, "a target player is required")
	}
	targetPlayer := s.PlayerByID(target)
	if targetPlayer == nil || !targetPlayer.Alive {
		return reject(CodeIneligibleTarget, "player %s cannot be nominated", target)
	}
	if targetPlayer.WasLastEngineer {
		return reject(CodeIneligibleTarget, "player %s was the last engineer", target)
	}
	return accept()
}

func processNominate(ctx *applyContext, req Request) {
	ctx.state.NominatedEngineerID = req.Params.TargetID
	ctx.state.TeamVotes = make(map[string]bool)
}

func validateVoteTeam(s *game.State, req Request) Outcome {
	if s.CurrentPhase != game.PhaseTeamProposal {
		return reject(CodeInvalidPhase, "team votes are only cast during team proposal")
	}
	if s.NominatedEngineerID == "" {
		return reject(CodeInvalidPhase, "no engineer has been nominated")
	}
	if s.EmergencyVoteOpen {
		return reject(CodeInvalidPhase, "the emergency safety vote must finish first")
	}
	if _, voted := s.TeamVotes[req.ActorID]; voted {
		return reject(CodeDuplicateVote, "player %s already voted on this team", req.ActorID)
	}
	if req.Params.Vote == nil {
		return reject(CodeIneligibleTarget, "a vote value is required")
	}
	return accept()
}

func processVoteTeam(ctx *applyContext, req Request) {
	s := ctx.state
	if s.TeamVotes == nil {
		s.TeamVotes = make(map[string]bool)
	}
	s.TeamVotes[req.ActorID] = *req.Params.Vote

	if !game.VoteComplete(s, s.TeamVotes) {
		return
	}

	passed := game.VotePasses(s, s.TeamVotes)
	ctx.emit(event.TypeVoteCompleted, "", voteCompletedPayload("team", passed, s.TeamVotes))

	if passed {
		finalizeApprovedTeam(ctx)
		return
	}

	s.FailedProposals++
	if s.FailedProposals >= 3 {
		autoPublish(ctx)
		return
	}

	s.CurrentDirectorIndex = s.NextDirectorIndex()
	resetProposalState(s)
}

// finalizeApprovedTeam handles a passing team vote: eligibility resets, the
// AGI-engineer win check, and the move into research.
func finalizeApprovedTeam(ctx *applyContext) {
	s := ctx.state
	s.FailedProposals = 0
	game.ResetEngineerEligibility(s)

	if !s.AGIWinAtPublish() && s.Capability >= 8 {
		if nominee := s.PlayerByID(s.NominatedEngineerID); nominee != nil && nominee.Role == game.RoleAGI {
			endGame(ctx, game.WinResult{GameOver: true, Winners: game.EvilWinners(), Reason: game.WinReasonAGIEngineer})
			return
		}
	}

	startResearch(ctx)
}

// startResearch transitions into the research phase and deals the director's
// hand. A short deck deals what remains; the deck-exhaustion outcome is then
// picked up by the post-action win check.
func startResearch(ctx *applyContext) {
	s := ctx.state
	s.CurrentPhase = game.PhaseResearch

	draw := 3
	if len(s.Deck) < draw {
		draw = len(s.Deck)
	}
	s.DirectorCards = append([]game.Paper(nil), s.Deck[:draw]...)
	s.Deck = append([]game.Paper(nil), s.Deck[draw:]...)

	ctx.emit(event.TypePhaseTransition, "", event.PhaseTransitionPayload{
		From: string(game.PhaseTeamProposal),
		To:   string(game.PhaseResearch),
	})
}

func validateCallEmergencySafety(s *game.State, req Request) Outcome {
	if s.CurrentPhase != game.PhaseTeamProposal {
		return reject(CodeInvalidPhase, "emergency safety is only called during team proposal")
	}
	if s.AwaitingPower() {
		return reject(CodeInvalidPhase, "a power target must be chosen first")
	}
	if !game.EmergencySafetyAllowed(s) {
		return reject(CodeInvalidPhase, "emergency safety requires a capability lead of 4 or 5")
	}
	if s.EmergencySafetyCalledThisRound {
		return reject(CodeDuplicateVote, "emergency safety was already called this round")
	}
	return accept()
}

func processCallEmergencySafety(ctx *applyContext, _ Request) {
	s := ctx.state
	s.EmergencySafetyCalledThisRound = true
	s.EmergencyVoteOpen = true
	s.EmergencyVotes = make(map[string]bool)
}

func validateVoteEmergency(s *game.State, req Request) Outcome {
	if !s.EmergencyVoteOpen {
		return reject(CodeInvalidPhase, "no emergency safety vote is open")
	}
	if _, voted := s.EmergencyVotes[req.ActorID]; voted {
		return reject(CodeDuplicateVote, "player %s already voted on emergency safety", req.ActorID)
	}
	if req.Params.Vote == nil {
		return reject(CodeIneligibleTarget, "a vote value is required")
	}
	return accept()
}

func processVoteEmergency(ctx *applyContext, req Request) {
	s := ctx.state
	if s.EmergencyVotes == nil {
		s.EmergencyVotes = make(map[string]bool)
	}
	s.EmergencyVotes[req.ActorID] = *req.Params.Vote

	if !game.VoteComplete(s, s.EmergencyVotes) {
		return
	}

	passed := game.VotePasses(s, s.EmergencyVotes)
	if passed {
		s.EmergencySafetyActive = true
	}
	s.EmergencyVoteOpen = false
	ctx.emit(event.TypeVoteCompleted, "", voteCompletedPayload("emergency_safety", passed, s.EmergencyVotes))
}

// voteCompletedPayload snapshots a finished ballot for the event log.
func voteCompletedPayload(voteType string, result bool, ballots map[string]bool) event.VoteCompletedPayload {
	votes := make(map[string]bool, len(ballots))
	yes := 0
	for id, vote := range ballots {
		votes[id] = vote
		if vote {
			yes++
		}
	}
	return event.VoteCompletedPayload{
		VoteType: voteType,
		Result:   result,
		Votes:    votes,
		YesCount: yes,
		Total:    len(votes),
	}
}

// resetProposalState clears the per-nomination state after a failed vote or
// an agreed veto. Round-scoped flags survive.
func resetProposalState(s *game.State) {
	s.NominatedEngineerID = ""
	s.TeamVotes = nil
	s.DirectorCards = nil
	s.EngineerCards = nil
	s.VetoDeclared = false
}

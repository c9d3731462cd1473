package action

import (
	"fmt"

	"github.com/alignmentgames/secretagi/internal/game"
	"github.com/alignmentgames/secretagi/internal/game/event"
)

func validateDiscardPaper(s *game.State, req Request) Outcome {
	if s.CurrentPhase != game.PhaseResearch {
		return reject(CodeInvalidPhase, "papers are only discarded during research")
	}
	if director := s.CurrentDirector(); director == nil || director.ID != req.ActorID {
		return reject(CodeNotActor, "only the director discards papers")
	}
	if len(s.DirectorCards) == 0 {
		return reject(CodeInvalidPhase, "the director holds no papers")
	}
	if req.Params.PaperID == "" {
		return reject(CodeUnknownPaper, "a paper id is required")
	}
	if !paperInHand(s.DirectorCards, req.Params.PaperID) {
		return reject(CodeUnknownPaper, "paper %s is not in the director's hand", req.Params.PaperID)
	}
	return accept()
}

func processDiscardPaper(ctx *applyContext, req Request) {
	s := ctx.state
	kept := make([]game.Paper, 0, len(s.DirectorCards)-1)
	for _, paper := range s.DirectorCards {
		if paper.ID == req.Params.PaperID {
			s.Discard = append(s.Discard, paper)
			continue
		}
		kept = append(kept, paper)
	}
	s.EngineerCards = kept
	s.DirectorCards = nil
}

func validateDeclareVeto(s *game.State, req Request) Outcome {
	if s.CurrentPhase != game.PhaseResearch {
		return reject(CodeInvalidPhase, "veto is only declared during research")
	}
	if s.NominatedEngineerID != req.ActorID {
		return reject(CodeNotActor, "only the engineer declares veto")
	}
	if !s.VetoUnlocked {
		return reject(CodeNotUnlocked, "veto is not unlocked")
	}
	if len(s.EngineerCards) == 0 {
		return reject(CodeInvalidPhase, "the engineer holds no papers")
	}
	if s.VetoDeclared {
		return reject(CodeInvalidPhase, "veto was already declared")
	}
	if vetoRefusedThisResearch(s) {
		return reject(CodeInvalidPhase, "the veto was refused; the engineer must publish")
	}
	return accept()
}

// vetoRefusedThisResearch reports whether a veto response was accepted since
// the last phase transition. An agreed veto leaves research, so a response
// found inside the current research phase is a refusal.
func vetoRefusedThisResearch(s *game.State) bool {
	for i := len(s.Events) - 1; i >= 0; i-- {
		evt := s.Events[i]
		if evt.Type == event.TypePhaseTransition {
			return false
		}
		var attempt event.ActionAttemptedPayload
		if evt.Type == event.TypeActionAttempted && evt.Decode(&attempt) == nil &&
			attempt.Action == string(TypeRespondVeto) && attempt.Valid {
			return true
		}
	}
	return false
}

func processDeclareVeto(ctx *applyContext, _ Request) {
	ctx.state.VetoDeclared = true
}

func validateRespondVeto(s *game.State, req Request) Outcome {
	if s.CurrentPhase != game.PhaseResearch {
		return reject(CodeInvalidPhase, "veto responses only happen during research")
	}
	if !s.VetoDeclared {
		return reject(CodeInvalidPhase, "no veto has been declared")
	}
	if director := s.CurrentDirector(); director == nil || director.ID != req.ActorID {
		return reject(CodeNotActor, "only the director responds to a veto")
	}
	if req.Params.Agree == nil {
		return reject(CodeIneligibleTarget, "an agree value is required")
	}
	return accept()
}

func processRespondVeto(ctx *applyContext, req Request) {
	s := ctx.state
	s.VetoDeclared = false
	if !*req.Params.Agree {
		// The engineer must publish normally.
		return
	}

	// The director's discarded paper is already in the discard pile; the
	// engineer's two join it so all three drawn papers are out of play.
	s.Discard = append(s.Discard, s.EngineerCards...)
	s.EngineerCards = nil
	s.DirectorCards = nil

	s.FailedProposals++
	if s.FailedProposals >= 3 {
		autoPublish(ctx)
		return
	}

	resetProposalState(s)
	s.CurrentPhase = game.PhaseTeamProposal
	ctx.emit(event.TypePhaseTransition, "", event.PhaseTransitionPayload{
		From: string(game.PhaseResearch),
		To:   string(game.PhaseTeamProposal),
	})
}

func validatePublishPaper(s *game.State, req Request) Outcome {
	if s.CurrentPhase != game.PhaseResearch {
		return reject(CodeInvalidPhase, "papers are only published during research")
	}
	if s.NominatedEngineerID != req.ActorID {
		return reject(CodeNotActor, "only the engineer publishes")
	}
	if len(s.EngineerCards) == 0 {
		return reject(CodeInvalidPhase, "the engineer holds no papers")
	}
	if s.VetoDeclared {
		return reject(CodeInvalidPhase, "the declared veto must be answered first")
	}
	if req.Params.PaperID == "" {
		return reject(CodeUnknownPaper, "a paper id is required")
	}
	if !paperInHand(s.EngineerCards, req.Params.PaperID) {
		return reject(CodeUnknownPaper, "paper %s is not in the engineer's hand", req.Params.PaperID)
	}
	return accept()
}

func processPublishPaper(ctx *applyContext, req Request) {
	s := ctx.state

	var published game.Paper
	for _, paper := range s.EngineerCards {
		if paper.ID == req.Params.PaperID {
			published = paper
			continue
		}
		s.Discard = append(s.Discard, paper)
	}
	s.EngineerCards = nil
	s.DirectorCards = nil

	if engineer := s.PlayerByID(s.NominatedEngineerID); engineer != nil {
		engineer.WasLastEngineer = true
	}

	if s.AGIWinAtPublish() && s.Capability >= 8 {
		if engineer := s.PlayerByID(s.NominatedEngineerID); engineer != nil && engineer.Role == game.RoleAGI {
			s.Discard = append(s.Discard, published)
			endGame(ctx, game.WinResult{GameOver: true, Winners: game.EvilWinners(), Reason: game.WinReasonAGIEngineer})
			return
		}
	}

	applyPublication(ctx, published, req.ActorID, false)
	if ctx.failed.Code != "" || s.IsGameOver {
		return
	}

	if !s.AwaitingPower() {
		prepareNextRound(ctx)
	}
}

// applyPublication applies a paper's deltas to the meters, consumes the
// emergency safety modifier, discards the paper, and fires power triggers.
func applyPublication(ctx *applyContext, paper game.Paper, actorID string, auto bool) {
	s := ctx.state

	gain := paper.Capability
	if s.EmergencySafetyActive {
		gain--
		if gain < 0 {
			gain = 0
		}
		s.EmergencySafetyActive = false
	}

	oldCapability := s.Capability
	s.Capability += gain
	s.Safety += paper.Safety
	s.Discard = append(s.Discard, paper)

	ctx.emit(event.TypePaperPublished, actorID, event.PaperPublishedPayload{
		PaperID:        paper.ID,
		Capability:     paper.Capability,
		Safety:         paper.Safety,
		CapabilityGain: gain,
		AutoPublished:  auto,
		NewCapability:  s.Capability,
		NewSafety:      s.Safety,
	})

	triggerPowers(ctx, oldCapability, s.Capability)
}

// triggerPowers fires the thresholds crossed by a capability increase in
// ascending order. Permanent effects apply at once; targeted effects queue
// until the director supplies a target.
func triggerPowers(ctx *applyContext, oldCapability, newCapability int) {
	s := ctx.state
	directorID := ""
	if director := s.CurrentDirector(); director != nil {
		directorID = director.ID
	}

	for _, threshold := range game.PowersTriggered(oldCapability, newCapability, len(s.Players)) {
		switch threshold {
		case 10:
			s.AGIMustReveal = true
			ctx.emit(event.TypePowerTriggered, "", powerPayload(s, threshold, "the AGI must reveal itself when asked"))
		case 12:
			s.VetoUnlocked = true
			ctx.emit(event.TypePowerTriggered, "", powerPayload(s, threshold, "veto unlocked for engineers"))
		default:
			s.PendingPowers = append(s.PendingPowers, threshold)
			ctx.emit(event.TypePowerTriggered, directorID, powerPayload(s, threshold, powerEffect(threshold)))
		}
		if ctx.failed.Code != "" {
			return
		}
	}
}

func powerPayload(s *game.State, threshold int, effect string) event.PowerTriggeredPayload {
	return event.PowerTriggeredPayload{
		Threshold:  threshold,
		Effect:     effect,
		Capability: s.Capability,
		Safety:     s.Safety,
	}
}

// powerEffect describes a targeted power for the event log.
func powerEffect(threshold int) string {
	switch threshold {
	case 3, 6:
		return "the director views a player's allegiance"
	case 9:
		return "the director chooses the next director"
	case 11:
		return "the director eliminates a player"
	}
	return fmt.Sprintf("capability power %d", threshold)
}

// autoPublish publishes the top deck paper after three failed proposals and
// resets the proposal cycle. An empty deck falls through to the win check's
// deck-exhaustion outcome.
func autoPublish(ctx *applyContext) {
	s := ctx.state

	if len(s.Deck) > 0 {
		paper := s.Deck[0]
		s.Deck = append([]game.Paper(nil), s.Deck[1:]...)
		applyPublication(ctx, paper, "", true)
		if ctx.failed.Code != "" {
			return
		}
	}

	s.FailedProposals = 0
	game.ResetEngineerEligibility(s)
	prepareNextRound(ctx)
}

func validateUsePower(s *game.State, req Request) Outcome {
	if !s.AwaitingPower() {
		return reject(CodeInvalidPhase, "no power is awaiting a target")
	}
	if director := s.CurrentDirector(); director == nil || director.ID != req.ActorID {
		return reject(CodeNotActor, "only the director resolves powers")
	}
	threshold := s.PendingPower()
	if req.Params.Power != 0 && req.Params.Power != threshold {
		if game.PowerNeedsTarget(req.Params.Power) && len(s.Players) < 9 && (req.Params.Power == 3 || req.Params.Power == 11) {
			return reject(CodeSizeGated, "power %d is unavailable below nine players", req.Params.Power)
		}
		return reject(CodeInvalidPhase, "power %d is not pending; power %d is", req.Params.Power, threshold)
	}

	target := req.Params.TargetID
	if target == "" {
		return reject(CodeIneligibleTarget, "a target player is required")
	}
	targetPlayer := s.PlayerByID(target)
	if targetPlayer == nil || !targetPlayer.Alive {
		return reject(CodeIneligibleTarget, "player %s cannot be targeted", target)
	}
	if target == req.ActorID {
		return reject(CodeIneligibleTarget, "the director cannot target themselves")
	}
	return accept()
}

func processUsePower(ctx *applyContext, req Request) {
	s := ctx.state
	threshold := s.PendingPowers[0]
	s.PendingPowers = s.PendingPowers[1:]
	if len(s.PendingPowers) == 0 {
		s.PendingPowers = nil
	}

	target := s.PlayerByID(req.Params.TargetID)
	if target == nil {
		ctx.failed = reject(CodeInternal, "power target %s vanished", req.Params.TargetID)
		return
	}

	switch threshold {
	case 3, 6:
		if s.ViewedAllegiances == nil {
			s.ViewedAllegiances = make(map[string]map[string]game.Allegiance)
		}
		if s.ViewedAllegiances[req.ActorID] == nil {
			s.ViewedAllegiances[req.ActorID] = make(map[string]game.Allegiance)
		}
		s.ViewedAllegiances[req.ActorID][target.ID] = target.Allegiance
		ctx.emitPrivate(event.TypeStateChanged, req.ActorID, req.ActorID, event.StateChangedPayload{
			Kind:       event.StateChangeAllegianceViewed,
			TargetID:   target.ID,
			Allegiance: string(target.Allegiance),
		})

	case 9:
		if s.PowerC9Immediate() || s.CurrentPhase == game.PhaseTeamProposal {
			s.CurrentDirectorIndex = seatIndex(s, target.ID)
		} else {
			s.NextDirectorOverrideID = target.ID
		}
		ctx.emit(event.TypeStateChanged, "", event.StateChangedPayload{
			Kind:          event.StateChangeDirectorChosen,
			NewDirectorID: target.ID,
		})

	case 11:
		target.Alive = false
		ctx.emit(event.TypeStateChanged, "", event.StateChangedPayload{
			Kind:         event.StateChangePlayerEliminated,
			PlayerID:     target.ID,
			RoleRevealed: string(target.Role),
		})

	default:
		ctx.failed = reject(CodeInternal, "power %d does not take a target", threshold)
		return
	}

	if ctx.failed.Code != "" {
		return
	}
	if !s.AwaitingPower() && s.CurrentPhase == game.PhaseResearch {
		prepareNextRound(ctx)
	}
}

// prepareNextRound rotates the director (or applies a capability-9 override),
// clears the proposal state, and returns to team proposal.
func prepareNextRound(ctx *applyContext) {
	s := ctx.state
	from := s.CurrentPhase

	if s.NextDirectorOverrideID != "" {
		if chosen := s.PlayerByID(s.NextDirectorOverrideID); chosen != nil && chosen.Alive {
			s.CurrentDirectorIndex = seatIndex(s, chosen.ID)
		} else {
			s.CurrentDirectorIndex = s.NextDirectorIndex()
		}
		s.NextDirectorOverrideID = ""
	} else {
		s.CurrentDirectorIndex = s.NextDirectorIndex()
	}

	s.RoundNumber++
	resetProposalState(s)
	s.EmergencyVoteOpen = false
	s.EmergencySafetyCalledThisRound = false
	s.EmergencyVotes = nil
	s.CurrentPhase = game.PhaseTeamProposal

	if from == game.PhaseResearch {
		ctx.emit(event.TypePhaseTransition, "", event.PhaseTransitionPayload{
			From: string(from),
			To:   string(game.PhaseTeamProposal),
		})
	}
}

// seatIndex returns the seat index for a player id. The caller guarantees the
// player exists.
func seatIndex(s *game.State, playerID string) int {
	for i := range s.Players {
		if s.Players[i].ID == playerID {
			return i
		}
	}
	return s.CurrentDirectorIndex
}

// paperInHand reports whether a paper id is in a hand.
func paperInHand(hand []game.Paper, paperID string) bool {
	for _, paper := range hand {
		if paper.ID == paperID {
			return true
		}
	}
	return false
}

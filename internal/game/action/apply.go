package action

import (
	"github.com/alignmentgames/secretagi/internal/game"
	"github.com/alignmentgames/secretagi/internal/game/event"
)

// Result is the outcome of applying one action.
type Result struct {
	// State is the next state. When the action is invalid it is the input
	// state, untouched.
	State *game.State
	// Events are the events produced by this action in emission order. For
	// invalid actions this holds only the audit event, which is not part of
	// the state's log.
	Events []event.Event
	// Outcome reports validity.
	Outcome Outcome
}

// handler validates and processes one action kind.
type handler struct {
	validate func(*game.State, Request) Outcome
	process  func(*applyContext, Request)
}

// handlers dispatches by action kind. Phase and sub-state checks live in the
// validate functions.
var handlers = map[Type]handler{
	TypeNominate:            {validateNominate, processNominate},
	TypeVoteTeam:            {validateVoteTeam, processVoteTeam},
	TypeCallEmergencySafety: {validateCallEmergencySafety, processCallEmergencySafety},
	TypeVoteEmergency:       {validateVoteEmergency, processVoteEmergency},
	TypeDiscardPaper:        {validateDiscardPaper, processDiscardPaper},
	TypeDeclareVeto:         {validateDeclareVeto, processDeclareVeto},
	TypeRespondVeto:         {validateRespondVeto, processRespondVeto},
	TypePublishPaper:        {validatePublishPaper, processPublishPaper},
	TypeUsePower:            {validateUsePower, processUsePower},
	TypeSendChatMessage:     {validateSendChatMessage, processSendChatMessage},
	TypeObserve:             {validateObserve, processObserve},
}

// applyContext carries the mutable clone and its event accumulator through
// one action's processing.
type applyContext struct {
	state  *game.State
	events []event.Event
	failed Outcome
}

// emit appends an event to both the state log and the action's event list.
// Marshal failures downgrade the whole action to an internal fault.
func (c *applyContext) emit(eventType event.Type, actorID string, payload any) {
	evt, err := event.New(eventType, actorID, c.state.TurnNumber, payload)
	if err != nil {
		c.failed = reject(CodeInternal, "emit %s event: %v", eventType, err)
		return
	}
	c.state.AppendEvent(evt)
	c.events = append(c.events, evt)
}

// emitPrivate appends an event visible only to recipient.
func (c *applyContext) emitPrivate(eventType event.Type, actorID, recipient string, payload any) {
	evt, err := event.NewPrivate(eventType, actorID, recipient, c.state.TurnNumber, payload)
	if err != nil {
		c.failed = reject(CodeInternal, "emit %s event: %v", eventType, err)
		return
	}
	c.state.AppendEvent(evt)
	c.events = append(c.events, evt)
}

// Apply validates one action against the state and, when valid, returns the
// next state with the events the action produced. The input state is never
// mutated.
func Apply(state *game.State, req Request) Result {
	if outcome := validateActor(state, req); !outcome.Valid {
		return invalidResult(state, req, outcome)
	}

	h, ok := handlers[req.Kind]
	if !ok {
		return invalidResult(state, req, reject(CodeInternal, "unknown action kind %q", req.Kind))
	}
	if outcome := h.validate(state, req); !outcome.Valid {
		return invalidResult(state, req, outcome)
	}

	next := state.Clone()
	next.TurnNumber++

	ctx := &applyContext{state: next}
	ctx.emit(event.TypeActionAttempted, req.ActorID, attemptPayload(req, accept()))
	if ctx.failed.Code != "" {
		return invalidResult(state, req, ctx.failed)
	}

	h.process(ctx, req)
	if ctx.failed.Code != "" {
		// Processing faults leave the pre-action state authoritative.
		return invalidResult(state, req, ctx.failed)
	}

	if !next.IsGameOver {
		if win := game.CheckWinConditions(next); win.GameOver {
			endGame(ctx, win)
		}
	}
	if ctx.failed.Code != "" {
		return invalidResult(state, req, ctx.failed)
	}

	return Result{State: next, Events: ctx.events, Outcome: accept()}
}

// validateActor applies the checks shared by every kind: the game is live,
// the actor is seated, and the actor is alive.
func validateActor(state *game.State, req Request) Outcome {
	if state.IsGameOver || state.CurrentPhase == game.PhaseGameOver {
		return reject(CodeGameOver, "game %s is over", state.GameID)
	}
	player := state.PlayerByID(req.ActorID)
	if player == nil {
		return reject(CodeNotActor, "player %s is not seated", req.ActorID)
	}
	if !player.Alive {
		return reject(CodeNotActor, "player %s is eliminated", req.ActorID)
	}
	return accept()
}

// invalidResult builds the result for a rejected action: untouched state plus
// a standalone audit event recorded at the current turn.
func invalidResult(state *game.State, req Request, outcome Outcome) Result {
	evt, err := event.New(event.TypeActionAttempted, req.ActorID, state.TurnNumber, attemptPayload(req, outcome))
	if err != nil {
		return Result{State: state, Outcome: outcome}
	}
	return Result{State: state, Events: []event.Event{evt}, Outcome: outcome}
}

// attemptPayload builds the audit payload for an action submission.
func attemptPayload(req Request, outcome Outcome) event.ActionAttemptedPayload {
	payload := event.ActionAttemptedPayload{
		Action:  string(req.Kind),
		Valid:   outcome.Valid,
		Target:  req.Params.TargetID,
		PaperID: req.Params.PaperID,
	}
	if !outcome.Valid {
		payload.Error = string(outcome.Code)
	}
	switch req.Kind {
	case TypeVoteTeam, TypeVoteEmergency:
		payload.Vote = req.Params.Vote
	case TypeRespondVeto:
		payload.Vote = req.Params.Agree
	}
	return payload
}

// endGame finalizes the state with the given win result.
func endGame(ctx *applyContext, win game.WinResult) {
	s := ctx.state
	s.IsGameOver = true
	s.Winners = win.Winners
	s.CurrentPhase = game.PhaseGameOver

	winners := make([]string, 0, len(win.Winners))
	for _, role := range win.Winners {
		winners = append(winners, string(role))
	}
	ctx.emit(event.TypeGameEnded, "", event.GameEndedPayload{
		Winners:         winners,
		Reason:          win.Reason,
		FinalCapability: s.Capability,
		FinalSafety:     s.Safety,
		TurnNumber:      s.TurnNumber,
		RoundNumber:     s.RoundNumber,
	})
}

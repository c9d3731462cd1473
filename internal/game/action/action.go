// Package action validates and applies player actions, producing new game
// states and ordered event lists.
//
// Apply is the single entry point. Validation runs first; an invalid action
// never mutates state and never advances the turn counter, but it still
// yields an audit event so every attempt is recorded.
package action

import (
	"encoding/json"
	"fmt"
)

// Type identifies an action kind.
type Type string

const (
	// TypeNominate proposes an engineer for the round's team.
	TypeNominate Type = "nominate"
	// TypeVoteTeam casts a ballot on the proposed team.
	TypeVoteTeam Type = "vote_team"
	// TypeCallEmergencySafety opens an emergency safety vote.
	TypeCallEmergencySafety Type = "call_emergency_safety"
	// TypeVoteEmergency casts a ballot on emergency safety.
	TypeVoteEmergency Type = "vote_emergency"
	// TypeDiscardPaper is the director discarding one of three drawn papers.
	TypeDiscardPaper Type = "discard_paper"
	// TypeDeclareVeto is the engineer refusing to publish.
	TypeDeclareVeto Type = "declare_veto"
	// TypeRespondVeto is the director answering a declared veto.
	TypeRespondVeto Type = "respond_veto"
	// TypePublishPaper is the engineer publishing one of two papers.
	TypePublishPaper Type = "publish_paper"
	// TypeUsePower supplies the target for a pending capability power.
	TypeUsePower Type = "use_power"
	// TypeSendChatMessage records a chat message.
	TypeSendChatMessage Type = "send_chat_message"
	// TypeObserve returns the current filtered view without game effects.
	TypeObserve Type = "observe"
)

// ParseType converts a stored action kind back to a Type.
func ParseType(value string) (Type, error) {
	switch Type(value) {
	case TypeNominate, TypeVoteTeam, TypeCallEmergencySafety, TypeVoteEmergency,
		TypeDiscardPaper, TypeDeclareVeto, TypeRespondVeto, TypePublishPaper,
		TypeUsePower, TypeSendChatMessage, TypeObserve:
		return Type(value), nil
	}
	return "", fmt.Errorf("unknown action kind %q", value)
}

// Code is a machine-readable validation failure code.
type Code string

const (
	// CodeInvalidPhase rejects an action outside its phase or sub-state.
	CodeInvalidPhase Code = "invalid_phase"
	// CodeNotActor rejects an action from the wrong (or unseated, or dead)
	// player.
	CodeNotActor Code = "not_actor"
	// CodeIneligibleTarget rejects an unusable or missing target.
	CodeIneligibleTarget Code = "ineligible_target"
	// CodeDuplicateVote rejects a second ballot or a second emergency call.
	CodeDuplicateVote Code = "duplicate_vote"
	// CodeNotUnlocked rejects a veto before capability 12.
	CodeNotUnlocked Code = "not_unlocked"
	// CodeUnknownPaper rejects a paper id not in the actor's hand.
	CodeUnknownPaper Code = "unknown_paper"
	// CodeSizeGated rejects a power unavailable at this player count.
	CodeSizeGated Code = "size_gated"
	// CodeGameOver rejects any action once the game has ended.
	CodeGameOver Code = "game_over"
	// CodeInternal reports an engine fault; the state is left untouched.
	CodeInternal Code = "internal"
)

// Params carries the optional arguments of an action.
type Params struct {
	// TargetID is the nominated or power-targeted player.
	TargetID string `json:"target_id,omitempty"`
	// PaperID selects a paper from the actor's hand.
	PaperID string `json:"paper_id,omitempty"`
	// Vote is the ballot for vote_team and vote_emergency.
	Vote *bool `json:"vote,omitempty"`
	// Agree is the director's answer to a veto.
	Agree *bool `json:"agree,omitempty"`
	// Power optionally pins use_power to a specific threshold.
	Power int `json:"power,omitempty"`
	// Text is the chat message body.
	Text string `json:"text,omitempty"`
}

// MarshalParams serializes params for the action record.
func MarshalParams(p Params) (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal action params: %w", err)
	}
	return raw, nil
}

// Request is one submitted action.
type Request struct {
	ActorID string
	Kind    Type
	Params  Params
}

// Outcome reports whether an action was accepted and why not otherwise.
type Outcome struct {
	Valid   bool
	Code    Code
	Message string
}

// accept is the successful outcome.
func accept() Outcome {
	return Outcome{Valid: true}
}

// reject builds a failed outcome.
func reject(code Code, format string, args ...any) Outcome {
	return Outcome{Code: code, Message: fmt.Sprintf(format, args...)}
}

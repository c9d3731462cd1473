// Package event defines the event envelope and per-variant payloads emitted
// by the action processor.
//
// Events are immutable facts about a game. The envelope carries identity and
// visibility metadata; payloads are typed structs serialized to JSON so the
// persisted shape stays stable across readers.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Type identifies the kind of event.
type Type string

const (
	// TypeActionAttempted records every action submission, valid or not.
	TypeActionAttempted Type = "action_attempted"
	// TypeStateChanged records targeted state mutations such as
	// eliminations and allegiance views.
	TypeStateChanged Type = "state_changed"
	// TypeChatMessage records a chat message.
	TypeChatMessage Type = "chat_message"
	// TypePhaseTransition records a move between game phases.
	TypePhaseTransition Type = "phase_transition"
	// TypeGameEnded records the terminal outcome.
	TypeGameEnded Type = "game_ended"
	// TypePowerTriggered records a capability power firing.
	TypePowerTriggered Type = "power_triggered"
	// TypePaperPublished records a publication, manual or automatic.
	TypePaperPublished Type = "paper_published"
	// TypeVoteCompleted records a finished team or emergency vote.
	TypeVoteCompleted Type = "vote_completed"
)

// Event is the envelope shared by every variant.
type Event struct {
	// ID is the event's unique identity.
	ID string `json:"id"`
	// Type identifies the payload variant.
	Type Type `json:"type"`
	// ActorID is the player whose action produced the event, when there is
	// one.
	ActorID string `json:"actor_id,omitempty"`
	// Recipient restricts visibility to a single player. Empty means the
	// event is public.
	Recipient string `json:"recipient,omitempty"`
	// TurnNumber is the turn at which the event was produced.
	TurnNumber int `json:"turn_number"`
	// PayloadJSON holds the variant payload.
	PayloadJSON json.RawMessage `json:"payload"`
}

// New builds an event envelope around a payload value.
func New(eventType Type, actorID string, turnNumber int, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		ActorID:     actorID,
		TurnNumber:  turnNumber,
		PayloadJSON: raw,
	}, nil
}

// NewPrivate builds an event visible only to recipient.
func NewPrivate(eventType Type, actorID, recipient string, turnNumber int, payload any) (Event, error) {
	evt, err := New(eventType, actorID, turnNumber, payload)
	if err != nil {
		return Event{}, err
	}
	evt.Recipient = recipient
	return evt, nil
}

// Decode unmarshals the payload into target.
func (e Event) Decode(target any) error {
	if err := json.Unmarshal(e.PayloadJSON, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// VisibleTo reports whether a player should see this event. Private events
// reach only their recipient; chat reaches alive players; everything else is
// public.
func (e Event) VisibleTo(playerID string, alive bool) bool {
	if e.Recipient != "" {
		return e.Recipient == playerID
	}
	if e.Type == TypeChatMessage {
		return alive
	}
	return true
}

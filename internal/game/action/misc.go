package action

import (
	"strings"

	"github.com/alignmentgames/secretagi/internal/game"
	"github.com/alignmentgames/secretagi/internal/game/event"
)

func validateSendChatMessage(s *game.State, req Request) Outcome {
	if strings.TrimSpace(req.Params.Text) == "" {
		return reject(CodeIneligibleTarget, "a message body is required")
	}
	return accept()
}

func processSendChatMessage(ctx *applyContext, req Request) {
	ctx.emit(event.TypeChatMessage, req.ActorID, event.ChatMessagePayload{
		Message: req.Params.Text,
		Phase:   string(ctx.state.CurrentPhase),
	})
}

func validateObserve(_ *game.State, _ Request) Outcome {
	return accept()
}

func processObserve(_ *applyContext, _ Request) {
	// Observation has no game effect beyond the audit event.
}

// Package chat runs the turn-by-turn conversation exchange between the user
// and a persona. The orchestrator treats it as an external collaborator: it
// appends messages and advances the turn counter but never drives workflow
// transitions itself.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nkoval/rolelab/internal/ai"
	"github.com/nkoval/rolelab/internal/domain"
	"github.com/nkoval/rolelab/internal/store"
)

// ErrConversationCompleted is returned when a message is sent to a
// conversation that already reached its turn limit or was exited.
var ErrConversationCompleted = errors.New("conversation is already completed")

// Exchanger appends user/persona exchanges to stored conversations.
type Exchanger struct {
	repo      store.Repository
	gen       ai.Generator
	catalog   ScenarioLookup
	turnLimit int
	logger    *slog.Logger
}

// ScenarioLookup resolves scenario ids for prompt context.
type ScenarioLookup interface {
	Scenario(id string) *domain.Scenario
}

// NewExchanger creates a conversation exchange service.
func NewExchanger(repo store.Repository, gen ai.Generator, catalog ScenarioLookup, turnLimit int, logger *slog.Logger) *Exchanger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exchanger{
		repo:      repo,
		gen:       gen,
		catalog:   catalog,
		turnLimit: turnLimit,
		logger:    logger,
	}
}

// SendMessage records one user→persona exchange: it obtains the persona's
// reply, appends both messages, and advances the turn counter. Reaching the
// turn limit marks the conversation completed; whether that also ends the
// chat view is the workflow controller's decision, not this service's.
func (e *Exchanger) SendMessage(ctx context.Context, conversationID, text string) (*domain.Conversation, error) {
	conv, err := e.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	if !conv.IsActive() {
		return nil, ErrConversationCompleted
	}

	reply, err := e.gen.PersonaReply(ctx, ai.ReplyRequest{
		Scenario: e.catalog.Scenario(conv.ScenarioID),
		Persona:  conv.Persona,
		History:  conv.Messages,
		UserText: text,
	})
	if err != nil {
		return nil, fmt.Errorf("persona reply: %w", err)
	}

	conv.RecordExchange(text, reply.Text, reply.Emotion)
	if conv.AtTurnLimit(e.turnLimit) {
		conv.Status = domain.ConversationCompleted
		e.logger.Info("conversation reached turn limit",
			"conversation_id", conv.ID,
			"turns", conv.TurnCount)
	}

	if err := e.repo.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("persist exchange: %w", err)
	}
	return conv, nil
}

// TurnLimit returns the configured turn budget.
func (e *Exchanger) TurnLimit() int {
	return e.turnLimit
}

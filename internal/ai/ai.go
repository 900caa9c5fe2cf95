// Package ai provides the AI generation backends for persona replies and
// feedback synthesis.
package ai

import (
	"context"
	"fmt"

	"github.com/nkoval/rolelab/internal/domain"
)

// Generator defines the interface for AI generation.
// This interface is implemented by the Gemini client.
type Generator interface {
	// PersonaReply produces the persona's next utterance for a conversation.
	PersonaReply(ctx context.Context, req ReplyRequest) (*Reply, error)

	// SynthesizeFeedback analyzes a completed conversation and produces a
	// feedback record. Slow; callers must treat it as asynchronous work.
	SynthesizeFeedback(ctx context.Context, conv *domain.Conversation) (*domain.Feedback, error)
}

// ReplyRequest carries everything the model needs for one persona turn.
type ReplyRequest struct {
	Scenario *domain.Scenario
	Persona  domain.PersonaSnapshot
	History  []domain.Message
	UserText string
}

// Reply is one persona utterance with an optional emotion tag.
type Reply struct {
	Text    string `json:"text"`
	Emotion string `json:"emotion,omitempty"`
}

// GenerationError reports a synthesis call that completed but failed, e.g. an
// upstream analysis failure or an unparseable model response. It is
// recoverable: the user may retry.
type GenerationError struct {
	ConversationID string
	Detail         string
	Err            error
}

func (e *GenerationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("feedback generation failed for %s: %s", e.ConversationID, e.Detail)
	}
	return fmt.Sprintf("feedback generation failed for %s", e.ConversationID)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

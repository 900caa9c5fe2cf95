// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/nkoval/rolelab/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist. For
// feedback lookups this is not a failure: it is the trigger for synthesis.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned when a uniqueness constraint rejects a write,
// e.g. a second reflection for the same session.
var ErrAlreadyExists = errors.New("record already exists")

// Repository defines the interface for persisting conversations, feedback,
// and strategy reflections.
type Repository interface {
	// CreateConversation persists a new conversation record.
	CreateConversation(ctx context.Context, conv *domain.Conversation) error

	// GetConversation retrieves a conversation by id.
	// Returns ErrNotFound if no such conversation exists.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)

	// UpdateConversation persists the messages, turn count, and status of an
	// existing conversation.
	UpdateConversation(ctx context.Context, conv *domain.Conversation) error

	// GetFeedback retrieves the feedback record for a conversation.
	// Returns ErrNotFound if no feedback has been synthesized yet.
	GetFeedback(ctx context.Context, conversationID string) (*domain.Feedback, error)

	// SaveFeedback persists a feedback record. At most one feedback record
	// may exist per conversation; a concurrent duplicate write is ignored and
	// the stored record wins.
	SaveFeedback(ctx context.Context, fb *domain.Feedback) error

	// GetReflection retrieves the strategy reflection keyed by its
	// representative conversation id. Returns ErrNotFound if absent.
	GetReflection(ctx context.Context, conversationID string) (*domain.StrategyReflection, error)

	// CreateReflection persists a strategy reflection. Returns
	// ErrAlreadyExists if one was already submitted for the conversation.
	CreateReflection(ctx context.Context, r *domain.StrategyReflection) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

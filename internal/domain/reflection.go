package domain

import (
	"time"
)

// StrategyReflection is the user's free-text rationale for the order in which
// personas were engaged. Keyed by the first conversation of the session and
// created at most once per session.
type StrategyReflection struct {
	ID                string    `json:"id"`
	ConversationID    string    `json:"conversation_id"`
	Content           string    `json:"content"`
	ConversationOrder []string  `json:"conversation_order"`
	CreatedAt         time.Time `json:"created_at"`
}

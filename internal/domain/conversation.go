package domain

import (
	"time"
)

// Conversation statuses.
const (
	ConversationActive    = "active"
	ConversationCompleted = "completed"
)

// Message senders.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// Message is a single utterance inside a conversation. The emotion tag is
// optional and set only on AI messages.
type Message struct {
	Sender  string `json:"sender"`
	Text    string `json:"text"`
	Emotion string `json:"emotion,omitempty"`
}

// Conversation is one bounded, turn-limited dialogue between the user and one
// persona. Created once per persona engagement and never deleted.
type Conversation struct {
	ID         string          `json:"id"`
	ScenarioID string          `json:"scenario_id"`
	PersonaID  string          `json:"persona_id"`
	Persona    PersonaSnapshot `json:"persona"`
	Messages   []Message       `json:"messages"`
	TurnCount  int             `json:"turn_count"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// RecordExchange appends one completed user/AI exchange and advances the turn
// counter. TurnCount is monotonically non-decreasing.
func (c *Conversation) RecordExchange(userText, aiText, emotion string) {
	c.Messages = append(c.Messages,
		Message{Sender: SenderUser, Text: userText},
		Message{Sender: SenderAI, Text: aiText, Emotion: emotion},
	)
	c.TurnCount++
}

// IsActive reports whether the conversation still accepts exchanges.
func (c *Conversation) IsActive() bool {
	return c.Status == ConversationActive
}

// AtTurnLimit reports whether the conversation has used up its turn budget.
func (c *Conversation) AtTurnLimit(limit int) bool {
	return c.TurnCount >= limit
}

package domain

import (
	"time"
)

// Feedback is the synthesized evaluation of a single completed conversation.
// At most one Feedback record exists per conversation.
type Feedback struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	OverallScore   int              `json:"overall_score"`
	Dimensions     []DimensionScore `json:"dimensions"`
	Detail         DetailedFeedback `json:"detail"`
	CreatedAt      time.Time        `json:"created_at"`
}

// DimensionScore is one evaluated dimension of the conversation.
type DimensionScore struct {
	Name       string `json:"name"`
	Score      int    `json:"score"`
	Label      string `json:"label"`
	Commentary string `json:"commentary"`
}

// DetailedFeedback is the narrative block of a feedback record.
type DetailedFeedback struct {
	Strengths          []string           `json:"strengths"`
	Improvements       []string           `json:"improvements"`
	NextSteps          []string           `json:"next_steps"`
	BehaviorGuides     []string           `json:"behavior_guides"`
	ConversationGuides []string           `json:"conversation_guides"`
	DevelopmentPlan    []DevelopmentStage `json:"development_plan"`
}

// DevelopmentStage is one stage of the staged development plan.
type DevelopmentStage struct {
	Stage   string `json:"stage"`
	Focus   string `json:"focus"`
	Actions string `json:"actions"`
}

package orchestrator

import (
	"github.com/nkoval/rolelab/internal/domain"
)

// Event is one workflow trigger. Events carry the results of any IO the
// controller performed, so that reducing an event onto a state is pure.
type Event interface {
	eventName() string
}

// ScenarioChosen starts a fresh session on the given scenario.
type ScenarioChosen struct {
	Scenario *domain.Scenario
}

// PersonaChosen records that a conversation was created for the persona.
type PersonaChosen struct {
	Persona        *domain.Persona
	ConversationID string
}

// ConversationEnded records that the active conversation finished, either by
// reaching the turn limit or by explicit user exit.
type ConversationEnded struct{}

// ContinueRequested is the user's "continue" action from the feedback view.
type ContinueRequested struct{}

// RetryStarted records that a brand-new conversation was created for the
// persona that was just engaged.
type RetryStarted struct {
	ConversationID string
}

// ReflectionAccepted records that the strategy reflection was persisted.
type ReflectionAccepted struct{}

// ExitRequested abandons the session back to scenario selection.
type ExitRequested struct{}

func (ScenarioChosen) eventName() string     { return "scenario-chosen" }
func (PersonaChosen) eventName() string      { return "persona-chosen" }
func (ConversationEnded) eventName() string  { return "conversation-ended" }
func (ContinueRequested) eventName() string  { return "continue-requested" }
func (RetryStarted) eventName() string       { return "retry-started" }
func (ReflectionAccepted) eventName() string { return "reflection-accepted" }
func (ExitRequested) eventName() string      { return "exit-requested" }

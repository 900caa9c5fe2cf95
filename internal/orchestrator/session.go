package orchestrator

import (
	"slices"

	"github.com/nkoval/rolelab/internal/domain"
)

// SessionState is the in-memory record of the current workflow position. It
// has exactly one writer, the Controller; everything else sees copies.
type SessionState struct {
	View                 View
	Scenario             *domain.Scenario
	Persona              *domain.Persona
	ActiveConversationID string

	// CompletedPersonaIDs holds distinct persona ids in first-completion
	// order. ConversationIDs logs every conversation held, in completion
	// order; the two are index-aligned unless a persona was retried.
	CompletedPersonaIDs []string
	ConversationIDs     []string

	ReflectionSubmitted bool
}

func newSessionState() SessionState {
	return SessionState{View: ViewScenarioSelection}
}

func (s *SessionState) hasCompleted(personaID string) bool {
	return slices.Contains(s.CompletedPersonaIDs, personaID)
}

func (s *SessionState) allPersonasCompleted() bool {
	return s.Scenario != nil && len(s.CompletedPersonaIDs) == len(s.Scenario.Personas)
}

// availablePersonas returns the scenario's personas minus the completed ones.
func (s *SessionState) availablePersonas() []domain.Persona {
	if s.Scenario == nil {
		return nil
	}
	out := make([]domain.Persona, 0, len(s.Scenario.Personas))
	for _, p := range s.Scenario.Personas {
		if !s.hasCompleted(p.ID) {
			out = append(out, p)
		}
	}
	return out
}

// SessionView is the read-only snapshot exposed to the UI layer.
type SessionView struct {
	CurrentView          View             `json:"current_view"`
	SelectedScenario     *domain.Scenario `json:"selected_scenario,omitempty"`
	SelectedPersona      *domain.Persona  `json:"selected_persona,omitempty"`
	ActiveConversationID string           `json:"active_conversation_id,omitempty"`
	CompletedPersonaIDs  []string         `json:"completed_persona_ids"`
	ConversationIDs      []string         `json:"conversation_ids"`
	AvailablePersonas    []domain.Persona `json:"available_personas"`
	NextAction           NextAction       `json:"next_action,omitempty"`
	ReflectionSubmitted  bool             `json:"reflection_submitted"`
	ReflectionMinLength  int              `json:"reflection_min_length"`
}

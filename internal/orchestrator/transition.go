package orchestrator

import (
	"fmt"
)

// reduce applies one event to a session state and returns the next state.
// It is pure: guards are checked here, effects (store calls) have already
// happened and their results travel inside the event. A guard failure
// returns the state unchanged and a GuardError.
func reduce(s SessionState, e Event) (SessionState, error) {
	switch ev := e.(type) {
	case ScenarioChosen:
		if s.View != ViewScenarioSelection {
			return s, guardf(fmt.Sprintf("cannot choose scenario from %s", s.View))
		}
		if ev.Scenario == nil {
			return s, guardf("scenario is required")
		}
		next := newSessionState()
		next.View = ViewPersonaSelection
		next.Scenario = ev.Scenario
		return next, nil

	case PersonaChosen:
		if s.View != ViewPersonaSelection {
			return s, guardf(fmt.Sprintf("cannot choose persona from %s", s.View))
		}
		if ev.Persona == nil || s.Scenario.PersonaByID(ev.Persona.ID) == nil {
			return s, guardf("persona does not belong to the selected scenario")
		}
		if s.hasCompleted(ev.Persona.ID) {
			return s, guardf("persona already completed in this session")
		}
		s.View = ViewChat
		s.Persona = ev.Persona
		s.ActiveConversationID = ev.ConversationID
		return s, nil

	case ConversationEnded:
		if s.View != ViewChat {
			return s, guardf(fmt.Sprintf("cannot end conversation from %s", s.View))
		}
		// ConversationIDs logs every conversation held; the persona id is
		// appended only on its first completion so completed ids stay
		// distinct and the first completion's position wins for ordering.
		s.ConversationIDs = append(s.ConversationIDs, s.ActiveConversationID)
		if !s.hasCompleted(s.Persona.ID) {
			s.CompletedPersonaIDs = append(s.CompletedPersonaIDs, s.Persona.ID)
		}
		s.View = ViewFeedback
		return s, nil

	case ContinueRequested:
		if s.View != ViewFeedback {
			return s, guardf(fmt.Sprintf("cannot continue from %s", s.View))
		}
		switch nextAction(s) {
		case ActionPersonaSelection:
			s.View = ViewPersonaSelection
			s.Persona = nil
			s.ActiveConversationID = ""
			return s, nil
		case ActionStrategyReflection:
			s.View = ViewStrategyReflection
			return s, nil
		default:
			return newSessionState(), nil
		}

	case RetryStarted:
		if s.View != ViewFeedback {
			return s, guardf(fmt.Sprintf("cannot retry persona from %s", s.View))
		}
		if s.Persona == nil {
			return s, guardf("no persona to retry")
		}
		// A fresh conversation; completed/conversation logs are untouched
		// until the retried conversation finishes through the normal path.
		s.View = ViewChat
		s.ActiveConversationID = ev.ConversationID
		return s, nil

	case ReflectionAccepted:
		if s.View != ViewStrategyReflection {
			return s, guardf(fmt.Sprintf("cannot accept reflection from %s", s.View))
		}
		s.ReflectionSubmitted = true
		s.View = ViewStrategyResult
		return s, nil

	case ExitRequested:
		return newSessionState(), nil

	default:
		return s, guardf(fmt.Sprintf("unknown event %T", e))
	}
}

// nextAction computes where "continue" from the feedback view leads.
func nextAction(s SessionState) NextAction {
	if s.Scenario == nil {
		return ActionScenarioSelection
	}
	if !s.allPersonasCompleted() {
		return ActionPersonaSelection
	}
	if s.Scenario.MultiPersona() && !s.ReflectionSubmitted {
		return ActionStrategyReflection
	}
	return ActionScenarioSelection
}

package orchestrator

import (
	"testing"

	"github.com/nkoval/rolelab/internal/domain"
)

func scenarioWith(personaIDs ...string) *domain.Scenario {
	s := &domain.Scenario{ID: "scn-1", Title: "Test scenario"}
	for _, id := range personaIDs {
		s.Personas = append(s.Personas, domain.Persona{ID: id, Name: "Persona " + id})
	}
	return s
}

func mustReduce(t *testing.T, s SessionState, e Event) SessionState {
	t.Helper()
	next, err := reduce(s, e)
	if err != nil {
		t.Fatalf("reduce(%s) from %s failed: %v", e.eventName(), s.View, err)
	}
	return next
}

func TestReduceScenarioChosen(t *testing.T) {
	s := newSessionState()
	s = mustReduce(t, s, ScenarioChosen{Scenario: scenarioWith("a", "b")})

	if s.View != ViewPersonaSelection {
		t.Errorf("expected persona-selection, got %s", s.View)
	}
	if len(s.CompletedPersonaIDs) != 0 || len(s.ConversationIDs) != 0 || s.ReflectionSubmitted {
		t.Error("choosing a scenario must start with clean session lists")
	}
}

func TestReduceScenarioChosenOnlyFromScenarioSelection(t *testing.T) {
	for _, view := range []View{ViewPersonaSelection, ViewChat, ViewFeedback, ViewStrategyReflection, ViewStrategyResult} {
		s := SessionState{View: view, Scenario: scenarioWith("a")}
		if _, err := reduce(s, ScenarioChosen{Scenario: scenarioWith("b")}); !IsGuardViolation(err) {
			t.Errorf("view %s: expected guard violation, got %v", view, err)
		}
	}
}

func TestReducePersonaChosenGuards(t *testing.T) {
	scenario := scenarioWith("a", "b")
	s := mustReduce(t, newSessionState(), ScenarioChosen{Scenario: scenario})

	// Persona outside the scenario is rejected.
	stranger := &domain.Persona{ID: "zz"}
	if _, err := reduce(s, PersonaChosen{Persona: stranger, ConversationID: "c1"}); !IsGuardViolation(err) {
		t.Errorf("expected guard violation for foreign persona, got %v", err)
	}

	// A completed persona is rendered but not selectable.
	s.CompletedPersonaIDs = []string{"a"}
	if _, err := reduce(s, PersonaChosen{Persona: &scenario.Personas[0], ConversationID: "c1"}); !IsGuardViolation(err) {
		t.Errorf("expected guard violation for completed persona, got %v", err)
	}

	next := mustReduce(t, s, PersonaChosen{Persona: &scenario.Personas[1], ConversationID: "c1"})
	if next.View != ViewChat || next.ActiveConversationID != "c1" {
		t.Errorf("expected chat with c1 active, got %s/%s", next.View, next.ActiveConversationID)
	}
}

func TestReduceConversationEndedAppendsInOrder(t *testing.T) {
	scenario := scenarioWith("a", "b", "c")
	s := mustReduce(t, newSessionState(), ScenarioChosen{Scenario: scenario})

	convs := []string{"conv-a", "conv-b", "conv-c"}
	for i := range scenario.Personas {
		s = mustReduce(t, s, PersonaChosen{Persona: &scenario.Personas[i], ConversationID: convs[i]})
		s = mustReduce(t, s, ConversationEnded{})

		// Lists stay index-aligned after every chat → feedback transition.
		if len(s.CompletedPersonaIDs) != len(s.ConversationIDs) {
			t.Fatalf("completed=%d conversations=%d, want equal", len(s.CompletedPersonaIDs), len(s.ConversationIDs))
		}

		if i < len(scenario.Personas)-1 {
			s = mustReduce(t, s, ContinueRequested{})
		}
	}

	for i, want := range []string{"a", "b", "c"} {
		if s.CompletedPersonaIDs[i] != want {
			t.Errorf("CompletedPersonaIDs[%d] = %s, want %s", i, s.CompletedPersonaIDs[i], want)
		}
		if s.ConversationIDs[i] != convs[i] {
			t.Errorf("ConversationIDs[%d] = %s, want %s", i, s.ConversationIDs[i], convs[i])
		}
	}
}

func TestNextActionBranches(t *testing.T) {
	tests := []struct {
		name      string
		personas  []string
		completed []string
		submitted bool
		want      NextAction
	}{
		{"personas remain", []string{"a", "b"}, []string{"a"}, false, ActionPersonaSelection},
		{"all done multi persona", []string{"a", "b"}, []string{"a", "b"}, false, ActionStrategyReflection},
		{"all done multi persona submitted", []string{"a", "b"}, []string{"a", "b"}, true, ActionScenarioSelection},
		{"all done single persona", []string{"a"}, []string{"a"}, false, ActionScenarioSelection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SessionState{
				View:                ViewFeedback,
				Scenario:            scenarioWith(tt.personas...),
				CompletedPersonaIDs: tt.completed,
				ReflectionSubmitted: tt.submitted,
			}
			if got := nextAction(s); got != tt.want {
				t.Errorf("nextAction = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSinglePersonaScenarioNeverEntersReflection(t *testing.T) {
	scenario := scenarioWith("only")
	s := mustReduce(t, newSessionState(), ScenarioChosen{Scenario: scenario})
	s = mustReduce(t, s, PersonaChosen{Persona: &scenario.Personas[0], ConversationID: "c1"})
	s = mustReduce(t, s, ConversationEnded{})

	s = mustReduce(t, s, ContinueRequested{})
	if s.View != ViewScenarioSelection {
		t.Errorf("single-persona continue should reset to scenario-selection, got %s", s.View)
	}
	if s.Scenario != nil || len(s.ConversationIDs) != 0 {
		t.Error("reset state should be empty")
	}
}

func TestReduceRetryStartedKeepsLogsUntouched(t *testing.T) {
	scenario := scenarioWith("a", "b")
	s := mustReduce(t, newSessionState(), ScenarioChosen{Scenario: scenario})
	s = mustReduce(t, s, PersonaChosen{Persona: &scenario.Personas[0], ConversationID: "c1"})
	s = mustReduce(t, s, ConversationEnded{})

	retried := mustReduce(t, s, RetryStarted{ConversationID: "c2"})
	if retried.View != ViewChat || retried.ActiveConversationID != "c2" {
		t.Fatalf("expected chat with c2 active, got %s/%s", retried.View, retried.ActiveConversationID)
	}
	if len(retried.CompletedPersonaIDs) != 1 || len(retried.ConversationIDs) != 1 {
		t.Error("retry must not touch completion logs until the retried conversation finishes")
	}

	// Finishing the retried conversation logs it without duplicating the
	// persona id; the first completion's position wins.
	finished := mustReduce(t, retried, ConversationEnded{})
	if got := len(finished.CompletedPersonaIDs); got != 1 {
		t.Errorf("CompletedPersonaIDs grew to %d entries on retried completion", got)
	}
	if got := len(finished.ConversationIDs); got != 2 {
		t.Errorf("ConversationIDs should log every conversation, got %d", got)
	}
	if finished.ConversationIDs[1] != "c2" {
		t.Errorf("ConversationIDs[1] = %s, want c2", finished.ConversationIDs[1])
	}
}

func TestReduceExitResetsFromAnyView(t *testing.T) {
	for _, view := range []View{ViewPersonaSelection, ViewChat, ViewFeedback, ViewStrategyReflection, ViewStrategyResult} {
		s := SessionState{View: view, Scenario: scenarioWith("a"), ConversationIDs: []string{"c1"}}
		next := mustReduce(t, s, ExitRequested{})
		if next.View != ViewScenarioSelection || next.Scenario != nil {
			t.Errorf("exit from %s should reset, got %s", view, next.View)
		}
	}
}

func TestReduceReflectionAccepted(t *testing.T) {
	s := SessionState{
		View:                ViewStrategyReflection,
		Scenario:            scenarioWith("a", "b"),
		CompletedPersonaIDs: []string{"a", "b"},
		ConversationIDs:     []string{"c1", "c2"},
	}
	next := mustReduce(t, s, ReflectionAccepted{})
	if next.View != ViewStrategyResult || !next.ReflectionSubmitted {
		t.Errorf("expected strategy-result with reflection submitted, got %s/%v", next.View, next.ReflectionSubmitted)
	}

	// One-way flag: re-accepting from the result view is a guard violation.
	if _, err := reduce(next, ReflectionAccepted{}); !IsGuardViolation(err) {
		t.Errorf("expected guard violation, got %v", err)
	}
}

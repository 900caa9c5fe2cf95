// Package orchestrator implements the training session workflow: the state
// machine that sequences scenario selection, per-persona conversations,
// feedback synthesis, and the strategy reflection.
package orchestrator

// View identifies the workflow position shown to the user.
type View string

// Workflow views. The initial view is scenario selection; there is no
// terminal view — every branch eventually loops back to scenario selection.
const (
	ViewScenarioSelection  View = "scenario-selection"
	ViewPersonaSelection   View = "persona-selection"
	ViewChat               View = "chat"
	ViewFeedback           View = "feedback"
	ViewStrategyReflection View = "strategy-reflection"
	ViewStrategyResult     View = "strategy-result"
)

// NextAction is the user-facing "continue" destination computed from the
// feedback view.
type NextAction string

const (
	ActionPersonaSelection   NextAction = "go-to-persona-selection"
	ActionStrategyReflection NextAction = "go-to-strategy-reflection"
	ActionScenarioSelection  NextAction = "go-to-scenario-selection"
)

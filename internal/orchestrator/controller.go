package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nkoval/rolelab/internal/domain"
	"github.com/nkoval/rolelab/internal/store"
)

// Controller owns one session's SessionState. It validates transitions,
// invokes collaborators, and applies events; no other component mutates the
// state.
//
// Operations that touch the store release the lock for the duration of the
// call and re-check the session epoch before applying the result, so a
// response that arrives after the user abandoned the session is discarded
// instead of being applied to a reset state.
type Controller struct {
	mu    sync.Mutex
	state SessionState
	epoch uint64

	repo                store.Repository
	reflectionMinLength int
	logger              *slog.Logger
}

// NewController creates a controller in the scenario-selection view.
func NewController(repo store.Repository, reflectionMinLength int, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		state:               newSessionState(),
		repo:                repo,
		reflectionMinLength: reflectionMinLength,
		logger:              logger,
	}
}

// apply reduces the event onto the current state. Must be called with the
// lock held. Bumps the epoch whenever the session resets so in-flight work
// started before the reset cannot land.
func (c *Controller) apply(e Event) error {
	prev := c.state.View
	next, err := reduce(c.state, e)
	if err != nil {
		return err
	}
	if next.View == ViewScenarioSelection && prev != ViewScenarioSelection {
		c.epoch++
	}
	c.state = next
	c.logger.Debug("session transition", "event", e.eventName(), "from", prev, "to", next.View)
	return nil
}

// SelectScenario starts a fresh session on the scenario.
func (c *Controller) SelectScenario(scenario *domain.Scenario) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(ScenarioChosen{Scenario: scenario})
}

// SelectPersona creates a conversation for the persona and enters chat.
// Selecting a completed persona fails with a guard violation before any
// store call is made.
func (c *Controller) SelectPersona(ctx context.Context, personaID string) (*domain.Conversation, error) {
	c.mu.Lock()
	if c.state.View != ViewPersonaSelection {
		c.mu.Unlock()
		return nil, guardf(fmt.Sprintf("cannot choose persona from %s", c.state.View))
	}
	persona := c.state.Scenario.PersonaByID(personaID)
	if persona == nil {
		c.mu.Unlock()
		return nil, guardf("persona does not belong to the selected scenario")
	}
	if c.state.hasCompleted(personaID) {
		c.mu.Unlock()
		return nil, guardf("persona already completed in this session")
	}
	scenarioID := c.state.Scenario.ID
	epoch := c.epoch
	c.mu.Unlock()

	conv := newConversation(scenarioID, persona)
	if err := c.repo.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		c.logger.Info("discarding conversation created for reset session", "conversation_id", conv.ID)
		return nil, ErrSessionReset
	}
	if err := c.apply(PersonaChosen{Persona: persona, ConversationID: conv.ID}); err != nil {
		return nil, err
	}
	return conv, nil
}

// EndConversation finishes the active conversation, either because the turn
// limit was reached or the user explicitly exited the chat. The stored
// record is marked completed if it still reads active.
func (c *Controller) EndConversation(ctx context.Context) error {
	c.mu.Lock()
	if c.state.View != ViewChat {
		c.mu.Unlock()
		return guardf(fmt.Sprintf("cannot end conversation from %s", c.state.View))
	}
	conversationID := c.state.ActiveConversationID
	epoch := c.epoch
	c.mu.Unlock()

	conv, err := c.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	if conv.IsActive() {
		conv.Status = domain.ConversationCompleted
		if err := c.repo.UpdateConversation(ctx, conv); err != nil {
			return fmt.Errorf("complete conversation %s: %w", conversationID, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return ErrSessionReset
	}
	return c.apply(ConversationEnded{})
}

// Continue advances from the feedback view per the next-action rule.
func (c *Controller) Continue() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(ContinueRequested{})
}

// RetryPersona creates a brand-new conversation for the persona that was
// just engaged and re-enters chat. Completed ids and the conversation log
// are untouched until the retried conversation finishes normally.
func (c *Controller) RetryPersona(ctx context.Context) (*domain.Conversation, error) {
	c.mu.Lock()
	if c.state.View != ViewFeedback {
		c.mu.Unlock()
		return nil, guardf(fmt.Sprintf("cannot retry persona from %s", c.state.View))
	}
	if c.state.Persona == nil {
		c.mu.Unlock()
		return nil, guardf("no persona to retry")
	}
	scenarioID := c.state.Scenario.ID
	persona := c.state.Persona
	epoch := c.epoch
	c.mu.Unlock()

	conv := newConversation(scenarioID, persona)
	if err := c.repo.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create retry conversation: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return nil, ErrSessionReset
	}
	if err := c.apply(RetryStarted{ConversationID: conv.ID}); err != nil {
		return nil, err
	}
	return conv, nil
}

// SubmitReflection validates and persists the strategy reflection. The
// recorded conversation order equals the completed persona ids at submission
// time.
func (c *Controller) SubmitReflection(ctx context.Context, text string) (*domain.StrategyReflection, error) {
	c.mu.Lock()
	if c.state.View != ViewStrategyReflection {
		c.mu.Unlock()
		return nil, guardf(fmt.Sprintf("cannot submit reflection from %s", c.state.View))
	}
	if c.state.ReflectionSubmitted {
		c.mu.Unlock()
		return nil, guardf("reflection already submitted")
	}
	if !c.CanSubmitReflection(text) {
		c.mu.Unlock()
		return nil, guardf(fmt.Sprintf("reflection must be at least %d characters", c.reflectionMinLength))
	}
	if len(c.state.ConversationIDs) == 0 {
		c.mu.Unlock()
		return nil, guardf("no completed conversations to reflect on")
	}
	reflection := &domain.StrategyReflection{
		ID:                uuid.New().String(),
		ConversationID:    c.state.ConversationIDs[0],
		Content:           text,
		ConversationOrder: slices.Clone(c.state.CompletedPersonaIDs),
		CreatedAt:         time.Now(),
	}
	epoch := c.epoch
	c.mu.Unlock()

	if err := c.repo.CreateReflection(ctx, reflection); err != nil {
		return nil, fmt.Errorf("persist reflection: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return nil, ErrSessionReset
	}
	if err := c.apply(ReflectionAccepted{}); err != nil {
		return nil, err
	}
	return reflection, nil
}

// Reflection loads the session's submitted strategy reflection.
func (c *Controller) Reflection(ctx context.Context) (*domain.StrategyReflection, error) {
	c.mu.Lock()
	if !c.state.ReflectionSubmitted || len(c.state.ConversationIDs) == 0 {
		c.mu.Unlock()
		return nil, store.ErrNotFound
	}
	conversationID := c.state.ConversationIDs[0]
	c.mu.Unlock()

	return c.repo.GetReflection(ctx, conversationID)
}

// Exit abandons the session back to scenario selection from any view.
func (c *Controller) Exit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(ExitRequested{})
}

// CanSubmitReflection reports whether the text meets the minimum length.
func (c *Controller) CanSubmitReflection(text string) bool {
	return utf8.RuneCountInString(text) >= c.reflectionMinLength
}

// ActiveConversationID returns the active conversation id, if any.
func (c *Controller) ActiveConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ActiveConversationID
}

// View returns a read-only snapshot of the session for rendering.
func (c *Controller) View() SessionView {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := SessionView{
		CurrentView:          c.state.View,
		SelectedScenario:     c.state.Scenario,
		SelectedPersona:      c.state.Persona,
		ActiveConversationID: c.state.ActiveConversationID,
		CompletedPersonaIDs:  slices.Clone(c.state.CompletedPersonaIDs),
		ConversationIDs:      slices.Clone(c.state.ConversationIDs),
		AvailablePersonas:    c.state.availablePersonas(),
		ReflectionSubmitted:  c.state.ReflectionSubmitted,
		ReflectionMinLength:  c.reflectionMinLength,
	}
	if view.CompletedPersonaIDs == nil {
		view.CompletedPersonaIDs = []string{}
	}
	if view.ConversationIDs == nil {
		view.ConversationIDs = []string{}
	}
	if view.AvailablePersonas == nil {
		view.AvailablePersonas = []domain.Persona{}
	}
	if c.state.View == ViewFeedback {
		view.NextAction = nextAction(c.state)
	}
	return view
}

func newConversation(scenarioID string, persona *domain.Persona) *domain.Conversation {
	now := time.Now()
	return &domain.Conversation{
		ID:         uuid.New().String(),
		ScenarioID: scenarioID,
		PersonaID:  persona.ID,
		Persona:    persona.Snapshot(),
		Messages:   []domain.Message{},
		TurnCount:  0,
		Status:     domain.ConversationActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nkoval/rolelab/internal/catalog"
	"github.com/nkoval/rolelab/internal/chat"
	"github.com/nkoval/rolelab/internal/domain"
	"github.com/nkoval/rolelab/internal/identity"
	"github.com/nkoval/rolelab/internal/orchestrator"
)

// SessionHandler exposes the workflow controller over HTTP. Every endpoint
// resolves the caller's session from their anonymous identity and forwards
// one workflow operation; the controller does all validation.
type SessionHandler struct {
	sessions  *orchestrator.Manager
	catalog   *catalog.Catalog
	exchanger *chat.Exchanger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(sessions *orchestrator.Manager, cat *catalog.Catalog, exchanger *chat.Exchanger) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		catalog:   cat,
		exchanger: exchanger,
	}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/scenario", h.SelectScenario)
		r.Post("/persona", h.SelectPersona)
		r.Post("/message", h.SendMessage)
		r.Post("/end", h.EndConversation)
		r.Post("/continue", h.Continue)
		r.Post("/retry-persona", h.RetryPersona)
		r.Get("/reflection", h.GetReflection)
		r.Post("/reflection", h.SubmitReflection)
		r.Post("/exit", h.Exit)
	})
}

func (h *SessionHandler) session(r *http.Request) (*orchestrator.Controller, string) {
	userID := identity.UserIDFromContext(r.Context())
	return h.sessions.Session(userID), userID
}

// GetSession returns the session view for rendering.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, _ := h.session(r)
	JSON(w, http.StatusOK, ctrl.View())
}

// SelectScenario starts a fresh session on the chosen scenario.
func (h *SessionHandler) SelectScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ScenarioID == "" {
		Error(w, http.StatusBadRequest, "scenario_id is required")
		return
	}

	scenario := h.catalog.Scenario(req.ScenarioID)
	if scenario == nil {
		Error(w, http.StatusNotFound, "scenario not found")
		return
	}

	ctrl, userID := h.session(r)
	if err := ctrl.SelectScenario(scenario); err != nil {
		WorkflowError(w, err)
		return
	}
	slog.Info("scenario selected", "user_id", userID, "scenario_id", scenario.ID)
	JSON(w, http.StatusOK, ctrl.View())
}

// SelectPersona creates a conversation for the persona and enters chat.
func (h *SessionHandler) SelectPersona(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PersonaID string `json:"persona_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PersonaID == "" {
		Error(w, http.StatusBadRequest, "persona_id is required")
		return
	}

	ctrl, userID := h.session(r)
	conv, err := ctrl.SelectPersona(r.Context(), req.PersonaID)
	if err != nil {
		WorkflowError(w, err)
		return
	}
	slog.Info("persona selected", "user_id", userID, "persona_id", req.PersonaID, "conversation_id", conv.ID)
	JSON(w, http.StatusOK, map[string]interface{}{
		"session":      ctrl.View(),
		"conversation": conv,
	})
}

// SendMessage runs one user/persona exchange in the active conversation.
// When the exchange uses up the turn budget the chat ends and the workflow
// moves to feedback in the same request.
func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	ctrl, userID := h.session(r)
	conversationID := ctrl.ActiveConversationID()
	if conversationID == "" {
		WorkflowError(w, &orchestrator.GuardError{Reason: "no active conversation"})
		return
	}

	conv, err := h.exchanger.SendMessage(r.Context(), conversationID, req.Text)
	if err != nil {
		slog.Error("exchange failed", "error", err, "user_id", userID, "conversation_id", conversationID)
		WorkflowError(w, err)
		return
	}

	if conv.Status == domain.ConversationCompleted {
		if err := ctrl.EndConversation(r.Context()); err != nil {
			WorkflowError(w, err)
			return
		}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session":      ctrl.View(),
		"conversation": conv,
	})
}

// EndConversation is the explicit user-initiated chat exit.
func (h *SessionHandler) EndConversation(w http.ResponseWriter, r *http.Request) {
	ctrl, userID := h.session(r)
	if err := ctrl.EndConversation(r.Context()); err != nil {
		WorkflowError(w, err)
		return
	}
	slog.Info("conversation ended", "user_id", userID)
	JSON(w, http.StatusOK, ctrl.View())
}

// Continue advances from the feedback view.
func (h *SessionHandler) Continue(w http.ResponseWriter, r *http.Request) {
	ctrl, _ := h.session(r)
	if err := ctrl.Continue(); err != nil {
		WorkflowError(w, err)
		return
	}
	JSON(w, http.StatusOK, ctrl.View())
}

// RetryPersona starts a brand-new conversation with the same persona.
func (h *SessionHandler) RetryPersona(w http.ResponseWriter, r *http.Request) {
	ctrl, userID := h.session(r)
	conv, err := ctrl.RetryPersona(r.Context())
	if err != nil {
		WorkflowError(w, err)
		return
	}
	slog.Info("persona retry started", "user_id", userID, "conversation_id", conv.ID)
	JSON(w, http.StatusOK, map[string]interface{}{
		"session":      ctrl.View(),
		"conversation": conv,
	})
}

// GetReflection returns the session's submitted strategy reflection, 404
// until one exists.
func (h *SessionHandler) GetReflection(w http.ResponseWriter, r *http.Request) {
	ctrl, _ := h.session(r)
	reflection, err := ctrl.Reflection(r.Context())
	if err != nil {
		WorkflowError(w, err)
		return
	}
	JSON(w, http.StatusOK, reflection)
}

// SubmitReflection validates and persists the strategy reflection.
func (h *SessionHandler) SubmitReflection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctrl, userID := h.session(r)
	reflection, err := ctrl.SubmitReflection(r.Context(), req.Text)
	if err != nil {
		WorkflowError(w, err)
		return
	}
	slog.Info("reflection submitted", "user_id", userID, "conversation_id", reflection.ConversationID)
	JSON(w, http.StatusOK, map[string]interface{}{
		"session":    ctrl.View(),
		"reflection": reflection,
	})
}

// Exit abandons the session back to scenario selection.
func (h *SessionHandler) Exit(w http.ResponseWriter, r *http.Request) {
	ctrl, _ := h.session(r)
	if err := ctrl.Exit(); err != nil {
		WorkflowError(w, err)
		return
	}
	JSON(w, http.StatusOK, ctrl.View())
}

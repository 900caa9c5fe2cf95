package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nkoval/rolelab/internal/orchestrator"
	"github.com/nkoval/rolelab/internal/store"
)

// FeedbackHandler exposes the feedback acquisition policy. GET runs the
// fetch-or-synthesize sequence; the retry endpoint re-enters the exact same
// policy, so a manual retry can never start a duplicate synthesis while one
// is pending.
type FeedbackHandler struct {
	acquirer *orchestrator.Acquirer
	repo     store.Repository
}

// NewFeedbackHandler creates a feedback handler.
func NewFeedbackHandler(acquirer *orchestrator.Acquirer, repo store.Repository) *FeedbackHandler {
	return &FeedbackHandler{acquirer: acquirer, repo: repo}
}

// RegisterRoutes registers feedback and conversation routes.
func (h *FeedbackHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/conversations/{conversationID}", h.GetConversation)
		r.Get("/feedback/{conversationID}", h.GetFeedback)
		r.Post("/feedback/{conversationID}/retry", h.RetryFeedback)
	})
}

// GetConversation returns the stored conversation record. This is the poll
// target for the voice-output mode; it reads only and never transitions.
func (h *FeedbackHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	conv, err := h.repo.GetConversation(r.Context(), conversationID)
	if err != nil {
		WorkflowError(w, err)
		return
	}
	JSON(w, http.StatusOK, conv)
}

// GetFeedback acquires the feedback record for a conversation, synthesizing
// it when it does not exist yet.
func (h *FeedbackHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	h.acquire(w, r)
}

// RetryFeedback is the user-invoked retry; it re-runs the full acquisition
// sequence and no-ops with a pending status while synthesis is in flight.
func (h *FeedbackHandler) RetryFeedback(w http.ResponseWriter, r *http.Request) {
	h.acquire(w, r)
}

func (h *FeedbackHandler) acquire(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if h.acquirer.Pending(conversationID) {
		JSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
		return
	}

	fb, err := h.acquirer.Acquire(r.Context(), conversationID)
	if err != nil {
		WorkflowError(w, err)
		return
	}
	JSON(w, http.StatusOK, fb)
}

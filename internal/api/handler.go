//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nkoval/rolelab/internal/ai"
	"github.com/nkoval/rolelab/internal/chat"
	"github.com/nkoval/rolelab/internal/orchestrator"
	"github.com/nkoval/rolelab/internal/store"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// WorkflowError maps orchestrator and collaborator failures onto HTTP
// responses. Guard violations are client errors with no side effects;
// generation failures carry upstream detail and a retry affordance.
func WorkflowError(w http.ResponseWriter, err error) {
	var guardErr *orchestrator.GuardError
	if errors.As(err, &guardErr) {
		JSON(w, http.StatusConflict, map[string]string{
			"error":  "guard_violation",
			"reason": guardErr.Reason,
		})
		return
	}

	if errors.Is(err, orchestrator.ErrSynthesisPending) {
		JSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
		return
	}

	if errors.Is(err, orchestrator.ErrSessionReset) {
		Error(w, http.StatusConflict, "session_reset")
		return
	}

	if errors.Is(err, chat.ErrConversationCompleted) {
		Error(w, http.StatusConflict, "conversation_completed")
		return
	}

	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "not_found")
		return
	}

	var genErr *ai.GenerationError
	if errors.As(err, &genErr) {
		JSON(w, http.StatusBadGateway, map[string]string{
			"error":  "generation_failed",
			"detail": genErr.Detail,
		})
		return
	}

	Error(w, http.StatusBadGateway, "upstream_failure")
}

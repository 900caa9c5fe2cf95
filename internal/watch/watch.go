// Package watch streams conversation snapshots over WebSocket.
//
// This backs the voice-output mode's periodic conversation refetch. It is a
// background poll independent of the workflow state machine: it only reads
// the store and never drives transitions.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/nkoval/rolelab/internal/identity"
	"github.com/nkoval/rolelab/internal/store"
)

const pollInterval = 2 * time.Second

// Handler upgrades to WebSocket and pushes the requested conversation's
// stored snapshot on an interval until the client disconnects.
type Handler struct {
	repo          store.Repository
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a conversation watch handler.
func NewHandler(repo store.Repository, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		repo:          repo,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		http.Error(w, "conversation_id is required", http.StatusBadRequest)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "watch ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	slog.Info("Conversation watch started", "user_id", userID, "conversation_id", conversationID)

	// The client never sends anything meaningful; CloseRead surfaces a
	// disconnect as context cancellation.
	ctx := ws.CloseRead(r.Context())

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if err := h.push(ctx, ws, conversationID); err != nil {
			if !errors.Is(err, context.Canceled) {
				slog.Debug("Conversation watch write failed", "error", err, "conversation_id", conversationID)
			}
			return
		}

		select {
		case <-ctx.Done():
			slog.Debug("Conversation watch closed", "user_id", userID, "conversation_id", conversationID)
			return
		case <-ticker.C:
		}
	}
}

func (h *Handler) push(ctx context.Context, ws *websocket.Conn, conversationID string) error {
	conv, err := h.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ws.Close(websocket.StatusPolicyViolation, "conversation not found")
		}
		return err
	}

	data, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

package orchestrator

import (
	"log/slog"
	"sync"

	"github.com/nkoval/rolelab/internal/store"
)

// Manager holds one Controller per user. Controllers are created on first
// use and live for the life of the process; a session that returns to
// scenario selection reuses its controller with reset state.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Controller

	repo                store.Repository
	reflectionMinLength int
	logger              *slog.Logger
}

// NewManager creates a session manager.
func NewManager(repo store.Repository, reflectionMinLength int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:            make(map[string]*Controller),
		repo:                repo,
		reflectionMinLength: reflectionMinLength,
		logger:              logger,
	}
}

// Session returns the controller for a user, creating it if needed.
func (m *Manager) Session(userID string) *Controller {
	m.mu.RLock()
	c, ok := m.sessions[userID]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.sessions[userID]; ok {
		return c
	}
	c = NewController(m.repo, m.reflectionMinLength, m.logger)
	m.sessions[userID] = c
	m.logger.Info("training session created", "user_id", userID)
	return c
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

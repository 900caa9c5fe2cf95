package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nkoval/rolelab/internal/ai"
	"github.com/nkoval/rolelab/internal/domain"
	"github.com/nkoval/rolelab/internal/store"
)

// Synthesizer is the slice of the AI generator the acquirer needs.
type Synthesizer interface {
	SynthesizeFeedback(ctx context.Context, conv *domain.Conversation) (*domain.Feedback, error)
}

// Acquirer implements the feedback acquisition policy: fetch first, and only
// on a distinguished not-found trigger exactly one synthesis, guarded by a
// per-conversation in-flight lock. Repeated failures are recoverable; manual
// retry re-runs the same sequence.
type Acquirer struct {
	repo   store.Repository
	synth  Synthesizer
	logger *slog.Logger

	// inflight holds one mutex per conversation id with a synthesis request
	// outstanding. Unrelated conversations never contend.
	inflight sync.Map
}

// NewAcquirer creates a feedback acquirer.
func NewAcquirer(repo store.Repository, synth Synthesizer, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Acquirer{repo: repo, synth: synth, logger: logger}
}

// Acquire returns the feedback record for the conversation, synthesizing it
// if it does not exist yet.
//
// A fetch that finds a record returns it without any synthesis call. A fetch
// error other than not-found is surfaced without triggering synthesis. When
// a synthesis request for the conversation is already in flight, Acquire
// returns ErrSynthesisPending instead of starting a second one.
func (a *Acquirer) Acquire(ctx context.Context, conversationID string) (*domain.Feedback, error) {
	fb, err := a.repo.GetFeedback(ctx, conversationID)
	if err == nil {
		return fb, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("fetch feedback for %s: %w", conversationID, err)
	}

	lock, _ := a.inflight.LoadOrStore(conversationID, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	if !mu.TryLock() {
		a.logger.Debug("synthesis already in flight", "conversation_id", conversationID)
		return nil, ErrSynthesisPending
	}
	defer func() {
		mu.Unlock()
		a.inflight.Delete(conversationID)
	}()

	conv, err := a.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}

	fb, err = a.synth.SynthesizeFeedback(ctx, conv)
	if err != nil {
		var genErr *ai.GenerationError
		if errors.As(err, &genErr) {
			a.logger.Warn("feedback synthesis failed",
				"conversation_id", conversationID,
				"detail", genErr.Detail,
				"error", genErr.Err)
			return nil, err
		}
		return nil, fmt.Errorf("synthesize feedback for %s: %w", conversationID, err)
	}

	if err := a.repo.SaveFeedback(ctx, fb); err != nil {
		return nil, fmt.Errorf("save feedback for %s: %w", conversationID, err)
	}

	// Re-fetch so callers always see the stored record. If a concurrent
	// writer won the unique constraint, the stored record wins.
	stored, err := a.repo.GetFeedback(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("refetch feedback for %s: %w", conversationID, err)
	}

	a.logger.Info("feedback synthesized", "conversation_id", conversationID, "overall_score", stored.OverallScore)
	return stored, nil
}

// Pending reports whether a synthesis request for the conversation is
// currently in flight.
func (a *Acquirer) Pending(conversationID string) bool {
	lock, ok := a.inflight.Load(conversationID)
	if !ok {
		return false
	}
	mu := lock.(*sync.Mutex)
	if mu.TryLock() {
		mu.Unlock()
		return false
	}
	return true
}

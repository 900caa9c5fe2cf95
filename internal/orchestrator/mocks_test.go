package orchestrator

import (
	"context"
	"sync"

	"github.com/nkoval/rolelab/internal/domain"
	"github.com/nkoval/rolelab/internal/store"
)

type fakeRepo struct {
	mu            sync.Mutex
	conversations map[string]*domain.Conversation
	feedback      map[string]*domain.Feedback
	reflections   map[string]*domain.StrategyReflection

	// createHook runs during CreateConversation, before the write, to let
	// tests interleave session actions with in-flight store calls.
	createHook func()

	getFeedbackErr   error
	getFeedbackCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		conversations: make(map[string]*domain.Conversation),
		feedback:      make(map[string]*domain.Feedback),
		reflections:   make(map[string]*domain.StrategyReflection),
	}
}

func (f *fakeRepo) CreateConversation(_ context.Context, conv *domain.Conversation) error {
	if f.createHook != nil {
		f.createHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *conv
	f.conversations[conv.ID] = &cp
	return nil
}

func (f *fakeRepo) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

func (f *fakeRepo) UpdateConversation(_ context.Context, conv *domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conversations[conv.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *conv
	f.conversations[conv.ID] = &cp
	return nil
}

func (f *fakeRepo) GetFeedback(_ context.Context, conversationID string) (*domain.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getFeedbackCalls++
	if f.getFeedbackErr != nil {
		return nil, f.getFeedbackErr
	}
	fb, ok := f.feedback[conversationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *fb
	return &cp, nil
}

func (f *fakeRepo) SaveFeedback(_ context.Context, fb *domain.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.feedback[fb.ConversationID]; exists {
		return nil // stored record wins
	}
	cp := *fb
	f.feedback[fb.ConversationID] = &cp
	return nil
}

func (f *fakeRepo) GetReflection(_ context.Context, conversationID string) (*domain.StrategyReflection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reflections[conversationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRepo) CreateReflection(_ context.Context, r *domain.StrategyReflection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.reflections[r.ConversationID]; exists {
		return store.ErrAlreadyExists
	}
	cp := *r
	f.reflections[r.ConversationID] = &cp
	return nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return nil }
func (f *fakeRepo) Close() error                 { return nil }

func (f *fakeRepo) conversationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conversations)
}

type fakeSynth struct {
	mu     sync.Mutex
	calls  int
	block  chan struct{}
	result func(conv *domain.Conversation) *domain.Feedback
	err    error
}

func (s *fakeSynth) SynthesizeFeedback(_ context.Context, conv *domain.Conversation) (*domain.Feedback, error) {
	s.mu.Lock()
	s.calls++
	block := s.block
	err := s.err
	s.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	if s.result != nil {
		return s.result(conv), nil
	}
	return &domain.Feedback{
		ID:             "fb-" + conv.ID,
		ConversationID: conv.ID,
		OverallScore:   80,
	}, nil
}

func (s *fakeSynth) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeSynth) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

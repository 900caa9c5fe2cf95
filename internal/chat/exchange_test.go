package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nkoval/rolelab/internal/ai"
	"github.com/nkoval/rolelab/internal/domain"
	"github.com/nkoval/rolelab/internal/store"
)

type fakeRepo struct {
	mu            sync.Mutex
	conversations map[string]*domain.Conversation
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{conversations: make(map[string]*domain.Conversation)}
}

func (f *fakeRepo) CreateConversation(_ context.Context, conv *domain.Conversation) error {
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
	cp.Messages = append([]domain.Message(nil), conv.Messages...)
	return &cp, nil
}

func (f *fakeRepo) UpdateConversation(_ context.Context, conv *domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *conv
	f.conversations[conv.ID] = &cp
	return nil
}

func (f *fakeRepo) GetFeedback(_ context.Context, _ string) (*domain.Feedback, error) {
	return nil, store.ErrNotFound
}
func (f *fakeRepo) SaveFeedback(_ context.Context, _ *domain.Feedback) error { return nil }
func (f *fakeRepo) GetReflection(_ context.Context, _ string) (*domain.StrategyReflection, error) {
	return nil, store.ErrNotFound
}
func (f *fakeRepo) CreateReflection(_ context.Context, _ *domain.StrategyReflection) error {
	return nil
}
func (f *fakeRepo) Ping(_ context.Context) error { return nil }
func (f *fakeRepo) Close() error                 { return nil }

type fakeGenerator struct {
	replies int
}

func (g *fakeGenerator) PersonaReply(_ context.Context, req ai.ReplyRequest) (*ai.Reply, error) {
	g.replies++
	return &ai.Reply{
		Text:    fmt.Sprintf("reply %d to %q", g.replies, req.UserText),
		Emotion: "neutral",
	}, nil
}

func (g *fakeGenerator) SynthesizeFeedback(_ context.Context, _ *domain.Conversation) (*domain.Feedback, error) {
	return nil, errors.New("not used")
}

type fakeCatalog struct{}

func (fakeCatalog) Scenario(_ string) *domain.Scenario { return nil }

func seedActive(repo *fakeRepo, id string) {
	_ = repo.CreateConversation(context.Background(), &domain.Conversation{
		ID:         id,
		ScenarioID: "scn-1",
		PersonaID:  "a",
		Persona:    domain.PersonaSnapshot{ID: "a", Name: "Persona A"},
		Messages:   []domain.Message{},
		Status:     domain.ConversationActive,
	})
}

func TestSendMessageRecordsExchange(t *testing.T) {
	repo := newFakeRepo()
	gen := &fakeGenerator{}
	ex := NewExchanger(repo, gen, fakeCatalog{}, 10, nil)
	seedActive(repo, "c1")

	conv, err := ex.SendMessage(context.Background(), "c1", "hello")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if conv.TurnCount != 1 {
		t.Errorf("turn count = %d, want 1", conv.TurnCount)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(conv.Messages))
	}
	if conv.Messages[0].Sender != domain.SenderUser || conv.Messages[0].Text != "hello" {
		t.Errorf("unexpected user message %+v", conv.Messages[0])
	}
	if conv.Messages[1].Sender != domain.SenderAI || conv.Messages[1].Emotion != "neutral" {
		t.Errorf("unexpected ai message %+v", conv.Messages[1])
	}
	if conv.Status != domain.ConversationActive {
		t.Errorf("conversation completed after a single turn")
	}
}

func TestSendMessageCompletesAtTurnLimit(t *testing.T) {
	repo := newFakeRepo()
	gen := &fakeGenerator{}
	limit := 3
	ex := NewExchanger(repo, gen, fakeCatalog{}, limit, nil)
	seedActive(repo, "c1")

	var conv *domain.Conversation
	var err error
	for i := 0; i < limit; i++ {
		conv, err = ex.SendMessage(context.Background(), "c1", fmt.Sprintf("turn %d", i+1))
		if err != nil {
			t.Fatalf("SendMessage %d failed: %v", i+1, err)
		}
	}

	if conv.Status != domain.ConversationCompleted {
		t.Errorf("status = %s at turn limit, want completed", conv.Status)
	}
	if conv.TurnCount != limit {
		t.Errorf("turn count = %d, want %d", conv.TurnCount, limit)
	}

	// Further messages are rejected without calling the model.
	replies := gen.replies
	_, err = ex.SendMessage(context.Background(), "c1", "one more")
	if !errors.Is(err, ErrConversationCompleted) {
		t.Fatalf("expected ErrConversationCompleted, got %v", err)
	}
	if gen.replies != replies {
		t.Error("model called for a completed conversation")
	}
}

func TestSendMessageUnknownConversation(t *testing.T) {
	ex := NewExchanger(newFakeRepo(), &fakeGenerator{}, fakeCatalog{}, 10, nil)
	_, err := ex.SendMessage(context.Background(), "missing", "hello")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

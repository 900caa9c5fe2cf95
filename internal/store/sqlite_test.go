package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nkoval/rolelab/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return repo
}

func testConversation(id string) *domain.Conversation {
	now := time.Now()
	return &domain.Conversation{
		ID:         id,
		ScenarioID: "scn-1",
		PersonaID:  "fin",
		Persona: domain.PersonaSnapshot{
			ID:   "fin",
			Name: "Maren Holt",
			Role: "Finance Director",
		},
		Messages:  []domain.Message{},
		TurnCount: 0,
		Status:    domain.ConversationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestConversationRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	conv := testConversation("c1")
	if err := repo.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	conv.RecordExchange("hello", "hi there", "neutral")
	conv.RecordExchange("second", "second reply", "pleased")
	conv.Status = domain.ConversationCompleted
	if err := repo.UpdateConversation(ctx, conv); err != nil {
		t.Fatalf("UpdateConversation failed: %v", err)
	}

	got, err := repo.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got.TurnCount != 2 || got.Status != domain.ConversationCompleted {
		t.Errorf("turn/status = %d/%s, want 2/completed", got.TurnCount, got.Status)
	}
	if len(got.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(got.Messages))
	}
	if got.Messages[1].Emotion != "neutral" || got.Messages[3].Emotion != "pleased" {
		t.Error("emotion tags lost in round trip")
	}
	if got.Persona.Role != "Finance Director" {
		t.Errorf("persona snapshot lost: %q", got.Persona.Role)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	repo := newTestStore(t)
	if _, err := repo.GetConversation(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFeedbackAtMostOnePerConversation(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	if err := repo.CreateConversation(ctx, testConversation("c1")); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.GetFeedback(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before synthesis, got %v", err)
	}

	first := &domain.Feedback{
		ID:             "fb-1",
		ConversationID: "c1",
		OverallScore:   82,
		Dimensions: []domain.DimensionScore{
			{Name: "Clarity", Score: 80, Label: "Good", Commentary: "clear framing"},
		},
		Detail: domain.DetailedFeedback{
			Strengths: []string{"opened with context"},
			DevelopmentPlan: []domain.DevelopmentStage{
				{Stage: "Week 1", Focus: "listening", Actions: "paraphrase before replying"},
			},
		},
		CreatedAt: time.Now(),
	}
	if err := repo.SaveFeedback(ctx, first); err != nil {
		t.Fatalf("SaveFeedback failed: %v", err)
	}

	// A duplicate write is ignored; the stored record wins.
	dup := &domain.Feedback{ID: "fb-2", ConversationID: "c1", OverallScore: 10, CreatedAt: time.Now()}
	if err := repo.SaveFeedback(ctx, dup); err != nil {
		t.Fatalf("duplicate SaveFeedback should be a no-op, got %v", err)
	}

	got, err := repo.GetFeedback(ctx, "c1")
	if err != nil {
		t.Fatalf("GetFeedback failed: %v", err)
	}
	if got.ID != "fb-1" || got.OverallScore != 82 {
		t.Errorf("stored record lost: %s/%d", got.ID, got.OverallScore)
	}
	if len(got.Dimensions) != 1 || got.Dimensions[0].Commentary != "clear framing" {
		t.Error("dimension payload lost in round trip")
	}
	if len(got.Detail.DevelopmentPlan) != 1 || got.Detail.DevelopmentPlan[0].Stage != "Week 1" {
		t.Error("development plan lost in round trip")
	}
}

func TestReflectionCreatedAtMostOnce(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	r := &domain.StrategyReflection{
		ID:                "r1",
		ConversationID:    "c1",
		Content:           "I engaged finance first to anchor the constraint before talking to engineering.",
		ConversationOrder: []string{"fin", "eng", "sales"},
		CreatedAt:         time.Now(),
	}
	if err := repo.CreateReflection(ctx, r); err != nil {
		t.Fatalf("CreateReflection failed: %v", err)
	}

	second := &domain.StrategyReflection{ID: "r2", ConversationID: "c1", Content: "again", CreatedAt: time.Now()}
	if err := repo.CreateReflection(ctx, second); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := repo.GetReflection(ctx, "c1")
	if err != nil {
		t.Fatalf("GetReflection failed: %v", err)
	}
	if got.ID != "r1" {
		t.Errorf("stored reflection lost: %s", got.ID)
	}
	for i, want := range []string{"fin", "eng", "sales"} {
		if got.ConversationOrder[i] != want {
			t.Errorf("ConversationOrder[%d] = %s, want %s", i, got.ConversationOrder[i], want)
		}
	}
}

func TestUpdateConversationNeverRewindsTurns(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	conv := testConversation("c1")
	if err := repo.CreateConversation(ctx, conv); err != nil {
		t.Fatal(err)
	}
	conv.RecordExchange("a", "b", "")
	conv.RecordExchange("c", "d", "")
	if err := repo.UpdateConversation(ctx, conv); err != nil {
		t.Fatal(err)
	}

	stale := testConversation("c1") // turn_count 0
	if err := repo.UpdateConversation(ctx, stale); err == nil {
		t.Fatal("stale update with rewound turn count should fail")
	}

	got, err := repo.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.TurnCount != 2 {
		t.Errorf("turn count rewound to %d", got.TurnCount)
	}
}

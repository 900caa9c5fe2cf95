package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nkoval/rolelab/internal/domain"
	"google.golang.org/genai"
)

const (
	replyTimeout     = 30 * time.Second
	synthesisTimeout = 120 * time.Second
)

// GeminiClient implements Generator using the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiClient creates a new Gemini-backed generator.
func NewGeminiClient(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	logger.Info("Gemini client initialized", "model", model)

	return &GeminiClient{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// Ensure GeminiClient implements Generator.
var _ Generator = (*GeminiClient)(nil)

// PersonaReply produces the persona's next utterance.
func (c *GeminiClient) PersonaReply(ctx context.Context, req ReplyRequest) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	prompt := buildReplyPrompt(req)
	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(personaSystemPrompt(req), genai.RoleUser),
			ResponseMIMEType:  "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("persona reply request failed: %w", err)
	}

	var reply Reply
	if err := json.Unmarshal([]byte(stripFences(resp.Text())), &reply); err != nil {
		c.logger.Warn("persona reply was not valid JSON, using raw text", "error", err)
		reply = Reply{Text: strings.TrimSpace(resp.Text())}
	}
	if reply.Text == "" {
		return nil, fmt.Errorf("persona reply was empty")
	}
	return &reply, nil
}

// SynthesizeFeedback analyzes a completed conversation and produces a
// feedback record.
func (c *GeminiClient) SynthesizeFeedback(ctx context.Context, conv *domain.Conversation) (*domain.Feedback, error) {
	ctx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	c.logger.Info("Synthesizing feedback", "conversation_id", conv.ID, "turns", conv.TurnCount)

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(buildSynthesisPrompt(conv)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(synthesisSystemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
		},
	)
	if err != nil {
		return nil, &GenerationError{
			ConversationID: conv.ID,
			Detail:         "analysis request failed",
			Err:            err,
		}
	}

	var payload feedbackEnvelope
	if err := json.Unmarshal([]byte(stripFences(resp.Text())), &payload); err != nil {
		return nil, &GenerationError{
			ConversationID: conv.ID,
			Detail:         "analysis response was not valid JSON",
			Err:            err,
		}
	}
	if payload.OverallScore < 0 || payload.OverallScore > 100 {
		return nil, &GenerationError{
			ConversationID: conv.ID,
			Detail:         fmt.Sprintf("overall score %d out of range", payload.OverallScore),
		}
	}

	return &domain.Feedback{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		OverallScore:   payload.OverallScore,
		Dimensions:     payload.Dimensions,
		Detail:         payload.Detail,
		CreatedAt:      time.Now(),
	}, nil
}

// feedbackEnvelope is the JSON shape the model is instructed to return.
type feedbackEnvelope struct {
	OverallScore int                     `json:"overall_score"`
	Dimensions   []domain.DimensionScore `json:"dimensions"`
	Detail       domain.DetailedFeedback `json:"detail"`
}

const synthesisSystemPrompt = `You are an expert communication coach reviewing a workplace roleplay training conversation.
Score the trainee's performance and return ONLY a JSON object with this shape:
{
  "overall_score": <0-100>,
  "dimensions": [{"name": "...", "score": <0-100>, "label": "...", "commentary": "..."}],
  "detail": {
    "strengths": ["..."],
    "improvements": ["..."],
    "next_steps": ["..."],
    "behavior_guides": ["..."],
    "conversation_guides": ["..."],
    "development_plan": [{"stage": "...", "focus": "...", "actions": "..."}]
  }
}`

func buildSynthesisPrompt(conv *domain.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Persona the trainee engaged: %s (%s, %s)\n", conv.Persona.Name, conv.Persona.Role, conv.Persona.Department)
	fmt.Fprintf(&b, "Persona stance: %s\nPersona goal: %s\nPersona tradeoff: %s\n\n", conv.Persona.Stance, conv.Persona.Goal, conv.Persona.Tradeoff)
	b.WriteString("Transcript:\n")
	for _, m := range conv.Messages {
		speaker := "Trainee"
		if m.Sender == domain.SenderAI {
			speaker = conv.Persona.Name
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, m.Text)
	}
	return b.String()
}

func personaSystemPrompt(req ReplyRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are roleplaying %s, %s in the %s department.\n", req.Persona.Name, req.Persona.Role, req.Persona.Department)
	fmt.Fprintf(&b, "Your stance: %s\nYour goal: %s\nYour tradeoff: %s\n", req.Persona.Stance, req.Persona.Goal, req.Persona.Tradeoff)
	if req.Scenario != nil {
		fmt.Fprintf(&b, "Scenario: %s — %s\n", req.Scenario.Title, req.Scenario.Description)
	}
	b.WriteString(`Stay in character. Reply with ONLY a JSON object: {"text": "<your reply>", "emotion": "<one word, e.g. neutral|pleased|frustrated|skeptical>"}`)
	return b.String()
}

func buildReplyPrompt(req ReplyRequest) string {
	var b strings.Builder
	for _, m := range req.History {
		speaker := "User"
		if m.Sender == domain.SenderAI {
			speaker = req.Persona.Name
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, m.Text)
	}
	fmt.Fprintf(&b, "User: %s\n", req.UserText)
	return b.String()
}

// stripFences removes markdown code fences some models wrap around JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

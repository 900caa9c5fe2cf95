package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nkoval/rolelab/internal/domain"
	"github.com/nkoval/rolelab/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db         *sql.DB
	feedbackMu sync.Mutex // Mutex for feedback writes to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL,
		persona_id TEXT NOT NULL,
		persona_json TEXT NOT NULL,
		messages_json TEXT NOT NULL,
		turn_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_scenario ON conversations(scenario_id);

	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL UNIQUE,
		overall_score INTEGER NOT NULL,
		payload_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reflections (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL,
		order_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateConversation persists a new conversation record.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	personaJSON, err := json.Marshal(conv.Persona)
	if err != nil {
		return fmt.Errorf("marshal persona snapshot: %w", err)
	}
	messagesJSON, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	query := `
	INSERT INTO conversations (id, scenario_id, persona_id, persona_json, messages_json, turn_count, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		conv.ID, conv.ScenarioID, conv.PersonaID,
		string(personaJSON), string(messagesJSON),
		conv.TurnCount, conv.Status,
		conv.CreatedAt.Unix(), conv.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by id.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	query := `
		SELECT id, scenario_id, persona_id, persona_json, messages_json,
		       turn_count, status, created_at, updated_at
		FROM conversations WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	var conv domain.Conversation
	var personaJSON, messagesJSON string
	var createdAt, updatedAt int64

	err := row.Scan(
		&conv.ID, &conv.ScenarioID, &conv.PersonaID,
		&personaJSON, &messagesJSON,
		&conv.TurnCount, &conv.Status,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation row: %w", err)
	}

	if err := json.Unmarshal([]byte(personaJSON), &conv.Persona); err != nil {
		return nil, fmt.Errorf("unmarshal persona snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(messagesJSON), &conv.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	conv.CreatedAt = time.Unix(createdAt, 0)
	conv.UpdatedAt = time.Unix(updatedAt, 0)

	return &conv, nil
}

// UpdateConversation persists messages, turn count, and status.
// Historical rows are never deleted; turn_count only moves forward.
func (s *SQLiteStore) UpdateConversation(ctx context.Context, conv *domain.Conversation) error {
	messagesJSON, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	query := `
	UPDATE conversations
	SET messages_json = ?, turn_count = ?, status = ?, updated_at = ?
	WHERE id = ? AND turn_count <= ?`

	result, err := s.db.ExecContext(ctx, query,
		string(messagesJSON), conv.TurnCount, conv.Status,
		time.Now().Unix(), conv.ID, conv.TurnCount,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update conversation %s: %w", conv.ID, ErrNotFound)
	}
	return nil
}

// GetFeedback retrieves the feedback record for a conversation.
func (s *SQLiteStore) GetFeedback(ctx context.Context, conversationID string) (*domain.Feedback, error) {
	query := `
		SELECT id, conversation_id, overall_score, payload_json, created_at
		FROM feedback WHERE conversation_id = ?`

	row := s.db.QueryRowContext(ctx, query, conversationID)

	var fb domain.Feedback
	var payloadJSON string
	var createdAt int64

	err := row.Scan(&fb.ID, &fb.ConversationID, &fb.OverallScore, &payloadJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan feedback row: %w", err)
	}

	var payload feedbackPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal feedback payload: %w", err)
	}
	fb.Dimensions = payload.Dimensions
	fb.Detail = payload.Detail
	fb.CreatedAt = time.Unix(createdAt, 0)

	return &fb, nil
}

// feedbackPayload is the JSON column shape for the structured feedback body.
type feedbackPayload struct {
	Dimensions []domain.DimensionScore `json:"dimensions"`
	Detail     domain.DetailedFeedback `json:"detail"`
}

// SaveFeedback persists a feedback record. The UNIQUE constraint on
// conversation_id enforces the at-most-one invariant; a duplicate write
// leaves the stored record untouched.
// Retries on SQLITE_BUSY with exponential backoff.
func (s *SQLiteStore) SaveFeedback(ctx context.Context, fb *domain.Feedback) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.saveFeedbackOnce(ctx, fb)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("SaveFeedback hit SQLITE_BUSY, retrying",
				"conversation_id", fb.ConversationID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		return fmt.Errorf("save feedback for %s: %w", fb.ConversationID, err)
	}

	return nil
}

func (s *SQLiteStore) saveFeedbackOnce(ctx context.Context, fb *domain.Feedback) error {
	s.feedbackMu.Lock()
	defer s.feedbackMu.Unlock()

	payloadJSON, err := json.Marshal(feedbackPayload{
		Dimensions: fb.Dimensions,
		Detail:     fb.Detail,
	})
	if err != nil {
		return fmt.Errorf("marshal feedback payload: %w", err)
	}

	query := `
	INSERT INTO feedback (id, conversation_id, overall_score, payload_json, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(conversation_id) DO NOTHING`

	_, err = s.db.ExecContext(ctx, query,
		fb.ID, fb.ConversationID, fb.OverallScore,
		string(payloadJSON), fb.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// GetReflection retrieves the strategy reflection for a conversation.
func (s *SQLiteStore) GetReflection(ctx context.Context, conversationID string) (*domain.StrategyReflection, error) {
	query := `
		SELECT id, conversation_id, content, order_json, created_at
		FROM reflections WHERE conversation_id = ?`

	row := s.db.QueryRowContext(ctx, query, conversationID)

	var r domain.StrategyReflection
	var orderJSON string
	var createdAt int64

	err := row.Scan(&r.ID, &r.ConversationID, &r.Content, &orderJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan reflection row: %w", err)
	}

	if err := json.Unmarshal([]byte(orderJSON), &r.ConversationOrder); err != nil {
		return nil, fmt.Errorf("unmarshal conversation order: %w", err)
	}
	r.CreatedAt = time.Unix(createdAt, 0)

	return &r, nil
}

// CreateReflection persists a strategy reflection.
func (s *SQLiteStore) CreateReflection(ctx context.Context, r *domain.StrategyReflection) error {
	orderJSON, err := json.Marshal(r.ConversationOrder)
	if err != nil {
		return fmt.Errorf("marshal conversation order: %w", err)
	}

	query := `
	INSERT INTO reflections (id, conversation_id, content, order_json, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(conversation_id) DO NOTHING`

	result, err := s.db.ExecContext(ctx, query,
		r.ID, r.ConversationID, r.Content,
		string(orderJSON), r.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert reflection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("reflection for %s: %w", r.ConversationID, ErrAlreadyExists)
	}
	return nil
}

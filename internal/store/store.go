package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/voyago/voyago-backend/internal/intent"
)

// ErrSessionNotFound is returned when an operation references an unknown
// session id.
var ErrSessionNotFound = errors.New("session not found")

// State is the conversation state persisted on a session.
type State string

const (
	StateCollecting State = "collecting"
	StateReady      State = "ready"
	StateDispatched State = "dispatched"
	StateAnswered   State = "answered"
	StateFollowup   State = "followup"
	StateBooking    State = "booking"
)

// OutputKind classifies an agent output record.
type OutputKind string

const (
	OutputSearchResults       OutputKind = "search_results"
	OutputSynthesizedResponse OutputKind = "synthesized_response"
	OutputBookingConfirmation OutputKind = "booking_confirmation"
)

// Session is a conversation session. It owns the current entity-slot record
// and conversation state; messages and agent outputs hang off it by id.
type Session struct {
	ID           string            `json:"session_id"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActivity time.Time         `json:"last_activity"`
	Language     string            `json:"language,omitempty"`
	State        State             `json:"state"`
	Entities     intent.Slots      `json:"entities"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Message is one turn fragment in a session's conversation history.
// Immutable once appended; Seq increases strictly within a session.
type Message struct {
	Seq       int64                  `json:"seq"`
	SessionID string                 `json:"session_id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// AgentOutput records one capability invocation's result.
type AgentOutput struct {
	Seq       int64           `json:"seq"`
	SessionID string          `json:"session_id"`
	AgentName string          `json:"agent_name"`
	TaskName  string          `json:"task_name"`
	Kind      OutputKind      `json:"output_type"`
	Payload   json.RawMessage `json:"output_data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Stats summarizes a session for the inspection endpoint.
type Stats struct {
	SessionID      string    `json:"session_id"`
	MessageCount   int       `json:"message_count"`
	AgentCallCount int       `json:"agent_call_count"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivity   time.Time `json:"last_activity"`
}

// SessionStore is the single stateful component of the engine. Per-session
// read-modify-write operations are serialized internally; operations on
// different sessions run fully in parallel.
type SessionStore interface {
	CreateSession(ctx context.Context, metadata map[string]string) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	// DeleteSession removes the session and all children. Idempotent: the
	// returned bool reports whether the session existed.
	DeleteSession(ctx context.Context, id string) (bool, error)

	AppendMessage(ctx context.Context, sessionID, role, content string, metadata map[string]interface{}) (*Message, error)
	ListMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)

	AppendAgentOutput(ctx context.Context, sessionID, agentName, taskName string, kind OutputKind, payload interface{}) (*AgentOutput, error)
	// ListRecentAgentOutputs returns outputs most-recent-first, optionally
	// filtered by kind.
	ListRecentAgentOutputs(ctx context.Context, sessionID string, kinds []OutputKind, limit int) ([]AgentOutput, error)
	// ListAgentOutputs returns all outputs in append order.
	ListAgentOutputs(ctx context.Context, sessionID string) ([]AgentOutput, error)

	// UpdateEntitySlots merges partial into the session's slot record
	// (non-empty values win, empty values never clear) and returns the
	// merged record. Atomic read-modify-write.
	UpdateEntitySlots(ctx context.Context, sessionID string, partial intent.Slots) (intent.Slots, error)
	// ReplaceEntitySlots overwrites the slot record, used when a new intent
	// resets slots that no longer apply.
	ReplaceEntitySlots(ctx context.Context, sessionID string, slots intent.Slots) error

	SetSessionState(ctx context.Context, sessionID string, state State) error
	SetSessionLanguage(ctx context.Context, sessionID, language string) error

	SessionStats(ctx context.Context, sessionID string) (*Stats, error)
	// CleanupOldSessions deletes sessions idle longer than olderThan and
	// returns how many were removed.
	CleanupOldSessions(ctx context.Context, olderThan time.Duration) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

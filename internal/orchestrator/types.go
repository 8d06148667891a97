package orchestrator

import (
	"time"

	"github.com/voyago/voyago-backend/internal/agents"
	"github.com/voyago/voyago-backend/internal/intent"
	"github.com/voyago/voyago-backend/internal/store"
)

// TurnRequest is one inbound user message.
type TurnRequest struct {
	SessionID  string `json:"session_id,omitempty"`
	Message    string `json:"message"`
	IsFollowup bool   `json:"is_followup"`
}

// TurnResponse is the engine's answer for one turn. IsComplete=false means
// the response is a clarification question, not a final answer.
type TurnResponse struct {
	SessionID        string   `json:"session_id"`
	Response         string   `json:"response"`
	DetectedLanguage string   `json:"detected_language,omitempty"`
	IsFollowup       bool     `json:"is_followup"`
	IsBooking        bool     `json:"is_booking"`
	IsComplete       bool     `json:"is_complete"`
	AgentsCalled     []string `json:"agents_called"`
	Status           string   `json:"status"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Response statuses and warning tags.
const (
	StatusSuccess  = "success"
	StatusDegraded = "degraded"

	WarnLowConfidenceDetection = "low_confidence_detection"
	WarnTranslationDegraded    = "translation_degraded"
)

// Config bounds the engine's external calls.
type Config struct {
	// TurnTimeout is the outer deadline for one whole turn.
	TurnTimeout time.Duration
	// AgentTimeout bounds each capability call independently.
	AgentTimeout time.Duration
	// MaxContextMessages caps the history slice handed to follow-ups and
	// snapshots.
	MaxContextMessages int
}

func (c Config) withDefaults() Config {
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 60 * time.Second
	}
	if c.AgentTimeout <= 0 {
		c.AgentTimeout = 20 * time.Second
	}
	if c.MaxContextMessages <= 0 {
		c.MaxContextMessages = 10
	}
	return c
}

// SearchResultEntry is one cached result set surfaced in a snapshot.
type SearchResultEntry struct {
	Service   intent.ServiceType `json:"service_type"`
	Offers    []agents.Offer     `json:"results"`
	Timestamp time.Time          `json:"timestamp"`
}

// Snapshot is the full inspection view of one session.
type Snapshot struct {
	SessionID           string              `json:"session_id"`
	Language            string              `json:"language,omitempty"`
	State               store.State         `json:"state"`
	Entities            intent.Slots        `json:"entities"`
	ConversationHistory []store.Message     `json:"conversation_history"`
	SearchResults       []SearchResultEntry `json:"search_results"`
	AgentOutputs        []store.AgentOutput `json:"agent_outputs"`
	Stats               *store.Stats        `json:"stats"`
}

// Health reports engine liveness for the health endpoint.
type Health struct {
	Status                string   `json:"status"`
	CapabilitiesReachable bool     `json:"capabilities_reachable"`
	Agents                []string `json:"agents,omitempty"`
}

// turnOutcome is the pivot-language result of the routing stage, before
// response translation.
type turnOutcome struct {
	response     string
	isComplete   bool
	isBooking    bool
	degraded     bool
	agentsCalled []string
}

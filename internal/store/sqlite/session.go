package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/voyago/voyago-backend/internal/intent"
	"github.com/voyago/voyago-backend/internal/store"
)

// Store implements store.SessionStore using SQLite
type Store struct {
	db    *sqlx.DB
	slots *store.KeyedMutex
	log   *logrus.Logger
}

var _ store.SessionStore = (*Store)(nil)

// New creates a new SQLite session store
func New(db *DB, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}
	return &Store{
		db:    db.DB,
		slots: store.NewKeyedMutex(),
		log:   log,
	}
}

type sessionRow struct {
	ID           string         `db:"id"`
	CreatedAt    time.Time      `db:"created_at"`
	LastActivity time.Time      `db:"last_activity"`
	Language     sql.NullString `db:"language"`
	State        string         `db:"state"`
	Entities     []byte         `db:"entities"`
	Metadata     []byte         `db:"metadata"`
}

func (r *sessionRow) toSession() (*store.Session, error) {
	s := &store.Session{
		ID:           r.ID,
		CreatedAt:    r.CreatedAt,
		LastActivity: r.LastActivity,
		Language:     r.Language.String,
		State:        store.State(r.State),
	}
	if len(r.Entities) > 0 {
		if err := json.Unmarshal(r.Entities, &s.Entities); err != nil {
			return nil, fmt.Errorf("corrupt entities for session %s: %w", r.ID, err)
		}
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &s.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for session %s: %w", r.ID, err)
		}
	}
	return s, nil
}

// CreateSession creates a new session in state collecting with empty slots
func (s *Store) CreateSession(ctx context.Context, metadata map[string]string) (*store.Session, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	metaJSON := []byte("{}")
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return nil, err
		}
		metaJSON = b
	}

	query := `
		INSERT INTO sessions (id, created_at, last_activity, state, entities, metadata)
		VALUES (?, ?, ?, ?, '{}', ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, now, now, string(store.StateCollecting), metaJSON); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.WithField("session_id", id).Info("session created")

	return &store.Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		State:        store.StateCollecting,
		Metadata:     metadata,
	}, nil
}

// GetSession retrieves a session by ID
func (s *Store) GetSession(ctx context.Context, id string) (*store.Session, error) {
	var row sessionRow
	query := `
		SELECT id, created_at, last_activity, language, state, entities, metadata
		FROM sessions
		WHERE id = ?
	`
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrSessionNotFound
		}
		return nil, err
	}
	return row.toSession()
}

// DeleteSession removes a session and all its children. Children go with
// the parent via ON DELETE CASCADE.
func (s *Store) DeleteSession(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.log.WithField("session_id", id).Info("session deleted")
	}
	return n > 0, nil
}

// UpdateEntitySlots merges partial into the current slot record. The merge
// is serialized per session id so concurrent turns cannot interleave the
// read-modify-write.
func (s *Store) UpdateEntitySlots(ctx context.Context, sessionID string, partial intent.Slots) (intent.Slots, error) {
	s.slots.Lock(sessionID)
	defer s.slots.Unlock(sessionID)

	current, err := s.readSlots(ctx, sessionID)
	if err != nil {
		return intent.Slots{}, err
	}
	merged := current.Merge(partial)
	if err := s.writeSlots(ctx, sessionID, merged); err != nil {
		return intent.Slots{}, err
	}
	return merged, nil
}

// ReplaceEntitySlots overwrites the slot record
func (s *Store) ReplaceEntitySlots(ctx context.Context, sessionID string, slots intent.Slots) error {
	s.slots.Lock(sessionID)
	defer s.slots.Unlock(sessionID)
	if _, err := s.readSlots(ctx, sessionID); err != nil {
		return err
	}
	return s.writeSlots(ctx, sessionID, slots)
}

func (s *Store) readSlots(ctx context.Context, sessionID string) (intent.Slots, error) {
	var raw []byte
	if err := s.db.GetContext(ctx, &raw, "SELECT entities FROM sessions WHERE id = ?", sessionID); err != nil {
		if err == sql.ErrNoRows {
			return intent.Slots{}, store.ErrSessionNotFound
		}
		return intent.Slots{}, err
	}
	var slots intent.Slots
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &slots); err != nil {
			return intent.Slots{}, fmt.Errorf("corrupt entities for session %s: %w", sessionID, err)
		}
	}
	return slots, nil
}

func (s *Store) writeSlots(ctx context.Context, sessionID string, slots intent.Slots) error {
	b, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE sessions SET entities = ?, last_activity = ? WHERE id = ?",
		b, time.Now().UTC(), sessionID)
	return err
}

// SetSessionState updates the persisted conversation state
func (s *Store) SetSessionState(ctx context.Context, sessionID string, state store.State) error {
	return s.updateSessionColumn(ctx, sessionID, "state", string(state))
}

// SetSessionLanguage records the most recently detected user language
func (s *Store) SetSessionLanguage(ctx context.Context, sessionID, language string) error {
	return s.updateSessionColumn(ctx, sessionID, "language", language)
}

func (s *Store) updateSessionColumn(ctx context.Context, sessionID, column string, value string) error {
	query := "UPDATE sessions SET " + column + " = ?, last_activity = ? WHERE id = ?"
	res, err := s.db.ExecContext(ctx, query, value, time.Now().UTC(), sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrSessionNotFound
	}
	return nil
}

// SessionStats summarizes the session for the inspection endpoint
func (s *Store) SessionStats(ctx context.Context, sessionID string) (*store.Stats, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	stats := &store.Stats{
		SessionID:    sessionID,
		CreatedAt:    session.CreatedAt,
		LastActivity: session.LastActivity,
	}
	if err := s.db.GetContext(ctx, &stats.MessageCount,
		"SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID); err != nil {
		return nil, err
	}
	if err := s.db.GetContext(ctx, &stats.AgentCallCount,
		"SELECT COUNT(*) FROM agent_outputs WHERE session_id = ?", sessionID); err != nil {
		return nil, err
	}
	return stats, nil
}

// CleanupOldSessions deletes sessions idle longer than olderThan
func (s *Store) CleanupOldSessions(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE last_activity < ?", cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.WithField("count", n).Info("cleaned up idle sessions")
	}
	return int(n), nil
}

// Ping reports storage availability
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

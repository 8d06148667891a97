package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voyago/voyago-backend/internal/store"
)

type messageRow struct {
	ID        int64     `db:"id"`
	SessionID string    `db:"session_id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	Metadata  []byte    `db:"metadata"`
	Timestamp time.Time `db:"timestamp"`
}

func (r *messageRow) toMessage() (store.Message, error) {
	m := store.Message{
		Seq:       r.ID,
		SessionID: r.SessionID,
		Role:      r.Role,
		Content:   r.Content,
		Timestamp: r.Timestamp,
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &m.Metadata); err != nil {
			return store.Message{}, fmt.Errorf("corrupt message metadata: %w", err)
		}
	}
	return m, nil
}

// AppendMessage atomically appends a message and bumps the session's
// last-activity time. The message is immutable once written.
func (s *Store) AppendMessage(ctx context.Context, sessionID, role, content string, metadata map[string]interface{}) (*store.Message, error) {
	var metaJSON []byte
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return nil, err
		}
		metaJSON = b
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := sessionExists(ctx, tx, sessionID); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO messages (session_id, role, content, metadata, timestamp) VALUES (?, ?, ?, ?, ?)",
		sessionID, role, content, metaJSON, now)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET last_activity = ? WHERE id = ?", now, sessionID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &store.Message{
		Seq:       seq,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		Timestamp: now,
	}, nil
}

// ListMessages returns the most recent limit messages in chronological
// order. limit <= 0 returns the full history.
func (s *Store) ListMessages(ctx context.Context, sessionID string, limit int) ([]store.Message, error) {
	if err := sessionExists(ctx, s.db, sessionID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, session_id, role, content, metadata, timestamp
		FROM messages
		WHERE session_id = ?
		ORDER BY id DESC
	`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	messages := make([]store.Message, len(rows))
	for i, row := range rows {
		m, err := row.toMessage()
		if err != nil {
			return nil, err
		}
		messages[len(rows)-1-i] = m
	}
	return messages, nil
}

// sessionExists verifies the session id before a child insert so callers
// get ErrSessionNotFound rather than a foreign-key failure.
func sessionExists(ctx context.Context, q interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}, sessionID string) error {
	var one int
	err := q.GetContext(ctx, &one, "SELECT 1 FROM sessions WHERE id = ?", sessionID)
	if err == sql.ErrNoRows {
		return store.ErrSessionNotFound
	}
	return err
}

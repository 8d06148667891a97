package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/voyago/voyago-backend/internal/store"
)

type agentOutputRow struct {
	ID         int64     `db:"id"`
	SessionID  string    `db:"session_id"`
	AgentName  string    `db:"agent_name"`
	TaskName   string    `db:"task_name"`
	OutputType string    `db:"output_type"`
	OutputData []byte    `db:"output_data"`
	Timestamp  time.Time `db:"timestamp"`
}

func (r *agentOutputRow) toOutput() store.AgentOutput {
	return store.AgentOutput{
		Seq:       r.ID,
		SessionID: r.SessionID,
		AgentName: r.AgentName,
		TaskName:  r.TaskName,
		Kind:      store.OutputKind(r.OutputType),
		Payload:   json.RawMessage(r.OutputData),
		Timestamp: r.Timestamp,
	}
}

// AppendAgentOutput atomically records one capability invocation's result
func (s *Store) AppendAgentOutput(ctx context.Context, sessionID, agentName, taskName string, kind store.OutputKind, payload interface{}) (*store.AgentOutput, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal agent output: %w", err)
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
		"INSERT INTO agent_outputs (session_id, agent_name, task_name, output_type, output_data, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		sessionID, agentName, taskName, string(kind), data, now)
	if err != nil {
		return nil, fmt.Errorf("append agent output: %w", err)
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

	return &store.AgentOutput{
		Seq:       seq,
		SessionID: sessionID,
		AgentName: agentName,
		TaskName:  taskName,
		Kind:      kind,
		Payload:   json.RawMessage(data),
		Timestamp: now,
	}, nil
}

// ListRecentAgentOutputs returns outputs most-recent-first, optionally
// filtered to the given kinds
func (s *Store) ListRecentAgentOutputs(ctx context.Context, sessionID string, kinds []store.OutputKind, limit int) ([]store.AgentOutput, error) {
	if err := sessionExists(ctx, s.db, sessionID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, session_id, agent_name, task_name, output_type, output_data, timestamp
		FROM agent_outputs
		WHERE session_id = ?
	`
	args := []interface{}{sessionID}

	if len(kinds) > 0 {
		kindStrs := make([]string, len(kinds))
		for i, k := range kinds {
			kindStrs[i] = string(k)
		}
		inQuery, inArgs, err := sqlx.In(" AND output_type IN (?)", kindStrs)
		if err != nil {
			return nil, err
		}
		query += inQuery
		args = append(args, inArgs...)
	}

	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []agentOutputRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	outputs := make([]store.AgentOutput, len(rows))
	for i, row := range rows {
		outputs[i] = row.toOutput()
	}
	return outputs, nil
}

// ListAgentOutputs returns every output for the session in append order
func (s *Store) ListAgentOutputs(ctx context.Context, sessionID string) ([]store.AgentOutput, error) {
	if err := sessionExists(ctx, s.db, sessionID); err != nil {
		return nil, err
	}

	var rows []agentOutputRow
	query := `
		SELECT id, session_id, agent_name, task_name, output_type, output_data, timestamp
		FROM agent_outputs
		WHERE session_id = ?
		ORDER BY id ASC
	`
	if err := s.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, err
	}

	outputs := make([]store.AgentOutput, len(rows))
	for i, row := range rows {
		outputs[i] = row.toOutput()
	}
	return outputs, nil
}

// Package calllog keeps a PostgreSQL history of Tropo calls. Each call row
// records who called, when the call started and ended, and how many steps
// reported results; every reported action is kept alongside for review.
package calllog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/whisper/tropo-bridge/internal/protocol"
)

// Entry is one call's history row.
type Entry struct {
	SessionID     string
	CallerID      string
	CallerUnknown bool
	StartedAt     *time.Time
	LastResultAt  *time.Time
	ResultCount   int
	LastState     string
	EndedAt       *time.Time
}

// Store manages call history in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a new call history store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordStarted inserts or refreshes the call row for a started call.
func (s *Store) RecordStarted(ctx context.Context, e protocol.CallEvent) error {
	const query = `
		INSERT INTO tropo_calls (session_id, caller_id, caller_unknown, started_at)
		VALUES ($1, $2, $3, to_timestamp($4))
		ON CONFLICT (session_id) DO UPDATE
		SET caller_id = EXCLUDED.caller_id,
		    caller_unknown = EXCLUDED.caller_unknown,
		    started_at = EXCLUDED.started_at`

	if _, err := s.db.ExecContext(ctx, query, e.SessionID, e.CallerID, e.CallerUnknown, e.Ts); err != nil {
		return fmt.Errorf("calllog: record started: %w", err)
	}
	return nil
}

// RecordResult bumps the call's result counter and stores its actions.
// Both writes happen in one transaction.
func (s *Store) RecordResult(ctx context.Context, e protocol.CallEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("calllog: begin: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
		INSERT INTO tropo_calls (session_id, caller_id, caller_unknown, last_result_at, result_count, last_state)
		VALUES ($1, $2, $3, to_timestamp($4), 1, $5)
		ON CONFLICT (session_id) DO UPDATE
		SET last_result_at = EXCLUDED.last_result_at,
		    result_count = tropo_calls.result_count + 1,
		    last_state = EXCLUDED.last_state`

	if _, err := tx.ExecContext(ctx, upsert, e.SessionID, e.CallerID, e.CallerUnknown, e.Ts, e.State); err != nil {
		return fmt.Errorf("calllog: record result: %w", err)
	}

	const insertAction = `
		INSERT INTO tropo_call_actions (session_id, sequence, name, value, disposition, recorded_at)
		VALUES ($1, $2, $3, $4, $5, to_timestamp($6))`

	for _, a := range e.Actions {
		var value any
		if a.Value != nil {
			b, err := json.Marshal(a.Value)
			if err != nil {
				return fmt.Errorf("calllog: marshal action %q: %w", a.Name, err)
			}
			value = string(b)
		}
		if _, err := tx.ExecContext(ctx, insertAction, e.SessionID, e.Sequence, a.Name, value, a.Disposition, e.Ts); err != nil {
			return fmt.Errorf("calllog: insert action %q: %w", a.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("calllog: commit: %w", err)
	}
	return nil
}

// RecordEnded marks the call as ended.
func (s *Store) RecordEnded(ctx context.Context, e protocol.CallEvent) error {
	const query = `
		INSERT INTO tropo_calls (session_id, caller_id, caller_unknown, ended_at)
		VALUES ($1, $2, $3, to_timestamp($4))
		ON CONFLICT (session_id) DO UPDATE
		SET ended_at = EXCLUDED.ended_at`

	if _, err := s.db.ExecContext(ctx, query, e.SessionID, e.CallerID, e.CallerUnknown, e.Ts); err != nil {
		return fmt.Errorf("calllog: record ended: %w", err)
	}
	return nil
}

// Get returns the history row for a session, or nil if none exists.
func (s *Store) Get(ctx context.Context, sessionID string) (*Entry, error) {
	const query = `
		SELECT session_id, caller_id, caller_unknown, started_at, last_result_at,
		       result_count, last_state, ended_at
		FROM tropo_calls
		WHERE session_id = $1`

	var (
		e                          Entry
		started, lastResult, ended sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&e.SessionID, &e.CallerID, &e.CallerUnknown, &started, &lastResult,
		&e.ResultCount, &e.LastState, &ended,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("calllog: get %s: %w", sessionID, err)
	}
	e.StartedAt = nullTime(started)
	e.LastResultAt = nullTime(lastResult)
	e.EndedAt = nullTime(ended)
	return &e, nil
}

// CountActions returns the number of actions recorded for a session.
func (s *Store) CountActions(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM tropo_call_actions WHERE session_id = $1`

	var count int
	if err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("calllog: count actions: %w", err)
	}
	return count, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// sqlJournal holds the queries shared by the SQLite and MySQL stores. Both
// drivers accept "?" placeholders and the same table layout:
//
//	step_transitions(id, run_id, seq, step_index, step_id, state, cursor_index, at_unix_nano)
type sqlJournal struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

func (s *sqlJournal) checkOpen() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// AppendTransition inserts t.
func (s *sqlJournal) AppendTransition(ctx context.Context, t Transition) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	at := t.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO step_transitions (run_id, seq, step_index, step_id, state, cursor_index, at_unix_nano)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.Seq, t.Index, t.StepID, t.State, t.Cursor, at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to append transition: %w", err)
	}
	return nil
}

// History returns the transitions of runID ordered by Seq.
func (s *sqlJournal) History(ctx context.Context, runID string) ([]Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, step_index, step_id, state, cursor_index, at_unix_nano
		 FROM step_transitions WHERE run_id = ? ORDER BY seq ASC, id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Transition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Latest returns the transition with the highest Seq.
func (s *sqlJournal) Latest(ctx context.Context, runID string) (Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return Transition{}, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, seq, step_index, step_id, state, cursor_index, at_unix_nano
		 FROM step_transitions WHERE run_id = ? ORDER BY seq DESC, id DESC LIMIT 1`, runID)
	t, err := scanTransition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Transition{}, ErrNotFound
	}
	return t, err
}

// Runs lists run IDs ordered by their first transition.
func (s *sqlJournal) Runs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id FROM step_transitions GROUP BY run_id ORDER BY MIN(id) ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Clear deletes the journal of runID.
func (s *sqlJournal) Clear(ctx context.Context, runID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM step_transitions WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear run %s: %w", runID, err)
	}
	return nil
}

// Close closes the database. It is idempotent.
func (s *sqlJournal) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransition(r rowScanner) (Transition, error) {
	var (
		t      Transition
		atNano int64
	)
	if err := r.Scan(&t.RunID, &t.Seq, &t.Index, &t.StepID, &t.State, &t.Cursor, &atNano); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transition{}, err
		}
		return Transition{}, fmt.Errorf("failed to scan transition: %w", err)
	}
	t.At = time.Unix(0, atNano)
	return t, nil
}

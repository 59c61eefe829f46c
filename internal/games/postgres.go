package games

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the production Postgres-backed Store.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func (s *PostgresStore) CreateSession(ctx context.Context, sess Session, attemptsDelta int64) (Session, Attempts, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Session{}, Attempts{}, fmt.Errorf("create session begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
INSERT INTO game_sessions (id, user_id, game_id, token, status, created_at, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sess.ID, sess.UserID, sess.GameID, sess.Token, sess.Status, sess.CreatedAt, nullableJSON(sess.Metadata))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Session{}, Attempts{}, ErrDuplicateToken
		}
		return Session{}, Attempts{}, fmt.Errorf("create session insert: %w", err)
	}

	agg, err := upsertAttempts(ctx, tx, sess.UserID, sess.GameID, attemptsDelta, 0, sess.CreatedAt)
	if err != nil {
		return Session{}, Attempts{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, Attempts{}, fmt.Errorf("create session commit: %w", err)
	}
	return sess, agg, nil
}

func (s *PostgresStore) SessionByToken(ctx context.Context, token string) (Session, error) {
	return scanSession(s.db.QueryRow(ctx, `
SELECT id, user_id, game_id, token, status, created_at, completed_at, metadata, result_payload
FROM game_sessions
WHERE token = $1`, token))
}

func (s *PostgresStore) CompleteSession(ctx context.Context, token string, status Status, result json.RawMessage, now time.Time) (Session, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Session{}, false, fmt.Errorf("complete session begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := scanSession(tx.QueryRow(ctx, `
SELECT id, user_id, game_id, token, status, created_at, completed_at, metadata, result_payload
FROM game_sessions
WHERE token = $1
FOR UPDATE`, token))
	if err != nil {
		return Session{}, false, err
	}
	already := cur.CompletedAt != nil

	// completed_at is a latch: COALESCE keeps the first completion time and
	// aborted/failed transitions never touch it.
	updated, err := scanSession(tx.QueryRow(ctx, `
UPDATE game_sessions
SET status = $2,
    completed_at = CASE WHEN $2 = 'completed' THEN COALESCE(completed_at, $3) ELSE completed_at END,
    result_payload = COALESCE($4, result_payload)
WHERE id = $1
RETURNING id, user_id, game_id, token, status, created_at, completed_at, metadata, result_payload`,
		cur.ID, status, now, nullableJSON(result)))
	if err != nil {
		return Session{}, false, fmt.Errorf("complete session update: %w", err)
	}

	if status == StatusCompleted && !already {
		if _, err := upsertAttempts(ctx, tx, cur.UserID, cur.GameID, 0, 1, now); err != nil {
			return Session{}, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, false, fmt.Errorf("complete session commit: %w", err)
	}
	return updated, already, nil
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, userID, gameID string, attemptsDelta, completionsDelta int64, now time.Time) (Attempts, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Attempts{}, fmt.Errorf("record attempt begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	agg, err := upsertAttempts(ctx, tx, userID, gameID, attemptsDelta, completionsDelta, now)
	if err != nil {
		return Attempts{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Attempts{}, fmt.Errorf("record attempt commit: %w", err)
	}
	return agg, nil
}

// upsertAttempts applies increments as in-place arithmetic so concurrent
// deltas sum. Negative deltas are clamped to zero.
func upsertAttempts(ctx context.Context, tx pgx.Tx, userID, gameID string, attemptsDelta, completionsDelta int64, now time.Time) (Attempts, error) {
	if attemptsDelta < 0 {
		attemptsDelta = 0
	}
	if completionsDelta < 0 {
		completionsDelta = 0
	}

	agg := Attempts{UserID: userID, GameID: gameID}

	if attemptsDelta == 0 && completionsDelta == 0 {
		err := tx.QueryRow(ctx, `
SELECT attempts, completions, last_attempt, last_completed
FROM game_attempts
WHERE user_id = $1 AND game_id = $2`, userID, gameID).
			Scan(&agg.Attempts, &agg.Completions, &agg.LastAttempt, &agg.LastCompleted)
		if errors.Is(err, pgx.ErrNoRows) {
			return agg, nil
		}
		if err != nil {
			return Attempts{}, fmt.Errorf("read attempts: %w", err)
		}
		return agg, nil
	}

	err := tx.QueryRow(ctx, `
INSERT INTO game_attempts (user_id, game_id, attempts, completions, last_attempt, last_completed)
VALUES ($1, $2, $3, $4,
        CASE WHEN $3 > 0 THEN $5::timestamptz END,
        CASE WHEN $4 > 0 THEN $5::timestamptz END)
ON CONFLICT (user_id, game_id)
DO UPDATE SET
  attempts       = game_attempts.attempts + EXCLUDED.attempts,
  completions    = game_attempts.completions + EXCLUDED.completions,
  last_attempt   = COALESCE(EXCLUDED.last_attempt, game_attempts.last_attempt),
  last_completed = COALESCE(EXCLUDED.last_completed, game_attempts.last_completed)
RETURNING attempts, completions, last_attempt, last_completed`,
		userID, gameID, attemptsDelta, completionsDelta, now).
		Scan(&agg.Attempts, &agg.Completions, &agg.LastAttempt, &agg.LastCompleted)
	if err != nil {
		return Attempts{}, fmt.Errorf("upsert attempts: %w", err)
	}
	return agg, nil
}

func (s *PostgresStore) AttemptsFor(ctx context.Context, userID string, gameIDs []string) ([]Attempts, error) {
	q := `
SELECT game_id, attempts, completions, last_attempt, last_completed
FROM game_attempts
WHERE user_id = $1`
	args := []any{userID}
	if len(gameIDs) > 0 {
		q += ` AND game_id = ANY($2)`
		args = append(args, gameIDs)
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("attempts for: %w", err)
	}
	defer rows.Close()

	var out []Attempts
	for rows.Next() {
		agg := Attempts{UserID: userID}
		if err := rows.Scan(&agg.GameID, &agg.Attempts, &agg.Completions, &agg.LastAttempt, &agg.LastCompleted); err != nil {
			return nil, fmt.Errorf("attempts for scan: %w", err)
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AttemptTotals(ctx context.Context, userIDs []string) (map[string]AttemptTotals, error) {
	if len(userIDs) == 0 {
		return map[string]AttemptTotals{}, nil
	}
	rows, err := s.db.Query(ctx, `
SELECT user_id, COALESCE(SUM(attempts), 0), COALESCE(SUM(completions), 0)
FROM game_attempts
WHERE user_id = ANY($1)
GROUP BY user_id`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("attempt totals: %w", err)
	}
	defer rows.Close()

	out := make(map[string]AttemptTotals, len(userIDs))
	for rows.Next() {
		var uid string
		var t AttemptTotals
		if err := rows.Scan(&uid, &t.Attempts, &t.Completions); err != nil {
			return nil, fmt.Errorf("attempt totals scan: %w", err)
		}
		out[uid] = t
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (Session, error) {
	var sess Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.GameID, &sess.Token, &sess.Status,
		&sess.CreatedAt, &sess.CompletedAt, &sess.Metadata, &sess.ResultPayload)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	return sess, nil
}

func nullableJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}

var _ Store = (*PostgresStore)(nil)

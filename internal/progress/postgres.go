package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the production Postgres-backed Store.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Apply serializes per-key updates with a row lock: the aggregate row is
// created if missing, locked, merged and written back in one transaction.
func (s *PostgresStore) Apply(ctx context.Context, userID string, ev Event, now time.Time) (Record, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Record{}, false, fmt.Errorf("progress apply begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	seed, err := tx.Exec(ctx, `
INSERT INTO video_views (user_id, video_id, started_at, last_seen_at,
                         seconds_watched, duration, last_position, completed,
                         view_count, last_session_id)
VALUES ($1, $2, $3, $3, 0, 0, 0, FALSE, 0, '')
ON CONFLICT (user_id, video_id) DO NOTHING`, userID, ev.VideoID, now)
	if err != nil {
		return Record{}, false, fmt.Errorf("progress apply seed: %w", err)
	}
	fresh := seed.RowsAffected() > 0

	var cur Record
	cur.UserID = userID
	cur.VideoID = ev.VideoID
	err = tx.QueryRow(ctx, `
SELECT seconds_watched, duration, last_position, completed, view_count, last_session_id, started_at
FROM video_views
WHERE user_id = $1 AND video_id = $2
FOR UPDATE`, userID, ev.VideoID).
		Scan(&cur.SecondsWatched, &cur.Duration, &cur.LastPosition, &cur.Completed,
			&cur.ViewCount, &cur.LastSessionID, &cur.StartedAt)
	if err != nil {
		return Record{}, false, fmt.Errorf("progress apply read: %w", err)
	}

	prev := &cur
	if fresh {
		prev = nil
	}
	next, counted := Merge(prev, ev, now)
	next.UserID = userID
	next.StartedAt = cur.StartedAt

	_, err = tx.Exec(ctx, `
UPDATE video_views
SET seconds_watched = $3,
    duration        = $4,
    last_position   = $5,
    completed       = $6,
    view_count      = $7,
    last_session_id = $8,
    last_seen_at    = $9
WHERE user_id = $1 AND video_id = $2`,
		userID, ev.VideoID,
		next.SecondsWatched, next.Duration, next.LastPosition, next.Completed,
		next.ViewCount, next.LastSessionID, now)
	if err != nil {
		return Record{}, false, fmt.Errorf("progress apply write: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, false, fmt.Errorf("progress apply commit: %w", err)
	}
	return next, counted, nil
}

func (s *PostgresStore) List(ctx context.Context, userID string, videoIDs []string) ([]Record, error) {
	q := `
SELECT video_id, seconds_watched, duration, last_position, completed, view_count, last_session_id, started_at, last_seen_at
FROM video_views
WHERE user_id = $1`
	args := []any{userID}
	if len(videoIDs) > 0 {
		q += ` AND video_id = ANY($2)`
		args = append(args, videoIDs)
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("progress list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec := Record{UserID: userID}
		if err := rows.Scan(&rec.VideoID, &rec.SecondsWatched, &rec.Duration, &rec.LastPosition,
			&rec.Completed, &rec.ViewCount, &rec.LastSessionID, &rec.StartedAt, &rec.LastSeenAt); err != nil {
			return nil, fmt.Errorf("progress list scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ViewTotals(ctx context.Context, userIDs []string) (map[string]int64, error) {
	if len(userIDs) == 0 {
		return map[string]int64{}, nil
	}
	rows, err := s.db.Query(ctx, `
SELECT user_id, COALESCE(SUM(view_count), 0)
FROM video_views
WHERE user_id = ANY($1)
GROUP BY user_id`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("progress view totals: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64, len(userIDs))
	for rows.Next() {
		var uid string
		var total int64
		if err := rows.Scan(&uid, &total); err != nil {
			return nil, fmt.Errorf("progress view totals scan: %w", err)
		}
		out[uid] = total
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)

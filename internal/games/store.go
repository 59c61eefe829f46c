package games

import (
	"context"
	"encoding/json"
	"time"
)

// Store owns sessions and attempt aggregates. Increments must be expressed
// so that concurrent deltas sum instead of clobbering each other.
type Store interface {
	// CreateSession inserts the session and applies the attempt increment in
	// one transaction. A token collision rolls the whole thing back and
	// returns ErrDuplicateToken.
	CreateSession(ctx context.Context, s Session, attemptsDelta int64) (Session, Attempts, error)

	// SessionByToken returns ErrSessionNotFound for an unknown token.
	SessionByToken(ctx context.Context, token string) (Session, error)

	// CompleteSession applies the status transition under a row lock. It
	// reports the pre-update completion flag; the completions counter is
	// incremented only on the first completed transition, in the same
	// transaction. A nil result leaves the stored payload untouched.
	CompleteSession(ctx context.Context, token string, status Status, result json.RawMessage, now time.Time) (Session, bool, error)

	// RecordAttempt applies a bare increment to the aggregate. Negative
	// deltas are clamped to zero; a no-op delta still returns the current
	// aggregate.
	RecordAttempt(ctx context.Context, userID, gameID string, attemptsDelta, completionsDelta int64, now time.Time) (Attempts, error)

	// AttemptsFor returns the caller's aggregates, optionally filtered.
	AttemptsFor(ctx context.Context, userID string, gameIDs []string) ([]Attempts, error)

	// AttemptTotals sums attempts and completions per user. Users with no
	// aggregates are absent from the result.
	AttemptTotals(ctx context.Context, userIDs []string) (map[string]AttemptTotals, error)
}

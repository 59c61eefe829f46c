package progress

import (
	"context"
	"time"
)

// Store owns the durable aggregates. Apply must serialize concurrent calls
// for the same (user, video) key: the merge is not commutative-safe under
// lost updates.
type Store interface {
	// Apply atomically reads the current aggregate, merges the event into it
	// and persists the result. It reports the new aggregate and whether a
	// countable view occurred.
	Apply(ctx context.Context, userID string, ev Event, now time.Time) (Record, bool, error)

	// List returns the caller's aggregates, optionally filtered to videoIDs.
	List(ctx context.Context, userID string, videoIDs []string) ([]Record, error)

	// ViewTotals sums view_count per user across the given users.
	// Users with no records are absent from the result.
	ViewTotals(ctx context.Context, userIDs []string) (map[string]int64, error)
}

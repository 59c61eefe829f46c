// Package games owns the game-attempt lifecycle: single-use session tokens,
// the complete-once latch, and the monotonic per-(user, game) attempt counters.
package games

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingGameID   = errors.New("missing game_id")
	ErrMissingToken    = errors.New("missing token")
	ErrSessionNotFound = errors.New("invalid or expired token")
	ErrGameMismatch    = errors.New("token does not match game_id")
	ErrForbidden       = errors.New("forbidden")
	ErrSessionCreation = errors.New("could not create game session")

	// ErrDuplicateToken is returned by stores on a token uniqueness violation.
	ErrDuplicateToken = errors.New("duplicate session token")
)

type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
	StatusFailed    Status = "failed"
)

// NormalizeStatus maps a client-supplied status onto a terminal one.
// Anything unrecognized, including empty, means completed.
func NormalizeStatus(raw string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusAborted:
		return StatusAborted
	case StatusFailed:
		return StatusFailed
	default:
		return StatusCompleted
	}
}

// Session is one game-play attempt. CompletedAt is a one-way latch: it is
// set on the first completed transition and never cleared, regardless of
// later status changes.
type Session struct {
	ID            string
	UserID        string
	GameID        string
	Token         string
	Status        Status
	CreatedAt     time.Time
	CompletedAt   *time.Time
	Metadata      json.RawMessage
	ResultPayload json.RawMessage
}

// Attempts is the durable aggregate for one (user, game) pair. Both counters
// are monotonic and incremented independently; completions <= attempts is
// deliberately not enforced.
type Attempts struct {
	UserID        string
	GameID        string
	Attempts      int64
	Completions   int64
	LastAttempt   *time.Time
	LastCompleted *time.Time
}

// AttemptTotals is the per-user roll-up consumed by teacher reporting.
type AttemptTotals struct {
	Attempts    int64
	Completions int64
}

// EncodePayload serializes an opaque client payload. A value that cannot be
// marshalled is wrapped in a {"raw": ...} envelope instead of being dropped.
func EncodePayload(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"raw": fmt.Sprint(v)})
	}
	return b
}

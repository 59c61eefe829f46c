// Package progress reconciles repeated, possibly duplicated client reports of
// video watch time into one monotonic per-(user, video) aggregate.
package progress

import (
	"errors"
	"time"
)

var ErrMissingVideoID = errors.New("missing video_id")

// Record is the durable aggregate for one (user, video) pair. Counters only
// ever move forward; Completed is a one-way latch.
type Record struct {
	UserID         string
	VideoID        string
	SecondsWatched float64
	Duration       float64
	LastPosition   float64
	Completed      bool
	ViewCount      int64
	LastSessionID  string
	StartedAt      time.Time
	LastSeenAt     time.Time
}

// Event is a single client report: a heartbeat, a seek, or an explicit
// completion signal. Zero values are valid; only VideoID is required.
type Event struct {
	VideoID      string
	SecondsDelta float64
	Duration     float64
	Position     float64
	SessionID    string
	Completed    bool
}

// View is the read-back payload returned to API consumers.
type View struct {
	VideoID        string  `json:"video_id"`
	SecondsWatched float64 `json:"seconds_watched"`
	Duration       float64 `json:"duration"`
	Progress       float64 `json:"progress"`
	LastPosition   float64 `json:"last_position"`
	Completed      bool    `json:"completed"`
	ViewCount      int64   `json:"view_count"`
}

// View derives the API payload. Progress and the completed flag are
// recomputed from the stored counters at read time.
func (r Record) View() View {
	var frac float64
	if r.Duration > 0 {
		frac = r.SecondsWatched / r.Duration
		if frac > 1 {
			frac = 1
		}
	}
	return View{
		VideoID:        r.VideoID,
		SecondsWatched: r.SecondsWatched,
		Duration:       r.Duration,
		Progress:       frac,
		LastPosition:   r.LastPosition,
		Completed:      r.Completed || frac >= completedThreshold,
		ViewCount:      r.ViewCount,
	}
}

package progress

import (
	"strings"
	"time"
)

const (
	// completedThreshold is the watch ratio at which a video counts as completed.
	completedThreshold = 0.90

	// maxSecondsDelta caps a single report to 10 minutes, bounding the damage
	// a stalled or replayed client can do.
	maxSecondsDelta = 600.0

	maxSessionIDLen = 128
)

// normalized returns a copy of the event with all fields clamped into range.
// Out-of-range numbers are clamped, never rejected.
func (e Event) normalized() Event {
	e.VideoID = strings.TrimSpace(e.VideoID)
	if e.SecondsDelta < 0 {
		e.SecondsDelta = 0
	}
	if e.SecondsDelta > maxSecondsDelta {
		e.SecondsDelta = maxSecondsDelta
	}
	if e.Duration < 0 {
		e.Duration = 0
	}
	if e.Position < 0 {
		e.Position = 0
	}
	e.SessionID = strings.TrimSpace(e.SessionID)
	// truncate by characters, not bytes, so a multi-byte rune is never split
	if r := []rune(e.SessionID); len(r) > maxSessionIDLen {
		e.SessionID = string(r[:maxSessionIDLen])
	}
	return e
}

// Merge folds one event into the previous aggregate (nil means no prior
// record) and reports whether a countable view occurred. It is pure: the
// store is responsible for serializing calls per (user, video) key.
func Merge(prev *Record, ev Event, now time.Time) (Record, bool) {
	ev = ev.normalized()

	var p Record
	if prev != nil {
		p = *prev
	}

	best := p.Duration
	if ev.Duration > best {
		best = ev.Duration
	}

	total := p.SecondsWatched + ev.SecondsDelta
	if best > 0 && total > best {
		total = best
	}

	completed := ev.Completed || p.Completed
	if !completed && best > 0 {
		completed = total/best >= completedThreshold
	}

	// A view is only countable on an explicit completion signal. Dedup by
	// session id when the client supplies one, otherwise by the first
	// transition to completed.
	counted := false
	if ev.Completed {
		switch {
		case prev == nil:
			counted = true
		case ev.SessionID != "":
			counted = ev.SessionID != p.LastSessionID
		default:
			counted = !p.Completed
		}
	}

	next := Record{
		UserID:         p.UserID,
		VideoID:        ev.VideoID,
		SecondsWatched: total,
		Duration:       best,
		LastPosition:   ev.Position,
		Completed:      completed,
		ViewCount:      p.ViewCount,
		LastSessionID:  p.LastSessionID,
		StartedAt:      p.StartedAt,
		LastSeenAt:     now,
	}
	if prev == nil {
		next.StartedAt = now
	}
	if best > 0 && next.LastPosition > best {
		// Never store a scrub position beyond the known duration.
		next.LastPosition = best
	}
	if counted {
		next.ViewCount++
		if ev.SessionID != "" {
			next.LastSessionID = ev.SessionID
		}
	}
	return next, counted
}

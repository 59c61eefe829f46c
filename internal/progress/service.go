package progress

import (
	"context"
	"strings"
	"time"

	"github.com/example/applearn/internal/platform/analytics"
)

// Service validates incoming events and hands them to the store. One
// instance serves both the HTTP handler and the heartbeat consumer.
type Service struct {
	Store  Store
	Events *analytics.Publisher
}

// Record merges one event into the caller's aggregate and returns the
// read-back view plus whether a countable view occurred.
func (s *Service) Record(ctx context.Context, userID string, ev Event) (View, bool, error) {
	ev.VideoID = strings.TrimSpace(ev.VideoID)
	if ev.VideoID == "" {
		return View{}, false, ErrMissingVideoID
	}

	rec, counted, err := s.Store.Apply(ctx, userID, ev, time.Now().UTC())
	if err != nil {
		return View{}, false, err
	}
	if counted {
		s.Events.Publish(analytics.SubjectVideoViewCounted, "video_view_counted", userID, map[string]any{
			"video_id":   rec.VideoID,
			"view_count": rec.ViewCount,
		})
	}
	return rec.View(), counted, nil
}

// Views returns the caller's aggregates keyed by video id, optionally
// filtered to the requested ids.
func (s *Service) Views(ctx context.Context, userID string, videoIDs []string) (map[string]View, error) {
	recs, err := s.Store.List(ctx, userID, videoIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]View, len(recs))
	for _, rec := range recs {
		out[rec.VideoID] = rec.View()
	}
	return out, nil
}

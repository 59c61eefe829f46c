package progress

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a development and test Store. A single mutex stands in
// for the row locks of the Postgres store.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]map[string]Record // user_id -> video_id -> record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]map[string]Record)}
}

func (s *MemoryStore) Apply(_ context.Context, userID string, ev Event, now time.Time) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recs[userID] == nil {
		s.recs[userID] = make(map[string]Record)
	}
	var prev *Record
	if cur, ok := s.recs[userID][ev.VideoID]; ok {
		prev = &cur
	}
	next, counted := Merge(prev, ev, now)
	next.UserID = userID
	s.recs[userID][ev.VideoID] = next
	return next, counted, nil
}

func (s *MemoryStore) List(_ context.Context, userID string, videoIDs []string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	if len(videoIDs) > 0 {
		for _, vid := range videoIDs {
			if rec, ok := s.recs[userID][vid]; ok {
				out = append(out, rec)
			}
		}
		return out, nil
	}
	for _, rec := range s.recs[userID] {
		out = append(out, rec)
	}
	return out, nil
}

func (s *MemoryStore) ViewTotals(_ context.Context, userIDs []string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(userIDs))
	for _, uid := range userIDs {
		byVideo, ok := s.recs[uid]
		if !ok {
			continue
		}
		var total int64
		for _, rec := range byVideo {
			total += rec.ViewCount
		}
		out[uid] = total
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)

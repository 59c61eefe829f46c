package games

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryStore stands in for Postgres in tests and local runs.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session // keyed by token
	attempts map[string]map[string]Attempts
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		attempts: make(map[string]map[string]Attempts),
	}
}

func (s *MemoryStore) CreateSession(ctx context.Context, sess Session, attemptsDelta int64) (Session, Attempts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.Token]; exists {
		return Session{}, Attempts{}, ErrDuplicateToken
	}
	s.sessions[sess.Token] = sess
	agg := s.bumpLocked(sess.UserID, sess.GameID, attemptsDelta, 0, sess.CreatedAt)
	return sess, agg, nil
}

func (s *MemoryStore) SessionByToken(ctx context.Context, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *MemoryStore) CompleteSession(ctx context.Context, token string, status Status, result json.RawMessage, now time.Time) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, false, ErrSessionNotFound
	}
	already := sess.CompletedAt != nil

	sess.Status = status
	if status == StatusCompleted && sess.CompletedAt == nil {
		ts := now
		sess.CompletedAt = &ts
	}
	if len(result) > 0 {
		sess.ResultPayload = result
	}
	s.sessions[token] = sess

	if status == StatusCompleted && !already {
		s.bumpLocked(sess.UserID, sess.GameID, 0, 1, now)
	}
	return sess, already, nil
}

func (s *MemoryStore) RecordAttempt(ctx context.Context, userID, gameID string, attemptsDelta, completionsDelta int64, now time.Time) (Attempts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bumpLocked(userID, gameID, attemptsDelta, completionsDelta, now), nil
}

func (s *MemoryStore) bumpLocked(userID, gameID string, attemptsDelta, completionsDelta int64, now time.Time) Attempts {
	if attemptsDelta < 0 {
		attemptsDelta = 0
	}
	if completionsDelta < 0 {
		completionsDelta = 0
	}

	byGame := s.attempts[userID]
	if byGame == nil {
		byGame = make(map[string]Attempts)
		s.attempts[userID] = byGame
	}
	agg, ok := byGame[gameID]
	if !ok {
		agg = Attempts{UserID: userID, GameID: gameID}
	}
	if attemptsDelta == 0 && completionsDelta == 0 {
		return agg
	}

	agg.Attempts += attemptsDelta
	agg.Completions += completionsDelta
	if attemptsDelta > 0 {
		ts := now
		agg.LastAttempt = &ts
	}
	if completionsDelta > 0 {
		ts := now
		agg.LastCompleted = &ts
	}
	byGame[gameID] = agg
	return agg
}

func (s *MemoryStore) AttemptsFor(ctx context.Context, userID string, gameIDs []string) ([]Attempts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byGame := s.attempts[userID]
	var out []Attempts
	if len(gameIDs) > 0 {
		for _, id := range gameIDs {
			if agg, ok := byGame[id]; ok {
				out = append(out, agg)
			}
		}
	} else {
		for _, agg := range byGame {
			out = append(out, agg)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	}
	return out, nil
}

func (s *MemoryStore) AttemptTotals(ctx context.Context, userIDs []string) (map[string]AttemptTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]AttemptTotals, len(userIDs))
	for _, uid := range userIDs {
		byGame, ok := s.attempts[uid]
		if !ok {
			continue
		}
		var t AttemptTotals
		for _, agg := range byGame {
			t.Attempts += agg.Attempts
			t.Completions += agg.Completions
		}
		if t.Attempts > 0 || t.Completions > 0 {
			out[uid] = t
		}
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)

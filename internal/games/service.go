package games

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/applearn/internal/platform/analytics"
	"github.com/example/applearn/internal/token"
)

// maxTokenAttempts bounds the insert retry loop on token collisions.
// Collisions are vanishingly rare but the token column is a uniqueness
// constraint, so the case has to be handled.
const maxTokenAttempts = 8

type Service struct {
	Store  Store
	Tokens token.Source
	Events *analytics.Publisher
}

type StartResult struct {
	Session  Session
	Attempts Attempts
}

// Start issues a fresh single-use session token and counts the attempt.
func (s *Service) Start(ctx context.Context, userID, gameID string, attemptsDelta int64, metadata any) (StartResult, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return StartResult{}, ErrMissingGameID
	}

	meta := EncodePayload(metadata)
	now := time.Now().UTC()

	for i := 0; i < maxTokenAttempts; i++ {
		tok, err := s.Tokens.Token()
		if err != nil {
			return StartResult{}, fmt.Errorf("game session token: %w", err)
		}
		sess := Session{
			ID:        uuid.NewString(),
			UserID:    userID,
			GameID:    gameID,
			Token:     tok,
			Status:    StatusStarted,
			CreatedAt: now,
			Metadata:  meta,
		}
		created, agg, err := s.Store.CreateSession(ctx, sess, attemptsDelta)
		if errors.Is(err, ErrDuplicateToken) {
			continue
		}
		if err != nil {
			return StartResult{}, err
		}
		s.Events.Publish(analytics.SubjectGameStarted, "game_started", userID, map[string]any{
			"game_id":  gameID,
			"attempts": agg.Attempts,
		})
		return StartResult{Session: created, Attempts: agg}, nil
	}
	return StartResult{}, ErrSessionCreation
}

type CompleteResult struct {
	Session          Session
	AlreadyCompleted bool
}

// Complete applies a terminal status to the session identified by token.
// callerID is empty for anonymous calls, which are permitted; a mismatched
// authenticated caller is not. Completion counting is idempotent per token:
// only the first completed transition increments the aggregate.
func (s *Service) Complete(ctx context.Context, callerID, tok, gameID, rawStatus string, result any) (CompleteResult, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return CompleteResult{}, ErrMissingToken
	}

	sess, err := s.Store.SessionByToken(ctx, tok)
	if err != nil {
		return CompleteResult{}, err
	}
	if gameID = strings.TrimSpace(gameID); gameID != "" && gameID != sess.GameID {
		return CompleteResult{}, ErrGameMismatch
	}
	if callerID != "" && callerID != sess.UserID {
		return CompleteResult{}, ErrForbidden
	}

	status := NormalizeStatus(rawStatus)
	payload := EncodePayload(result)

	updated, already, err := s.Store.CompleteSession(ctx, tok, status, payload, time.Now().UTC())
	if err != nil {
		return CompleteResult{}, err
	}
	if status == StatusCompleted && !already {
		s.Events.Publish(analytics.SubjectGameCompleted, "game_completed", updated.UserID, map[string]any{
			"game_id": updated.GameID,
		})
	}
	return CompleteResult{Session: updated, AlreadyCompleted: already}, nil
}

// Attempts lists the caller's aggregates, optionally filtered to gameIDs.
// Requested ids with no aggregate yet come back zero-valued, so clients can
// render a stable list.
func (s *Service) Attempts(ctx context.Context, userID string, gameIDs []string) ([]Attempts, error) {
	clean := gameIDs[:0:0]
	for _, id := range gameIDs {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}

	found, err := s.Store.AttemptsFor(ctx, userID, clean)
	if err != nil {
		return nil, err
	}
	if len(clean) == 0 {
		return found, nil
	}

	byGame := make(map[string]Attempts, len(found))
	for _, agg := range found {
		byGame[agg.GameID] = agg
	}
	out := make([]Attempts, 0, len(clean))
	for _, id := range clean {
		agg, ok := byGame[id]
		if !ok {
			agg = Attempts{UserID: userID, GameID: id}
		}
		out = append(out, agg)
	}
	return out, nil
}

// AddAttempts applies client-reported increments outside the token flow,
// for games that track plays without a session handshake.
func (s *Service) AddAttempts(ctx context.Context, userID, gameID string, attempts, completions int64) (Attempts, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return Attempts{}, ErrMissingGameID
	}
	return s.Store.RecordAttempt(ctx, userID, gameID, attempts, completions, time.Now().UTC())
}

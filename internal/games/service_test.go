package games

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/applearn/internal/token"
)

// seqTokens hands out canned tokens in order.
type seqTokens struct {
	tokens []string
	next   int
}

func (s *seqTokens) Token() (string, error) {
	if s.next >= len(s.tokens) {
		return s.tokens[len(s.tokens)-1], nil
	}
	t := s.tokens[s.next]
	s.next++
	return t, nil
}

func newService(store Store, tokens token.Source) *Service {
	if tokens == nil {
		tokens = token.Random{}
	}
	return &Service{Store: store, Tokens: tokens}
}

// ─── Start ───────────────────────────────────────────────────────────

func TestStart_IssuesTokenAndCountsAttempt(t *testing.T) {
	store := NewMemoryStore()
	svc := newService(store, nil)

	res, err := svc.Start(context.Background(), "u1", "math-blaster", 1, map[string]any{"level": 2})
	require.NoError(t, err)
	require.NotEmpty(t, res.Session.Token)
	require.Equal(t, StatusStarted, res.Session.Status)
	require.Equal(t, int64(1), res.Attempts.Attempts)
	require.Equal(t, int64(0), res.Attempts.Completions)
	require.NotNil(t, res.Attempts.LastAttempt)
	require.JSONEq(t, `{"level":2}`, string(res.Session.Metadata))

	res2, err := svc.Start(context.Background(), "u1", "math-blaster", 3, nil)
	require.NoError(t, err)
	require.Equal(t, int64(4), res2.Attempts.Attempts)
	require.NotEqual(t, res.Session.Token, res2.Session.Token)
}

func TestStart_MissingGameID(t *testing.T) {
	svc := newService(NewMemoryStore(), nil)
	_, err := svc.Start(context.Background(), "u1", "   ", 1, nil)
	require.ErrorIs(t, err, ErrMissingGameID)
}

func TestStart_RetriesOnTokenCollision(t *testing.T) {
	store := NewMemoryStore()
	svc := newService(store, &seqTokens{tokens: []string{"dup", "dup", "fresh"}})

	first, err := svc.Start(context.Background(), "u1", "g1", 1, nil)
	require.NoError(t, err)
	require.Equal(t, "dup", first.Session.Token)

	second, err := svc.Start(context.Background(), "u2", "g1", 1, nil)
	require.NoError(t, err)
	require.Equal(t, "fresh", second.Session.Token)
}

func TestStart_GivesUpAfterExhaustedRetries(t *testing.T) {
	store := NewMemoryStore()
	svc := newService(store, &seqTokens{tokens: []string{"dup"}})

	_, err := svc.Start(context.Background(), "u1", "g1", 1, nil)
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), "u2", "g1", 1, nil)
	require.ErrorIs(t, err, ErrSessionCreation)

	// the failed start must not have counted an attempt for u2
	got, err := store.AttemptsFor(context.Background(), "u2", nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

// ─── Complete ────────────────────────────────────────────────────────

func TestComplete_FirstCompletionCounts(t *testing.T) {
	store := NewMemoryStore()
	svc := newService(store, nil)

	started, err := svc.Start(context.Background(), "u1", "g1", 1, nil)
	require.NoError(t, err)

	res, err := svc.Complete(context.Background(), "u1", started.Session.Token, "g1", "completed", map[string]any{"score": 97})
	require.NoError(t, err)
	require.False(t, res.AlreadyCompleted)
	require.Equal(t, StatusCompleted, res.Session.Status)
	require.NotNil(t, res.Session.CompletedAt)
	require.JSONEq(t, `{"score":97}`, string(res.Session.ResultPayload))

	got, err := store.AttemptsFor(context.Background(), "u1", []string{"g1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(1), got[0].Completions)
}

func TestComplete_SecondCompletionIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	svc := newService(store, nil)

	started, err := svc.Start(context.Background(), "u1", "g1", 1, nil)
	require.NoError(t, err)

	first, err := svc.Complete(context.Background(), "u1", started.Session.Token, "", "completed", nil)
	require.NoError(t, err)
	require.False(t, first.AlreadyCompleted)
	completedAt := first.Session.CompletedAt

	second, err := svc.Complete(context.Background(), "u1", started.Session.Token, "", "completed", nil)
	require.NoError(t, err)
	require.True(t, second.AlreadyCompleted)
	require.Equal(t, completedAt, second.Session.CompletedAt)

	got, err := store.AttemptsFor(context.Background(), "u1", []string{"g1"})
	require.NoError(t, err)
	require.Equal(t, int64(1), got[0].Completions)
}

func TestComplete_AbortedDoesNotCount(t *testing.T) {
	store := NewMemoryStore()
	svc := newService(store, nil)

	started, err := svc.Start(context.Background(), "u1", "g1", 1, nil)
	require.NoError(t, err)

	res, err := svc.Complete(context.Background(), "u1", started.Session.Token, "", "aborted", nil)
	require.NoError(t, err)
	require.Equal(t, StatusAborted, res.Session.Status)
	require.Nil(t, res.Session.CompletedAt)

	got, err := store.AttemptsFor(context.Background(), "u1", []string{"g1"})
	require.NoError(t, err)
	require.Equal(t, int64(0), got[0].Completions)
}

func TestComplete_UnknownStatusBecomesCompleted(t *testing.T) {
	svc := newService(NewMemoryStore(), nil)
	started, err := svc.Start(context.Background(), "u1", "g1", 1, nil)
	require.NoError(t, err)

	res, err := svc.Complete(context.Background(), "u1", started.Session.Token, "", "victory!!", nil)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Session.Status)
}

func TestComplete_AnonymousCallerAllowed(t *testing.T) {
	svc := newService(NewMemoryStore(), nil)
	started, err := svc.Start(context.Background(), "u1", "g1", 1, nil)
	require.NoError(t, err)

	res, err := svc.Complete(context.Background(), "", started.Session.Token, "", "completed", nil)
	require.NoError(t, err)
	require.Equal(t, "u1", res.Session.UserID)
}

func TestComplete_OwnerMismatchForbidden(t *testing.T) {
	svc := newService(NewMemoryStore(), nil)
	started, err := svc.Start(context.Background(), "u1", "g1", 1, nil)
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), "intruder", started.Session.Token, "", "completed", nil)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestComplete_GameMismatch(t *testing.T) {
	svc := newService(NewMemoryStore(), nil)
	started, err := svc.Start(context.Background(), "u1", "g1", 1, nil)
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), "u1", started.Session.Token, "other-game", "completed", nil)
	require.ErrorIs(t, err, ErrGameMismatch)
}

func TestComplete_UnknownToken(t *testing.T) {
	svc := newService(NewMemoryStore(), nil)
	_, err := svc.Complete(context.Background(), "u1", "no-such-token", "", "completed", nil)
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Complete(context.Background(), "u1", "  ", "", "completed", nil)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestComplete_ResultPreservedWhenOmitted(t *testing.T) {
	svc := newService(NewMemoryStore(), nil)
	started, err := svc.Start(context.Background(), "u1", "g1", 1, nil)
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), "u1", started.Session.Token, "", "completed", json.RawMessage(`{"score":10}`))
	require.NoError(t, err)

	res, err := svc.Complete(context.Background(), "u1", started.Session.Token, "", "completed", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"score":10}`, string(res.Session.ResultPayload))
}

// ─── Attempts ────────────────────────────────────────────────────────

func TestAttempts_ZeroFillsRequestedUnknownGames(t *testing.T) {
	svc := newService(NewMemoryStore(), nil)
	ctx := context.Background()

	_, err := svc.Start(ctx, "u1", "g1", 1, nil)
	require.NoError(t, err)

	got, err := svc.Attempts(ctx, "u1", []string{"g1", "g9"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(1), got[0].Attempts)
	require.Equal(t, Attempts{UserID: "u1", GameID: "g9"}, got[1])
}

func TestAddAttempts(t *testing.T) {
	svc := newService(NewMemoryStore(), nil)
	ctx := context.Background()

	agg, err := svc.AddAttempts(ctx, "u1", "g1", 3, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3), agg.Attempts)
	require.Equal(t, int64(1), agg.Completions)

	_, err = svc.AddAttempts(ctx, "u1", " ", 1, 0)
	require.ErrorIs(t, err, ErrMissingGameID)
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/applearn/internal/games"
	"github.com/example/applearn/internal/identity"
	"github.com/example/applearn/internal/platform/auth"
	"github.com/example/applearn/internal/progress"
	"github.com/example/applearn/internal/teacher"
	"github.com/example/applearn/internal/token"
)

const testSecret = "router-test-secret"

type env struct {
	handler  http.Handler
	identity *identity.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()

	idSvc := &identity.Service{
		Store:     identity.NewMemoryStore(),
		JWTSecret: []byte(testSecret),
		TokenTTL:  time.Hour,
	}
	progSvc := &progress.Service{Store: progress.NewMemoryStore()}
	gameSvc := &games.Service{Store: games.NewMemoryStore(), Tokens: token.Random{}}
	teachSvc := &teacher.Service{
		Roster: idSvc.Store,
		Views:  progSvc.Store,
		Games:  gameSvc.Store,
	}

	handler := NewRouter(Deps{
		Identity: idSvc,
		Progress: progSvc,
		Games:    gameSvc,
		Teacher:  teachSvc,
		Verifier: auth.JWTVerifier{Secret: []byte(testSecret)},
		Logger:   zap.NewNop(),
	})
	return &env{handler: handler, identity: idSvc}
}

func (e *env) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == nil {
		reader = strings.NewReader("")
	} else if s, ok := body.(string); ok {
		reader = strings.NewReader(s)
	} else {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *env) signup(t *testing.T, email, name, role, school string) (userID, bearer string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/signup", "", map[string]any{
		"email": email, "password": "long enough", "full_name": name, "role": role, "school": school,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		OK    bool   `json:"ok"`
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.OK)
	return resp.User.ID, resp.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

// ─── identity ────────────────────────────────────────────────────────

func TestSignupLoginMe(t *testing.T) {
	e := newEnv(t)
	userID, _ := e.signup(t, "kid@school.org", "Kid A", "student", "north")

	rec := e.do(t, http.MethodPost, "/api/login", "", map[string]any{
		"email": "kid@school.org", "password": "long enough",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decodeBody(t, rec)
	bearer, _ := login["token"].(string)
	require.NotEmpty(t, bearer)

	rec = e.do(t, http.MethodGet, "/api/me", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody(t, rec)
	user := me["user"].(map[string]any)
	require.Equal(t, userID, user["id"])
	require.Equal(t, "Kid A", user["full_name"])
}

func TestLogin_BadPassword(t *testing.T) {
	e := newEnv(t)
	e.signup(t, "kid@school.org", "Kid A", "student", "north")

	rec := e.do(t, http.MethodPost, "/api/login", "", map[string]any{
		"email": "kid@school.org", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, false, body["ok"])
	require.NotEmpty(t, body["error"])
}

func TestSignup_DuplicateEmailConflict(t *testing.T) {
	e := newEnv(t)
	e.signup(t, "kid@school.org", "Kid A", "student", "north")

	rec := e.do(t, http.MethodPost, "/api/signup", "", map[string]any{
		"email": "kid@school.org", "password": "long enough",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	e := newEnv(t)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/me"},
		{http.MethodPost, "/api/video/progress"},
		{http.MethodGet, "/api/video/progress"},
		{http.MethodPost, "/api/game/start"},
		{http.MethodGet, "/api/game/attempts"},
		{http.MethodGet, "/api/teacher/stats"},
	} {
		rec := e.do(t, route.method, route.path, "", nil)
		require.Equalf(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

// ─── video progress ──────────────────────────────────────────────────

func TestVideoProgress_RecordAndRead(t *testing.T) {
	e := newEnv(t)
	_, bearer := e.signup(t, "kid@school.org", "Kid A", "student", "north")

	rec := e.do(t, http.MethodPost, "/api/video/progress", bearer, map[string]any{
		"video_id": "v1", "seconds_delta": 30, "duration": 100, "position": 30, "session_id": "s1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	view := body["view"].(map[string]any)
	require.Equal(t, 30.0, view["seconds_watched"])
	require.Equal(t, false, body["counted"])

	// coerced garbage must not fail the request
	rec = e.do(t, http.MethodPost, "/api/video/progress", bearer, `{"video_id":"v1","seconds_delta":"60","duration":"100","completed":"1","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decodeBody(t, rec)
	require.Equal(t, true, body["counted"])

	rec = e.do(t, http.MethodGet, "/api/video/progress?ids=v1", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	views := decodeBody(t, rec)["views"].(map[string]any)
	v1 := views["v1"].(map[string]any)
	require.Equal(t, 90.0, v1["seconds_watched"])
	require.Equal(t, true, v1["completed"])
	require.Equal(t, 1.0, v1["view_count"])
}

func TestVideoProgress_MissingVideoID(t *testing.T) {
	e := newEnv(t)
	_, bearer := e.signup(t, "kid@school.org", "Kid A", "student", "north")

	rec := e.do(t, http.MethodPost, "/api/video/progress", bearer, map[string]any{"seconds_delta": 30})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// ─── games ───────────────────────────────────────────────────────────

func startGame(t *testing.T, e *env, bearer string) (token string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/game/start", bearer, map[string]any{"game_id": "g1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := decodeBody(t, rec)["session"].(map[string]any)
	tok, _ := session["token"].(string)
	require.NotEmpty(t, tok)
	require.Equal(t, 1.0, session["attempts"])
	return tok
}

func TestGameLifecycle(t *testing.T) {
	e := newEnv(t)
	_, bearer := e.signup(t, "kid@school.org", "Kid A", "student", "north")

	tok := startGame(t, e, bearer)

	rec := e.do(t, http.MethodPost, "/api/game/complete", bearer, map[string]any{
		"token": tok, "game_id": "g1", "status": "completed", "result": map[string]any{"score": 42},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := decodeBody(t, rec)["session"].(map[string]any)
	require.Equal(t, "completed", session["status"])
	require.Equal(t, false, session["already_completed"])
	require.NotEmpty(t, session["completed_at"])
	require.Equal(t, map[string]any{"score": 42.0}, session["result"])

	rec = e.do(t, http.MethodPost, "/api/game/complete", bearer, map[string]any{"token": tok})
	require.Equal(t, http.StatusOK, rec.Code)
	session = decodeBody(t, rec)["session"].(map[string]any)
	require.Equal(t, true, session["already_completed"])

	rec = e.do(t, http.MethodGet, "/api/game/attempts?game_ids=g1,g-unknown", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	gamesMap := decodeBody(t, rec)["games"].(map[string]any)
	require.Len(t, gamesMap, 2)
	g1 := gamesMap["g1"].(map[string]any)
	require.Equal(t, 1.0, g1["attempts"])
	require.Equal(t, 1.0, g1["completions"])
	unknown := gamesMap["g-unknown"].(map[string]any)
	require.Equal(t, 0.0, unknown["attempts"])
	require.Nil(t, unknown["last_attempt"])
}

func TestGameComplete_Anonymous(t *testing.T) {
	e := newEnv(t)
	_, bearer := e.signup(t, "kid@school.org", "Kid A", "student", "north")
	tok := startGame(t, e, bearer)

	rec := e.do(t, http.MethodPost, "/api/game/complete", "", map[string]any{"token": tok})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestGameComplete_WrongOwnerForbidden(t *testing.T) {
	e := newEnv(t)
	_, owner := e.signup(t, "kid@school.org", "Kid A", "student", "north")
	_, other := e.signup(t, "other@school.org", "Kid B", "student", "north")
	tok := startGame(t, e, owner)

	rec := e.do(t, http.MethodPost, "/api/game/complete", other, map[string]any{"token": tok})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGameComplete_MismatchAndUnknownToken(t *testing.T) {
	e := newEnv(t)
	_, bearer := e.signup(t, "kid@school.org", "Kid A", "student", "north")
	tok := startGame(t, e, bearer)

	rec := e.do(t, http.MethodPost, "/api/game/complete", bearer, map[string]any{"token": tok, "game_id": "wrong"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/game/complete", bearer, map[string]any{"token": "bogus"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordAttempts(t *testing.T) {
	e := newEnv(t)
	_, bearer := e.signup(t, "kid@school.org", "Kid A", "student", "north")

	rec := e.do(t, http.MethodPost, "/api/game/attempts", bearer, map[string]any{
		"game_id": "g2", "attempts_delta": 3, "completions_delta": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	game := decodeBody(t, rec)["game"].(map[string]any)
	require.Equal(t, "g2", game["game_id"])
	require.Equal(t, 3.0, game["attempts"])
	require.Equal(t, 1.0, game["completions"])
}

func TestRecordAttempts_OmittedDeltaCountsOne(t *testing.T) {
	e := newEnv(t)
	_, bearer := e.signup(t, "kid@school.org", "Kid A", "student", "north")

	rec := e.do(t, http.MethodPost, "/api/game/attempts", bearer, map[string]any{"game_id": "g1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	game := decodeBody(t, rec)["game"].(map[string]any)
	require.Equal(t, 1.0, game["attempts"])
	require.Equal(t, 0.0, game["completions"])
}

func TestStartGame_NegativeDeltaCreatesSessionWithoutAttempt(t *testing.T) {
	e := newEnv(t)
	_, bearer := e.signup(t, "kid@school.org", "Kid A", "student", "north")

	rec := e.do(t, http.MethodPost, "/api/game/start", bearer, map[string]any{
		"game_id": "g1", "attempts_delta": -5,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := decodeBody(t, rec)["session"].(map[string]any)
	require.NotEmpty(t, session["token"])
	require.Equal(t, 0.0, session["attempts"])
}

// ─── teacher stats ───────────────────────────────────────────────────

func TestTeacherStats(t *testing.T) {
	e := newEnv(t)
	_, s1 := e.signup(t, "s1@school.org", "Ann", "student", "north")
	e.signup(t, "s2@school.org", "Zoe", "student", "north")
	e.signup(t, "s3@school.org", "Ben", "student", "south")
	_, teacherBearer := e.signup(t, "t@school.org", "Mrs Finch", "teacher", "north")

	// one counted view for Ann
	rec := e.do(t, http.MethodPost, "/api/video/progress", s1, map[string]any{
		"video_id": "v1", "seconds_delta": 95, "duration": 100, "completed": true, "session_id": "x",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/teacher/stats", teacherBearer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	require.Equal(t, "north", body["school"])

	students := body["students"].([]any)
	require.Len(t, students, 2)
	ann := students[0].(map[string]any)
	require.Equal(t, "Ann", ann["full_name"])
	require.Equal(t, 1.0, ann["total_views"])

	summary := body["summary"].(map[string]any)
	require.Equal(t, 2.0, summary["student_count"])
	require.Equal(t, 1.0, summary["total_views"])
}

func TestTeacherStats_StudentForbidden(t *testing.T) {
	e := newEnv(t)
	_, bearer := e.signup(t, "kid@school.org", "Kid A", "student", "north")

	rec := e.do(t, http.MethodGet, "/api/teacher/stats", bearer, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInvalidJSONIsBadRequest(t *testing.T) {
	e := newEnv(t)
	_, bearer := e.signup(t, "kid@school.org", "Kid A", "student", "north")

	rec := e.do(t, http.MethodPost, "/api/video/progress", bearer, "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, false, body["ok"])
}

package httpapi

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/applearn/internal/games"
	"github.com/example/applearn/internal/identity"
	"github.com/example/applearn/internal/platform/auth"
	"github.com/example/applearn/internal/platform/httpserver"
	"github.com/example/applearn/internal/progress"
	"github.com/example/applearn/internal/teacher"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Identity *identity.Service
	Progress *progress.Service
	Games    *games.Service
	Teacher  *teacher.Service
	Verifier auth.JWTVerifier
	Logger   *zap.Logger

	// ReadyFunc backs /readyz; nil means always ready.
	ReadyFunc func() error
}

// NewRouter assembles the full route tree.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: d.ReadyFunc})

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", Signup(d.Identity, d.Logger))
		r.Post("/login", Login(d.Identity, d.Logger))

		// game completion arrives from an embedded game frame, often
		// without forwarded credentials
		r.With(auth.OptionalUser(d.Verifier)).
			Post("/game/complete", CompleteGame(d.Games, d.Logger))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(d.Verifier))

			r.Get("/me", Me(d.Identity, d.Logger))

			r.Post("/video/progress", RecordProgress(d.Progress, d.Logger))
			r.Get("/video/progress", GetProgress(d.Progress, d.Logger))

			r.Post("/game/start", StartGame(d.Games, d.Logger))
			r.Get("/game/attempts", GetAttempts(d.Games, d.Logger))
			r.Post("/game/attempts", RecordAttempts(d.Games, d.Logger))

			r.With(auth.RequireRole(auth.RoleTeacher)).
				Get("/teacher/stats", TeacherStats(d.Teacher, d.Logger))
		})
	})

	return r
}

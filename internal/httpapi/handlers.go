// Package httpapi is the HTTP surface of the learning backend. Handlers
// decode tolerantly, delegate to the domain services and answer in the
// {"ok": ...} envelope.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/applearn/internal/games"
	"github.com/example/applearn/internal/identity"
	"github.com/example/applearn/internal/platform/api"
	"github.com/example/applearn/internal/platform/auth"
	"github.com/example/applearn/internal/progress"
	"github.com/example/applearn/internal/teacher"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		api.BadRequest(w, "Invalid JSON")
		return false
	}
	return true
}

// writeServiceError maps domain errors onto envelope statuses. Anything
// unrecognized is a 500 with the detail kept in the log, not the response.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, progress.ErrMissingVideoID),
		errors.Is(err, games.ErrMissingGameID),
		errors.Is(err, games.ErrMissingToken),
		errors.Is(err, games.ErrGameMismatch),
		errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrWeakPassword),
		errors.Is(err, identity.ErrInvalidRole):
		api.BadRequest(w, err.Error())
	case errors.Is(err, identity.ErrInvalidCredentials):
		api.Unauthorized(w, err.Error())
	case errors.Is(err, games.ErrForbidden), errors.Is(err, teacher.ErrNotTeacher):
		api.Forbidden(w, err.Error())
	case errors.Is(err, games.ErrSessionNotFound), errors.Is(err, identity.ErrUserNotFound):
		api.NotFound(w, err.Error())
	case errors.Is(err, identity.ErrEmailTaken):
		api.Conflict(w, err.Error())
	default:
		log.Error("request failed", zap.Error(err))
		api.Internal(w)
	}
}

func callerID(r *http.Request) string {
	id, _ := auth.IdentityFromContext(r.Context())
	return id.ID
}

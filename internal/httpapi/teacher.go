package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/example/applearn/internal/platform/api"
	"github.com/example/applearn/internal/platform/auth"
	"github.com/example/applearn/internal/teacher"
)

// TeacherStats handles GET /api/teacher/stats.
func TeacherStats(svc *teacher.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := auth.IdentityFromContext(r.Context())

		report, err := svc.Stats(r.Context(), caller)
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		api.WriteOK(w, http.StatusOK, map[string]any{
			"school":   report.School,
			"students": report.Students,
			"summary":  report.Summary,
		})
	}
}

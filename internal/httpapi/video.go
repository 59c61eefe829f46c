package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/applearn/internal/platform/api"
	"github.com/example/applearn/internal/progress"
)

type progressRequest struct {
	VideoID      string `json:"video_id"`
	SecondsDelta Number `json:"seconds_delta"`
	Duration     Number `json:"duration"`
	Position     Number `json:"position"`
	SessionID    string `json:"session_id"`
	Completed    Flag   `json:"completed"`
}

// RecordProgress handles POST /api/video/progress.
func RecordProgress(svc *progress.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req progressRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		view, counted, err := svc.Record(r.Context(), callerID(r), progress.Event{
			VideoID:      req.VideoID,
			SecondsDelta: float64(req.SecondsDelta),
			Duration:     float64(req.Duration),
			Position:     float64(req.Position),
			SessionID:    req.SessionID,
			Completed:    bool(req.Completed),
		})
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		api.WriteOK(w, http.StatusOK, map[string]any{
			"view":    view,
			"counted": counted,
		})
	}
}

// GetProgress handles GET /api/video/progress. An optional comma-separated
// ids query (or a single video_id) narrows the result; otherwise every
// record is returned.
func GetProgress(svc *progress.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("ids")
		if filter == "" {
			filter = r.URL.Query().Get("video_id")
		}
		views, err := svc.Views(r.Context(), callerID(r), splitIDs(filter))
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		api.WriteOK(w, http.StatusOK, map[string]any{"views": views})
	}
}

func splitIDs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

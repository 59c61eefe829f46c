package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/applearn/internal/games"
	"github.com/example/applearn/internal/platform/api"
)

type gameStartRequest struct {
	GameID        string          `json:"game_id"`
	AttemptsDelta Number          `json:"attempts_delta"`
	Metadata      json.RawMessage `json:"metadata"`
}

// StartGame handles POST /api/game/start.
func StartGame(svc *games.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gameStartRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		// absent or zero defaults to one attempt; negatives pass through
		// and are clamped by the store
		delta := int64(req.AttemptsDelta)
		if delta == 0 {
			delta = 1
		}
		var meta any
		if len(req.Metadata) > 0 {
			meta = req.Metadata
		}

		res, err := svc.Start(r.Context(), callerID(r), req.GameID, delta, meta)
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		api.WriteOK(w, http.StatusOK, map[string]any{
			"session": map[string]any{
				"id":          res.Session.ID,
				"game_id":     res.Session.GameID,
				"token":       res.Session.Token,
				"attempts":    res.Attempts.Attempts,
				"completions": res.Attempts.Completions,
			},
		})
	}
}

type gameCompleteRequest struct {
	Token    string          `json:"token"`
	GameID   string          `json:"game_id"`
	Status   string          `json:"status"`
	Result   json.RawMessage `json:"result"`
	Details  json.RawMessage `json:"details"`
	Metadata json.RawMessage `json:"metadata"`
}

// resultPayload picks the first payload a client supplied: result wins,
// then details, then metadata wrapped under a metadata key.
func (req gameCompleteRequest) resultPayload() any {
	if len(req.Result) > 0 {
		return req.Result
	}
	if len(req.Details) > 0 {
		return req.Details
	}
	if len(req.Metadata) > 0 {
		return map[string]any{"metadata": req.Metadata}
	}
	return nil
}

// CompleteGame handles POST /api/game/complete. Mounted behind OptionalUser:
// anonymous completion is legal, impersonation is not.
func CompleteGame(svc *games.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gameCompleteRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := svc.Complete(r.Context(), callerID(r), req.Token, req.GameID, req.Status, req.resultPayload())
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		session := map[string]any{
			"game_id":           res.Session.GameID,
			"token":             res.Session.Token,
			"status":            res.Session.Status,
			"created_at":        res.Session.CreatedAt,
			"completed_at":      res.Session.CompletedAt,
			"already_completed": res.AlreadyCompleted,
		}
		if len(res.Session.ResultPayload) > 0 {
			session["result"] = res.Session.ResultPayload
		}
		api.WriteOK(w, http.StatusOK, map[string]any{"session": session})
	}
}

type attemptView struct {
	GameID        string `json:"game_id"`
	Attempts      int64  `json:"attempts"`
	Completions   int64  `json:"completions"`
	LastAttempt   any    `json:"last_attempt"`
	LastCompleted any    `json:"last_completed"`
}

func toAttemptView(a games.Attempts) attemptView {
	v := attemptView{GameID: a.GameID, Attempts: a.Attempts, Completions: a.Completions}
	if a.LastAttempt != nil {
		v.LastAttempt = a.LastAttempt
	}
	if a.LastCompleted != nil {
		v.LastCompleted = a.LastCompleted
	}
	return v
}

// GetAttempts handles GET /api/game/attempts. The response maps game_id to
// its aggregate; requested unknown ids come back zero-valued.
func GetAttempts(svc *games.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aggs, err := svc.Attempts(r.Context(), callerID(r), splitIDs(r.URL.Query().Get("game_ids")))
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		byGame := make(map[string]attemptView, len(aggs))
		for _, a := range aggs {
			byGame[a.GameID] = toAttemptView(a)
		}
		api.WriteOK(w, http.StatusOK, map[string]any{"games": byGame})
	}
}

type attemptDeltaRequest struct {
	GameID      string `json:"game_id"`
	Attempts    Number `json:"attempts_delta"`
	Completions Number `json:"completions_delta"`
}

// RecordAttempts handles POST /api/game/attempts.
func RecordAttempts(svc *games.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req attemptDeltaRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		delta := int64(req.Attempts)
		if delta == 0 {
			delta = 1
		}

		agg, err := svc.AddAttempts(r.Context(), callerID(r), req.GameID, delta, int64(req.Completions))
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		api.WriteOK(w, http.StatusOK, map[string]any{"game": toAttemptView(agg)})
	}
}

package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/example/applearn/internal/identity"
	"github.com/example/applearn/internal/platform/api"
)

type userView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	School   string `json:"school"`
}

func toUserView(u identity.User) userView {
	return userView{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role, School: u.School}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	School   string `json:"school"`
}

// Signup handles POST /api/signup.
func Signup(svc *identity.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		u, tok, err := svc.Register(r.Context(), identity.Signup{
			Email:    req.Email,
			Password: req.Password,
			FullName: req.FullName,
			Role:     req.Role,
			School:   req.School,
		})
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		api.WriteOK(w, http.StatusCreated, map[string]any{
			"token": tok,
			"user":  toUserView(u),
		})
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/login.
func Login(svc *identity.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		u, tok, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		api.WriteOK(w, http.StatusOK, map[string]any{
			"token": tok,
			"user":  toUserView(u),
		})
	}
}

// Me handles GET /api/me.
func Me(svc *identity.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := svc.UserByID(r.Context(), callerID(r))
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		api.WriteOK(w, http.StatusOK, map[string]any{"user": toUserView(u)})
	}
}

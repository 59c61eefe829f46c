// Package auth resolves the caller identity from a Bearer token.
// It is the only component that knows how identities are transported;
// everything downstream works off the Identity placed in the context.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/applearn/internal/platform/api"
)

// Identity is the resolved caller: a student or a teacher of a school.
type Identity struct {
	ID     string
	Role   string
	School string
	Name   string
}

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

type ctxKeyIdentity struct{}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	return v, ok
}

// WithIdentity injects an identity into context. Useful for testing.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, id)
}

type Claims struct {
	jwt.RegisteredClaims
	Role   string `json:"role,omitempty"`
	School string `json:"school,omitempty"`
	Name   string `json:"name,omitempty"`
}

type JWTVerifier struct {
	Secret []byte
}

func (v JWTVerifier) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func identityFromClaims(c *Claims) Identity {
	return Identity{
		ID:     strings.TrimSpace(c.Subject),
		Role:   strings.TrimSpace(c.Role),
		School: strings.TrimSpace(c.School),
		Name:   strings.TrimSpace(c.Name),
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", false
	}
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// RequireUser validates the Bearer token and injects the Identity into context.
func RequireUser(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				api.Unauthorized(w, "Authentication required")
				return
			}
			claims, err := verifier.Parse(raw)
			if err != nil || strings.TrimSpace(claims.Subject) == "" {
				api.Unauthorized(w, "Authentication required")
				return
			}
			ctx := WithIdentity(r.Context(), identityFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalUser injects an Identity when a valid Bearer token is present and
// passes the request through untouched otherwise. Game completion calls may
// arrive from an iframe without forwarded credentials.
func OptionalUser(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw, ok := bearerToken(r); ok {
				if claims, err := verifier.Parse(raw); err == nil && strings.TrimSpace(claims.Subject) != "" {
					r = r.WithContext(WithIdentity(r.Context(), identityFromClaims(claims)))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole allows the request only if RequireUser already injected the role.
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := IdentityFromContext(r.Context())
			if !strings.EqualFold(strings.TrimSpace(id.Role), role) {
				api.Forbidden(w, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/applearn/internal/platform/analytics"
	"github.com/example/applearn/internal/platform/auth"
)

type Service struct {
	Store     Store
	JWTSecret []byte
	TokenTTL  time.Duration
	Events    *analytics.Publisher
}

// Register creates an account and returns it with a fresh access token.
func (s *Service) Register(ctx context.Context, in Signup) (User, string, error) {
	if err := in.normalize(); err != nil {
		return User{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, "", fmt.Errorf("hash password: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		FullName:     in.FullName,
		Role:         in.Role,
		School:       in.School,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Store.CreateUser(ctx, u); err != nil {
		return User{}, "", err
	}

	tok, err := s.accessToken(u)
	if err != nil {
		return User{}, "", err
	}
	s.Events.Publish(analytics.SubjectUserRegistered, "user_registered", u.ID, map[string]any{
		"role":   u.Role,
		"school": u.School,
	})
	return u, tok, nil
}

// Login verifies credentials and returns the account with an access token.
func (s *Service) Login(ctx context.Context, email, password string) (User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.Store.UserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return User{}, "", err
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return User{}, "", ErrInvalidCredentials
	}

	tok, err := s.accessToken(u)
	if err != nil {
		return User{}, "", err
	}
	s.Events.Publish(analytics.SubjectUserLoggedIn, "user_logged_in", u.ID, nil)
	return u, tok, nil
}

func (s *Service) UserByID(ctx context.Context, id string) (User, error) {
	return s.Store.UserByID(ctx, id)
}

func (s *Service) accessToken(u User) (string, error) {
	now := time.Now().UTC()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TokenTTL)),
		},
		Role:   u.Role,
		School: u.School,
		Name:   u.FullName,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

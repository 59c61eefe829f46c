// Package identity manages user accounts: signup, credential login and
// the school roster used by teacher reporting.
package identity

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidRole        = errors.New("role must be student or teacher")
)

const minPasswordLen = 8

type User struct {
	ID           string
	Email        string
	FullName     string
	Role         string
	School       string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Signup carries the validated registration input.
type Signup struct {
	Email    string
	Password string
	FullName string
	Role     string
	School   string
}

func (s *Signup) normalize() error {
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	if _, err := mail.ParseAddress(s.Email); err != nil {
		return ErrInvalidEmail
	}
	if len(s.Password) < minPasswordLen {
		return ErrWeakPassword
	}
	s.FullName = strings.TrimSpace(s.FullName)
	s.School = strings.TrimSpace(s.School)
	s.Role = strings.ToLower(strings.TrimSpace(s.Role))
	switch s.Role {
	case "":
		s.Role = "student"
	case "student", "teacher":
	default:
		return ErrInvalidRole
	}
	return nil
}

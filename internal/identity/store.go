package identity

import "context"

type Store interface {
	// CreateUser persists a new account. ErrEmailTaken on duplicate email.
	CreateUser(ctx context.Context, u User) error

	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)

	// ListStudents returns the student accounts of one school.
	ListStudents(ctx context.Context, school string) ([]User, error)
}

package repository

import (
	"context"
	"errors"

	"auth-api/internal/domain"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrAlreadyExists is returned by Create when the login is already taken.
	ErrAlreadyExists = errors.New("user already exists")
)

// UserRepository defines persistence operations for User entities.
//
// Create must be atomic with respect to concurrent inserts of the same login:
// implementations rely on the storage's unique constraint, so exactly one of
// several racing inserts succeeds and the rest get ErrAlreadyExists.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
	Count(ctx context.Context) (int64, error)
}

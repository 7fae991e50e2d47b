package repository

import (
	"context"
	"errors"

	"github.com/federation/enterprise/internal/domain/entity"
)

var (
	// ErrNotFound means no row matched the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrNameTaken surfaces the store's unique constraint on name as a
	// distinct, catchable error instead of a generic failure.
	ErrNameTaken = errors.New("name already taken")
)

// UserRepository defines the persistence operations the identity core needs.
// Uniqueness of name and atomicity of single-row writes are the store's job;
// the core does no locking of its own.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByName(ctx context.Context, name string) (*entity.User, error)
	GetByRefreshToken(ctx context.Context, id, refreshToken string) (*entity.User, error)
	UpdateRefreshToken(ctx context.Context, id, refreshToken string) error
}

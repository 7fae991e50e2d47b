package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrCapability is the base error for every capability check; callers can
// match the whole class with errors.Is(err, ErrCapability) or a specific
// capability with its own sentinel.
var ErrCapability = errors.New("user lacks required capability")

var (
	ErrNotIdentifiable     = fmt.Errorf("not Identifiable: %w", ErrCapability)
	ErrNotNameable         = fmt.Errorf("not Nameable: %w", ErrCapability)
	ErrNotContactable      = fmt.Errorf("not Contactable: %w", ErrCapability)
	ErrNotCreateable       = fmt.Errorf("not Createable: %w", ErrCapability)
	ErrNotAuthenticateable = fmt.Errorf("not Authenticateable: %w", ErrCapability)
)

// User is the identity aggregate. Every field except ID is optional; what a
// User may legally do is a function of which fields are populated, not of any
// stored role or type column.
//
// Password is transient: either a freshly normalized+hashed credential on its
// way to the store, or a stored hash fetched for verification. It is never
// embedded in tokens.
type User struct {
	ID           string
	Name         string
	Email        string
	Password     string
	RefreshToken string
	CreatedAt    time.Time
}

// Properties carries the optional construction fields for NewUser.
type Properties struct {
	ID           string
	Name         string
	Email        string
	Password     string
	RefreshToken string
	CreatedAt    time.Time
}

// NewUser builds a User, generating an ID when none is supplied so identity
// exists before persistence confirms it.
func NewUser(p Properties) *User {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &User{
		ID:           id,
		Name:         p.Name,
		Email:        p.Email,
		Password:     p.Password,
		RefreshToken: p.RefreshToken,
		CreatedAt:    p.CreatedAt,
	}
}

// IsIdentifiable reports whether the user can key persistence operations.
func (u *User) IsIdentifiable() bool {
	return u != nil && u.ID != ""
}

// IsNameable reports whether the user can be displayed or looked up by name.
func (u *User) IsNameable() bool {
	return u != nil && u.Name != ""
}

// IsContactable gates token issuance: tokens claim id, name, and email, so
// all three must be present.
func (u *User) IsContactable() bool {
	return u.IsIdentifiable() && u.IsNameable() && u.Email != ""
}

// IsCreateable gates registration persistence. The refresh token is part of
// the persisted row, so it must exist before the insert.
func (u *User) IsCreateable() bool {
	return u.IsContactable() && u.RefreshToken != ""
}

// IsAuthenticateable gates password verification.
func (u *User) IsAuthenticateable() bool {
	return u.IsNameable() && u.Password != ""
}

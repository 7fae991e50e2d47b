package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/federation/enterprise/internal/domain/entity"
	"github.com/federation/enterprise/internal/domain/repository"
)

const uniqueViolationCode = "23505"

// Querier is the subset of pgxpool.Pool the repository uses; pgxmock
// implements it for tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	db Querier
}

func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new account row. The id is assigned by the caller, not the
// database; only created_at comes back.
func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO enterprise.account (account_id, name, email, password, refresh_token)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, u.ID, u.Name, u.Email, u.Password, u.RefreshToken)

	if err := row.Scan(&u.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("%w: %s", repository.ErrNameTaken, u.Name)
		}
		return err
	}
	return nil
}

// GetByName fetches the row used for login; it carries the stored password
// hash for verification.
func (r *UserRepository) GetByName(ctx context.Context, name string) (*entity.User, error) {
	u := &entity.User{}

	row := r.db.QueryRow(ctx, `
		SELECT account_id, name, email, password, refresh_token, created_at
		FROM enterprise.account
		WHERE name = $1
	`, name)

	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.RefreshToken, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return u, nil
}

// GetByRefreshToken fetches the row only when the stored refresh token still
// matches; a rotated-out token finds nothing.
func (r *UserRepository) GetByRefreshToken(ctx context.Context, id, refreshToken string) (*entity.User, error) {
	u := &entity.User{}

	row := r.db.QueryRow(ctx, `
		SELECT account_id, name, email, password, created_at
		FROM enterprise.account
		WHERE account_id = $1 AND refresh_token = $2
	`, id, refreshToken)

	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return u, nil
}

// UpdateRefreshToken persists a freshly minted (or cleared) refresh token.
func (r *UserRepository) UpdateRefreshToken(ctx context.Context, id, refreshToken string) error {
	res, err := r.db.Exec(ctx, `
		UPDATE enterprise.account
		SET refresh_token = $1
		WHERE account_id = $2
	`, refreshToken, id)
	if err != nil {
		return err
	}

	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)

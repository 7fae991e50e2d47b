package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/federation/enterprise/internal/domain/entity"
	repo "github.com/federation/enterprise/internal/domain/repository"
	"github.com/federation/enterprise/pkg/helpers"
)

// fakeRepo is an in-memory UserRepository keyed by name.
type fakeRepo struct {
	byName      map[string]*entity.User
	createErr   error
	createCalls int
	updateCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byName: map[string]*entity.User{}}
}

func clone(u *entity.User) *entity.User {
	c := *u
	return &c
}

func (f *fakeRepo) Create(ctx context.Context, u *entity.User) error {
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byName[u.Name]; exists {
		return repo.ErrNameTaken
	}
	u.CreatedAt = time.Now()
	f.byName[u.Name] = clone(u)
	return nil
}

func (f *fakeRepo) GetByName(ctx context.Context, name string) (*entity.User, error) {
	u, ok := f.byName[name]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return clone(u), nil
}

func (f *fakeRepo) GetByRefreshToken(ctx context.Context, id, refreshToken string) (*entity.User, error) {
	for _, u := range f.byName {
		if u.ID == id && u.RefreshToken == refreshToken && refreshToken != "" {
			return clone(u), nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRepo) UpdateRefreshToken(ctx context.Context, id, refreshToken string) error {
	f.updateCalls++
	for _, u := range f.byName {
		if u.ID == id {
			u.RefreshToken = refreshToken
			return nil
		}
	}
	return repo.ErrNotFound
}

func newTestService(r repo.UserRepository) *Service {
	jwt := helpers.NewJWTManager("test-secret", time.Minute, 720*time.Hour)
	return NewService(r, jwt, nil, nil, nil, "")
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("persists a hashed password and returns a working pair", func(t *testing.T) {
		fr := newFakeRepo()
		svc := newTestService(fr)

		u, pair, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
		require.NoError(t, err)
		require.NotNil(t, u)

		stored := fr.byName["alice"]
		require.NotNil(t, stored)
		assert.NotEqual(t, "password123", stored.Password)
		assert.NotEqual(t, helpers.NormalizePassword("password123"), stored.Password)

		ok, err := helpers.VerifyPassword(stored.Password, helpers.NormalizePassword("password123"))
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Equal(t, stored.RefreshToken, pair.RefreshToken)

		claimed, err := svc.JWT.ParseAccessToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, u.ID, claimed.ID)
		assert.Equal(t, "alice", claimed.Name)
		assert.Equal(t, "alice@example.com", claimed.Email)
	})

	t.Run("missing email fails before any persistence", func(t *testing.T) {
		fr := newFakeRepo()
		svc := newTestService(fr)

		_, _, err := svc.Register(ctx, "alice", "", "password123")
		assert.ErrorIs(t, err, entity.ErrNotContactable)
		assert.ErrorIs(t, err, entity.ErrCapability)
		assert.Zero(t, fr.createCalls)
	})

	t.Run("missing name fails before any persistence", func(t *testing.T) {
		fr := newFakeRepo()
		svc := newTestService(fr)

		_, _, err := svc.Register(ctx, "", "alice@example.com", "password123")
		assert.ErrorIs(t, err, entity.ErrNotContactable)
		assert.Zero(t, fr.createCalls)
	})

	t.Run("duplicate name surfaces ErrNameTaken", func(t *testing.T) {
		fr := newFakeRepo()
		svc := newTestService(fr)

		_, _, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
		require.NoError(t, err)

		_, _, err = svc.Register(ctx, "alice", "other@example.com", "password456")
		assert.ErrorIs(t, err, repo.ErrNameTaken)
	})
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(newFakeRepo())

	hash, err := helpers.HashPassword(helpers.NormalizePassword("password123"))
	require.NoError(t, err)
	u := entity.NewUser(entity.Properties{Name: "alice", Password: hash})

	t.Run("correct password", func(t *testing.T) {
		ok, err := svc.Authenticate(u, "password123")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("wrong password is false without error", func(t *testing.T) {
		ok, err := svc.Authenticate(u, "password456")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("user without stored hash cannot authenticate", func(t *testing.T) {
		bare := entity.NewUser(entity.Properties{Name: "alice"})
		ok, err := svc.Authenticate(bare, "password123")
		assert.False(t, ok)
		assert.ErrorIs(t, err, entity.ErrNotAuthenticateable)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, *fakeRepo) {
		fr := newFakeRepo()
		svc := newTestService(fr)
		_, _, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
		require.NoError(t, err)
		return svc, fr
	}

	t.Run("valid credentials rotate the refresh token", func(t *testing.T) {
		svc, fr := setup(t)
		before := fr.byName["alice"].RefreshToken

		u, pair, err := svc.Login(ctx, "alice", "password123")
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Name)
		assert.NotEmpty(t, pair.AccessToken)
		assert.Equal(t, fr.byName["alice"].RefreshToken, pair.RefreshToken)
		assert.NotEqual(t, before, pair.RefreshToken)
	})

	t.Run("unknown name", func(t *testing.T) {
		svc, _ := setup(t)
		_, _, err := svc.Login(ctx, "mallory", "password123")
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, _ := setup(t)
		_, _, err := svc.Login(ctx, "alice", "password456")
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	// Both failure modes present identically so a caller cannot probe for
	// registered names.
	t.Run("unknown name and wrong password are indistinguishable", func(t *testing.T) {
		svc, _ := setup(t)
		_, _, errName := svc.Login(ctx, "mallory", "password123")
		_, _, errPass := svc.Login(ctx, "alice", "password456")
		assert.Equal(t, errName, errPass)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, *fakeRepo, TokenPair) {
		fr := newFakeRepo()
		svc := newTestService(fr)
		_, pair, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
		require.NoError(t, err)
		return svc, fr, pair
	}

	t.Run("valid refresh token rotates the pair", func(t *testing.T) {
		svc, fr, pair := setup(t)

		u, next, err := svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Name)
		assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
		assert.Equal(t, fr.byName["alice"].RefreshToken, next.RefreshToken)
	})

	t.Run("rotation invalidates the previous refresh token", func(t *testing.T) {
		svc, _, pair := setup(t)

		_, _, err := svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)

		_, _, err = svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("access token is the wrong kind", func(t *testing.T) {
		svc, _, pair := setup(t)
		_, _, err := svc.Refresh(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, helpers.ErrWrongTokenKind)
	})

	t.Run("garbage token", func(t *testing.T) {
		svc, _, _ := setup(t)
		_, _, err := svc.Refresh(ctx, "not.a.token")
		assert.ErrorIs(t, err, helpers.ErrTokenInvalid)
	})

	t.Run("token no longer on record", func(t *testing.T) {
		svc, fr, pair := setup(t)
		fr.byName["alice"].RefreshToken = ""

		_, _, err := svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, ErrAuthentication)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("clears the stored refresh token", func(t *testing.T) {
		fr := newFakeRepo()
		svc := newTestService(fr)
		u, _, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
		require.NoError(t, err)
		require.NotEmpty(t, fr.byName["alice"].RefreshToken)

		require.NoError(t, svc.Logout(ctx, u))
		assert.Empty(t, fr.byName["alice"].RefreshToken)
	})

	t.Run("requires an identifiable user", func(t *testing.T) {
		svc := newTestService(newFakeRepo())
		err := svc.Logout(ctx, &entity.User{})
		assert.ErrorIs(t, err, entity.ErrNotIdentifiable)
	})
}

func TestCurrentUser(t *testing.T) {
	ctx := context.Background()
	fr := newFakeRepo()
	svc := newTestService(fr)

	u, pair, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	t.Run("reconstructs identity from the access token", func(t *testing.T) {
		got, err := svc.CurrentUser(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, u.Name, got.Name)
		assert.Equal(t, u.Email, got.Email)
	})

	t.Run("rejects a refresh token", func(t *testing.T) {
		_, err := svc.CurrentUser(pair.RefreshToken)
		assert.ErrorIs(t, err, helpers.ErrWrongTokenKind)
	})
}

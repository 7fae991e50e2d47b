package graphql

import (
	"context"
	"testing"
	"time"

	gql "github.com/graphql-go/graphql"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	userapp "github.com/federation/enterprise/internal/application"
	"github.com/federation/enterprise/internal/domain/entity"
	repo "github.com/federation/enterprise/internal/domain/repository"
	"github.com/federation/enterprise/pkg/helpers"
)

type memRepo struct {
	byName map[string]*entity.User
}

func (m *memRepo) Create(ctx context.Context, u *entity.User) error {
	if _, ok := m.byName[u.Name]; ok {
		return repo.ErrNameTaken
	}
	c := *u
	m.byName[u.Name] = &c
	return nil
}

func (m *memRepo) GetByName(ctx context.Context, name string) (*entity.User, error) {
	u, ok := m.byName[name]
	if !ok {
		return nil, repo.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *memRepo) GetByRefreshToken(ctx context.Context, id, refreshToken string) (*entity.User, error) {
	for _, u := range m.byName {
		if u.ID == id && u.RefreshToken == refreshToken {
			c := *u
			return &c, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memRepo) UpdateRefreshToken(ctx context.Context, id, refreshToken string) error {
	for _, u := range m.byName {
		if u.ID == id {
			u.RefreshToken = refreshToken
			return nil
		}
	}
	return repo.ErrNotFound
}

func newTestSchema(t *testing.T) (gql.Schema, *userapp.Service) {
	t.Helper()
	logger := logrus.New()
	jwt := helpers.NewJWTManager("test-secret", time.Minute, 720*time.Hour)
	svc := userapp.NewService(&memRepo{byName: map[string]*entity.User{}}, jwt, nil, logger, nil, "")
	schema, err := NewSchema(svc, logger)
	require.NoError(t, err)
	return schema, svc
}

func exec(schema gql.Schema, ctx context.Context, query string) *gql.Result {
	return gql.Do(gql.Params{Schema: schema, RequestString: query, Context: ctx})
}

func TestRegisterMutation(t *testing.T) {
	schema, _ := newTestSchema(t)
	ctx := context.Background()

	res := exec(schema, ctx, `mutation {
		register(name: "alice", email: "alice@example.com", password: "password123") {
			accessToken
			refreshToken
			user { id name email }
		}
	}`)
	require.Empty(t, res.Errors)

	payload := res.Data.(map[string]any)["register"].(map[string]any)
	assert.NotEmpty(t, payload["accessToken"])
	assert.NotEmpty(t, payload["refreshToken"])

	user := payload["user"].(map[string]any)
	assert.Equal(t, "alice", user["name"])
	assert.Equal(t, "alice@example.com", user["email"])
	assert.NotEmpty(t, user["id"])
}

func TestLoginMutation(t *testing.T) {
	schema, svc := newTestSchema(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		res := exec(schema, ctx, `mutation {
			login(name: "alice", password: "password123") {
				accessToken
				user { name }
			}
		}`)
		require.Empty(t, res.Errors)
		payload := res.Data.(map[string]any)["login"].(map[string]any)
		assert.NotEmpty(t, payload["accessToken"])
	})

	t.Run("wrong password", func(t *testing.T) {
		res := exec(schema, ctx, `mutation {
			login(name: "alice", password: "wrong") { accessToken }
		}`)
		require.NotEmpty(t, res.Errors)
		assert.Contains(t, res.Errors[0].Message, "could not authenticate user")
	})
}

func TestRefreshAccessTokenMutation(t *testing.T) {
	schema, svc := newTestSchema(t)
	ctx := context.Background()

	_, pair, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	res := exec(schema, ctx, `mutation {
		refreshAccessToken(refreshToken: "`+pair.RefreshToken+`") {
			accessToken
			refreshToken
		}
	}`)
	require.Empty(t, res.Errors)
	payload := res.Data.(map[string]any)["refreshAccessToken"].(map[string]any)
	assert.NotEqual(t, pair.RefreshToken, payload["refreshToken"])
}

func TestCurrentUserQuery(t *testing.T) {
	schema, svc := newTestSchema(t)
	ctx := context.Background()

	_, pair, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	t.Run("with token", func(t *testing.T) {
		res := exec(schema, WithToken(ctx, pair.AccessToken), `{ currentUser { name email } }`)
		require.Empty(t, res.Errors)
		user := res.Data.(map[string]any)["currentUser"].(map[string]any)
		assert.Equal(t, "alice", user["name"])
	})

	t.Run("without token", func(t *testing.T) {
		res := exec(schema, ctx, `{ currentUser { name } }`)
		require.NotEmpty(t, res.Errors)
		assert.Contains(t, res.Errors[0].Message, "not authenticated")
	})

	t.Run("refresh token is not accepted", func(t *testing.T) {
		res := exec(schema, WithToken(ctx, pair.RefreshToken), `{ currentUser { name } }`)
		require.NotEmpty(t, res.Errors)
	})
}

package graphql

import (
	"context"
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/sirupsen/logrus"

	userapp "github.com/federation/enterprise/internal/application"
	"github.com/federation/enterprise/internal/domain/entity"
)

type ctxKey int

// tokenKey carries the raw bearer token from the HTTP layer into resolvers.
const tokenKey ctxKey = 0

// WithToken returns a context carrying the bearer token for resolvers.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

func tokenFromCtx(ctx context.Context) string {
	if t, ok := ctx.Value(tokenKey).(string); ok {
		return t
	}
	return ""
}

var errNotAuthenticated = errors.New("not authenticated")

func userResult(u *entity.User) map[string]any {
	return map[string]any{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
	}
}

func authPayload(u *entity.User, pair userapp.TokenPair) map[string]any {
	return map[string]any{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"user":         userResult(u),
	}
}

// NewSchema builds the GraphQL schema. Queries and mutations delegate to the
// application service; tokens travel in the resolver context, never as a
// field of the user type.
func NewSchema(svc *userapp.Service, logger *logrus.Logger) (graphql.Schema, error) {
	userType := graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id":    &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"email": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	authPayloadType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AuthPayload",
		Fields: graphql.Fields{
			"accessToken":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"refreshToken": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"user":         &graphql.Field{Type: graphql.NewNonNull(userType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"currentUser": &graphql.Field{
				Type: userType,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					token := tokenFromCtx(p.Context)
					if token == "" {
						return nil, errNotAuthenticated
					}
					u, err := svc.CurrentUser(token)
					if err != nil {
						return nil, errNotAuthenticated
					}
					return userResult(u), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"register": &graphql.Field{
				Type: authPayloadType,
				Args: graphql.FieldConfigArgument{
					"name":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"email":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"password": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					name, _ := p.Args["name"].(string)
					email, _ := p.Args["email"].(string)
					password, _ := p.Args["password"].(string)

					u, pair, err := svc.Register(p.Context, name, email, password)
					if err != nil {
						logger.WithError(err).Warn("graphql register failed")
						return nil, err
					}
					return authPayload(u, pair), nil
				},
			},
			"login": &graphql.Field{
				Type: authPayloadType,
				Args: graphql.FieldConfigArgument{
					"name":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"password": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					name, _ := p.Args["name"].(string)
					password, _ := p.Args["password"].(string)

					u, pair, err := svc.Login(p.Context, name, password)
					if err != nil {
						if errors.Is(err, userapp.ErrAuthentication) {
							return nil, errors.New("could not authenticate user")
						}
						logger.WithError(err).Error("graphql login failed")
						return nil, errors.New("login failed")
					}
					return authPayload(u, pair), nil
				},
			},
			"refreshAccessToken": &graphql.Field{
				Type: authPayloadType,
				Args: graphql.FieldConfigArgument{
					"refreshToken": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					refresh, _ := p.Args["refreshToken"].(string)

					u, pair, err := svc.Refresh(p.Context, refresh)
					if err != nil {
						return nil, errors.New("invalid refresh token")
					}
					return authPayload(u, pair), nil
				},
			},
			"logout": &graphql.Field{
				Type: graphql.Boolean,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					token := tokenFromCtx(p.Context)
					if token == "" {
						return nil, errNotAuthenticated
					}
					u, err := svc.CurrentUser(token)
					if err != nil {
						return nil, errNotAuthenticated
					}
					if err := svc.Logout(p.Context, u); err != nil {
						return nil, fmt.Errorf("logout failed")
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

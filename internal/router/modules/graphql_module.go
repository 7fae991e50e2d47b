package modules

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
	"github.com/redis/go-redis/v9"

	gqlapi "github.com/federation/enterprise/internal/interface/graphql"
	"github.com/federation/enterprise/internal/interface/middleware"
)

// GraphQLModule mounts the GraphQL endpoint alongside the REST routes.
// Resolvers authenticate per-field, so the endpoint itself is public.
type GraphQLModule struct {
	Schema *graphql.Schema
	Redis  *redis.Client
}

func NewGraphQLModule(schema *graphql.Schema, rdb *redis.Client) *GraphQLModule {
	return &GraphQLModule{Schema: schema, Redis: rdb}
}

func (m *GraphQLModule) Register(rg *gin.RouterGroup) {
	h := handler.New(&handler.Config{
		Schema:   m.Schema,
		Pretty:   true,
		GraphiQL: true,
	})

	serve := func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			if t, err := c.Cookie("access_token"); err == nil {
				token = t
			}
		}
		req := c.Request.WithContext(gqlapi.WithToken(c.Request.Context(), token))
		h.ServeHTTP(c.Writer, req)
	}

	rl := middleware.RateLimit(m.Redis, 60, time.Minute, middleware.KeyByIPAndPath(), nil)
	rg.POST("/graphql", rl, serve)
	// GET serves the GraphiQL playground
	rg.GET("/graphql", serve)
}

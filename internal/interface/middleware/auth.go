package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/federation/enterprise/pkg/helpers"
	"github.com/federation/enterprise/pkg/response"
)

const (
	CtxUserIDKey    = "userID"
	CtxUserNameKey  = "userName"
	CtxUserEmailKey = "userEmail"
)

// bearerToken pulls the access token from the Authorization header, falling
// back to the access_token cookie the browser flow sets.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if t, err := c.Cookie("access_token"); err == nil {
		return t
	}
	return ""
}

// Auth verifies the access token and injects the claimed identity into the
// Gin context. A refresh token presented here is rejected as the wrong kind,
// not treated as an attack. When a Redis client is supplied the session must
// also still exist.
func Auth(rdb *redis.Client, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			c.Abort()
			return
		}
		u, err := jwt.ParseAccessToken(token)
		if err != nil {
			// The parse error stays server-side; clients only learn which
			// category failed.
			msg := "invalid access token"
			if errors.Is(err, helpers.ErrWrongTokenKind) {
				msg = "access token required"
			}
			response.Error[any](c, http.StatusUnauthorized, msg, nil)
			c.Abort()
			return
		}

		if rdb != nil {
			key := "user:session:" + u.ID
			data, err := rdb.HGetAll(c.Request.Context(), key).Result()
			if err != nil || len(data) == 0 {
				response.Error[any](c, http.StatusUnauthorized, "session not found", nil)
				c.Abort()
				return
			}
		}

		c.Set(CtxUserIDKey, u.ID)
		c.Set(CtxUserNameKey, u.Name)
		c.Set(CtxUserEmailKey, u.Email)
		c.Next()
	}
}

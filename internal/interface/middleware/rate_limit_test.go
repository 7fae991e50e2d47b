package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func rateLimitedRouter(t *testing.T, max int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.GET("/ping", RateLimit(rdb, max, time.Minute, KeyByIP(), nil), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func ping(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "203.0.113.7:4242"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	t.Run("requests under the limit pass with decreasing remaining", func(t *testing.T) {
		r := rateLimitedRouter(t, 2)

		first := ping(r)
		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

		second := ping(r)
		assert.Equal(t, http.StatusOK, second.Code)
		assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("requests over the limit are rejected", func(t *testing.T) {
		r := rateLimitedRouter(t, 2)
		ping(r)
		ping(r)

		third := ping(r)
		assert.Equal(t, http.StatusTooManyRequests, third.Code)
		assert.Contains(t, third.Body.String(), "rate limit exceeded")
		assert.NotEmpty(t, third.Header().Get("Retry-After"))
	})

	// The remaining header sticks at zero instead of going negative once the
	// limit is breached.
	t.Run("remaining never goes negative", func(t *testing.T) {
		r := rateLimitedRouter(t, 1)
		ping(r)

		for i := 0; i < 3; i++ {
			w := ping(r)
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
			assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		}
	})

	t.Run("nil client disables limiting", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		r := gin.New()
		r.GET("/ping", RateLimit(nil, 1, time.Minute, KeyByIP(), nil), func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, ping(r).Code)
		}
	})
}

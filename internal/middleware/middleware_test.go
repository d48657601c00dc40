package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"circle-chat/internal/auth"
	"circle-chat/internal/redis"
	"circle-chat/internal/services"
	"circle-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticLimiter struct {
	allowed bool
	err     error
}

func (l staticLimiter) result() (*redis.RateLimitResult, error) {
	if l.err != nil {
		return nil, l.err
	}
	return &redis.RateLimitResult{Allowed: l.allowed, Limit: 5, ResetIn: 30 * time.Second}, nil
}

func (l staticLimiter) AllowMessage(ctx context.Context, userID string) (*redis.RateLimitResult, error) {
	return l.result()
}

func (l staticLimiter) AllowSession(ctx context.Context, ip string) (*redis.RateLimitResult, error) {
	return l.result()
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDEchoesIncomingHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen, _ = c.Request.Context().Value(logger.RequestIdKey).(string)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc123")
	w := serve(r, req)
	if w.Header().Get(RequestIDHeader) != "abc123" || seen != "abc123" {
		t.Fatalf("header = %q ctx = %q", w.Header().Get(RequestIDHeader), seen)
	}

	w = serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	if id := w.Header().Get(RequestIDHeader); len(id) != 32 {
		t.Fatalf("generated id = %q", id)
	}
}

func TestAuthMiddleware(t *testing.T) {
	verifier := auth.NewVerifier("middleware-secret")
	r := gin.New()
	r.GET("/", AuthMiddleware(verifier), func(c *gin.Context) {
		id, _ := services.UserIDFromContext(c.Request.Context())
		c.String(http.StatusOK, id+":"+BearerToken(c))
	})

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil)); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	if w := serve(r, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d", w.Code)
	}

	tok, err := verifier.Issue("alice", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := serve(r, req)
	if w.Code != http.StatusOK || w.Body.String() != "alice:"+tok {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestSessionRateLimit(t *testing.T) {
	cases := []struct {
		name    string
		limiter staticLimiter
		status  int
		headers bool
	}{
		{"allowed", staticLimiter{allowed: true}, http.StatusOK, true},
		{"denied", staticLimiter{allowed: false}, http.StatusTooManyRequests, true},
		{"limiter down", staticLimiter{err: errors.New("redis down")}, http.StatusOK, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/", SessionRateLimitMiddleware(tc.limiter), func(c *gin.Context) { c.Status(http.StatusOK) })

			w := serve(r, httptest.NewRequest(http.MethodPost, "/", nil))
			if w.Code != tc.status {
				t.Fatalf("status = %d", w.Code)
			}
			if got := w.Header().Get("X-RateLimit-Limit") == "5"; got != tc.headers {
				t.Fatalf("limit header = %q", w.Header().Get("X-RateLimit-Limit"))
			}
		})
	}
}

func TestMessageRateLimitNeedsUser(t *testing.T) {
	r := gin.New()
	r.POST("/", MessageRateLimitMiddleware(staticLimiter{allowed: false}), func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := serve(r, httptest.NewRequest(http.MethodPost, "/", nil)); w.Code != http.StatusOK {
		t.Fatalf("anonymous request should pass through, got %d", w.Code)
	}

	r = gin.New()
	r.POST("/", func(c *gin.Context) {
		c.Request = c.Request.WithContext(services.WithUserContext(c.Request.Context(), "alice"))
	}, MessageRateLimitMiddleware(staticLimiter{allowed: false}), func(c *gin.Context) { c.Status(http.StatusOK) })
	if w := serve(r, httptest.NewRequest(http.MethodPost, "/", nil)); w.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware())
	r.POST("/api/room/send", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/room/send", nil)
	req.Header.Set("Origin", "https://app.circle.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := serve(r, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/room/send", nil)
	req.Header.Set("Origin", "https://app.circle.test")
	w = serve(r, req)
	if w.Code != http.StatusOK || w.Header().Get("Access-Control-Expose-Headers") == "" {
		t.Fatalf("got %d, expose = %q", w.Code, w.Header().Get("Access-Control-Expose-Headers"))
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestLimiterStore_AllowAndCleanup(t *testing.T) {
	// allow 5 events immediately then the 6th should be rejected
	s := NewLimiterStore(5, 5, 100*time.Millisecond)
	defer s.Stop()

	key := "alice"
	for i := 0; i < 5; i++ {
		if !s.Allow(key) {
			t.Fatalf("expected allow at iteration %d", i)
		}
	}

	if s.Allow(key) {
		t.Fatalf("expected limiter to block after burst consumed")
	}
}

func TestLimiterStore_KeysAreIndependent(t *testing.T) {
	s := NewLimiterStore(1, 1, time.Minute)
	defer s.Stop()

	if !s.Allow("alice") {
		t.Fatal("expected first event for alice to pass")
	}
	if s.Allow("alice") {
		t.Fatal("expected second event for alice to be blocked")
	}
	if !s.Allow("bob") {
		t.Fatal("alice's limit must not affect bob")
	}
}

func TestRateLimit_BlocksWithStatus429(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := NewLimiterStore(1, 1, time.Minute)
	defer s.Stop()

	router := gin.New()
	router.POST("/limited", RateLimit(s, func(*gin.Context) string { return "alice" }), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/limited", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request: got status %d, want %d", first.Code, http.StatusOK)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/limited", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got status %d, want %d", second.Code, http.StatusTooManyRequests)
	}
}

func TestRateLimit_FallsBackToClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := NewLimiterStore(1, 1, time.Minute)
	defer s.Stop()

	router := gin.New()
	router.POST("/limited", RateLimit(s, nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/limited", nil)
	req.RemoteAddr = "203.0.113.7:1234"

	first := httptest.NewRecorder()
	router.ServeHTTP(first, req)
	if first.Code != http.StatusOK {
		t.Fatalf("first request: got status %d, want %d", first.Code, http.StatusOK)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request from same IP: got status %d, want %d", second.Code, http.StatusTooManyRequests)
	}
}

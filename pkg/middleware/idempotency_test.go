package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newIdempotentRouter(cfg IdempotencyConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Actor-ID"); id != "" {
			c.Set("actor_id", id)
		}
	})
	r.POST("/panic", IdempotencyMiddleware(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestIdempotencyRejectsRepeatedKey(t *testing.T) {
	r := newIdempotentRouter(IdempotencyConfig{TTL: time.Minute})

	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/panic", strings.NewReader(`{}`))
		req.Header.Set("X-Actor-ID", "tourist-1")
		req.Header.Set("Idempotency-Key", "sos-42")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := do(); code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", code)
	}
	if code := do(); code != http.StatusConflict {
		t.Errorf("repeat within window should be rejected, got %d", code)
	}
}

func TestIdempotencyDistinctKeysPass(t *testing.T) {
	r := newIdempotentRouter(IdempotencyConfig{TTL: time.Minute})

	for _, key := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodPost, "/panic", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("key %q should pass, got %d", key, w.Code)
		}
	}
}

func TestIdempotencyFallsBackToBodyHash(t *testing.T) {
	r := newIdempotentRouter(IdempotencyConfig{TTL: time.Minute})

	post := func(actor, body string) int {
		req := httptest.NewRequest(http.MethodPost, "/panic", strings.NewReader(body))
		req.Header.Set("X-Actor-ID", actor)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := post("tourist-a", `{"touristId":1}`); code != http.StatusOK {
		t.Fatalf("first body should pass, got %d", code)
	}
	if code := post("tourist-a", `{"touristId":1}`); code != http.StatusConflict {
		t.Errorf("identical body from same actor should be rejected, got %d", code)
	}
	if code := post("tourist-a", `{"touristId":2}`); code != http.StatusOK {
		t.Errorf("different body should pass, got %d", code)
	}
}

func TestIdempotencyScopedPerActor(t *testing.T) {
	r := newIdempotentRouter(IdempotencyConfig{TTL: time.Minute})

	post := func(actor string) int {
		// 两个游客的SOS请求体完全相同（空体），不能互相挡掉
		req := httptest.NewRequest(http.MethodPost, "/panic", strings.NewReader(""))
		req.Header.Set("X-Actor-ID", actor)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := post("tourist-a"); code != http.StatusOK {
		t.Fatalf("tourist a should pass, got %d", code)
	}
	if code := post("tourist-b"); code != http.StatusOK {
		t.Errorf("tourist b's distinct SOS must not be suppressed, got %d", code)
	}
	if code := post("tourist-a"); code != http.StatusConflict {
		t.Errorf("tourist a's repeat should be rejected, got %d", code)
	}
}

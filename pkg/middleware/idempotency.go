package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"TourGuard/pkg/cache"

	"github.com/gin-gonic/gin"
)

type IdempotencyConfig struct {
	HeaderName string        // Idempotency-Key 的请求头名
	ActorKey   string        // 上下文中主体ID的键，幂等键按主体隔离
	TTL        time.Duration // 决定一段时间内重复请求的拒绝窗口
	Store      cache.Cache   // 可选外部存储（如 Redis），默认进程内缓存
}

// IdempotencyMiddleware 幂等保护。SOS等端点可能因网络抖动被重复提交，
// 同一主体的同一幂等键在窗口内只放行第一次。
// 键以主体ID为前缀隔离，不同游客的相同请求体互不冲突
func IdempotencyMiddleware(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "Idempotency-Key"
	}
	if cfg.ActorKey == "" {
		cfg.ActorKey = "actor_id"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	store := cfg.Store
	if store == nil {
		store = cache.NewLocalCache(cache.DefaultLocalConfig())
	}
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(cfg.HeaderName))
		if key == "" {
			// 兜底以请求体生成哈希作为幂等键
			b, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(strings.NewReader(string(b)))
			h := sha256.Sum256(b)
			key = hex.EncodeToString(h[:])
		}
		actor := c.GetString(cfg.ActorKey)
		if actor == "" {
			actor = strings.TrimSpace(c.GetHeader("X-Actor-ID"))
		}
		if !store.Add(c.Request.Context(), "idem:"+actor+":"+key, 1, cfg.TTL) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "duplicate request"})
			return
		}
		c.Next()
	}
}

package cache

import (
	"fmt"
	"strings"
)

// NewCache 按配置创建缓存实例。local不会失败，
// redis连接不可达时返回错误，由调用方决定是否降级
func NewCache(config Config) (Cache, error) {
	switch strings.ToLower(config.Type) {
	case "", "local":
		return NewLocalCache(config.Local), nil
	case "redis":
		return NewRedisCache(config.Redis)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}

package cache

import (
	"fmt"
	"log"

	"github.com/aurelle/picflow/config"
)

// NewProvider 根据配置创建缓存提供者
// Redis 不可用时回退到进程内缓存，缓存失效不应阻止服务启动
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.CacheType {
	case "redis":
		provider, err := NewRedisCache(cfg.CacheRedisAddr, cfg.CacheRedisPassword, cfg.CacheRedisDB)
		if err != nil {
			log.Printf("Failed to connect to redis at %s, falling back to memory cache: %v", cfg.CacheRedisAddr, err)
			return NewMemoryCache(cfg.CacheMaxImageSizeKB * 1024 * 128)
		}
		log.Println("Successfully initialized 'redis' cache provider")
		return provider, nil

	case "memory", "":
		provider, err := NewMemoryCache(cfg.CacheMaxImageSizeKB * 1024 * 128)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize memory cache: %w", err)
		}
		log.Println("Successfully initialized 'memory' cache provider")
		return provider, nil

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.CacheType)
	}
}

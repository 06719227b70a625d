package cache

import (
	"strings"
	"sync"
	"time"
)

// LocalCache 本地内存缓存
//
// 用于缓存财务代理的上游响应，减少对 Supabase REST 的重复请求。
// 特点：
// - 使用 sync.Map 实现无锁读取
// - 支持 TTL 过期
// - 自动清理过期条目
// - 容量限制（超出时整体清空，代理缓存可以容忍冷启动）
type LocalCache struct {
	data    sync.Map
	mu      sync.Mutex
	size    int
	maxSize int
	ttl     time.Duration
	stop    chan struct{}
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存
//
// 参数:
//   - maxSize: 最大缓存条目数
//   - ttl: 默认过期时间
func NewLocalCache(maxSize int, ttl time.Duration) *LocalCache {
	c := &LocalCache{
		maxSize: maxSize,
		ttl:     ttl,
		stop:    make(chan struct{}),
	}

	go c.cleanupLoop()
	return c
}

// Get 获取缓存值
func (c *LocalCache) Get(key string) ([]byte, bool) {
	val, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}

	entry := val.(cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.remove(key)
		return nil, false
	}
	return entry.value, true
}

// Set 写入缓存值
//
// 覆盖已有键不计入容量，只有新键才可能触发清空。
func (c *LocalCache) Set(key string, value []byte) {
	_, exists := c.data.Load(key)

	c.mu.Lock()
	if !exists {
		if c.size >= c.maxSize {
			c.data.Range(func(k, _ any) bool {
				c.data.Delete(k)
				return true
			})
			c.size = 0
		}
		c.size++
	}
	c.mu.Unlock()

	c.data.Store(key, cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete 删除缓存条目
func (c *LocalCache) Delete(key string) {
	c.remove(key)
}

// DeletePrefix 删除所有以 prefix 开头的缓存条目
func (c *LocalCache) DeletePrefix(prefix string) {
	c.data.Range(func(k, _ any) bool {
		if key, ok := k.(string); ok && strings.HasPrefix(key, prefix) {
			c.remove(key)
		}
		return true
	})
}

// remove 删除条目并同步容量计数
func (c *LocalCache) remove(key string) {
	if _, ok := c.data.LoadAndDelete(key); ok {
		c.mu.Lock()
		if c.size > 0 {
			c.size--
		}
		c.mu.Unlock()
	}
}

// Close 停止后台清理
func (c *LocalCache) Close() {
	close(c.stop)
}

// cleanupLoop 定期清理过期条目
func (c *LocalCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.data.Range(func(k, v any) bool {
				if now.After(v.(cacheEntry).expiresAt) {
					if key, ok := k.(string); ok {
						c.remove(key)
					}
				}
				return true
			})
		}
	}
}

// Package cache 缓存层抽象接口
//
// 仪表盘和统计接口的计数查询命中频繁且容忍短暂陈旧，
// 通过短 TTL 缓存削减对 MongoDB 的 CountDocuments 压力。
// 生产环境由 Redis 实现，无 Redis 时退化为进程内缓存。
package cache

import (
	"context"
	"time"
)

// StatsCache 统计缓存接口
//
// 值为序列化后的统计负载，key 由调用方按范围构造（如 "stats:all"、
// "stats:usr-xxx"）。不做主动失效，靠 TTL 过期；TTL 内的计数允许陈旧。
type StatsCache interface {
	// Get 返回缓存值；未命中或已过期返回 (nil, false, nil)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

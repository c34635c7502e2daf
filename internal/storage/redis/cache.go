package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tempbox/backend/internal/domain"
)

// Cache Redis 缓存实现。
// 用于邮箱查询缓存和按来源 IP 的申请限流计数，
// 不是数据的权威来源，未命中时一律回源存储层。
type Cache struct {
	client *redis.Client
	ctx    context.Context
}

// NewCache 创建 Redis 缓存实例
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx := context.Background()

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{
		client: client,
		ctx:    ctx,
	}, nil
}

// ========== 邮箱缓存 ==========

// CacheMailbox 按地址缓存邮箱信息
func (c *Cache) CacheMailbox(mailbox *domain.Mailbox, ttl time.Duration) error {
	key := fmt.Sprintf("mailbox:%s", mailbox.Address)
	data, err := json.Marshal(mailbox)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedMailbox 获取缓存的邮箱信息
func (c *Cache) GetCachedMailbox(address string) (*domain.Mailbox, error) {
	key := fmt.Sprintf("mailbox:%s", address)
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrMailboxNotFound
		}
		return nil, err
	}

	var mailbox domain.Mailbox
	if err := json.Unmarshal([]byte(data), &mailbox); err != nil {
		return nil, err
	}

	return &mailbox, nil
}

// DeleteCachedMailbox 删除缓存的邮箱信息
func (c *Cache) DeleteCachedMailbox(address string) error {
	key := fmt.Sprintf("mailbox:%s", address)
	return c.client.Del(c.ctx, key).Err()
}

// ========== 限流 ==========

// IncrementProvisionCount 增加某个来源 IP 的邮箱申请计数。
// 新键在 window 后过期，实现固定窗口限流。
func (c *Cache) IncrementProvisionCount(ip string, window time.Duration) (int64, error) {
	key := fmt.Sprintf("ratelimit:provision:%s", ip)
	pipe := c.client.Pipeline()

	incr := pipe.Incr(c.ctx, key)
	pipe.Expire(c.ctx, key, window)

	_, err := pipe.Exec(c.ctx)
	if err != nil {
		return 0, err
	}

	return incr.Val(), nil
}

// GetProvisionCount 获取某个来源 IP 当前窗口内的申请计数
func (c *Cache) GetProvisionCount(ip string) (int64, error) {
	key := fmt.Sprintf("ratelimit:provision:%s", ip)
	count, err := c.client.Get(c.ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// ========== 工具方法 ==========

// Ping 检查 Redis 连接
func (c *Cache) Ping() error {
	return c.client.Ping(c.ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	return c.client.Close()
}

package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

/* ========================================================================
 * 分布式锁 - 基于 Redis 的简化实现
 * ========================================================================
 * 职责: 防止多个 warmer 实例并发预热同一个租户缓存 key
 * ======================================================================== */

var (
	ErrLockFailed   = errors.New("failed to acquire lock")
	ErrUnlockFailed = errors.New("failed to release lock")
)

// Lock 分布式锁
type Lock struct {
	client *Client
	key    string
	value  string // 唯一标识，防止误删
	ttl    time.Duration
	opt    LockOption
	mu     sync.Mutex
}

// LockOption 锁选项
type LockOption struct {
	TTL        time.Duration // 锁过期时间
	RetryTimes int           // 重试次数
	RetryDelay time.Duration // 重试间隔
}

// DefaultLockOption 默认锁选项
func DefaultLockOption() LockOption {
	return LockOption{
		TTL:        30 * time.Second,
		RetryTimes: 5,
		RetryDelay: 100 * time.Millisecond,
	}
}

// NewLock 创建分布式锁
func (c *Client) NewLock(key string, opts ...LockOption) *Lock {
	opt := DefaultLockOption()
	if len(opts) > 0 {
		opt = opts[0]
	}

	return &Lock{
		client: c,
		key:    "lock:" + key,
		value:  uuid.New().String(),
		ttl:    opt.TTL,
		opt:    opt,
	}
}

// Acquire 获取锁，按配置的次数重试
func (l *Lock) Acquire(ctx context.Context) error {
	value := uuid.New().String()
	for i := 0; i < l.opt.RetryTimes; i++ {
		ok, err := l.client.SetNX(ctx, l.key, value, l.ttl)
		if err != nil {
			return err
		}
		if ok {
			l.mu.Lock()
			l.value = value
			l.mu.Unlock()
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.opt.RetryDelay):
		}
	}

	return ErrLockFailed
}

// Release 释放锁
// 使用 Lua 脚本保证原子性：只有持有锁的人才能释放
func (l *Lock) Release(ctx context.Context) error {
	l.mu.Lock()
	value := l.value
	l.mu.Unlock()

	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`

	result, err := l.client.rdb.Eval(ctx, script, []string{l.key}, value).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrUnlockFailed
	}
	return nil
}

// Extend 延长锁时间
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	l.mu.Lock()
	value := l.value
	l.mu.Unlock()

	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`

	result, err := l.client.rdb.Eval(ctx, script, []string{l.key}, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockFailed
	}
	return nil
}

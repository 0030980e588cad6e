package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/growtharena/edge/cache/redis"
	"github.com/growtharena/edge/logger"
	"github.com/growtharena/edge/metrics"
	"github.com/growtharena/edge/mq"
	"github.com/growtharena/edge/tenancy"

	"go.uber.org/zap"
)

/* ========================================================================
 * Cache Warmer - 缓存预热器
 * ========================================================================
 * 职责: 消费租户配置变更事件，把快照写入边缘缓存并回收失效键
 * 技术: Kafka 消费者组 + Redis 分布式锁（同键并发预热只执行一次）
 * 说明: 预热失败返回 RetryLater，依赖消费侧的退避重试
 * ======================================================================== */

// warmTTL 缓存条目的有效期；到期后下一次请求走权威 API 并等待重新预热
const warmTTL = 24 * time.Hour

// Warmer 根据变更事件维护边缘缓存
type Warmer struct {
	store *Store
	cache *redis.Client
	log   *logger.Logger
}

// NewWarmer 创建缓存预热器
func NewWarmer(store *Store, cache *redis.Client, log *logger.Logger) *Warmer {
	return &Warmer{store: store, cache: cache, log: log}
}

// Handle 实现 mq.MessageHandler
func (w *Warmer) Handle(ctx context.Context, msgs []*mq.ConsumedMessage) (mq.ConsumeResult, error) {
	for _, msg := range msgs {
		var evt Event
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			// 无法解析的事件重试也不会成功，记录后跳过
			w.log.Error("Malformed tenant config event",
				zap.String("msg_id", msg.MsgID),
				zap.Error(err),
			)
			continue
		}
		if err := w.apply(ctx, &evt); err != nil {
			w.log.Warn("Tenant config event apply failed",
				zap.String("event_id", evt.EventID),
				zap.String("org_id", evt.OrgID),
				zap.String("op", evt.Op),
				zap.Error(err),
			)
			return mq.ConsumeRetryLater, err
		}
	}
	return mq.ConsumeSuccess, nil
}

func (w *Warmer) apply(ctx context.Context, evt *Event) error {
	switch evt.Op {
	case OpUpsert:
		return w.warm(ctx, evt)
	case OpDelete:
		return w.evict(ctx, evt.cacheKeys())
	default:
		w.log.Warn("Unknown tenant config event op",
			zap.String("event_id", evt.EventID),
			zap.String("op", evt.Op),
		)
		return nil
	}
}

// warm 重新读取权威记录并写入缓存
// 以组织 ID 加锁：同一组织的并发预热串行执行，且总是写入最新快照
func (w *Warmer) warm(ctx context.Context, evt *Event) error {
	lock := w.cache.NewLock("warm:" + evt.OrgID)
	if err := lock.Acquire(ctx); err != nil {
		metrics.CacheWarmTotal.WithLabelValues("warm", "error").Inc()
		return err
	}
	defer lock.Release(ctx)

	org, err := w.store.GetByID(ctx, evt.OrgID)
	if errors.Is(err, ErrNotFound) {
		// 事件落后于删除，按删除处理
		return w.evict(ctx, evt.cacheKeys())
	}
	if err != nil {
		metrics.CacheWarmTotal.WithLabelValues("warm", "error").Inc()
		return err
	}

	payload, err := json.Marshal(org.TenantConfig())
	if err != nil {
		metrics.CacheWarmTotal.WithLabelValues("warm", "error").Inc()
		return err
	}

	keys := []string{tenancy.SubdomainCacheKey(org.Subdomain)}
	if domain := org.VerifiedCustomDomain(); domain != "" {
		keys = append(keys, tenancy.CustomDomainCacheKey(domain))
	}
	for _, key := range keys {
		if err := w.cache.Set(ctx, key, payload, warmTTL); err != nil {
			metrics.CacheWarmTotal.WithLabelValues("warm", "error").Inc()
			return err
		}
	}

	// 子域名或自定义域名变更后，旧键立即失效
	if stale := evt.staleKeys(); len(stale) > 0 {
		if err := w.evict(ctx, stale); err != nil {
			return err
		}
	}

	metrics.CacheWarmTotal.WithLabelValues("warm", "ok").Inc()
	w.log.Info("Tenant cache warmed",
		zap.String("org_id", evt.OrgID),
		zap.Strings("keys", keys),
	)
	return nil
}

func (w *Warmer) evict(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := w.cache.Del(ctx, keys...); err != nil {
		metrics.CacheWarmTotal.WithLabelValues("evict", "error").Inc()
		return err
	}
	metrics.CacheWarmTotal.WithLabelValues("evict", "ok").Inc()
	return nil
}

// cacheKeys 事件当前指向的缓存键
func (e *Event) cacheKeys() []string {
	var keys []string
	if e.Subdomain != "" {
		keys = append(keys, tenancy.SubdomainCacheKey(e.Subdomain))
	}
	if e.CustomDomain != "" {
		keys = append(keys, tenancy.CustomDomainCacheKey(e.CustomDomain))
	}
	return append(keys, e.staleKeys()...)
}

// staleKeys 变更前的缓存键，仅在键发生迁移时非空
func (e *Event) staleKeys() []string {
	var keys []string
	if e.PrevSubdomain != "" {
		keys = append(keys, tenancy.SubdomainCacheKey(e.PrevSubdomain))
	}
	if e.PrevCustomDomain != "" {
		keys = append(keys, tenancy.CustomDomainCacheKey(e.PrevCustomDomain))
	}
	return keys
}

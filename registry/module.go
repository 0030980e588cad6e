package registry

import (
	"context"

	"github.com/growtharena/edge/mq"

	"go.uber.org/fx"
)

/* ========================================================================
 * Registry Module
 * ========================================================================
 * 职责: 提供注册表依赖注入模块，并在启动时完成建表与事件订阅
 * ======================================================================== */

// Module 注册表模块
// 提供: *Store, *Publisher, *Warmer, *Handler
var Module = fx.Module("registry",
	fx.Provide(
		NewStore,
		NewPublisher,
		NewWarmer,
		NewHandler,
	),
	fx.Invoke(migrate),
	fx.Invoke(subscribeWarmer),
)

func migrate(lc fx.Lifecycle, store *Store) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return store.AutoMigrate()
		},
	})
}

// subscribeWarmer 在消费者 Start 之前完成订阅
func subscribeWarmer(consumer mq.Consumer, warmer *Warmer) error {
	return consumer.Subscribe(TopicTenantConfigChanged, warmer.Handle)
}

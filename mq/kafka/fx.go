package kafka

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/growtharena/edge/mq"
)

/* ========================================================================
 * Fx 模块 - Kafka 依赖注入
 * ========================================================================
 * 职责: 提供 Fx 依赖注入支持
 * ======================================================================== */

// ProducerModule 仅提供 Producer 的模块
var ProducerModule = fx.Module("kafka-producer",
	fx.Provide(ProvideProducer),
)

// ConsumerModule 仅提供 Consumer 的模块（随生命周期自动启动）
var ConsumerModule = fx.Module("kafka-consumer",
	fx.Provide(ProvideConsumer),
)

// ProducerParams Producer 依赖参数
type ProducerParams struct {
	fx.In

	Config *mq.Config
	Logger *zap.Logger
}

// ProvideProducer 提供 Producer（用于 Fx）
func ProvideProducer(lc fx.Lifecycle, params ProducerParams) (mq.Producer, error) {
	producer, err := NewProducer(params.Config, params.Logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return producer.Close()
		},
	})

	return producer, nil
}

// ConsumerParams Consumer 依赖参数
type ConsumerParams struct {
	fx.In

	Config *mq.Config
	Logger *zap.Logger
}

// ProvideConsumer 提供 Consumer（用于 Fx）
// 注意: 订阅必须在 OnStart 之前完成（fx.Invoke 顺序保证）
func ProvideConsumer(lc fx.Lifecycle, params ConsumerParams) (mq.Consumer, error) {
	consumer, err := NewConsumer(params.Config, params.Logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return consumer.Start()
		},
		OnStop: func(ctx context.Context) error {
			return consumer.Close()
		},
	})

	return consumer, nil
}

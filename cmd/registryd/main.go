package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/growtharena/edge/cache"
	rediscache "github.com/growtharena/edge/cache/redis"
	"github.com/growtharena/edge/conf"
	"github.com/growtharena/edge/database/postgres"
	"github.com/growtharena/edge/logger"
	"github.com/growtharena/edge/metrics"
	"github.com/growtharena/edge/middleware"
	"github.com/growtharena/edge/mq"
	"github.com/growtharena/edge/mq/kafka"
	"github.com/growtharena/edge/registry"
	"github.com/growtharena/edge/shutdown"
	transporthttp "github.com/growtharena/edge/transport/http"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

/* ========================================================================
 * registryd - 租户注册表服务
 * ========================================================================
 * 职责: 组织配置的权威存储，内部解析 API，变更事件发布与缓存预热
 * 组装: fx 依赖注入，配置文件 + GA_ 前缀环境变量
 * ======================================================================== */

// AppConfig registryd 的全量配置
type AppConfig struct {
	Logger   logger.Config                 `yaml:"logger" mapstructure:"logger"`
	Server   transporthttp.Config          `yaml:"server" mapstructure:"server"`
	Redis    rediscache.Config             `yaml:"redis" mapstructure:"redis"`
	Postgres postgres.Config               `yaml:"postgres" mapstructure:"postgres"`
	Kafka    mq.Config                     `yaml:"kafka" mapstructure:"kafka"`
	Internal middleware.InternalAuthConfig `yaml:"internal" mapstructure:"internal"`
}

func loadConfig(path, name string) (*AppConfig, error) {
	cfg := &AppConfig{
		Kafka: *mq.DefaultConfig(),
	}
	if err := conf.NewLoader(path, name, "yaml").Load(cfg); err != nil {
		return nil, err
	}
	if err := logger.ValidateConfig(cfg.Logger); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config-path", "./configs", "config file directory")
	configName := flag.String("config-name", "registryd", "config file name without extension")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *configName)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var mgr *shutdown.Manager
	app := fx.New(
		fx.Supply(cfg),
		fx.Provide(
			func(c *AppConfig) logger.Config { return c.Logger },
			func(c *AppConfig) transporthttp.Config { return c.Server },
			func(c *AppConfig) rediscache.Config { return c.Redis },
			func(c *AppConfig) postgres.Config { return c.Postgres },
			func(c *AppConfig) *mq.Config { return &c.Kafka },
			func(c *AppConfig, log *logger.Logger) *middleware.InternalAuth {
				return middleware.NewInternalAuth(&c.Internal, log)
			},
			logger.NewLogger,
			middleware.NewErrorHandler,
			func(l *logger.Logger) *zap.Logger { return l.Logger },
			transporthttp.NewHTTPServer,
		),
		cache.Module,
		postgres.Module,
		kafka.ProducerModule,
		kafka.ConsumerModule,
		registry.Module,
		shutdown.Module,
		fx.Invoke(registerRoutes),
		fx.Populate(&mgr),
		fx.WithLogger(func(log *logger.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Logger}
		}),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		log.Fatalf("start: %v", err)
	}

	mgr.RegisterHook("fx-app", func(ctx context.Context) error {
		return app.Stop(ctx)
	})
	mgr.Wait()
}

func registerRoutes(
	app *fiber.App,
	handler *registry.Handler,
	auth *middleware.InternalAuth,
	cache *rediscache.Client,
) error {
	app.Use(metrics.HTTPMetricsMiddleware(nil))

	// 内部解析接口：内部密钥 + 全局限流
	if err := middleware.InitRateLimiter(cache.Raw()); err != nil {
		return err
	}
	internal := app.Group("/api/internal")
	internal.Use(auth.Authenticate())
	internal.Use(middleware.RateLimitMiddleware())
	handler.RegisterInternal(internal)

	handler.RegisterAdmin(app.Group("/api/admin"))
	return nil
}

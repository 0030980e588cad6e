package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/growtharena/edge/authz"
	"github.com/growtharena/edge/cache"
	"github.com/growtharena/edge/cache/redis"
	"github.com/growtharena/edge/conf"
	"github.com/growtharena/edge/logger"
	"github.com/growtharena/edge/metrics"
	"github.com/growtharena/edge/middleware"
	"github.com/growtharena/edge/proxy"
	"github.com/growtharena/edge/session"
	"github.com/growtharena/edge/shutdown"
	"github.com/growtharena/edge/tenancy"
	transporthttp "github.com/growtharena/edge/transport/http"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

/* ========================================================================
 * edged - 边缘网关
 * ========================================================================
 * 职责: 多租户边缘中间件，主机分类 / 租户解析 / 授权级联 / 上游转发
 * 组装: fx 依赖注入，配置文件 + GA_ 前缀环境变量
 * ======================================================================== */

// AppConfig edged 的全量配置
type AppConfig struct {
	Logger   logger.Config           `yaml:"logger" mapstructure:"logger"`
	Server   transporthttp.Config    `yaml:"server" mapstructure:"server"`
	Redis    redis.Config            `yaml:"redis" mapstructure:"redis"`
	Host     tenancy.HostConfig      `yaml:"host" mapstructure:"host"`
	Resolver tenancy.ResolverConfig  `yaml:"resolver" mapstructure:"resolver"`
	Session  session.VerifierConfig  `yaml:"session" mapstructure:"session"`
	Tenant   middleware.TenantConfig `yaml:"tenant" mapstructure:"tenant"`
	Upstream proxy.Config            `yaml:"upstream" mapstructure:"upstream"`
}

func loadConfig(path, name string) (*AppConfig, error) {
	cfg := &AppConfig{
		Host: tenancy.DefaultHostConfig(),
	}
	if err := conf.NewLoader(path, name, "yaml").Load(cfg); err != nil {
		return nil, err
	}
	if err := logger.ValidateConfig(cfg.Logger); err != nil {
		return nil, err
	}
	// 租户覆写依赖分类器侧的开关，跟随环境统一打开
	cfg.Host.Development = cfg.Tenant.Environment == "development"
	return cfg, nil
}

func main() {
	configPath := flag.String("config-path", "./configs", "config file directory")
	configName := flag.String("config-name", "edged", "config file name without extension")
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
			func(c *AppConfig) redis.Config { return c.Redis },
			func(c *AppConfig) *middleware.TenantConfig { return &c.Tenant },
			func(c *AppConfig) proxy.Config { return c.Upstream },
			logger.NewLogger,
			func(c *AppConfig) *tenancy.Classifier { return tenancy.NewClassifier(c.Host) },
			func(c *AppConfig, cache redis.Clienter, log *logger.Logger) *tenancy.Resolver {
				return tenancy.NewResolver(c.Resolver, cache, log)
			},
			func(c *AppConfig) *session.Verifier { return session.NewVerifier(c.Session) },
			middleware.NewErrorHandler,
			func(log *logger.Logger) *authz.Cascade {
				return authz.NewCascade(authz.DefaultSteps(), log)
			},
			middleware.NewTenant,
			proxy.New,
			transporthttp.NewHTTPServer,
		),
		cache.Module,
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

func registerRoutes(app *fiber.App, tenant *middleware.Tenant, upstream *proxy.Proxy, log *logger.Logger) {
	app.Use(metrics.HTTPMetricsMiddleware(nil))
	app.Use(middleware.CORSPreflight())
	app.Use(tenant.Handle())
	app.All("/*", upstream.Handler())
	log.Info("Edge routes registered", zap.String("upstream", "catch-all"))
}

package middleware

import (
	"crypto/subtle"

	"github.com/growtharena/edge/logger"
	"github.com/growtharena/edge/response"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

/* ========================================================================
 * Internal Service Authentication Middleware
 * ========================================================================
 * 职责: 验证服务间内部请求
 * 方式: X-GA-Internal Header 携带共享密钥
 * ======================================================================== */

// HeaderInternal 内部服务认证 Header
const HeaderInternal = "X-GA-Internal"

// InternalAuthConfig 内部认证配置
type InternalAuthConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Key     string `yaml:"key" mapstructure:"key"`
}

// InternalAuth 内部服务认证中间件
type InternalAuth struct {
	config *InternalAuthConfig
	log    *logger.Logger
}

// NewInternalAuth 创建内部认证中间件
func NewInternalAuth(cfg *InternalAuthConfig, log *logger.Logger) *InternalAuth {
	return &InternalAuth{
		config: cfg,
		log:    log,
	}
}

// Authenticate 返回 Fiber 中间件
func (a *InternalAuth) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		// 如果未启用认证，直接放行
		if !a.config.Enabled {
			return c.Next()
		}

		key := c.Get(HeaderInternal)
		if key == "" {
			a.log.Warn("Missing internal key",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return response.Unauthorized(c, "missing internal key")
		}

		// constant-time 比较防止时序攻击
		if subtle.ConstantTimeCompare([]byte(key), []byte(a.config.Key)) != 1 {
			a.log.Warn("Invalid internal key",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return response.Unauthorized(c, "invalid internal key")
		}

		return c.Next()
	}
}

package proxy

import (
	"fmt"
	"time"

	"github.com/growtharena/edge/logger"
	"github.com/growtharena/edge/response"

	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

/* ========================================================================
 * Upstream Proxy - 上游转发
 * ========================================================================
 * 职责: 把通过中间件链的请求原样转发到应用源站
 * 技术: fasthttp HostClient, 复用连接池, 透传请求头与响应头
 * 说明: 租户上下文已由中间件写入请求头，源站按头部渲染
 * ======================================================================== */

// Config 上游源站配置
type Config struct {
	// Addr 源站地址, 例如 "app-origin:3000"
	Addr string `yaml:"addr" mapstructure:"addr"`
	// TLS 源站是否为 HTTPS
	TLS bool `yaml:"tls" mapstructure:"tls"`

	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxConns     int           `yaml:"max_conns" mapstructure:"max_conns"`
}

// Proxy 把请求转发到单一上游源站
type Proxy struct {
	client *fasthttp.HostClient
	log    *logger.Logger
}

// New 创建上游转发器
func New(cfg Config, log *logger.Logger) (*Proxy, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("proxy: upstream addr is required")
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 512
	}

	return &Proxy{
		client: &fasthttp.HostClient{
			Addr:         cfg.Addr,
			IsTLS:        cfg.TLS,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			MaxConns:     maxConns,
		},
		log: log,
	}, nil
}

// Handler 捕获所有路由的转发处理器
func (p *Proxy) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		req := &c.RequestCtx().Request
		resp := &c.RequestCtx().Response

		// HostClient 始终拨号到 Addr，请求保留原始 Host 头，
		// 源站按租户主机名渲染
		originalHost := c.Hostname()

		if err := p.client.Do(req, resp); err != nil {
			p.log.Error("Upstream request failed",
				zap.String("host", originalHost),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			resp.Reset()
			return response.ServiceUnavailable(c, "upstream unavailable", "upstream_unavailable")
		}
		return nil
	}
}

package middleware

import (
	"time"

	"github.com/growtharena/edge/authz"
	"github.com/growtharena/edge/logger"
	"github.com/growtharena/edge/response"
	"github.com/growtharena/edge/routes"
	"github.com/growtharena/edge/session"
	"github.com/growtharena/edge/tenancy"
	"github.com/growtharena/edge/tenantcookie"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

/* ========================================================================
 * Tenant Edge Middleware
 * ========================================================================
 * 职责: 边缘网关核心中间件
 * 流程: 主机分类 → 遗留重定向 → 租户解析 → 上下文传播 → 授权级联
 * ======================================================================== */

// Propagation headers consumed by the upstream application.
const (
	HeaderOrgID        = "X-GA-Org-Id"
	HeaderSubdomain    = "X-GA-Subdomain"
	HeaderCustomDomain = "X-GA-Custom-Domain"
	HeaderHostname     = "X-GA-Hostname"
	HeaderLayout       = "X-GA-Layout"

	// HeaderDevTenant overrides classification in development only.
	HeaderDevTenant = "X-GA-Dev-Tenant"

	devTenantQuery = "__tenant"

	tenantNotFoundPath = "/tenant-not-found"
)

// TenantConfig 边缘中间件配置
type TenantConfig struct {
	// Environment selects dev-only behavior ("development" enables the
	// tenant override escape hatch).
	Environment string `yaml:"environment" mapstructure:"environment"`

	// CookieSecret signs the tenant context cookie.
	CookieSecret string `yaml:"cookie_secret" mapstructure:"cookie_secret"`

	// SecureCookies marks cookies Secure; off for local http.
	SecureCookies bool `yaml:"secure_cookies" mapstructure:"secure_cookies"`
}

// Tenant 租户边缘中间件
type Tenant struct {
	cfg        *TenantConfig
	classifier *tenancy.Classifier
	resolver   *tenancy.Resolver
	verifier   *session.Verifier
	codec      *tenantcookie.Codec
	cascade    *authz.Cascade
	log        *logger.Logger
}

// NewTenant 创建租户中间件
func NewTenant(
	cfg *TenantConfig,
	classifier *tenancy.Classifier,
	resolver *tenancy.Resolver,
	verifier *session.Verifier,
	cascade *authz.Cascade,
	log *logger.Logger,
) *Tenant {
	return &Tenant{
		cfg:        cfg,
		classifier: classifier,
		resolver:   resolver,
		verifier:   verifier,
		codec:      tenantcookie.NewCodec(cfg.CookieSecret),
		cascade:    cascade,
		log:        log,
	}
}

// CORSPreflight answers OPTIONS immediately, before any tenant logic.
func CORSPreflight() fiber.Handler {
	return func(c fiber.Ctx) error {
		if c.Method() != fiber.MethodOptions {
			return c.Next()
		}
		c.Set("Access-Control-Allow-Origin", "*")
		c.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Set("Access-Control-Max-Age", "86400")
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// Handle 返回 Fiber 中间件
func (t *Tenant) Handle() fiber.Handler {
	return func(c fiber.Ctx) error {
		path := c.Path()

		// 静态资源直接放行
		if routes.IsStaticAsset(path) {
			return c.Next()
		}

		host := tenancy.NormalizeHost(c.Hostname())
		rawQuery := string(c.RequestCtx().URI().QueryString())

		// 遗留域名 → 规范域名 (301)
		if r := t.classifier.LegacyDomainRedirect(host, path, rawQuery); r != nil {
			return c.Redirect().Status(r.Status).To(r.Location)
		}

		cls := t.classify(c, host)

		// 租户解析 (平台域不解析)
		var tenant *tenancy.TenantConfig
		if cls.IsTenant() {
			tenant = t.resolver.Resolve(c.Context(), cls, host)
			if tenant == nil {
				return t.unknownTenant(c, host, path)
			}
		}

		// 遗留路径 → /start (302)
		if r := tenancy.LegacyPathRedirect(path, rawQuery, orgID(tenant)); r != nil {
			return c.Redirect().Status(r.Status).To(r.Location)
		}

		// 子域 → 已验证自定义域 (301)
		if r := tenancy.CustomDomainRedirect(tenant, cls, path, rawQuery, routes.AuthSensitive.Matches); r != nil {
			return c.Redirect().Status(r.Status).To(r.Location)
		}

		claims := t.sessionClaims(c)

		rc := &authz.RequestContext{
			Host:            host,
			Path:            path,
			RawQuery:        rawQuery,
			IsAPI:           routes.IsAPIPath(path),
			Class:           cls,
			Tenant:          tenant,
			Claims:          claims,
			MarketingDomain: t.classifier.IsMarketingDomain(host),
			AppDomain:       t.classifier.IsAppDomain(host),
			AdminDomain:     t.classifier.IsAdminDomain(host),
			AppDomainHost:   t.classifier.AppDomain(),
			Now:             time.Now(),
		}

		decision := t.cascade.Evaluate(rc)
		if !decision.Allow {
			return t.deny(c, decision)
		}

		t.propagate(c, host, cls, tenant)
		t.writeCookies(c, tenant, claims)

		if decision.RewritePath != "" {
			c.Path(decision.RewritePath)
		}
		return c.Next()
	}
}

// classify applies the development-only tenant override before the real
// classification. Inert outside development.
func (t *Tenant) classify(c fiber.Ctx, host string) tenancy.Classification {
	if t.cfg.Environment == "development" {
		override := c.Query(devTenantQuery)
		if override == "" {
			override = c.Get(HeaderDevTenant)
		}
		if override != "" {
			return t.classifier.ClassifyWithOverride(host, override)
		}
	}
	return t.classifier.Classify(host)
}

// unknownTenant renders the resolution miss. UI traffic goes to the
// platform domain's not-found page, never to a page on the unresolved
// host itself, so a miss can cause at most one redirect.
func (t *Tenant) unknownTenant(c fiber.Ctx, host, path string) error {
	t.log.Warn("unknown tenant",
		zap.String("host", host),
		zap.String("path", path),
	)
	if routes.IsAPIPath(path) {
		return response.NotFound(c, "unknown tenant", "unknown_tenant")
	}
	target := "https://" + t.classifier.BaseDomain() + tenantNotFoundPath
	return c.Redirect().Status(fiber.StatusFound).To(target)
}

func (t *Tenant) sessionClaims(c fiber.Ctx) *session.Claims {
	token := session.TokenFromRequest(c.Cookies(session.SessionCookieName), c.Get(fiber.HeaderAuthorization))
	if token == "" {
		return nil
	}
	claims, err := t.verifier.Verify(token)
	if err != nil {
		// Invalid or expired sessions degrade to anonymous.
		t.log.Debug("session rejected", zap.Error(err))
		return nil
	}
	return claims
}

func (t *Tenant) deny(c fiber.Ctx, d authz.Decision) error {
	if d.RedirectURL != "" {
		return c.Redirect().Status(d.RedirectStatus).To(d.RedirectURL)
	}
	return response.ErrorWith(c, d.Status, d.Message, d.Code)
}

// propagate sets the downstream consumption headers.
func (t *Tenant) propagate(c fiber.Ctx, host string, cls tenancy.Classification, tenant *tenancy.TenantConfig) {
	c.Set(HeaderHostname, host)
	c.Set(HeaderLayout, routes.LayoutMode(c.Path()))

	if tenant == nil {
		return
	}
	c.Set(HeaderOrgID, tenant.OrganizationID)
	if tenant.Subdomain != "" {
		c.Set(HeaderSubdomain, tenant.Subdomain)
	}
	if cls.Class == tenancy.HostCustomDomain {
		c.Set(HeaderCustomDomain, "true")
	}
}

// writeCookies maintains the signed tenant context snapshot plus the
// known-user hint.
func (t *Tenant) writeCookies(c fiber.Ctx, tenant *tenancy.TenantConfig, claims *session.Claims) {
	if tenant == nil {
		// Platform mode: force-expire the tenant snapshot so a cross-org
		// navigation through the platform domain cannot leak the previous
		// tenant's context. Unconditional; the expiry is idempotent.
		t.expireTenantCookie(c)
	} else {
		// The snapshot is rewritten on every tenant request, bounding how
		// long stale branding or feature flags can live in the cookie.
		if value, err := t.codec.Encode(tenantcookie.FromTenant(tenant)); err == nil {
			c.Cookie(&fiber.Cookie{
				Name:     tenantcookie.Name,
				Value:    value,
				Path:     "/",
				MaxAge:   int(tenantcookie.MaxAge / time.Second),
				HTTPOnly: true,
				Secure:   t.cfg.SecureCookies,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		} else {
			t.log.Error("tenant cookie encode failed", zap.Error(err))
		}
	}

	if claims != nil {
		c.Cookie(&fiber.Cookie{
			Name:     tenantcookie.KnownUserName,
			Value:    "1",
			Path:     "/",
			MaxAge:   int(tenantcookie.MaxAge / time.Second),
			Secure:   t.cfg.SecureCookies,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
}

func (t *Tenant) expireTenantCookie(c fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     tenantcookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   t.cfg.SecureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func orgID(cfg *tenancy.TenantConfig) string {
	if cfg == nil {
		return ""
	}
	return cfg.OrganizationID
}

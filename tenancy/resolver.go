package tenancy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/growtharena/edge/logger"
	"github.com/growtharena/edge/metrics"
	"github.com/growtharena/edge/validator"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

/* ========================================================================
 * Tenant Resolver
 * ========================================================================
 * Two-tier lookup: edge cache (redis) first, authoritative registry API
 * on miss. The fallback is mandatory, not an optimization: a new tenant
 * must resolve correctly before the cache is populated, since the cache
 * is warmed asynchronously out-of-band. The resolver never writes the
 * cache.
 * ======================================================================== */

const (
	cacheKeySubdomainPrefix = "tenant:sub:"
	cacheKeyDomainPrefix    = "tenant:domain:"

	// HeaderInternal marks edge-originated calls to the registry.
	HeaderInternal = "X-GA-Internal"

	defaultResolveTimeout = 3 * time.Second
)

// SubdomainCacheKey is the cache key holding the TenantConfig snapshot
// for a subdomain. The warmer writes these keys; the resolver only reads.
func SubdomainCacheKey(subdomain string) string {
	return cacheKeySubdomainPrefix + subdomain
}

// CustomDomainCacheKey is the cache key for a verified custom domain.
func CustomDomainCacheKey(domain string) string {
	return cacheKeyDomainPrefix + domain
}

// Cache is the subset of the redis client the resolver reads from.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
}

// ResolverConfig configures the authoritative fallback path.
type ResolverConfig struct {
	// Endpoint is the registry resolution URL,
	// e.g. "http://registryd:8081/api/internal/tenant-config".
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	// InternalKey authenticates the edge against the registry.
	InternalKey string `yaml:"internal_key" mapstructure:"internal_key"`

	// Timeout bounds the fallback call. The resolver sits in the critical
	// path of every request; on expiry the tenant is treated as unknown
	// and not retried within the request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Resolver resolves subdomains and custom domains to tenant configs.
type Resolver struct {
	cache    Cache
	http     *resty.Client
	validate *validator.Validator
	log      *logger.Logger
	endpoint string
	timeout  time.Duration
}

// NewResolver creates a resolver over the given cache and fallback API.
func NewResolver(cfg ResolverConfig, cache Cache, log *logger.Logger) *Resolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader(HeaderInternal, cfg.InternalKey)
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{
		cache:    cache,
		http:     client,
		validate: validator.New(),
		log:      log,
		endpoint: cfg.Endpoint,
		timeout:  timeout,
	}
}

// ResolveSubdomain resolves a tenant by subdomain. nil means unknown.
func (r *Resolver) ResolveSubdomain(ctx context.Context, subdomain string) *TenantConfig {
	return r.resolve(ctx, cacheKeySubdomainPrefix+subdomain, "subdomain", subdomain)
}

// ResolveCustomDomain resolves a tenant by verified custom domain.
func (r *Resolver) ResolveCustomDomain(ctx context.Context, domain string) *TenantConfig {
	domain = NormalizeHost(domain)
	return r.resolve(ctx, cacheKeyDomainPrefix+domain, "domain", domain)
}

// Resolve resolves either side of a classification. Platform mode has no
// tenant and always yields nil.
func (r *Resolver) Resolve(ctx context.Context, cls Classification, host string) *TenantConfig {
	switch cls.Class {
	case HostSubdomain:
		return r.ResolveSubdomain(ctx, cls.Subdomain)
	case HostCustomDomain:
		return r.ResolveCustomDomain(ctx, host)
	default:
		return nil
	}
}

func (r *Resolver) resolve(ctx context.Context, cacheKey, queryParam, value string) *TenantConfig {
	if value == "" {
		return nil
	}

	if cfg := r.fromCache(ctx, cacheKey); cfg != nil {
		metrics.TenantResolutionTotal.WithLabelValues("cache").Inc()
		return cfg
	}

	cfg := r.fromAPI(ctx, queryParam, value)
	if cfg == nil {
		metrics.TenantResolutionTotal.WithLabelValues("miss").Inc()
		return nil
	}
	metrics.TenantResolutionTotal.WithLabelValues("api").Inc()
	return cfg
}

func (r *Resolver) fromCache(ctx context.Context, key string) *TenantConfig {
	if r.cache == nil {
		return nil
	}
	raw, err := r.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return nil
	}
	var cfg TenantConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		// A torn cache entry degrades to the fallback path, never to a
		// half-populated config.
		r.log.Warn("Malformed tenant cache entry",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil
	}
	if cfg.OrganizationID == "" {
		return nil
	}
	return &cfg
}

func (r *Resolver) fromAPI(ctx context.Context, queryParam, value string) *TenantConfig {
	if r.endpoint == "" {
		return nil
	}
	start := time.Now()
	resp, err := r.http.R().
		SetContext(ctx).
		SetQueryParam(queryParam, value).
		Get(r.endpoint)
	metrics.TenantFallbackDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		// Timeout or transport failure degrades to unknown tenant; the
		// user re-navigates once the cache has been warmed.
		r.log.Warn("Tenant fallback resolution failed",
			zap.String(queryParam, value),
			zap.Error(err),
		)
		return nil
	}
	if resp.StatusCode() == 404 {
		return nil
	}
	if resp.StatusCode() != 200 {
		r.log.Warn("Tenant fallback resolution unexpected status",
			zap.String(queryParam, value),
			zap.Int("status", resp.StatusCode()),
		)
		return nil
	}

	var cfg TenantConfig
	if err := json.Unmarshal(resp.Body(), &cfg); err != nil {
		r.log.Warn("Tenant fallback resolution malformed body",
			zap.String(queryParam, value),
			zap.Error(err),
		)
		return nil
	}
	if err := r.validate.Validate(&cfg); err != nil {
		r.log.Warn("Tenant fallback resolution invalid payload",
			zap.String(queryParam, value),
			zap.Error(fmt.Errorf("validate: %w", err)),
		)
		return nil
	}
	return &cfg
}

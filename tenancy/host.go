package tenancy

import (
	"regexp"
	"strings"
)

/* ========================================================================
 * Host Classifier
 * ========================================================================
 * Maps a request hostname to platform / subdomain / custom-domain mode.
 * Pure and total: every input resolves to exactly one classification,
 * there is no error case. The tables are built once from config and
 * never mutated afterwards.
 * ======================================================================== */

// HostClass is the tenancy mode derived from the request hostname.
type HostClass int

const (
	HostPlatform HostClass = iota
	HostSubdomain
	HostCustomDomain
)

func (h HostClass) String() string {
	switch h {
	case HostPlatform:
		return "platform"
	case HostSubdomain:
		return "subdomain"
	case HostCustomDomain:
		return "custom_domain"
	default:
		return "unknown"
	}
}

// Classification is the result of classifying one hostname.
type Classification struct {
	Class     HostClass
	Subdomain string // set only for HostSubdomain
}

// IsTenant reports whether the request is scoped to a tenant.
func (c Classification) IsTenant() bool {
	return c.Class == HostSubdomain || c.Class == HostCustomDomain
}

// HostConfig describes the platform's domain vocabulary.
type HostConfig struct {
	// BaseDomain is the canonical tenant base domain, e.g. "growtharena.com".
	BaseDomain string `yaml:"base_domain" mapstructure:"base_domain"`

	// LegacyBaseDomains are deprecated tenant base domains whose
	// subdomains still classify (and later redirect), e.g. "growtharena.io".
	LegacyBaseDomains []string `yaml:"legacy_base_domains" mapstructure:"legacy_base_domains"`

	// PlatformDomains are exact hostnames that are never tenant-scoped:
	// the marketing domain, its www, the app and admin domains, and any
	// legacy equivalents.
	PlatformDomains []string `yaml:"platform_domains" mapstructure:"platform_domains"`

	// DevHosts classify as platform in any environment (loopback etc).
	DevHosts []string `yaml:"dev_hosts" mapstructure:"dev_hosts"`

	// ReservedLabels are subdomain labels owned by the platform itself.
	ReservedLabels []string `yaml:"reserved_labels" mapstructure:"reserved_labels"`

	// Development enables the tenant override (query param / header).
	// Must be false in production builds; the override is inert otherwise.
	Development bool `yaml:"development" mapstructure:"development"`
}

// DefaultHostConfig returns the production domain vocabulary.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		BaseDomain:        "growtharena.com",
		LegacyBaseDomains: []string{"growtharena.io"},
		PlatformDomains: []string{
			"growtharena.com",
			"www.growtharena.com",
			"app.growtharena.com",
			"admin.growtharena.com",
			"growtharena.io",
			"www.growtharena.io",
		},
		DevHosts:       []string{"localhost", "127.0.0.1", "0.0.0.0"},
		ReservedLabels: []string{"www", "app"},
	}
}

// Classifier classifies hostnames against an immutable HostConfig.
type Classifier struct {
	cfg            HostConfig
	platform       map[string]struct{}
	devHosts       map[string]struct{}
	reserved       map[string]struct{}
	subdomainExprs []*regexp.Regexp
}

// NewClassifier compiles the classification tables once.
func NewClassifier(cfg HostConfig) *Classifier {
	c := &Classifier{
		cfg:      cfg,
		platform: make(map[string]struct{}, len(cfg.PlatformDomains)),
		devHosts: make(map[string]struct{}, len(cfg.DevHosts)),
		reserved: make(map[string]struct{}, len(cfg.ReservedLabels)),
	}
	for _, d := range cfg.PlatformDomains {
		c.platform[strings.ToLower(d)] = struct{}{}
	}
	for _, d := range cfg.DevHosts {
		c.devHosts[strings.ToLower(d)] = struct{}{}
	}
	for _, l := range cfg.ReservedLabels {
		c.reserved[strings.ToLower(l)] = struct{}{}
	}
	for _, base := range append([]string{cfg.BaseDomain}, cfg.LegacyBaseDomains...) {
		if base == "" {
			continue
		}
		expr := regexp.MustCompile(`^([a-z0-9-]+)\.` + regexp.QuoteMeta(strings.ToLower(base)) + `$`)
		c.subdomainExprs = append(c.subdomainExprs, expr)
	}
	return c
}

// NormalizeHost lowercases a hostname and strips any port suffix.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host, "]") {
		host = host[:i]
	}
	host = strings.TrimSuffix(host, ".")
	return host
}

// Classify maps a hostname to exactly one classification.
func (c *Classifier) Classify(host string) Classification {
	host = NormalizeHost(host)

	if _, ok := c.platform[host]; ok {
		return Classification{Class: HostPlatform}
	}
	if _, ok := c.devHosts[host]; ok {
		return Classification{Class: HostPlatform}
	}
	for _, expr := range c.subdomainExprs {
		if m := expr.FindStringSubmatch(host); m != nil {
			label := m[1]
			if _, reserved := c.reserved[label]; reserved {
				return Classification{Class: HostPlatform}
			}
			return Classification{Class: HostSubdomain, Subdomain: label}
		}
	}
	return Classification{Class: HostCustomDomain}
}

// ClassifyWithOverride applies the development-only tenant override before
// normal classification. The override value comes from the ?__tenant= query
// parameter or the X-GA-Dev-Tenant header and is ignored outside development.
func (c *Classifier) ClassifyWithOverride(host, override string) Classification {
	if c.cfg.Development && override != "" {
		return Classification{Class: HostSubdomain, Subdomain: strings.ToLower(override)}
	}
	return c.Classify(host)
}

// IsMarketingDomain reports whether host is the bare marketing domain
// (or its www alias) rather than the application or admin domain.
func (c *Classifier) IsMarketingDomain(host string) bool {
	host = NormalizeHost(host)
	return host == c.cfg.BaseDomain || host == "www."+c.cfg.BaseDomain
}

// IsAppDomain reports whether host is the platform application domain.
func (c *Classifier) IsAppDomain(host string) bool {
	return NormalizeHost(host) == "app."+c.cfg.BaseDomain
}

// IsAdminDomain reports whether host is the platform-admin domain.
func (c *Classifier) IsAdminDomain(host string) bool {
	return NormalizeHost(host) == "admin."+c.cfg.BaseDomain
}

// BaseDomain returns the canonical tenant base domain.
func (c *Classifier) BaseDomain() string { return c.cfg.BaseDomain }

// AppDomain returns the platform application hostname.
func (c *Classifier) AppDomain() string { return "app." + c.cfg.BaseDomain }

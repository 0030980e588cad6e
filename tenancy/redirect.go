package tenancy

import (
	"net/url"
	"strings"
)

/* ========================================================================
 * Legacy / Canonicalization Redirector
 * ========================================================================
 * Pure functions over (hostname, path, query) returning an optional
 * redirect. 301 for domain migrations, 302 for path migrations. Runs
 * before tenant resolution consumes the hostname. No decision here may
 * create a cycle: every match pattern excludes its own canonical form.
 * ======================================================================== */

// Redirect is a terminal redirect decision.
type Redirect struct {
	Location string
	Status   int
}

// legacyPathTargets maps deprecated entry points to the unified funnel.
var legacyPaths = map[string]struct{}{
	"/quiz":             {},
	"/onboarding/start": {},
	"/get-started":      {},
}

// LegacyDomainRedirect returns a permanent redirect for subdomains of a
// deprecated base domain to the same subdomain on the canonical base,
// preserving path and query. Reserved labels are excluded so the platform
// aliases keep their own handling.
func (c *Classifier) LegacyDomainRedirect(host, path, rawQuery string) *Redirect {
	host = NormalizeHost(host)
	for _, base := range c.cfg.LegacyBaseDomains {
		base = strings.ToLower(base)
		suffix := "." + base
		if !strings.HasSuffix(host, suffix) {
			continue
		}
		label := strings.TrimSuffix(host, suffix)
		if label == "" || strings.Contains(label, ".") {
			continue
		}
		if _, reserved := c.reserved[label]; reserved {
			continue
		}
		target := url.URL{
			Scheme:   "https",
			Host:     label + "." + c.cfg.BaseDomain,
			Path:     path,
			RawQuery: rawQuery,
		}
		return &Redirect{Location: target.String(), Status: 301}
	}
	return nil
}

// LegacyPathRedirect rewrites deprecated in-app entry points to the
// unified /start funnel, preserving query parameters and embedding the
// tenant organization id when one resolved.
func LegacyPathRedirect(path, rawQuery, orgID string) *Redirect {
	if _, ok := legacyPaths[strings.TrimSuffix(path, "/")]; !ok {
		return nil
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		q = url.Values{}
	}
	if orgID != "" && q.Get("org") == "" {
		q.Set("org", orgID)
	}
	target := url.URL{Path: "/start", RawQuery: q.Encode()}
	return &Redirect{Location: target.String(), Status: 302}
}

// CustomDomainRedirect sends subdomain traffic to the tenant's verified
// custom domain, permanently and path-preserving. Auth-sensitive paths
// are exempt: the auth provider's embedded flows are scoped to the domain
// that initiated them, so they must complete on the subdomain.
func CustomDomainRedirect(cfg *TenantConfig, cls Classification, path, rawQuery string, authSensitive func(string) bool) *Redirect {
	if cfg == nil || cfg.VerifiedCustomDomain == "" {
		return nil
	}
	if cls.Class != HostSubdomain {
		return nil
	}
	if authSensitive != nil && authSensitive(path) {
		return nil
	}
	target := url.URL{
		Scheme:   "https",
		Host:     NormalizeHost(cfg.VerifiedCustomDomain),
		Path:     path,
		RawQuery: rawQuery,
	}
	return &Redirect{Location: target.String(), Status: 301}
}

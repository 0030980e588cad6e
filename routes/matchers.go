package routes

import "strings"

/* ========================================================================
 * Route Matchers
 * ========================================================================
 * Declarative path-pattern sets consumed by the authorization cascade.
 * All matching is pure prefix/exact matching against the request path;
 * the tables are module-level constants and never mutated at runtime.
 *
 * Pattern syntax:
 *   "/sign-in"    exact match plus any sub-path ("/sign-in/sso")
 *   "/api/(.*)"   not supported on purpose; prefixes are enough here
 * ======================================================================== */

// Matcher matches request paths against a fixed set of prefixes.
type Matcher struct {
	prefixes []string
}

// NewMatcher builds a matcher from path prefixes.
func NewMatcher(prefixes ...string) Matcher {
	return Matcher{prefixes: prefixes}
}

// Matches reports whether path falls under any of the matcher's prefixes.
// A prefix matches the exact path and any sub-path below it.
func (m Matcher) Matches(path string) bool {
	if path == "" {
		path = "/"
	}
	for _, p := range m.prefixes {
		if path == p {
			return true
		}
		if p == "/" {
			continue
		}
		if strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Prefixes returns a copy of the matcher's prefix list.
func (m Matcher) Prefixes() []string {
	out := make([]string, len(m.prefixes))
	copy(out, m.prefixes)
	return out
}

// IsAPIPath reports whether the request should receive JSON errors
// instead of redirects.
func IsAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/") || path == "/api"
}

// IsStaticAsset reports whether the path is a build artifact or other
// static file that must bypass tenant and auth logic entirely.
func IsStaticAsset(path string) bool {
	if StaticAssets.Matches(path) {
		return true
	}
	for _, ext := range staticExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

var staticExtensions = []string{
	".js", ".css", ".map", ".ico", ".png", ".jpg", ".jpeg", ".gif",
	".svg", ".webp", ".woff", ".woff2", ".ttf", ".txt",
}

var (
	// Public paths require no session in any mode.
	Public = NewMatcher(
		"/sign-in",
		"/sign-up",
		"/sso-callback",
		"/start",
		"/legal",
		"/access-denied",
		"/tenant-not-found",
		"/discover",
		"/api/public",
		"/api/webhooks",
		"/api/auth",
		"/api/internal/tenant-config",
	)

	// AuthSensitive paths must stay on the originating domain; the auth
	// provider's embedded flows are scoped to the domain that started them,
	// so the custom-domain redirect never applies here.
	AuthSensitive = NewMatcher(
		"/sign-in",
		"/sign-up",
		"/sso-callback",
		"/start",
	)

	// Admin section, platform-admin role only.
	Admin = NewMatcher("/admin", "/api/admin")

	// Editor section (curriculum authoring).
	Editor    = NewMatcher("/editor")
	EditorAPI = NewMatcher("/api/editor")

	// BillingRequired paths need active per-user billing (member plans).
	BillingRequired = NewMatcher(
		"/programs",
		"/check-ins",
		"/feed",
		"/chat",
		"/schedule",
		"/api/programs",
		"/api/check-ins",
		"/api/feed",
		"/api/chat",
		"/api/schedule",
	)

	// Onboarding paths stay reachable for org-associated users without
	// billing, so sign-up cannot dead-lock on the billing gate.
	Onboarding = NewMatcher("/onboarding", "/plan", "/api/onboarding")

	// PlatformOnly surfaces must never be served from a tenant origin.
	PlatformOnly = NewMatcher("/admin", "/editor", "/api/admin", "/api/editor")

	// CoachDashboard is the staff-facing route family; plan-tier gates
	// only apply underneath it.
	CoachDashboard = NewMatcher("/coach", "/api/coach")

	// Plan-tier gated features inside the coach dashboard.
	PlanGatedPro = NewMatcher(
		"/coach/automations",
		"/coach/forms",
		"/api/coach/automations",
		"/api/coach/forms",
	)
	PlanGatedScale = NewMatcher(
		"/coach/team",
		"/coach/api-access",
		"/coach/white-label",
		"/api/coach/team",
		"/api/coach/api-access",
	)

	// Lockout destinations.
	CoachPlanPage           = NewMatcher("/coach/plan")
	CoachReactivatePage     = NewMatcher("/coach/reactivate")
	PlatformDeactivatedPage = NewMatcher("/platform-deactivated")

	// AlwaysAllowed paths skip the tenant-wide subscription lockout
	// entirely, regardless of role. Recovery flows live here; gating them
	// would brick reactivation.
	AlwaysAllowed = NewMatcher(
		"/sign-in",
		"/sign-up",
		"/sso-callback",
		"/coach/plan",
		"/coach/reactivate",
		"/platform-deactivated",
		"/api/auth",
		"/api/webhooks",
		"/api/billing",
	)

	// Marketing domain allow-list: the bare platform domain only serves
	// these plus the root discovery rewrite.
	MarketingAllowed = NewMatcher(
		"/sign-in",
		"/sign-up",
		"/sso-callback",
		"/start",
		"/legal",
		"/discover",
		"/api",
		"/_static",
		"/assets",
	)

	// AdminDomainPublic paths are reachable on the platform-admin domain
	// without the super role.
	AdminDomainPublic = NewMatcher(
		"/sign-in",
		"/sign-up",
		"/sso-callback",
		"/access-denied",
		"/api",
		"/_static",
		"/assets",
	)

	// Fullscreen layout paths; everything else renders with navigation.
	Fullscreen = NewMatcher(
		"/sign-in",
		"/sign-up",
		"/sso-callback",
		"/start",
		"/onboarding",
		"/platform-deactivated",
	)

	// StaticAssets bypass the middleware before any other check.
	StaticAssets = NewMatcher("/_static", "/assets", "/favicon.ico")
)

// LayoutMode returns the layout hint propagated to the renderer.
func LayoutMode(path string) string {
	if Fullscreen.Matches(path) {
		return "fullscreen"
	}
	return "default"
}

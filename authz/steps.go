package authz

import (
	"net/url"

	"github.com/growtharena/edge/routes"
	"github.com/growtharena/edge/session"
	"github.com/growtharena/edge/tenancy"
)

/* ========================================================================
 * Guard Steps
 * ========================================================================
 * Each step is a pure function (context) -> Decision. The ordering in
 * DefaultSteps is load-bearing; see cascade_test for the permutation
 * checks that pin it down.
 * ======================================================================== */

// Step is one ordered guard in the cascade.
type Step struct {
	Name  string
	Guard func(*RequestContext) Decision
}

// DefaultSteps returns the cascade in its canonical order. Static-asset
// and preflight bypass happen in the middleware before the cascade runs.
func DefaultSteps() []Step {
	return []Step{
		{Name: "platform_only", Guard: PlatformOnlyGuard},
		{Name: "domain_overlay", Guard: DomainOverlayGuard},
		{Name: "membership", Guard: MembershipGuard},
		{Name: "authentication", Guard: AuthenticationGuard},
		{Name: "billing", Guard: BillingGuard},
		{Name: "role_gate", Guard: RoleGateGuard},
		{Name: "tenant_lockout", Guard: TenantLockoutGuard},
		{Name: "plan_gate", Guard: PlanGateGuard},
	}
}

// PlatformOnlyGuard keeps admin/editor surfaces off tenant origins.
func PlatformOnlyGuard(rc *RequestContext) Decision {
	if !rc.Class.IsTenant() || !routes.PlatformOnly.Matches(rc.Path) {
		return Allowed()
	}
	if rc.IsAPI {
		return DenyJSON("platform_only", "platform section on tenant origin",
			403, "platform_only", "this section is not available on tenant domains")
	}
	return DenyRedirect("platform_only", "platform section on tenant origin", "/", 302)
}

// DomainOverlayGuard applies the marketing-domain allow-list (with the
// root rewrite to the discovery listing) and restricts the application
// and admin domains to the super role.
func DomainOverlayGuard(rc *RequestContext) Decision {
	if rc.Class.IsTenant() {
		return Allowed()
	}

	if rc.MarketingDomain {
		if rc.Path == "/" || rc.Path == "" {
			return AllowedWithRewrite("/discover")
		}
		if routes.MarketingAllowed.Matches(rc.Path) {
			return Allowed()
		}
		target := url.URL{Scheme: "https", Host: rc.AppDomainHost, Path: rc.Path, RawQuery: rc.RawQuery}
		return DenyRedirect("domain_overlay", "marketing domain off allow-list", target.String(), 302)
	}

	if rc.AppDomain || rc.AdminDomain {
		if routes.AdminDomainPublic.Matches(rc.Path) {
			return Allowed()
		}
		// Anonymous sessions fall through to the authentication step so
		// they reach sign-in instead of a dead-end access-denied page.
		if !rc.Authenticated() {
			return Allowed()
		}
		if rc.Role() != session.RoleSuperAdmin {
			if rc.IsAPI {
				return DenyJSON("domain_overlay", "non-super role on platform app domain",
					403, "forbidden", "insufficient role for this domain")
			}
			return DenyRedirect("domain_overlay", "non-super role on platform app domain", "/access-denied", 302)
		}
	}
	return Allowed()
}

// MembershipGuard is the claims-only tenant membership pre-filter.
// Authoritative membership verification happens again inside protected
// handlers; this gate only rejects sessions that visibly belong to a
// different organization.
func MembershipGuard(rc *RequestContext) Decision {
	if !rc.TenantMode() || !rc.Authenticated() {
		return Allowed()
	}
	if routes.Public.Matches(rc.Path) {
		return Allowed()
	}
	if rc.Claims.MemberOf(rc.OrgID()) {
		return Allowed()
	}
	if rc.IsAPI {
		return DenyJSON("membership", "no claim matches tenant org",
			403, "not_a_member", "you are not a member of this organization")
	}
	return DenyRedirect("membership", "no claim matches tenant org", "/access-denied", 302)
}

// AuthenticationGuard denies anonymous access to non-public paths and
// makes the sign-in page idempotent for authenticated users.
func AuthenticationGuard(rc *RequestContext) Decision {
	if rc.Authenticated() {
		if routes.AuthSensitive.Matches(rc.Path) && rc.Path != "/sso-callback" && rc.Path != "/start" {
			return DenyRedirect("authentication", "already signed in", "/", 302)
		}
		return Allowed()
	}
	if routes.Public.Matches(rc.Path) {
		return Allowed()
	}
	if rc.IsAPI {
		return DenyJSON("authentication", "no session",
			401, "unauthenticated", "authentication required")
	}
	target := url.URL{Path: "/sign-in"}
	q := url.Values{}
	q.Set("redirect_url", rc.ReturnURL())
	target.RawQuery = q.Encode()
	return DenyRedirect("authentication", "no session", target.String(), 302)
}

// BillingGuard blocks billing-required paths for non-staff users without
// active billing. Org-associated users mid-onboarding keep access to the
// onboarding paths so sign-up cannot dead-lock on this gate.
func BillingGuard(rc *RequestContext) Decision {
	if !routes.BillingRequired.Matches(rc.Path) {
		return Allowed()
	}
	if !rc.Authenticated() {
		// Anonymous requests were already handled by the authentication
		// step for non-public paths.
		return Allowed()
	}
	if rc.Role().IsStaff() {
		return Allowed()
	}
	if rc.Claims.BillingActive(rc.Now) {
		return Allowed()
	}
	if rc.Claims.Onboarding() && routes.Onboarding.Matches(rc.Path) {
		return Allowed()
	}
	if rc.IsAPI {
		return DenyJSON("billing", "billing inactive",
			403, "billing_required", "an active plan is required")
	}
	return DenyRedirect("billing", "billing inactive", "/plan", 302)
}

// RoleGateGuard enforces the editor-only and admin-only sections. The
// super role passes every section gate.
func RoleGateGuard(rc *RequestContext) Decision {
	role := rc.Role()
	if role == session.RoleSuperAdmin {
		return Allowed()
	}
	if routes.Admin.Matches(rc.Path) && role != session.RoleAdmin {
		return denyRole(rc, "admin section requires admin role")
	}
	if (routes.Editor.Matches(rc.Path) || routes.EditorAPI.Matches(rc.Path)) && role != session.RoleEditor {
		return denyRole(rc, "editor section requires editor role")
	}
	return Allowed()
}

func denyRole(rc *RequestContext, reason string) Decision {
	if rc.IsAPI {
		return DenyJSON("role_gate", reason, 403, "forbidden", "insufficient role")
	}
	return DenyRedirect("role_gate", reason, "/", 302)
}

// TenantLockoutGuard confines an entire tenant when the owning
// organization's subscription is inactive: staff to the reactivation
// page, members to the platform-deactivated notice. Always-allowed paths
// skip this step entirely rather than being evaluated and passing.
func TenantLockoutGuard(rc *RequestContext) Decision {
	if !rc.TenantMode() {
		return Allowed()
	}
	if routes.AlwaysAllowed.Matches(rc.Path) {
		return Allowed()
	}
	sub := rc.Subscription()
	if sub.IsActive(rc.Now) {
		return Allowed()
	}

	if rc.Role().IsStaff() {
		if rc.IsAPI {
			return DenyJSON("tenant_lockout", "subscription inactive (staff)",
				503, "subscription_inactive", "organization subscription is inactive")
		}
		return DenyRedirect("tenant_lockout", "subscription inactive (staff)", "/coach/reactivate", 302)
	}
	if rc.IsAPI {
		return DenyJSON("tenant_lockout", "subscription inactive (member)",
			503, "subscription_inactive", "this platform is currently deactivated")
	}
	return DenyRedirect("tenant_lockout", "subscription inactive (member)", "/platform-deactivated", 302)
}

// PlanGateGuard blocks coach-dashboard features above the organization's
// plan tier. Only evaluated for staff on an active tenant subscription;
// everything below already guaranteed those preconditions.
func PlanGateGuard(rc *RequestContext) Decision {
	if !rc.TenantMode() || !rc.Role().IsStaff() {
		return Allowed()
	}
	if !routes.CoachDashboard.Matches(rc.Path) {
		return Allowed()
	}
	sub := rc.Subscription()
	if !sub.IsActive(rc.Now) {
		return Allowed()
	}

	var required tenancy.Plan
	switch {
	case routes.PlanGatedScale.Matches(rc.Path):
		required = tenancy.PlanScale
	case routes.PlanGatedPro.Matches(rc.Path):
		required = tenancy.PlanPro
	default:
		return Allowed()
	}
	if sub.Plan.AtLeast(required) {
		return Allowed()
	}
	if rc.IsAPI {
		return DenyJSON("plan_gate", "plan tier below requirement",
			403, "plan_locked", "this feature requires the "+string(required)+" plan")
	}
	target := url.URL{Path: "/coach/plan", RawQuery: url.Values{"upgrade": {string(required)}}.Encode()}
	return DenyRedirect("plan_gate", "plan tier below requirement", target.String(), 302)
}

package authz

import (
	"testing"
	"time"

	"github.com/growtharena/edge/session"
	"github.com/growtharena/edge/tenancy"
)

func activeTenant() *tenancy.TenantConfig {
	return &tenancy.TenantConfig{
		OrganizationID: "org_acme",
		Subdomain:      "acme",
		Subscription: tenancy.Subscription{
			Plan:   tenancy.PlanPro,
			Status: tenancy.StatusActive,
		},
	}
}

func tenantCtx(path string, claims *session.Claims) *RequestContext {
	return &RequestContext{
		Host:   "acme.growtharena.com",
		Path:   path,
		Class:  tenancy.Classification{Class: tenancy.HostSubdomain, Subdomain: "acme"},
		Tenant: activeTenant(),
		Claims: claims,
		Now:    time.Now(),
	}
}

func memberClaims() *session.Claims {
	return &session.Claims{
		ActiveOrganizationID: "org_acme",
		BillingStatus:        "active",
	}
}

func staffClaims(role session.Role) *session.Claims {
	c := memberClaims()
	c.Role = string(role)
	return c
}

func TestPlatformOnlyGuard(t *testing.T) {
	d := PlatformOnlyGuard(tenantCtx("/admin/users", memberClaims()))
	if d.Allow {
		t.Fatal("admin section on tenant origin must deny")
	}
	if d.RedirectURL != "/" {
		t.Fatalf("redirect = %q", d.RedirectURL)
	}

	api := tenantCtx("/api/editor/lessons", memberClaims())
	api.IsAPI = true
	d = PlatformOnlyGuard(api)
	if d.Allow || d.Status != 403 || d.Code != "platform_only" {
		t.Fatalf("api denial = %+v", d)
	}

	// platform origin serves these sections normally
	platform := &RequestContext{Path: "/admin/users", Class: tenancy.Classification{Class: tenancy.HostPlatform}}
	if d := PlatformOnlyGuard(platform); !d.Allow {
		t.Fatalf("platform origin denied: %+v", d)
	}
	if d := PlatformOnlyGuard(tenantCtx("/programs", memberClaims())); !d.Allow {
		t.Fatalf("tenant path denied: %+v", d)
	}
}

func TestDomainOverlayGuardMarketing(t *testing.T) {
	marketing := func(path string) *RequestContext {
		return &RequestContext{
			Host:            "growtharena.com",
			Path:            path,
			Class:           tenancy.Classification{Class: tenancy.HostPlatform},
			MarketingDomain: true,
			AppDomainHost:   "app.growtharena.com",
			Now:             time.Now(),
		}
	}

	d := DomainOverlayGuard(marketing("/"))
	if !d.Allow || d.RewritePath != "/discover" {
		t.Fatalf("root rewrite = %+v", d)
	}
	if d := DomainOverlayGuard(marketing("/legal/terms")); !d.Allow {
		t.Fatalf("allow-listed path denied: %+v", d)
	}

	d = DomainOverlayGuard(marketing("/home"))
	if d.Allow {
		t.Fatal("off-list path must redirect to the app domain")
	}
	if d.RedirectURL != "https://app.growtharena.com/home" {
		t.Fatalf("redirect = %q", d.RedirectURL)
	}
}

func TestDomainOverlayGuardAppDomain(t *testing.T) {
	appCtx := func(path string, claims *session.Claims) *RequestContext {
		return &RequestContext{
			Host:      "app.growtharena.com",
			Path:      path,
			Class:     tenancy.Classification{Class: tenancy.HostPlatform},
			AppDomain: true,
			Claims:    claims,
			Now:       time.Now(),
		}
	}

	// anonymous falls through to the authentication step
	if d := DomainOverlayGuard(appCtx("/dashboard", nil)); !d.Allow {
		t.Fatalf("anonymous should fall through: %+v", d)
	}
	// public paths stay reachable for everyone
	if d := DomainOverlayGuard(appCtx("/sign-in", staffClaims(session.RoleCoach))); !d.Allow {
		t.Fatalf("public path denied: %+v", d)
	}

	d := DomainOverlayGuard(appCtx("/dashboard", staffClaims(session.RoleCoach)))
	if d.Allow || d.RedirectURL != "/access-denied" {
		t.Fatalf("non-super role = %+v", d)
	}
	if d := DomainOverlayGuard(appCtx("/dashboard", staffClaims(session.RoleSuperAdmin))); !d.Allow {
		t.Fatalf("super role denied: %+v", d)
	}
}

func TestMembershipGuard(t *testing.T) {
	outsider := &session.Claims{ActiveOrganizationID: "org_other", BillingStatus: "active"}

	d := MembershipGuard(tenantCtx("/home", outsider))
	if d.Allow || d.RedirectURL != "/access-denied" {
		t.Fatalf("outsider = %+v", d)
	}

	api := tenantCtx("/api/programs", outsider)
	api.IsAPI = true
	d = MembershipGuard(api)
	if d.Allow || d.Code != "not_a_member" {
		t.Fatalf("api outsider = %+v", d)
	}

	if d := MembershipGuard(tenantCtx("/home", memberClaims())); !d.Allow {
		t.Fatalf("member denied: %+v", d)
	}
	// public paths skip the membership check
	if d := MembershipGuard(tenantCtx("/sign-in", outsider)); !d.Allow {
		t.Fatalf("public path denied: %+v", d)
	}
	// anonymous requests are the authentication guard's problem
	if d := MembershipGuard(tenantCtx("/home", nil)); !d.Allow {
		t.Fatalf("anonymous denied here: %+v", d)
	}
}

func TestAuthenticationGuard(t *testing.T) {
	d := AuthenticationGuard(tenantCtx("/home", nil))
	if d.Allow {
		t.Fatal("anonymous protected path must deny")
	}
	if d.RedirectURL != "/sign-in?redirect_url=%2Fhome" {
		t.Fatalf("redirect = %q", d.RedirectURL)
	}

	withQuery := tenantCtx("/home", nil)
	withQuery.RawQuery = "tab=feed"
	d = AuthenticationGuard(withQuery)
	if d.RedirectURL != "/sign-in?redirect_url=%2Fhome%3Ftab%3Dfeed" {
		t.Fatalf("redirect with query = %q", d.RedirectURL)
	}

	api := tenantCtx("/api/programs", nil)
	api.IsAPI = true
	d = AuthenticationGuard(api)
	if d.Allow || d.Status != 401 || d.Code != "unauthenticated" {
		t.Fatalf("api anonymous = %+v", d)
	}

	if d := AuthenticationGuard(tenantCtx("/sign-in", nil)); !d.Allow {
		t.Fatalf("anonymous sign-in denied: %+v", d)
	}

	// signed-in users bounce off the auth pages, except the flows that
	// must complete while authenticated
	d = AuthenticationGuard(tenantCtx("/sign-in", memberClaims()))
	if d.Allow || d.RedirectURL != "/" {
		t.Fatalf("authenticated sign-in = %+v", d)
	}
	if d := AuthenticationGuard(tenantCtx("/sso-callback", memberClaims())); !d.Allow {
		t.Fatalf("sso-callback denied: %+v", d)
	}
	if d := AuthenticationGuard(tenantCtx("/start", memberClaims())); !d.Allow {
		t.Fatalf("start denied: %+v", d)
	}
}

func TestBillingGuard(t *testing.T) {
	lapsed := &session.Claims{ActiveOrganizationID: "org_acme", BillingStatus: "canceled"}

	d := BillingGuard(tenantCtx("/programs", lapsed))
	if d.Allow || d.RedirectURL != "/plan" {
		t.Fatalf("lapsed billing = %+v", d)
	}

	api := tenantCtx("/api/programs/p1", lapsed)
	api.IsAPI = true
	d = BillingGuard(api)
	if d.Allow || d.Code != "billing_required" {
		t.Fatalf("api lapsed = %+v", d)
	}

	if d := BillingGuard(tenantCtx("/programs", memberClaims())); !d.Allow {
		t.Fatalf("active billing denied: %+v", d)
	}
	// staff bypass the per-user billing gate
	lapsedCoach := staffClaims(session.RoleCoach)
	lapsedCoach.BillingStatus = "canceled"
	if d := BillingGuard(tenantCtx("/programs", lapsedCoach)); !d.Allow {
		t.Fatalf("staff denied: %+v", d)
	}
	// onboarding users keep the onboarding paths
	onboarding := &session.Claims{ActiveOrganizationID: "org_acme", CoachingStatus: "onboarding"}
	if d := BillingGuard(tenantCtx("/programs", onboarding)); d.Allow {
		t.Fatal("onboarding must not unlock billing-required paths")
	}
	if d := BillingGuard(tenantCtx("/home", lapsed)); !d.Allow {
		t.Fatalf("non-billing path denied: %+v", d)
	}
}

func TestRoleGateGuard(t *testing.T) {
	platform := func(path string, role session.Role) *RequestContext {
		return &RequestContext{
			Path:   path,
			Class:  tenancy.Classification{Class: tenancy.HostPlatform},
			Claims: &session.Claims{Role: string(role)},
			Now:    time.Now(),
		}
	}

	if d := RoleGateGuard(platform("/admin/users", session.RoleAdmin)); !d.Allow {
		t.Fatalf("admin denied own section: %+v", d)
	}
	if d := RoleGateGuard(platform("/admin/users", session.RoleCoach)); d.Allow {
		t.Fatal("coach passed the admin gate")
	}
	if d := RoleGateGuard(platform("/editor/lessons", session.RoleEditor)); !d.Allow {
		t.Fatalf("editor denied own section: %+v", d)
	}
	if d := RoleGateGuard(platform("/editor/lessons", session.RoleAdmin)); d.Allow {
		t.Fatal("admin passed the editor gate")
	}
	// super passes every section gate
	if d := RoleGateGuard(platform("/admin/users", session.RoleSuperAdmin)); !d.Allow {
		t.Fatalf("super denied: %+v", d)
	}
	if d := RoleGateGuard(platform("/editor/lessons", session.RoleSuperAdmin)); !d.Allow {
		t.Fatalf("super denied editor: %+v", d)
	}
	if d := RoleGateGuard(platform("/home", session.RoleUser)); !d.Allow {
		t.Fatalf("ungated path denied: %+v", d)
	}
}

func TestTenantLockoutGuard(t *testing.T) {
	locked := func(path string, claims *session.Claims) *RequestContext {
		rc := tenantCtx(path, claims)
		rc.Tenant.Subscription = tenancy.Subscription{Plan: tenancy.PlanPro, Status: tenancy.StatusCanceled}
		return rc
	}

	d := TenantLockoutGuard(locked("/home", memberClaims()))
	if d.Allow || d.RedirectURL != "/platform-deactivated" {
		t.Fatalf("member lockout = %+v", d)
	}

	d = TenantLockoutGuard(locked("/coach", staffClaims(session.RoleCoach)))
	if d.Allow || d.RedirectURL != "/coach/reactivate" {
		t.Fatalf("staff lockout = %+v", d)
	}

	api := locked("/api/programs", memberClaims())
	api.IsAPI = true
	d = TenantLockoutGuard(api)
	if d.Allow || d.Status != 503 || d.Code != "subscription_inactive" {
		t.Fatalf("api lockout = %+v", d)
	}

	// recovery flows skip the lockout for everyone
	if d := TenantLockoutGuard(locked("/coach/reactivate", memberClaims())); !d.Allow {
		t.Fatalf("reactivate page locked: %+v", d)
	}
	if d := TenantLockoutGuard(locked("/sign-in", nil)); !d.Allow {
		t.Fatalf("sign-in locked: %+v", d)
	}

	if d := TenantLockoutGuard(tenantCtx("/home", memberClaims())); !d.Allow {
		t.Fatalf("active subscription locked: %+v", d)
	}
}

func TestTenantLockoutPrefersLiveSessionClaims(t *testing.T) {
	// cached tenant config says canceled, but the member's session carries
	// fresher org billing metadata saying active
	rc := tenantCtx("/home", &session.Claims{
		ActiveOrganizationID:  "org_acme",
		BillingStatus:         "active",
		OrgPlan:               "pro",
		OrgSubscriptionStatus: "active",
	})
	rc.Tenant.Subscription = tenancy.Subscription{Plan: tenancy.PlanPro, Status: tenancy.StatusCanceled}

	if d := TenantLockoutGuard(rc); !d.Allow {
		t.Fatalf("live claims should override the cached snapshot: %+v", d)
	}
}

func TestPlanGateGuard(t *testing.T) {
	coach := func(path string, plan tenancy.Plan) *RequestContext {
		rc := tenantCtx(path, staffClaims(session.RoleCoach))
		rc.Tenant.Subscription.Plan = plan
		return rc
	}

	d := PlanGateGuard(coach("/coach/automations", tenancy.PlanStarter))
	if d.Allow {
		t.Fatal("starter plan reached a pro feature")
	}
	if d.RedirectURL != "/coach/plan?upgrade=pro" {
		t.Fatalf("redirect = %q", d.RedirectURL)
	}

	if d := PlanGateGuard(coach("/coach/automations", tenancy.PlanPro)); !d.Allow {
		t.Fatalf("pro plan denied pro feature: %+v", d)
	}

	d = PlanGateGuard(coach("/coach/team", tenancy.PlanPro))
	if d.Allow || d.RedirectURL != "/coach/plan?upgrade=scale" {
		t.Fatalf("scale gate = %+v", d)
	}
	if d := PlanGateGuard(coach("/coach/team", tenancy.PlanScale)); !d.Allow {
		t.Fatalf("scale plan denied: %+v", d)
	}

	api := coach("/api/coach/team", tenancy.PlanPro)
	api.IsAPI = true
	d = PlanGateGuard(api)
	if d.Allow || d.Code != "plan_locked" {
		t.Fatalf("api plan gate = %+v", d)
	}

	// members never hit the plan gate
	if d := PlanGateGuard(tenantCtx("/coach/team", memberClaims())); !d.Allow {
		t.Fatalf("member hit the plan gate: %+v", d)
	}
	// ungated dashboard paths pass on any plan
	if d := PlanGateGuard(coach("/coach/clients", tenancy.PlanStarter)); !d.Allow {
		t.Fatalf("ungated dashboard path denied: %+v", d)
	}
}

package authz

import (
	"net/url"
	"time"

	"github.com/growtharena/edge/session"
	"github.com/growtharena/edge/tenancy"
)

// RequestContext is the resolved per-request state the cascade evaluates.
// Constructed at the start of middleware evaluation, consumed by every
// layer in the same request, discarded at response time.
type RequestContext struct {
	Host     string
	Path     string
	RawQuery string

	// IsAPI selects JSON errors over redirects.
	IsAPI bool

	Class  tenancy.Classification
	Tenant *tenancy.TenantConfig // nil in platform mode or on unknown tenant
	Claims *session.Claims       // nil when unauthenticated

	// Platform-domain flavor, meaningful only in platform mode.
	MarketingDomain bool
	AppDomain       bool
	AdminDomain     bool

	// AppDomainHost is the canonical application hostname used by the
	// marketing overlay redirect.
	AppDomainHost string

	Now time.Time
}

// TenantMode reports whether the request is scoped to a resolved tenant.
func (rc *RequestContext) TenantMode() bool {
	return rc.Class.IsTenant() && rc.Tenant != nil
}

// Authenticated reports whether a verified session is present.
func (rc *RequestContext) Authenticated() bool {
	return rc.Claims != nil
}

// Role returns the session role, base member when anonymous.
func (rc *RequestContext) Role() session.Role {
	return rc.Claims.UserRole()
}

// OrgID returns the resolved tenant organization id, if any.
func (rc *RequestContext) OrgID() string {
	if rc.Tenant == nil {
		return ""
	}
	return rc.Tenant.OrganizationID
}

// ReturnURL builds the sign-in return target for the current request.
func (rc *RequestContext) ReturnURL() string {
	u := url.URL{Path: rc.Path, RawQuery: rc.RawQuery}
	return u.String()
}

// Subscription resolves the tenant's subscription snapshot with the
// documented priority: live org session claims, then the cached tenant
// config, then the starter/none default. Session claims are only
// trusted when they belong to the resolved tenant.
func (rc *RequestContext) Subscription() tenancy.Subscription {
	if rc.Claims != nil && rc.Claims.MemberOf(rc.OrgID()) {
		if sub, ok := rc.Claims.OrgSubscription(); ok {
			return sub
		}
	}
	if rc.Tenant != nil && rc.Tenant.Subscription.Status != "" {
		return rc.Tenant.Subscription
	}
	return tenancy.Subscription{Plan: tenancy.PlanStarter, Status: tenancy.StatusNone}
}

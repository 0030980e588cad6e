package authz

import (
	"testing"
	"time"

	"github.com/growtharena/edge/logger"
	"github.com/growtharena/edge/session"
	"github.com/growtharena/edge/tenancy"
)

func TestDefaultStepOrder(t *testing.T) {
	want := []string{
		"platform_only",
		"domain_overlay",
		"membership",
		"authentication",
		"billing",
		"role_gate",
		"tenant_lockout",
		"plan_gate",
	}
	steps := DefaultSteps()
	if len(steps) != len(want) {
		t.Fatalf("step count = %d, want %d", len(steps), len(want))
	}
	for i, name := range want {
		if steps[i].Name != name {
			t.Fatalf("step[%d] = %q, want %q", i, steps[i].Name, name)
		}
	}
}

func TestCascadeAllowCollectsRewrite(t *testing.T) {
	c := NewCascade(DefaultSteps(), logger.NewNop())
	rc := &RequestContext{
		Host:            "growtharena.com",
		Path:            "/",
		Class:           tenancy.Classification{Class: tenancy.HostPlatform},
		MarketingDomain: true,
		AppDomainHost:   "app.growtharena.com",
		Now:             time.Now(),
	}
	d := c.Evaluate(rc)
	if !d.Allow {
		t.Fatalf("marketing root denied: %+v", d)
	}
	if d.RewritePath != "/discover" {
		t.Fatalf("rewrite = %q", d.RewritePath)
	}
}

// The discovery listing is public marketing surface: reachable by an
// anonymous visitor both directly and through the root rewrite.
func TestAnonymousMarketingDiscoveryServed(t *testing.T) {
	c := NewCascade(DefaultSteps(), logger.NewNop())
	for _, path := range []string{"/discover", "/discover/fitness"} {
		rc := &RequestContext{
			Host:            "growtharena.com",
			Path:            path,
			Class:           tenancy.Classification{Class: tenancy.HostPlatform},
			MarketingDomain: true,
			AppDomainHost:   "app.growtharena.com",
			Now:             time.Now(),
		}
		if d := c.Evaluate(rc); !d.Allow {
			t.Fatalf("anonymous %s denied: %+v", path, d)
		}
	}
}

func TestCascadeStopsAtFirstDenial(t *testing.T) {
	evaluated := []string{}
	steps := []Step{
		{Name: "first", Guard: func(*RequestContext) Decision {
			evaluated = append(evaluated, "first")
			return Allowed()
		}},
		{Name: "second", Guard: func(*RequestContext) Decision {
			evaluated = append(evaluated, "second")
			return DenyRedirect("second", "stop here", "/stop", 302)
		}},
		{Name: "third", Guard: func(*RequestContext) Decision {
			evaluated = append(evaluated, "third")
			return Allowed()
		}},
	}
	c := NewCascade(steps, logger.NewNop())
	d := c.Evaluate(&RequestContext{Now: time.Now()})
	if d.Allow || d.Step != "second" {
		t.Fatalf("decision = %+v", d)
	}
	if len(evaluated) != 2 {
		t.Fatalf("evaluated %v; the third step must never run", evaluated)
	}
}

// The contexts below are denied by more than one guard; the canonical
// order determines which denial the client actually sees. Each case pins
// one ordering edge by checking that reversing the two steps changes the
// outcome, so a reordering cannot slip through refactoring.
func TestCascadeOrderIsLoadBearing(t *testing.T) {
	lockedTenant := func() *tenancy.TenantConfig {
		return &tenancy.TenantConfig{
			OrganizationID: "org_acme",
			Subdomain:      "acme",
			Subscription:   tenancy.Subscription{Plan: tenancy.PlanPro, Status: tenancy.StatusCanceled},
		}
	}

	cases := []struct {
		name      string
		rc        *RequestContext
		wantStep  string
		laterStep string
	}{
		{
			// platform section on a tenant origin, anonymous: both the
			// platform_only and authentication guards would deny.
			name: "platform_only before authentication",
			rc: &RequestContext{
				Host:  "acme.growtharena.com",
				Path:  "/admin/users",
				Class: tenancy.Classification{Class: tenancy.HostSubdomain, Subdomain: "acme"},
				Tenant: &tenancy.TenantConfig{
					OrganizationID: "org_acme",
					Subdomain:      "acme",
					Subscription:   tenancy.Subscription{Plan: tenancy.PlanPro, Status: tenancy.StatusActive},
				},
				Now: time.Now(),
			},
			wantStep:  "platform_only",
			laterStep: "authentication",
		},
		{
			// outsider session on a locked tenant: membership and
			// tenant_lockout would both deny; the outsider must never
			// learn the tenant's billing state.
			name: "membership before tenant_lockout",
			rc: &RequestContext{
				Host:   "acme.growtharena.com",
				Path:   "/home",
				Class:  tenancy.Classification{Class: tenancy.HostSubdomain, Subdomain: "acme"},
				Tenant: lockedTenant(),
				Claims: &session.Claims{ActiveOrganizationID: "org_other", BillingStatus: "active"},
				Now:    time.Now(),
			},
			wantStep:  "membership",
			laterStep: "tenant_lockout",
		},
		{
			// anonymous on a locked tenant's protected path:
			// authentication wins over tenant_lockout, so the visitor
			// is sent to sign-in rather than a lockout page.
			name: "authentication before tenant_lockout",
			rc: &RequestContext{
				Host:   "acme.growtharena.com",
				Path:   "/home",
				Class:  tenancy.Classification{Class: tenancy.HostSubdomain, Subdomain: "acme"},
				Tenant: lockedTenant(),
				Now:    time.Now(),
			},
			wantStep:  "authentication",
			laterStep: "tenant_lockout",
		},
		{
			// lapsed member on a locked tenant's billing path: the
			// member's own billing denial precedes the tenant-wide one.
			name: "billing before tenant_lockout",
			rc: &RequestContext{
				Host:   "acme.growtharena.com",
				Path:   "/programs",
				Class:  tenancy.Classification{Class: tenancy.HostSubdomain, Subdomain: "acme"},
				Tenant: lockedTenant(),
				Claims: &session.Claims{ActiveOrganizationID: "org_acme", BillingStatus: "canceled"},
				Now:    time.Now(),
			},
			wantStep:  "billing",
			laterStep: "tenant_lockout",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			canonical := NewCascade(DefaultSteps(), logger.NewNop())
			d := canonical.Evaluate(tc.rc)
			if d.Allow {
				t.Fatalf("expected a denial, got allow")
			}
			if d.Step != tc.wantStep {
				t.Fatalf("canonical order denied at %q, want %q", d.Step, tc.wantStep)
			}

			// reversing the two steps flips the observed denial,
			// proving the context genuinely trips both guards
			swapped := NewCascade(swapSteps(DefaultSteps(), tc.wantStep, tc.laterStep), logger.NewNop())
			d = swapped.Evaluate(tc.rc)
			if d.Allow {
				t.Fatalf("swapped order allowed the request")
			}
			if d.Step != tc.laterStep {
				t.Fatalf("swapped order denied at %q, want %q", d.Step, tc.laterStep)
			}
		})
	}
}

func swapSteps(steps []Step, a, b string) []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	ai, bi := -1, -1
	for i, s := range out {
		switch s.Name {
		case a:
			ai = i
		case b:
			bi = i
		}
	}
	if ai >= 0 && bi >= 0 {
		out[ai], out[bi] = out[bi], out[ai]
	}
	return out
}

func TestCascadeUnknownStepNameFilledIn(t *testing.T) {
	steps := []Step{{Name: "custom", Guard: func(*RequestContext) Decision {
		return Decision{Allow: false, Status: 403}
	}}}
	c := NewCascade(steps, logger.NewNop())
	d := c.Evaluate(&RequestContext{Now: time.Now()})
	if d.Step != "custom" {
		t.Fatalf("step = %q, want runner-filled name", d.Step)
	}
}

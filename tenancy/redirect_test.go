package tenancy

import "testing"

func TestLegacyDomainRedirect(t *testing.T) {
	c := NewClassifier(DefaultHostConfig())

	r := c.LegacyDomainRedirect("acme.growtharena.io", "/programs", "tab=all")
	if r == nil {
		t.Fatal("expected redirect")
	}
	if r.Status != 301 {
		t.Fatalf("status = %d, want 301", r.Status)
	}
	if r.Location != "https://acme.growtharena.com/programs?tab=all" {
		t.Fatalf("location = %q", r.Location)
	}

	// canonical base never redirects
	if r := c.LegacyDomainRedirect("acme.growtharena.com", "/", ""); r != nil {
		t.Fatalf("canonical host redirected: %+v", r)
	}
	// reserved labels keep their own handling
	if r := c.LegacyDomainRedirect("www.growtharena.io", "/", ""); r != nil {
		t.Fatalf("reserved label redirected: %+v", r)
	}
	// bare legacy domain is a platform host, not a subdomain
	if r := c.LegacyDomainRedirect("growtharena.io", "/", ""); r != nil {
		t.Fatalf("bare legacy domain redirected: %+v", r)
	}
	// multi-label hosts never match
	if r := c.LegacyDomainRedirect("a.b.growtharena.io", "/", ""); r != nil {
		t.Fatalf("multi-label host redirected: %+v", r)
	}
}

func TestLegacyPathRedirect(t *testing.T) {
	r := LegacyPathRedirect("/quiz", "ref=email", "org_acme")
	if r == nil {
		t.Fatal("expected redirect")
	}
	if r.Status != 302 {
		t.Fatalf("status = %d, want 302", r.Status)
	}
	if r.Location != "/start?org=org_acme&ref=email" {
		t.Fatalf("location = %q", r.Location)
	}

	// trailing slash matches too
	if r := LegacyPathRedirect("/get-started/", "", ""); r == nil || r.Location != "/start" {
		t.Fatalf("trailing slash: %+v", r)
	}

	// an explicit org param wins over the resolved tenant
	r = LegacyPathRedirect("/onboarding/start", "org=org_other", "org_acme")
	if r == nil || r.Location != "/start?org=org_other" {
		t.Fatalf("explicit org: %+v", r)
	}

	// platform mode embeds no org
	if r := LegacyPathRedirect("/quiz", "", ""); r == nil || r.Location != "/start" {
		t.Fatalf("platform mode: %+v", r)
	}

	if r := LegacyPathRedirect("/programs", "", "org_acme"); r != nil {
		t.Fatalf("non-legacy path redirected: %+v", r)
	}
}

func TestCustomDomainRedirect(t *testing.T) {
	cfg := &TenantConfig{
		OrganizationID:       "org_acme",
		Subdomain:            "acme",
		VerifiedCustomDomain: "Coach.Example.com",
	}
	sub := Classification{Class: HostSubdomain, Subdomain: "acme"}
	authSensitive := func(p string) bool { return p == "/sign-in" }

	r := CustomDomainRedirect(cfg, sub, "/programs", "tab=all", authSensitive)
	if r == nil {
		t.Fatal("expected redirect")
	}
	if r.Status != 301 {
		t.Fatalf("status = %d, want 301", r.Status)
	}
	if r.Location != "https://coach.example.com/programs?tab=all" {
		t.Fatalf("location = %q", r.Location)
	}

	// auth-sensitive paths stay on the subdomain
	if r := CustomDomainRedirect(cfg, sub, "/sign-in", "", authSensitive); r != nil {
		t.Fatalf("auth-sensitive path redirected: %+v", r)
	}

	// already on the custom domain: no cycle
	custom := Classification{Class: HostCustomDomain}
	if r := CustomDomainRedirect(cfg, custom, "/programs", "", authSensitive); r != nil {
		t.Fatalf("custom domain redirected again: %+v", r)
	}

	// no verified domain, no redirect
	bare := &TenantConfig{OrganizationID: "org_acme", Subdomain: "acme"}
	if r := CustomDomainRedirect(bare, sub, "/programs", "", authSensitive); r != nil {
		t.Fatalf("unverified domain redirected: %+v", r)
	}
	if r := CustomDomainRedirect(nil, sub, "/programs", "", authSensitive); r != nil {
		t.Fatalf("nil config redirected: %+v", r)
	}
}

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/growtharena/edge/authz"
	"github.com/growtharena/edge/logger"
	"github.com/growtharena/edge/session"
	"github.com/growtharena/edge/tenancy"
	"github.com/growtharena/edge/tenantcookie"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const testSessionSecret = "session-secret"

type redisCache struct {
	rdb *redis.Client
}

func (c *redisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func newTestApp(t *testing.T, seed map[string]*tenancy.TenantConfig) *fiber.App {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(server.Close)
	for sub, cfg := range seed {
		raw, err := json.Marshal(cfg)
		if err != nil {
			t.Fatalf("marshal tenant config: %v", err)
		}
		server.Set("tenant:sub:"+sub, string(raw))
	}

	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := logger.NewNop()
	classifier := tenancy.NewClassifier(tenancy.DefaultHostConfig())
	resolver := tenancy.NewResolver(tenancy.ResolverConfig{}, &redisCache{rdb: rdb}, log)
	verifier := session.NewVerifier(session.VerifierConfig{Secret: testSessionSecret})
	cascade := authz.NewCascade(authz.DefaultSteps(), log)

	tenant := NewTenant(&TenantConfig{CookieSecret: "cookie-secret"}, classifier, resolver, verifier, cascade, log)

	app := fiber.New()
	app.Use(CORSPreflight())
	app.Use(tenant.Handle())
	app.All("/*", func(c fiber.Ctx) error {
		return c.SendString("upstream:" + c.Path())
	})
	return app
}

func signSession(t *testing.T, claims *session.Claims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSessionSecret))
	if err != nil {
		t.Fatalf("sign session: %v", err)
	}
	return token
}

func acmeTenant() *tenancy.TenantConfig {
	return &tenancy.TenantConfig{
		OrganizationID: "org_acme",
		Subdomain:      "acme",
		Subscription: tenancy.Subscription{
			Plan:   tenancy.PlanPro,
			Status: tenancy.StatusActive,
		},
	}
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func TestPreflightShortCircuits(t *testing.T) {
	app := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "https://acme.growtharena.com/api/programs", nil)
	resp := doRequest(t, app, req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS headers")
	}
}

func TestStaticAssetBypass(t *testing.T) {
	// No tenant seeded; an unresolvable host must still serve assets.
	app := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "https://nope.growtharena.com/_static/chunks/app.js", nil)
	resp := doRequest(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected bypass, got %d", resp.StatusCode)
	}
}

func TestLegacyDomainRedirect(t *testing.T) {
	app := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "https://acme.growtharena.io/programs?tab=all", nil)
	resp := doRequest(t, app, req)
	if resp.StatusCode != http.StatusMovedPermanently {
		t.Fatalf("expected 301, got %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if loc != "https://acme.growtharena.com/programs?tab=all" {
		t.Fatalf("unexpected location: %s", loc)
	}
}

func TestUnknownTenantUIRedirectsToPlatform(t *testing.T) {
	app := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "https://ghost.growtharena.com/programs", nil)
	resp := doRequest(t, app, req)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if loc != "https://growtharena.com/tenant-not-found" {
		t.Fatalf("unexpected location: %s", loc)
	}
	// The target lives on the platform domain, not the unresolved host.
	if strings.Contains(loc, "ghost.") {
		t.Fatalf("redirect loops back to unresolved host: %s", loc)
	}
}

func TestUnknownTenantAPIReturns404JSON(t *testing.T) {
	app := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "https://ghost.growtharena.com/api/programs", nil)
	resp := doRequest(t, app, req)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "unknown_tenant" {
		t.Fatalf("unexpected code: %s", body.Code)
	}
}

func TestResolvedTenantPropagatesHeadersAndCookie(t *testing.T) {
	app := newTestApp(t, map[string]*tenancy.TenantConfig{"acme": acmeTenant()})

	req := httptest.NewRequest(http.MethodGet, "https://acme.growtharena.com/sign-in", nil)
	resp := doRequest(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get(HeaderOrgID); got != "org_acme" {
		t.Fatalf("org header = %q", got)
	}
	if got := resp.Header.Get(HeaderSubdomain); got != "acme" {
		t.Fatalf("subdomain header = %q", got)
	}
	if got := resp.Header.Get(HeaderHostname); got != "acme.growtharena.com" {
		t.Fatalf("hostname header = %q", got)
	}
	if got := resp.Header.Get(HeaderLayout); got != "fullscreen" {
		t.Fatalf("layout header = %q", got)
	}

	var snapshot *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == tenantcookie.Name {
			snapshot = ck
		}
	}
	if snapshot == nil {
		t.Fatalf("tenant context cookie not set")
	}
	if !snapshot.HttpOnly {
		t.Fatalf("tenant context cookie must be httpOnly")
	}
	payload, err := tenantcookie.NewCodec("cookie-secret").Decode(snapshot.Value)
	if err != nil {
		t.Fatalf("decode cookie: %v", err)
	}
	if payload.OrgID != "org_acme" {
		t.Fatalf("cookie org = %q", payload.OrgID)
	}
}

func TestPlatformModeExpiresTenantCookie(t *testing.T) {
	app := newTestApp(t, nil)

	stale, err := tenantcookie.NewCodec("cookie-secret").Encode(tenantcookie.Payload{
		V: tenantcookie.Version, OrgID: "org_old", Subdomain: "old",
	})
	if err != nil {
		t.Fatalf("encode stale cookie: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "https://www.growtharena.com/legal", nil)
	req.AddCookie(&http.Cookie{Name: tenantcookie.Name, Value: stale})
	resp := doRequest(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	expired := false
	for _, ck := range resp.Cookies() {
		if ck.Name == tenantcookie.Name && ck.MaxAge < 0 {
			expired = true
		}
	}
	if !expired {
		t.Fatalf("stale tenant cookie must be force-expired in platform mode")
	}
}

func TestPlatformModeEmitsExpiryWithoutPriorCookie(t *testing.T) {
	app := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "https://www.growtharena.com/legal", nil)
	resp := doRequest(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	expired := false
	for _, ck := range resp.Cookies() {
		if ck.Name == tenantcookie.Name && ck.MaxAge < 0 {
			expired = true
		}
	}
	if !expired {
		t.Fatalf("platform mode must emit the forced-expiry cookie even without a prior one")
	}
}

func TestCookieRefreshedOnSameOrgBrandingChange(t *testing.T) {
	cfg := acmeTenant()
	cfg.Branding = tenancy.Branding{PrimaryColor: "#00ff00", Title: "Acme v2"}
	app := newTestApp(t, map[string]*tenancy.TenantConfig{"acme": cfg})

	stale, err := tenantcookie.NewCodec("cookie-secret").Encode(tenantcookie.Payload{
		V:         tenantcookie.Version,
		OrgID:     "org_acme",
		Subdomain: "acme",
		Branding:  tenancy.Branding{PrimaryColor: "#ff0000", Title: "Acme"},
	})
	if err != nil {
		t.Fatalf("encode cookie: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "https://acme.growtharena.com/sign-in", nil)
	req.AddCookie(&http.Cookie{Name: tenantcookie.Name, Value: stale})
	resp := doRequest(t, app, req)

	var fresh *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == tenantcookie.Name {
			fresh = ck
		}
	}
	if fresh == nil {
		t.Fatalf("same-org cookie must be refreshed on every tenant request")
	}
	payload, err := tenantcookie.NewCodec("cookie-secret").Decode(fresh.Value)
	if err != nil {
		t.Fatalf("decode refreshed cookie: %v", err)
	}
	if payload.Branding.PrimaryColor != "#00ff00" || payload.Branding.Title != "Acme v2" {
		t.Fatalf("refreshed cookie carries stale branding: %+v", payload.Branding)
	}
}

func TestCookieOverwrittenOnOrgChange(t *testing.T) {
	app := newTestApp(t, map[string]*tenancy.TenantConfig{"acme": acmeTenant()})

	other, err := tenantcookie.NewCodec("cookie-secret").Encode(tenantcookie.Payload{
		V: tenantcookie.Version, OrgID: "org_other", Subdomain: "other",
	})
	if err != nil {
		t.Fatalf("encode cookie: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "https://acme.growtharena.com/sign-in", nil)
	req.AddCookie(&http.Cookie{Name: tenantcookie.Name, Value: other})
	resp := doRequest(t, app, req)

	var fresh *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == tenantcookie.Name {
			fresh = ck
		}
	}
	if fresh == nil {
		t.Fatalf("cookie must be rewritten on org change")
	}
	payload, err := tenantcookie.NewCodec("cookie-secret").Decode(fresh.Value)
	if err != nil {
		t.Fatalf("decode rewritten cookie: %v", err)
	}
	if payload.OrgID != "org_acme" {
		t.Fatalf("rewritten cookie org = %q", payload.OrgID)
	}
}

func TestAnonymousProtectedPathRedirectsToSignIn(t *testing.T) {
	app := newTestApp(t, map[string]*tenancy.TenantConfig{"acme": acmeTenant()})

	req := httptest.NewRequest(http.MethodGet, "https://acme.growtharena.com/home?tab=feed", nil)
	resp := doRequest(t, app, req)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/sign-in?redirect_url=") {
		t.Fatalf("unexpected location: %s", loc)
	}
}

func TestMemberSessionAllowedAndKnownUserCookieSet(t *testing.T) {
	app := newTestApp(t, map[string]*tenancy.TenantConfig{"acme": acmeTenant()})

	token := signSession(t, &session.Claims{
		RegisteredClaims:     jwt.RegisteredClaims{Subject: "user_1"},
		Role:                 "user",
		ActiveOrganizationID: "org_acme",
	})
	req := httptest.NewRequest(http.MethodGet, "https://acme.growtharena.com/home", nil)
	req.AddCookie(&http.Cookie{Name: session.SessionCookieName, Value: token})
	resp := doRequest(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	known := false
	for _, ck := range resp.Cookies() {
		if ck.Name == tenantcookie.KnownUserName && ck.Value == "1" {
			known = true
		}
	}
	if !known {
		t.Fatalf("known-user cookie not set for authenticated request")
	}
}

func TestNonMemberSessionDenied(t *testing.T) {
	app := newTestApp(t, map[string]*tenancy.TenantConfig{"acme": acmeTenant()})

	token := signSession(t, &session.Claims{
		RegisteredClaims:     jwt.RegisteredClaims{Subject: "user_2"},
		Role:                 "user",
		ActiveOrganizationID: "org_other",
	})
	req := httptest.NewRequest(http.MethodGet, "https://acme.growtharena.com/home", nil)
	req.AddCookie(&http.Cookie{Name: session.SessionCookieName, Value: token})
	resp := doRequest(t, app, req)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected redirect, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/access-denied" {
		t.Fatalf("unexpected location: %s", loc)
	}
}

func TestInvalidSessionDegradesToAnonymous(t *testing.T) {
	app := newTestApp(t, map[string]*tenancy.TenantConfig{"acme": acmeTenant()})

	req := httptest.NewRequest(http.MethodGet, "https://acme.growtharena.com/home", nil)
	req.AddCookie(&http.Cookie{Name: session.SessionCookieName, Value: "garbage.token.value"})
	resp := doRequest(t, app, req)
	// Anonymous path: redirected to sign-in rather than served or 500ed.
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Location"), "/sign-in") {
		t.Fatalf("unexpected location: %s", resp.Header.Get("Location"))
	}
}

func TestMarketingRootRewritesToDiscover(t *testing.T) {
	app := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "https://growtharena.com/", nil)
	resp := doRequest(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := make([]byte, 64)
	n, _ := resp.Body.Read(body)
	if got := string(body[:n]); got != "upstream:/discover" {
		t.Fatalf("expected rewrite to /discover, got %q", got)
	}
}

func TestLegacyPathRedirectEmbedsOrg(t *testing.T) {
	app := newTestApp(t, map[string]*tenancy.TenantConfig{"acme": acmeTenant()})

	req := httptest.NewRequest(http.MethodGet, "https://acme.growtharena.com/quiz?ref=email", nil)
	resp := doRequest(t, app, req)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if loc != "/start?org=org_acme&ref=email" {
		t.Fatalf("unexpected location: %s", loc)
	}
}

func TestCustomDomainRedirectFromSubdomain(t *testing.T) {
	cfg := acmeTenant()
	cfg.VerifiedCustomDomain = "coach.example.com"
	app := newTestApp(t, map[string]*tenancy.TenantConfig{"acme": cfg})

	req := httptest.NewRequest(http.MethodGet, "https://acme.growtharena.com/programs", nil)
	resp := doRequest(t, app, req)
	if resp.StatusCode != http.StatusMovedPermanently {
		t.Fatalf("expected 301, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://coach.example.com/programs" {
		t.Fatalf("unexpected location: %s", loc)
	}

	// Auth-sensitive paths stay on the subdomain.
	req = httptest.NewRequest(http.MethodGet, "https://acme.growtharena.com/sign-in", nil)
	resp = doRequest(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sign-in must not redirect, got %d", resp.StatusCode)
	}
}

package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "session-secret"

func signToken(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier(VerifierConfig{Secret: testSecret})
	token := signToken(t, testSecret, &Claims{
		RegisteredClaims:     jwt.RegisteredClaims{Subject: "user_1"},
		Role:                 "coach",
		ActiveOrganizationID: "org_acme",
	})

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID() != "user_1" {
		t.Fatalf("user id = %q", claims.UserID())
	}
	if claims.UserRole() != RoleCoach {
		t.Fatalf("role = %q", claims.UserRole())
	}
	if !claims.MemberOf("org_acme") {
		t.Fatal("membership claim lost")
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	v := NewVerifier(VerifierConfig{Secret: testSecret})

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"wrong secret": signToken(t, "other-secret", &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user_1"}}),
		"no subject":   signToken(t, testSecret, &Claims{}),
		"expired": signToken(t, testSecret, &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user_1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}),
	}
	for name, token := range cases {
		if _, err := v.Verify(token); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestVerifyRejectsUnsignedAlg(t *testing.T) {
	v := NewVerifier(VerifierConfig{Secret: testSecret})
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user_1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := v.Verify(token); err == nil {
		t.Fatal("alg=none token accepted")
	}
}

func TestVerifyEnforcesIssuer(t *testing.T) {
	v := NewVerifier(VerifierConfig{Secret: testSecret, Issuer: "auth.growtharena.com"})

	good := signToken(t, testSecret, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "user_1",
		Issuer:  "auth.growtharena.com",
	}})
	if _, err := v.Verify(good); err != nil {
		t.Fatalf("matching issuer rejected: %v", err)
	}

	bad := signToken(t, testSecret, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "user_1",
		Issuer:  "evil.example.com",
	}})
	if _, err := v.Verify(bad); err == nil {
		t.Fatal("wrong issuer accepted")
	}
}

func TestVerifyWithoutSecretIsAnonymous(t *testing.T) {
	v := NewVerifier(VerifierConfig{})
	token := signToken(t, testSecret, &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user_1"}})
	if _, err := v.Verify(token); err == nil {
		t.Fatal("verification without a secret accepted a token")
	}
}

func TestTokenFromRequest(t *testing.T) {
	if got := TokenFromRequest("cookie-token", "Bearer header-token"); got != "cookie-token" {
		t.Fatalf("cookie should win, got %q", got)
	}
	if got := TokenFromRequest("", "Bearer header-token"); got != "header-token" {
		t.Fatalf("bearer = %q", got)
	}
	if got := TokenFromRequest("", "Basic abc"); got != "" {
		t.Fatalf("non-bearer = %q", got)
	}
	if got := TokenFromRequest("", ""); got != "" {
		t.Fatalf("empty = %q", got)
	}
}

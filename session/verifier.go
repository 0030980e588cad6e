package session

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

/* ========================================================================
 * Session Verifier
 * ========================================================================
 * Verifies the auth provider's session token (cookie or bearer) and
 * returns typed claims. Verification failures never error out of the
 * middleware: a bad token is simply an anonymous request.
 * ======================================================================== */

const (
	// SessionCookieName is the auth provider's session cookie.
	SessionCookieName = "ga_session"
)

var (
	ErrNoToken      = errors.New("no session token")
	ErrInvalidToken = errors.New("invalid session token")
)

// VerifierConfig configures session verification.
type VerifierConfig struct {
	// Secret is the HMAC secret shared with the auth provider's
	// webhook sync. Empty disables verification (all requests anonymous).
	Secret string `yaml:"secret" mapstructure:"secret"`

	// Issuer, when set, is enforced against the token's iss claim.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
}

// Verifier parses and verifies session tokens.
type Verifier struct {
	cfg VerifierConfig
}

// NewVerifier creates a session verifier.
func NewVerifier(cfg VerifierConfig) *Verifier {
	return &Verifier{cfg: cfg}
}

// Verify parses the token string and returns verified claims.
func (v *Verifier) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoToken
	}
	if v.cfg.Secret == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(v.cfg.Secret), nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenFromRequest extracts the session token from a cookie value or an
// Authorization header value, preferring the cookie.
func TokenFromRequest(cookie, authorization string) string {
	if cookie != "" {
		return cookie
	}
	if strings.HasPrefix(authorization, "Bearer ") {
		return strings.TrimPrefix(authorization, "Bearer ")
	}
	return ""
}

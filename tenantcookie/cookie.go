package tenantcookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/growtharena/edge/tenancy"
)

/* ========================================================================
 * Tenant Context Cookie
 * ========================================================================
 * Serialized snapshot of the resolved tenant context, handed from the
 * edge to server-rendered pages. httpOnly, SameSite=Lax, ~24h lifetime,
 * refreshed on every request so stale branding has a bounded blast
 * radius after a tenant's configuration changes.
 *
 * Wire format: base64url(JSON payload) + "." + hex(HMAC-SHA256).
 * Malformed or unverifiable cookies are ignored, never an error.
 * ======================================================================== */

const (
	// Name is the tenant context cookie.
	Name = "ga_tenant_context"

	// KnownUserName marks returning authenticated users. UX only,
	// carries no security weight.
	KnownUserName = "ga_known_user"

	// MaxAge bounds how long a stale snapshot can outlive a config change.
	MaxAge = 24 * time.Hour

	// Version of the payload schema. Older versions are rejected and
	// rewritten rather than migrated.
	Version = 1
)

var (
	ErrMalformed   = errors.New("malformed tenant cookie")
	ErrBadSign     = errors.New("tenant cookie signature mismatch")
	ErrStaleSchema = errors.New("tenant cookie schema version mismatch")
)

// Payload is the versioned JSON snapshot stored in the cookie.
type Payload struct {
	V                         int              `json:"v"`
	OrgID                     string           `json:"orgId"`
	Subdomain                 string           `json:"subdomain"`
	Branding                  tenancy.Branding `json:"branding"`
	FeedEnabled               bool             `json:"feedEnabled"`
	CoachingPromo             string           `json:"coachingPromo,omitempty"`
	ProgramEmptyStateBehavior string           `json:"programEmptyStateBehavior,omitempty"`
	SquadEmptyStateBehavior   string           `json:"squadEmptyStateBehavior,omitempty"`
}

// FromTenant builds the payload for a resolved tenant. The snapshot is
// always rebuilt whole; fields are never merged from a previous cookie.
func FromTenant(cfg *tenancy.TenantConfig) Payload {
	return Payload{
		V:                         Version,
		OrgID:                     cfg.OrganizationID,
		Subdomain:                 cfg.Subdomain,
		Branding:                  cfg.Branding,
		FeedEnabled:               cfg.FeedEnabled,
		CoachingPromo:             cfg.CoachingPromo,
		ProgramEmptyStateBehavior: cfg.ProgramEmptyStateBehavior,
		SquadEmptyStateBehavior:   cfg.SquadEmptyStateBehavior,
	}
}

// Codec signs and verifies cookie values.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec with the given signing secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode serializes and signs a payload into a cookie value.
func (c *Codec) Encode(p Payload) (string, error) {
	p.V = Version
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(data)
	return body + "." + c.sign(body), nil
}

// Decode verifies and deserializes a cookie value.
func (c *Codec) Decode(value string) (Payload, error) {
	body, sig, ok := strings.Cut(value, ".")
	if !ok || body == "" || sig == "" {
		return Payload{}, ErrMalformed
	}
	expected := c.sign(body)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(sig)) != 1 {
		return Payload{}, ErrBadSign
	}
	data, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return Payload{}, ErrMalformed
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, ErrMalformed
	}
	if p.V != Version {
		return Payload{}, ErrStaleSchema
	}
	return p, nil
}

func (c *Codec) sign(body string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

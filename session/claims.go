package session

import (
	"time"

	"github.com/growtharena/edge/tenancy"

	"github.com/golang-jwt/jwt/v5"
)

/* ========================================================================
 * Session Claims
 * ========================================================================
 * The auth provider maintains session metadata as a cache of
 * authoritative billing state, synced by external webhooks. The shapes
 * here are explicit structs with optional fields; every absent field is
 * read as the most restrictive value, never as "unspecified = allowed".
 * ======================================================================== */

// Role is the platform-wide role carried in session metadata.
type Role string

const (
	RoleUser       Role = "user"
	RoleEditor     Role = "editor"
	RoleCoach      Role = "coach"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// IsStaff reports whether the role is above the base member. Staff roles
// bypass per-user billing gates but remain subject to section gates.
func (r Role) IsStaff() bool {
	switch r {
	case RoleEditor, RoleCoach, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// Claims is the verified session payload.
type Claims struct {
	jwt.RegisteredClaims

	// Public user metadata.
	Role             string `json:"role,omitempty"`
	BillingStatus    string `json:"billingStatus,omitempty"`
	BillingPeriodEnd int64  `json:"billingPeriodEnd,omitempty"` // unix seconds
	CoachingStatus   string `json:"coachingStatus,omitempty"`

	// Org association hints, in claim priority order: the native org
	// context set at sign-in, the primary org id, and the legacy field
	// older sessions still carry.
	ActiveOrganizationID  string `json:"activeOrganizationId,omitempty"`
	PrimaryOrganizationID string `json:"primaryOrganizationId,omitempty"`
	OrganizationID        string `json:"organizationId,omitempty"`

	// Org-level public metadata (coach organizations only).
	OrgPlan               string `json:"orgPlan,omitempty"`
	OrgSubscriptionStatus string `json:"orgSubscriptionStatus,omitempty"`
	OrgCurrentPeriodEnd   int64  `json:"orgCurrentPeriodEnd,omitempty"`
	OrgCancelAtPeriodEnd  bool   `json:"orgCancelAtPeriodEnd,omitempty"`
	OrgGraceEndsAt        int64  `json:"orgGraceEndsAt,omitempty"`
}

// UserID returns the stable user identifier.
func (c *Claims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// UserRole returns the parsed role, defaulting to the base member role
// for unknown or missing values.
func (c *Claims) UserRole() Role {
	if c == nil {
		return RoleUser
	}
	switch Role(c.Role) {
	case RoleEditor, RoleCoach, RoleAdmin, RoleSuperAdmin:
		return Role(c.Role)
	default:
		return RoleUser
	}
}

// MemberOf reports whether any org-association claim matches orgID.
// This is the cheap claims-only pre-filter; authoritative membership
// verification happens again inside protected handlers.
func (c *Claims) MemberOf(orgID string) bool {
	if c == nil || orgID == "" {
		return false
	}
	return c.ActiveOrganizationID == orgID ||
		c.PrimaryOrganizationID == orgID ||
		c.OrganizationID == orgID
}

// HasOrgAssociation reports whether the session carries any org claim.
func (c *Claims) HasOrgAssociation() bool {
	if c == nil {
		return false
	}
	return c.ActiveOrganizationID != "" ||
		c.PrimaryOrganizationID != "" ||
		c.OrganizationID != ""
}

// BillingActive reports whether the user's own billing counts as active
// at now: active or trialing, or canceled/pending-cancellation with the
// paid period not yet elapsed.
func (c *Claims) BillingActive(now time.Time) bool {
	if c == nil {
		return false
	}
	switch c.BillingStatus {
	case "active", "trialing":
		return true
	case "canceled", "pending_cancellation":
		if c.BillingPeriodEnd <= 0 {
			return false
		}
		return now.Before(time.Unix(c.BillingPeriodEnd, 0))
	default:
		return false
	}
}

// Onboarding reports whether the user is mid-onboarding with a coach
// organization; these users pass onboarding paths without billing.
func (c *Claims) Onboarding() bool {
	if c == nil {
		return false
	}
	return c.CoachingStatus == "onboarding" && c.HasOrgAssociation()
}

// OrgSubscription rebuilds the organization subscription snapshot from
// the live session claims. ok is false when the session carries no
// org-level billing metadata at all.
func (c *Claims) OrgSubscription() (tenancy.Subscription, bool) {
	if c == nil || (c.OrgSubscriptionStatus == "" && c.OrgPlan == "") {
		return tenancy.Subscription{}, false
	}
	sub := tenancy.Subscription{
		Plan:              tenancy.ParsePlan(c.OrgPlan),
		Status:            tenancy.SubscriptionStatus(c.OrgSubscriptionStatus),
		CancelAtPeriodEnd: c.OrgCancelAtPeriodEnd,
	}
	if sub.Status == "" {
		sub.Status = tenancy.StatusNone
	}
	if c.OrgCurrentPeriodEnd > 0 {
		sub.CurrentPeriodEnd = time.Unix(c.OrgCurrentPeriodEnd, 0)
	}
	if c.OrgGraceEndsAt > 0 {
		sub.GraceEndsAt = time.Unix(c.OrgGraceEndsAt, 0)
	}
	return sub, true
}

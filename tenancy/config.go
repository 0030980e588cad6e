package tenancy

import "time"

/* ========================================================================
 * Tenant Configuration
 * ========================================================================
 * Read-only snapshot of one organization as the edge sees it. Owned by
 * the registry; the edge consumes it from the cache or the fallback API
 * and never writes it back.
 * ======================================================================== */

// Plan is an organization-level subscription tier.
type Plan string

const (
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
	PlanScale   Plan = "scale"
)

// ParsePlan maps an arbitrary string to a known plan, defaulting to
// starter. Unknown values must never grant a higher tier.
func ParsePlan(s string) Plan {
	switch Plan(s) {
	case PlanPro:
		return PlanPro
	case PlanScale:
		return PlanScale
	default:
		return PlanStarter
	}
}

// AtLeast reports whether p meets the required tier.
func (p Plan) AtLeast(required Plan) bool {
	return planRank(p) >= planRank(required)
}

func planRank(p Plan) int {
	switch p {
	case PlanScale:
		return 2
	case PlanPro:
		return 1
	default:
		return 0
	}
}

// SubscriptionStatus mirrors the payment provider's lifecycle states.
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusTrialing SubscriptionStatus = "trialing"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusNone     SubscriptionStatus = "none"
)

// Subscription is the cached billing snapshot for one organization.
// Session metadata and the registry both feed this shape; absent fields
// stay at their zero values and are treated as the most restrictive state.
type Subscription struct {
	Plan              Plan               `json:"plan"`
	Status            SubscriptionStatus `json:"status"`
	CurrentPeriodEnd  time.Time          `json:"currentPeriodEnd"`
	CancelAtPeriodEnd bool               `json:"cancelAtPeriodEnd"`
	GraceEndsAt       time.Time          `json:"graceEndsAt"`
}

// IsActive reports whether the organization counts as active at now.
// Active or trialing always passes. Past-due passes while inside the
// grace window. Canceled (or pending cancellation) passes while the
// already-paid period has not elapsed.
func (s Subscription) IsActive(now time.Time) bool {
	switch s.Status {
	case StatusActive, StatusTrialing:
		return true
	case StatusPastDue:
		return !s.GraceEndsAt.IsZero() && now.Before(s.GraceEndsAt)
	case StatusCanceled:
		return !s.CurrentPeriodEnd.IsZero() && now.Before(s.CurrentPeriodEnd)
	default:
		return false
	}
}

// Branding is the tenant theming payload. Opaque to the edge: it is
// carried into the context cookie for server rendering, never interpreted.
type Branding struct {
	PrimaryColor string `json:"primaryColor,omitempty"`
	AccentColor  string `json:"accentColor,omitempty"`
	LogoURL      string `json:"logoUrl,omitempty"`
	Title        string `json:"title,omitempty"`
}

// TenantConfig is the resolved identity and cached configuration of the
// organization owning the request hostname.
type TenantConfig struct {
	OrganizationID       string       `json:"organizationId" validate:"required" error_msg:"required:organizationId is required"`
	Subdomain            string       `json:"subdomain"`
	VerifiedCustomDomain string       `json:"verifiedCustomDomain,omitempty"`
	Branding             Branding     `json:"branding"`
	Subscription         Subscription `json:"subscription"`

	// Pass-through behavior flags; the edge copies them into the
	// context cookie without interpreting them.
	FeedEnabled              bool   `json:"feedEnabled"`
	CoachingPromo            string `json:"coachingPromo,omitempty"`
	ProgramEmptyStateBehavior string `json:"programEmptyStateBehavior,omitempty"`
	SquadEmptyStateBehavior  string `json:"squadEmptyStateBehavior,omitempty"`
}

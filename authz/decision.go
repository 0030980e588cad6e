package authz

/* ========================================================================
 * Cascade Decisions
 * ========================================================================
 * Every guard step returns a Decision. The runner stops at the first
 * denial; an earlier denial always wins over a later one.
 * ======================================================================== */

// Decision is the outcome of one guard step.
type Decision struct {
	Allow bool

	// Step and Reason identify the denying guard for logs and metrics.
	Step   string
	Reason string

	// API denial: JSON {error, code?} with Status.
	Status  int
	Code    string
	Message string

	// UI denial: redirect.
	RedirectURL    string
	RedirectStatus int

	// RewritePath serves a different path without redirecting the
	// client (marketing root → discovery listing). Allow stays true.
	RewritePath string
}

// Allowed lets the request continue to the next step.
func Allowed() Decision {
	return Decision{Allow: true}
}

// AllowedWithRewrite lets the request continue but swaps the served path.
func AllowedWithRewrite(path string) Decision {
	return Decision{Allow: true, RewritePath: path}
}

// DenyJSON denies an API request with a structured error body.
func DenyJSON(step, reason string, status int, code, message string) Decision {
	return Decision{
		Step:    step,
		Reason:  reason,
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// DenyRedirect denies a UI navigation with a redirect.
func DenyRedirect(step, reason, location string, status int) Decision {
	if status == 0 {
		status = 302
	}
	return Decision{
		Step:           step,
		Reason:         reason,
		RedirectURL:    location,
		RedirectStatus: status,
	}
}

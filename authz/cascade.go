package authz

import (
	"github.com/growtharena/edge/logger"
	"github.com/growtharena/edge/metrics"

	"go.uber.org/zap"
)

/* ========================================================================
 * Authorization Cascade
 * ========================================================================
 * Strictly sequential evaluation of the guard steps, short-circuiting on
 * the first denial. Later guards depend on context established by
 * earlier ones, so there is no parallel evaluation.
 * ======================================================================== */

// Cascade evaluates an ordered list of guard steps.
type Cascade struct {
	steps []Step
	log   *logger.Logger
}

// NewCascade builds a cascade over the given steps. Pass DefaultSteps()
// for the canonical order.
func NewCascade(steps []Step, log *logger.Logger) *Cascade {
	if log == nil {
		log = logger.NewNop()
	}
	return &Cascade{steps: steps, log: log}
}

// Evaluate runs the steps in order and returns the first denial, or an
// allow carrying any rewrite collected along the way.
func (c *Cascade) Evaluate(rc *RequestContext) Decision {
	allowed := Allowed()
	for _, step := range c.steps {
		d := step.Guard(rc)
		if !d.Allow {
			if d.Step == "" {
				d.Step = step.Name
			}
			c.logDenial(rc, d)
			metrics.AuthzDenialsTotal.WithLabelValues(d.Step, d.Reason).Inc()
			return d
		}
		if d.RewritePath != "" {
			allowed.RewritePath = d.RewritePath
			// Later guards evaluate the path actually being served, so a
			// rewrite to a public page stays reachable anonymously.
			rc.Path = d.RewritePath
		}
	}
	return allowed
}

// logDenial records enough context to reconstruct the decision. Logging
// failures never block the response.
func (c *Cascade) logDenial(rc *RequestContext, d Decision) {
	c.log.Info("Request denied",
		zap.String("step", d.Step),
		zap.String("reason", d.Reason),
		zap.String("host", rc.Host),
		zap.String("path", rc.Path),
		zap.String("user_id", rc.Claims.UserID()),
		zap.String("org_id", rc.OrgID()),
		zap.String("host_class", rc.Class.Class.String()),
		zap.Bool("api", rc.IsAPI),
	)
}

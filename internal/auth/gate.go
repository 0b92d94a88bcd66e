// Package auth implements the session gate in front of the admin surface.
//
// The gate classifies each request path and resolves the session from the
// request cookies before forwarding or redirecting the request. Cookie
// updates produced while resolving the session are written to whichever
// response is returned; dropping them would desynchronise the browser's
// session from the store's.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
)

// Gate is HTTP middleware enforcing a RoutePolicy.
type Gate struct {
	policy   *RoutePolicy
	resolver *Resolver
	logger   *slog.Logger
	metrics  *Metrics
}

// NewGate creates a gate. metrics may be nil.
func NewGate(policy *RoutePolicy, resolver *Resolver, logger *slog.Logger, metrics *Metrics) *Gate {
	return &Gate{
		policy:   policy,
		resolver: resolver,
		logger:   logger.With("component", "gate"),
		metrics:  metrics,
	}
}

// Policy returns the gate's route policy.
func (g *Gate) Policy() *RoutePolicy {
	return g.policy
}

// Decision is the gate's verdict for one request.
type Decision struct {
	Class       RouteClass
	Intercepted bool
	Action      Action
	Resolution  Resolution
}

// Evaluate classifies r, resolves its session, and decides. Paths outside
// the intercept patterns are forwarded without touching the session store.
func (g *Gate) Evaluate(r *http.Request) (d Decision) {
	d.Class, d.Intercepted = g.policy.Classify(r.URL.Path)
	d.Action = Forward()
	if !d.Intercepted {
		return d
	}

	defer func() {
		if p := recover(); p != nil {
			g.logger.Error("gate decision panicked", "path", r.URL.Path, "class", d.Class.String(), "panic", fmt.Sprint(p))
			g.metrics.recordFailure("unavailable")
			d.Action = g.policy.DecideUnavailable(d.Class)
		}
	}()

	res, err := g.resolver.Resolve(r.Context(), r.Cookies())
	d.Resolution = res
	if err != nil {
		g.logger.Error("session resolver unavailable", "path", r.URL.Path, "class", d.Class.String(), "error", err)
		d.Action = g.policy.DecideUnavailable(d.Class)
		return d
	}
	d.Action = g.policy.Decide(d.Class, res.Identity != nil)
	return d
}

// Middleware wraps next with the gate.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Evaluate(r)
		if !d.Intercepted {
			next.ServeHTTP(w, r)
			return
		}

		for _, c := range d.Resolution.Mutations {
			http.SetCookie(w, c)
		}
		if len(d.Resolution.Mutations) > 0 {
			w.Header().Set("Cache-Control", "private, no-store")
		}
		g.metrics.recordDecision(d.Class, d.Action)
		g.logger.Debug("decision", "path", r.URL.Path, "class", d.Class.String(), "action", d.Action.String(),
			"authenticated", d.Resolution.Identity != nil, "cookie_mutations", len(d.Resolution.Mutations))

		if d.Action.Kind == ActionRedirect {
			http.Redirect(w, r, d.Action.Target, http.StatusFound)
			return
		}
		if id := d.Resolution.Identity; id != nil {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

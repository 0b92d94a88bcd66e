package auth

import (
	"fmt"
	"path"
	"strings"
)

// RouteClass is the static category of a request path.
type RouteClass int

const (
	// ClassPublic paths are never checked.
	ClassPublic RouteClass = iota
	// ClassLoginPage is the sign-in page, hidden from signed-in users.
	ClassLoginPage
	// ClassProtectedAdmin paths require an identity.
	ClassProtectedAdmin
)

func (c RouteClass) String() string {
	switch c {
	case ClassLoginPage:
		return "login-page"
	case ClassProtectedAdmin:
		return "protected-admin"
	default:
		return "public"
	}
}

// ActionKind says what the gate does with a request.
type ActionKind int

const (
	ActionForward ActionKind = iota
	ActionRedirect
)

// Action is the outcome of a gate decision.
type Action struct {
	Kind   ActionKind
	Target string // redirect location; empty for Forward
}

// Forward lets the request through unchanged.
func Forward() Action { return Action{Kind: ActionForward} }

// RedirectTo sends the client to target.
func RedirectTo(target string) Action { return Action{Kind: ActionRedirect, Target: target} }

func (a Action) String() string {
	if a.Kind == ActionRedirect {
		return "redirect:" + a.Target
	}
	return "forward"
}

// pattern is a path matcher. "/admin/*" matches "/admin" and everything
// below it; a pattern without a trailing "/*" matches one path exactly.
type pattern struct {
	raw    string
	base   string
	prefix bool
}

func parsePattern(p string) (pattern, error) {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		return pattern{}, fmt.Errorf("pattern %q must start with /", p)
	}
	if base, ok := strings.CutSuffix(p, "/*"); ok {
		if strings.Contains(base, "*") {
			return pattern{}, fmt.Errorf("pattern %q: * is only allowed as the last segment", p)
		}
		if base == "" {
			base = "/"
		}
		return pattern{raw: p, base: base, prefix: true}, nil
	}
	if strings.Contains(p, "*") {
		return pattern{}, fmt.Errorf("pattern %q: * is only allowed as the last segment", p)
	}
	return pattern{raw: p, base: p}, nil
}

func (p pattern) match(urlPath string) bool {
	if !p.prefix {
		return urlPath == p.base
	}
	if p.base == "/" || urlPath == p.base {
		return true
	}
	return strings.HasPrefix(urlPath, p.base+"/")
}

// RoutePolicy classifies paths and maps (class, identity) to an action.
// It is built once at startup and never modified, so it is safe to share
// across goroutines.
//
// Requests are intercepted when their path matches one of the patterns.
// A pattern that also matches the login path groups the auth pages: the
// login path itself is ClassLoginPage and the rest of that group (logout,
// callbacks) is intercepted but public. Every other pattern is protected.
type RoutePolicy struct {
	intercept []pattern
	protected []pattern
	loginPath string
	adminHome string
}

// NewRoutePolicy builds a policy from intercept patterns and the two
// redirect targets.
func NewRoutePolicy(patterns []string, loginPath, adminHome string) (*RoutePolicy, error) {
	if !strings.HasPrefix(loginPath, "/") || !strings.HasPrefix(adminHome, "/") {
		return nil, fmt.Errorf("login path %q and admin home %q must be absolute", loginPath, adminHome)
	}
	p := &RoutePolicy{loginPath: path.Clean(loginPath), adminHome: adminHome}
	for _, raw := range patterns {
		pat, err := parsePattern(raw)
		if err != nil {
			return nil, err
		}
		p.intercept = append(p.intercept, pat)
		if !pat.match(p.loginPath) {
			p.protected = append(p.protected, pat)
		}
	}
	if p.isProtected(p.loginPath) {
		return nil, fmt.Errorf("login path %q must not be protected", loginPath)
	}
	if !p.isProtected(path.Clean(adminHome)) {
		return nil, fmt.Errorf("admin home %q is not covered by a protected pattern", adminHome)
	}
	return p, nil
}

// LoginPath returns the sign-in page path.
func (p *RoutePolicy) LoginPath() string { return p.loginPath }

// AdminHome returns the admin landing page path.
func (p *RoutePolicy) AdminHome() string { return p.adminHome }

// Classify returns the route class of urlPath and whether the gate should
// intercept it at all. Both the raw and the cleaned path are checked and
// the stricter result wins, so dot segments cannot step around a prefix.
func (p *RoutePolicy) Classify(urlPath string) (RouteClass, bool) {
	if urlPath == "" {
		urlPath = "/"
	}
	clean := path.Clean(urlPath)

	if p.isProtected(urlPath) || p.isProtected(clean) {
		return ClassProtectedAdmin, true
	}
	if clean == p.loginPath {
		return ClassLoginPage, true
	}
	if p.isIntercepted(urlPath) || p.isIntercepted(clean) {
		return ClassPublic, true
	}
	return ClassPublic, false
}

// Decide is the access policy table. It is a pure function of its inputs.
//
//	class            identity                no identity
//	protected-admin  Forward                 RedirectTo(login)
//	login-page       RedirectTo(admin home)  Forward
//	public           Forward                 Forward
func (p *RoutePolicy) Decide(class RouteClass, hasIdentity bool) Action {
	switch class {
	case ClassProtectedAdmin:
		if hasIdentity {
			return Forward()
		}
		return RedirectTo(p.loginPath)
	case ClassLoginPage:
		if hasIdentity {
			return RedirectTo(p.adminHome)
		}
		return Forward()
	default:
		return Forward()
	}
}

// DecideUnavailable is the action taken when the session could not be
// resolved at all. Protected paths fail closed; everything else is let
// through so an auth outage does not take public pages down with it.
func (p *RoutePolicy) DecideUnavailable(class RouteClass) Action {
	if class == ClassProtectedAdmin {
		return RedirectTo(p.loginPath)
	}
	return Forward()
}

func (p *RoutePolicy) isProtected(urlPath string) bool {
	for _, pat := range p.protected {
		if pat.match(urlPath) {
			return true
		}
	}
	return false
}

func (p *RoutePolicy) isIntercepted(urlPath string) bool {
	for _, pat := range p.intercept {
		if pat.match(urlPath) {
			return true
		}
	}
	return false
}

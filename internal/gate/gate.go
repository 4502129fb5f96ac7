// Package gate decides, per request path, whether the caller may proceed.
package gate

import (
	"path"
	"strings"

	"github.com/and161185/patient-registry/internal/model"
)

// Decision is the outcome of evaluating a request path.
type Decision int

const (
	// Allow lets the request through.
	Allow Decision = iota
	// Login sends an unauthenticated caller to the login page.
	Login
	// Forbidden rejects an authenticated caller lacking the role.
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Login:
		return "login"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Access is what a rule demands of the caller.
type Access struct {
	Public bool       // no session needed
	Role   model.Role // empty means any authenticated caller
}

var (
	Public        = Access{Public: true}
	Authenticated = Access{}
)

// RequireRole demands role r.
func RequireRole(r model.Role) Access { return Access{Role: r} }

// Rule binds path patterns to an Access. A pattern is either exact ("/login")
// or a subtree ("/admin/**" matches "/admin" and everything below it).
type Rule struct {
	Patterns []string
	Access   Access
}

func (r Rule) matches(p string) bool {
	for _, pat := range r.Patterns {
		if matchPattern(pat, p) {
			return true
		}
	}
	return false
}

func matchPattern(pat, p string) bool {
	prefix, subtree := strings.CutSuffix(pat, "/**")
	if !subtree {
		return pat == p
	}
	if prefix == "" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// Gate evaluates rules in order; the first match wins.
type Gate struct {
	rules []Rule
}

// New returns a gate over rules. Paths matching no rule require authentication.
func New(rules ...Rule) *Gate { return &Gate{rules: rules} }

// Default is the application's rule table.
func Default() *Gate {
	return New(
		Rule{Patterns: []string{"/deletePatient/**"}, Access: RequireRole(model.RoleAdmin)},
		Rule{Patterns: []string{"/admin/**"}, Access: RequireRole(model.RoleAdmin)},
		Rule{Patterns: []string{"/", "/login", "/css/**", "/js/**"}, Access: Public},
		Rule{Patterns: []string{"/webjars/**", "/metrics", "/healthz"}, Access: Public},
		Rule{Patterns: []string{"/user/**"}, Access: RequireRole(model.RoleUser)},
		Rule{Patterns: []string{"/**"}, Access: Authenticated},
	)
}

// Clean normalizes a request path so "/user/../admin" is judged as "/admin".
func Clean(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// Evaluate decides for a request path. id is nil for an anonymous caller.
func (g *Gate) Evaluate(p string, id *model.Identity) Decision {
	p = Clean(p)
	acc := Authenticated
	for _, r := range g.rules {
		if r.matches(p) {
			acc = r.Access
			break
		}
	}
	switch {
	case acc.Public:
		return Allow
	case id == nil:
		return Login
	case acc.Role != "" && !id.HasRole(acc.Role):
		return Forbidden
	default:
		return Allow
	}
}

// Package authz decides whether a request path is reachable with the
// presented session.
//
// A Policy is an ordered table of entries. Public entries always win; among
// role entries the first one that matches, in authored order, decides.
// Paths that match no entry are open to any authenticated caller.
package authz

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gobwas/glob"
	"github.com/go-storefront-auth/internal/domain"
	jwtinfra "github.com/go-storefront-auth/internal/infrastructure/jwt"
)

// Decision is the outcome of evaluating a request against a Policy.
type Decision int

const (
	Allow Decision = iota
	DenyUnauthenticated
	DenyForbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "deny_unauthenticated"
	case DenyForbidden:
		return "deny_forbidden"
	default:
		return "unknown"
	}
}

// Err maps a denial to the matching domain error. Allow yields nil.
func (d Decision) Err() error {
	switch d {
	case Allow:
		return nil
	case DenyUnauthenticated:
		return domain.ErrUnauthorized
	default:
		return domain.ErrForbidden
	}
}

// Entry is one row of the policy table.
//
// Pattern is an Ant-style path: "*" and "{name}" match one segment, "**"
// matches any remainder including none. Methods restricts the entry to the
// listed HTTP methods; empty means every method. An entry with an empty Role
// is public.
type Entry struct {
	Pattern string
	Methods []string
	Role    string
}

// Public builds a public entry.
func Public(pattern string, methods ...string) Entry {
	return Entry{Pattern: pattern, Methods: methods}
}

// RequireRole builds an entry restricted to role.
func RequireRole(role, pattern string, methods ...string) Entry {
	return Entry{Pattern: pattern, Methods: methods, Role: role}
}

// IsPublic reports whether the entry grants anonymous access.
func (e Entry) IsPublic() bool { return e.Role == "" }

type rule struct {
	entry   Entry
	matcher glob.Glob
	// bare is the pattern without a trailing "/**", which Ant matching also accepts.
	bare string
}

func (r rule) matches(method, p string) bool {
	if len(r.entry.Methods) > 0 && !containsFold(r.entry.Methods, method) {
		return false
	}
	return r.matcher.Match(p) || (r.bare != "" && p == r.bare)
}

// Policy is an immutable compiled table. It is safe for concurrent use.
type Policy struct {
	public []rule
	roles  []rule
	all    []Entry
}

// NewPolicy compiles entries in order. It fails on a malformed pattern or an unknown role.
func NewPolicy(entries ...Entry) (*Policy, error) {
	p := &Policy{all: make([]Entry, 0, len(entries))}
	var errs []error
	for i, e := range entries {
		r, err := compile(e)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%q): %w", i, e.Pattern, err))
			continue
		}
		if e.IsPublic() {
			p.public = append(p.public, r)
		} else {
			p.roles = append(p.roles, r)
		}
		p.all = append(p.all, cloneEntry(e))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return p, nil
}

// MustPolicy is NewPolicy for tables known at compile time.
func MustPolicy(entries ...Entry) *Policy {
	p, err := NewPolicy(entries...)
	if err != nil {
		panic(err)
	}
	return p
}

// Entries returns a copy of the table in authored order.
func (p *Policy) Entries() []Entry {
	out := make([]Entry, len(p.all))
	for i, e := range p.all {
		out[i] = cloneEntry(e)
	}
	return out
}

// Decide evaluates a request. claims is nil when no valid session was presented.
func (p *Policy) Decide(method, reqPath string, claims *jwtinfra.Claims) Decision {
	reqPath = normalize(reqPath)
	for _, r := range p.public {
		if r.matches(method, reqPath) {
			return Allow
		}
	}
	if claims == nil {
		return DenyUnauthenticated
	}
	for _, r := range p.roles {
		if r.matches(method, reqPath) {
			if claims.Role == r.entry.Role {
				return Allow
			}
			return DenyForbidden
		}
	}
	return Allow
}

func compile(e Entry) (rule, error) {
	if !strings.HasPrefix(e.Pattern, "/") {
		return rule{}, errors.New("pattern must start with '/'")
	}
	if !e.IsPublic() && !domain.ValidRole(e.Role) {
		return rule{}, fmt.Errorf("unknown role %q", e.Role)
	}
	g, err := glob.Compile(toGlob(e.Pattern), '/')
	if err != nil {
		return rule{}, err
	}
	r := rule{entry: e, matcher: g}
	if bare, ok := strings.CutSuffix(e.Pattern, "/**"); ok && !strings.ContainsAny(bare, "*{") {
		if bare == "" {
			bare = "/"
		}
		r.bare = bare
	}
	return r, nil
}

// toGlob rewrites an Ant pattern into gobwas syntax. Literal segments are
// quoted so that glob metacharacters in paths are matched verbatim.
func toGlob(pattern string) string {
	segs := strings.Split(pattern, "/")
	for i, s := range segs {
		switch {
		case s == "**", s == "*":
		case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
			segs[i] = "*"
		default:
			segs[i] = glob.QuoteMeta(s)
		}
	}
	return strings.Join(segs, "/")
}

// normalize collapses duplicate slashes and dot segments so "/api//admin/./x"
// is judged as "/api/admin/x".
func normalize(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}

func containsFold(methods []string, m string) bool {
	for _, x := range methods {
		if strings.EqualFold(x, m) {
			return true
		}
	}
	// HEAD is served wherever GET is.
	if m == http.MethodHead {
		for _, x := range methods {
			if strings.EqualFold(x, http.MethodGet) {
				return true
			}
		}
	}
	return false
}

func cloneEntry(e Entry) Entry {
	if e.Methods != nil {
		e.Methods = append([]string(nil), e.Methods...)
	}
	return e
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package access

import (
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// MethodAny matches every HTTP method in a rule or allowlist entry.
const MethodAny = "*"

// Rule declares the roles required to call routes matching a method and
// path pattern. An empty Roles list means authenticated-only.
type Rule struct {
	Method  string   `koanf:"method"`
	Pattern string   `koanf:"pattern"`
	Roles   []string `koanf:"roles"`
}

// PublicRoute declares a route reachable without a token.
type PublicRoute struct {
	Method  string `koanf:"method"`
	Pattern string `koanf:"pattern"`
}

// compiledRule is a Rule with its pattern compiled and specificity
// precomputed. Rules are sorted once; evaluation scans in order and the
// first match wins.
type compiledRule struct {
	method          string
	pattern         string
	glob            glob.Glob
	roles           RoleSet
	literalSegments int
	totalSegments   int
}

// Policy is the compiled authorization rule table. Immutable after
// construction; safe for unbounded concurrent use.
type Policy struct {
	rules  []compiledRule
	public []compiledRule
}

// NewPolicy compiles rules and the public allowlist. Role names in rules
// are validated against the registry. Returns an error for invalid glob
// syntax or unknown roles; the process should fail at startup rather than
// run with a partial table.
func NewPolicy(registry *Registry, rules []Rule, public []PublicRoute) (*Policy, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		cr, err := compileRule(rule.Method, rule.Pattern)
		if err != nil {
			return nil, err
		}
		if len(rule.Roles) > 0 {
			roles, err := registry.ParseSet(rule.Roles)
			if err != nil {
				return nil, oops.In("access").
					Code("INVALID_RULE").
					With("method", rule.Method).
					With("pattern", rule.Pattern).
					Wrap(err)
			}
			cr.roles = roles
		}
		compiled = append(compiled, cr)
	}

	// Most specific first: more literal segments, then more segments
	// overall, then longer pattern text. Declaration order breaks ties.
	sort.SliceStable(compiled, func(i, j int) bool {
		a, b := compiled[i], compiled[j]
		if a.literalSegments != b.literalSegments {
			return a.literalSegments > b.literalSegments
		}
		if a.totalSegments != b.totalSegments {
			return a.totalSegments > b.totalSegments
		}
		return len(a.pattern) > len(b.pattern)
	})

	allow := make([]compiledRule, 0, len(public))
	for _, route := range public {
		cr, err := compileRule(route.Method, route.Pattern)
		if err != nil {
			return nil, err
		}
		allow = append(allow, cr)
	}

	return &Policy{rules: compiled, public: allow}, nil
}

// compileRule compiles a method+pattern pair. Patterns are '/'-separated;
// '*' matches a single segment, '**' any suffix.
func compileRule(method, pattern string) (compiledRule, error) {
	if pattern == "" || !strings.HasPrefix(pattern, "/") {
		return compiledRule{}, oops.In("access").
			Code("INVALID_RULE").
			With("pattern", pattern).
			Errorf("pattern must start with '/'")
	}

	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return compiledRule{}, oops.In("access").
			Code("INVALID_RULE").
			With("pattern", pattern).
			Wrap(err)
	}

	segments := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	literal := 0
	for _, seg := range segments {
		if !strings.ContainsAny(seg, "*?[{") {
			literal++
		}
	}

	canonical := strings.ToUpper(strings.TrimSpace(method))
	if canonical == "" {
		canonical = MethodAny
	}

	return compiledRule{
		method:          canonical,
		pattern:         pattern,
		glob:            g,
		literalSegments: literal,
		totalSegments:   len(segments),
	}, nil
}

// matches reports whether the rule covers the given method and path.
func (r *compiledRule) matches(method, path string) bool {
	if r.method != MethodAny && r.method != method {
		return false
	}
	return r.glob.Match(path)
}

// IsPublic reports whether the route may be called without a token.
func (p *Policy) IsPublic(method, path string) bool {
	method = strings.ToUpper(method)
	for i := range p.public {
		if p.public[i].matches(method, path) {
			return true
		}
	}
	return false
}

// Required returns the role set demanded by the most specific rule
// matching the request, or nil if no rule matches (authenticated-only).
func (p *Policy) Required(method, path string) RoleSet {
	method = strings.ToUpper(method)
	for i := range p.rules {
		if p.rules[i].matches(method, path) {
			return p.rules[i].roles
		}
	}
	return nil
}

// Authorize decides whether an authenticated caller holding the given
// roles may perform the request. Allow iff the matched rule's role set is
// empty (authenticated-only) or intersects the caller's roles. Fails with
// ACCESS_DENIED; the decision is stateless and recomputed per request.
func (p *Policy) Authorize(method, path string, roles RoleSet) error {
	required := p.Required(method, path)
	if len(required) == 0 || required.Intersects(roles) {
		return nil
	}
	return oops.In("access").
		Code("ACCESS_DENIED").
		With("method", method).
		With("path", path).
		With("required", required.Names()).
		Errorf("caller roles do not satisfy route requirements")
}

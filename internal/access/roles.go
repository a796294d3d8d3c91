// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package access

import (
	"sort"
	"strings"

	"github.com/samber/oops"
)

// Built-in role names. Deployments may declare additional roles in
// configuration; these two always exist.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Registry validates role names against the set known to this deployment.
// It is immutable after construction.
type Registry struct {
	known map[string]struct{}
}

// NewRegistry creates a Registry containing the built-in roles plus any
// extra deployment-specific names. Names are upper-cased on registration
// and on lookup, matching the store's role collation.
func NewRegistry(extra ...string) *Registry {
	known := map[string]struct{}{
		RoleAdmin: {},
		RoleUser:  {},
	}
	for _, name := range extra {
		if name = strings.ToUpper(strings.TrimSpace(name)); name != "" {
			known[name] = struct{}{}
		}
	}
	return &Registry{known: known}
}

// Parse validates a role name and returns its canonical form.
// Unknown names fail with ROLE_UNKNOWN.
func (r *Registry) Parse(name string) (string, error) {
	canonical := strings.ToUpper(strings.TrimSpace(name))
	if _, ok := r.known[canonical]; !ok {
		return "", oops.In("access").
			Code("ROLE_UNKNOWN").
			With("role", name).
			Errorf("unknown role name: %s", name)
	}
	return canonical, nil
}

// ParseSet validates a list of role names and returns them as a RoleSet.
// An empty input fails with ROLE_UNKNOWN; every principal holds at least
// one role.
func (r *Registry) ParseSet(names []string) (RoleSet, error) {
	if len(names) == 0 {
		return nil, oops.In("access").
			Code("ROLE_UNKNOWN").
			Errorf("role set cannot be empty")
	}
	set := make(RoleSet, len(names))
	for _, name := range names {
		canonical, err := r.Parse(name)
		if err != nil {
			return nil, err
		}
		set[canonical] = struct{}{}
	}
	return set, nil
}

// RoleSet is an unordered set of role names. Both deployment variants
// (single role per user, multiple roles per user) are sets; a single role
// is a set of size one.
type RoleSet map[string]struct{}

// NewRoleSet builds a RoleSet from role names without validation.
// Use Registry.ParseSet when the names come from outside the process.
func NewRoleSet(names ...string) RoleSet {
	set := make(RoleSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the given role.
func (s RoleSet) Has(role string) bool {
	_, ok := s[role]
	return ok
}

// Intersects reports whether the two sets share at least one role.
// This is the whole authorization policy: a request is allowed iff the
// caller's roles intersect the route's required roles. Widening either
// set can only turn a deny into an allow, never the reverse.
func (s RoleSet) Intersects(other RoleSet) bool {
	// Iterate the smaller set.
	a, b := s, other
	if len(b) < len(a) {
		a, b = b, a
	}
	for role := range a {
		if b.Has(role) {
			return true
		}
	}
	return false
}

// Names returns the set's role names in sorted order, for token claims
// and stable log output.
func (s RoleSet) Names() []string {
	names := make([]string, 0, len(s))
	for role := range s {
		names = append(names, role)
	}
	sort.Strings(names)
	return names
}

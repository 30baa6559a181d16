/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"strings"

	"github.com/friendsincode/tekkin/internal/models"
)

// AdminPolicy decides whether a caller may use admin routes. A caller is an
// admin if they hold the admin role or appear in either allowlist.
type AdminPolicy struct {
	emails  map[string]struct{}
	userIDs map[string]struct{}
}

// NewAdminPolicy builds a policy from allowlists. Entries are trimmed and
// emails compared case-insensitively.
func NewAdminPolicy(emails, userIDs []string) *AdminPolicy {
	p := &AdminPolicy{
		emails:  make(map[string]struct{}, len(emails)),
		userIDs: make(map[string]struct{}, len(userIDs)),
	}
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			p.emails[e] = struct{}{}
		}
	}
	for _, id := range userIDs {
		if id = strings.TrimSpace(id); id != "" {
			p.userIDs[id] = struct{}{}
		}
	}
	return p
}

// IsAdmin evaluates the policy for the given claims.
func (p *AdminPolicy) IsAdmin(c *Claims) bool {
	if c == nil {
		return false
	}
	if c.HasRole(string(models.RoleAdmin)) {
		return true
	}
	if p == nil {
		return false
	}
	if _, ok := p.userIDs[c.UserID]; ok {
		return true
	}
	_, ok := p.emails[strings.ToLower(strings.TrimSpace(c.Email))]
	return ok && c.Email != ""
}

package models

import "fmt"

// Role is the closed set of administrative roles a user can hold.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleSuperuser Role = "superuser"
)

// legacyActiveRole was stored as a literal role by the earlier CouchDB
// generation of this backend; it maps to the Disabled flag here.
const legacyActiveRole = "active"

// AllRoles lists the assignable roles, for clients building role pickers.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleSuperuser}
}

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleSuperuser:
		return RoleSuperuser, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// ParseRoles decodes a stored roles array. It strips the legacy "active"
// literal and reports whether it was present, so callers can derive the
// disabled flag for documents written by the old schema.
func ParseRoles(ss []string) ([]Role, bool, error) {
	var roles []Role
	active := false
	for _, s := range ss {
		if s == legacyActiveRole {
			active = true
			continue
		}
		role, err := ParseRole(s)
		if err != nil {
			return nil, false, err
		}
		roles = append(roles, role)
	}
	return roles, active, nil
}

// EncodeRoles serializes roles for storage. When includeActive is set the
// legacy "active" literal is appended for compatibility with
// Sync-Gateway-style ACLs.
func EncodeRoles(roles []Role, includeActive bool) []string {
	out := make([]string, 0, len(roles)+1)
	for _, role := range roles {
		out = append(out, string(role))
	}
	if includeActive {
		out = append(out, legacyActiveRole)
	}
	return out
}

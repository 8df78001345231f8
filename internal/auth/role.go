// Package auth decides, purely from the persisted session, which portal role
// the current user holds and keeps the stored role and role identifier
// consistent with each other. The server remains the trust boundary; nothing
// here grants access to data, it only drives client-side navigation.
package auth

import (
	"strings"

	"medportal/internal/session"
)

// Role is one of the mutually exclusive portal roles. The zero value means
// unauthenticated.
type Role string

const (
	RoleNone    Role = ""
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// AllRoles in declaration order.
var AllRoles = []Role{RolePatient, RoleDoctor, RoleStaff, RoleAdmin}

// ParseRole normalizes s (case, surrounding space, a ROLE_ prefix) into a Role.
func ParseRole(s string) (Role, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "role_")
	for _, r := range AllRoles {
		if v == string(r) {
			return r, true
		}
	}
	return RoleNone, false
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// Token is the upper-case marker searched for in plain-text identity payloads.
func (r Role) Token() string { return strings.ToUpper(string(r)) }

// IDKey is the session key holding this role's identifier.
func (r Role) IDKey() string {
	switch r {
	case RolePatient:
		return session.KeyPatientID
	case RoleDoctor:
		return session.KeyDoctorID
	case RoleStaff:
		return session.KeyStaffID
	case RoleAdmin:
		return session.KeyAdminID
	}
	return ""
}

// Title is the display name.
func (r Role) Title() string {
	if r == RoleNone {
		return "Guest"
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

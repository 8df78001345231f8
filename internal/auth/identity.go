package auth

import (
	"bytes"
	"encoding/json"
	"strings"

	"medportal/internal/session"
)

// IdentityPrecedence decides which identifier wins when more than one slot
// is populated at once. The order is inherited behavior, kept as-is.
var IdentityPrecedence = []Role{RolePatient, RoleDoctor, RoleStaff, RoleAdmin}

// Identity is the tagged variant Patient(id) | Doctor(id) | Staff(id) |
// Admin(id) | None. The zero value is None.
type Identity struct {
	Role Role
	ID   string
}

// NoIdentity is the None variant.
var NoIdentity = Identity{}

func PatientIdentity(id string) Identity { return Identity{Role: RolePatient, ID: id} }
func DoctorIdentity(id string) Identity  { return Identity{Role: RoleDoctor, ID: id} }
func StaffIdentity(id string) Identity   { return Identity{Role: RoleStaff, ID: id} }
func AdminIdentity(id string) Identity   { return Identity{Role: RoleAdmin, ID: id} }

// IsNone reports whether this is the None variant.
func (i Identity) IsNone() bool { return i.Role == RoleNone || i.ID == "" }

func (i Identity) String() string {
	if i.IsNone() {
		return "none"
	}
	return string(i.Role) + ":" + i.ID
}

// Identities returns every populated identifier slot, in IdentityPrecedence
// order. More than one element is an inconsistent session.
func Identities(snap session.Snapshot) []Identity {
	slots := map[Role]string{
		RolePatient: snap.PatientID,
		RoleDoctor:  snap.DoctorID,
		RoleStaff:   snap.StaffID,
		RoleAdmin:   snap.AdminID,
	}
	var out []Identity
	for _, r := range IdentityPrecedence {
		if id := strings.TrimSpace(slots[r]); id != "" {
			out = append(out, Identity{Role: r, ID: id})
		}
	}
	return out
}

// SelectIdentity applies IdentityPrecedence to the populated slots.
func SelectIdentity(snap session.Snapshot) (Identity, bool) {
	ids := Identities(snap)
	if len(ids) == 0 {
		return NoIdentity, false
	}
	return ids[0], len(ids) > 1
}

// ExtractIdentity looks for role's identifier inside a JSON identity payload:
// "<role>Id", "personId" or "id", at top level or under "user".
func ExtractIdentity(payload string, role Role) (Identity, bool) {
	if role == RoleNone {
		return NoIdentity, false
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return NoIdentity, false
	}

	scopes := []map[string]any{obj}
	if user, ok := obj["user"].(map[string]any); ok {
		scopes = append(scopes, user)
	}
	for _, scope := range scopes {
		for _, key := range []string{role.IDKey(), "personId", "id"} {
			if id := scalarString(scope[key]); id != "" {
				return Identity{Role: role, ID: id}, true
			}
		}
	}
	return NoIdentity, false
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	}
	return ""
}

package auth

import (
	"encoding/json"
	"fmt"
	"strings"

	"medportal/internal/logging"
)

// Strategy is one named attempt at reading a Role out of an identity payload.
type Strategy struct {
	Name    string
	Resolve func(payload string) (Role, bool)
}

// tokenOrder is the fixed search order for substring matching. A payload
// carrying several markers resolves to the first one in this list.
var tokenOrder = []Role{RolePatient, RoleDoctor, RoleStaff, RoleAdmin}

// StructuredStrategy reads role, userRole or user.role from a JSON object.
var StructuredStrategy = Strategy{Name: "structured", Resolve: resolveStructured}

// ExactTokenStrategy searches for PATIENT, DOCTOR, STAFF, ADMIN verbatim.
var ExactTokenStrategy = Strategy{Name: "exact-token", Resolve: resolveExactToken}

// FoldedTokenStrategy repeats the token search over the lowercased payload.
var FoldedTokenStrategy = Strategy{Name: "folded-token", Resolve: resolveFoldedToken}

// DefaultStrategies is the resolution chain in priority order.
var DefaultStrategies = []Strategy{StructuredStrategy, ExactTokenStrategy, FoldedTokenStrategy}

// Resolver runs its strategies in order; the first one yielding a role wins.
// It is pure and safe for concurrent use.
type Resolver struct {
	strategies []Strategy
}

// NewResolver builds a Resolver. With no strategies it uses DefaultStrategies.
func NewResolver(strategies ...Strategy) *Resolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	return &Resolver{strategies: strategies}
}

// Resolve returns the role and the name of the strategy that found it.
func (r *Resolver) Resolve(payload string) (Role, string, error) {
	if strings.TrimSpace(payload) == "" {
		return RoleNone, "", fmt.Errorf("empty payload: %w", ErrMissingCredential)
	}
	for _, s := range r.strategies {
		if role, ok := s.Resolve(payload); ok {
			logging.AuthDebug("role %s resolved by %s", role, s.Name)
			return role, s.Name, nil
		}
	}
	logging.Get(logging.CategoryAuth).Warn("role resolution failed after %d strategies", len(r.strategies))
	return RoleNone, "", ErrRoleResolution
}

func resolveStructured(payload string) (Role, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return RoleNone, false
	}

	candidates := []any{obj["role"], obj["userRole"]}
	if user, ok := obj["user"].(map[string]any); ok {
		candidates = append(candidates, user["role"])
	}
	for _, c := range candidates {
		s, ok := c.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		// First non-empty value wins, even when it names no known role.
		return ParseRole(s)
	}
	return RoleNone, false
}

func resolveExactToken(payload string) (Role, bool) {
	for _, r := range tokenOrder {
		if strings.Contains(payload, r.Token()) {
			return r, true
		}
	}
	return RoleNone, false
}

func resolveFoldedToken(payload string) (Role, bool) {
	lowered := strings.ToLower(payload)
	for _, r := range tokenOrder {
		if strings.Contains(lowered, string(r)) {
			return r, true
		}
	}
	return RoleNone, false
}

package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		want     Role
		strategy string
	}{
		{"top-level role", `{"role":"PATIENT"}`, RolePatient, "structured"},
		{"userRole", `{"userRole":"staff"}`, RoleStaff, "structured"},
		{"nested user.role", `{"user":{"role":"DOCTOR"}}`, RoleDoctor, "structured"},
		{"role beats userRole", `{"role":"admin","userRole":"patient"}`, RoleAdmin, "structured"},
		{"empty role falls through to userRole", `{"role":"","userRole":"DOCTOR"}`, RoleDoctor, "structured"},
		{"ROLE_ prefix", `{"role":"ROLE_ADMIN"}`, RoleAdmin, "structured"},
		{"plain text exact token", `Your ADMIN access is ready`, RoleAdmin, "exact-token"},
		{"malformed json", `{"role": DOCTOR`, RoleDoctor, "exact-token"},
		{"json without role field", `{"greeting":"Welcome, STAFF member"}`, RoleStaff, "exact-token"},
		{"lowercase text", `welcome back, doctor smith`, RoleDoctor, "folded-token"},
		{"mixed case text", `Hello Patient #42`, RolePatient, "folded-token"},
		{"fixed order on ambiguity", `PATIENT record viewed by ADMIN`, RolePatient, "exact-token"},
		{"exact beats folded", `patient portal for STAFF`, RoleStaff, "exact-token"},
	}

	r := NewResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, strategy, err := r.Resolve(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, role)
			assert.Equal(t, tt.strategy, strategy)
		})
	}
}

func TestResolverFailure(t *testing.T) {
	r := NewResolver()

	_, _, err := r.Resolve(`{"role":"nurse","message":"hello"}`)
	assert.True(t, errors.Is(err, ErrRoleResolution))

	_, _, err = r.Resolve("   ")
	assert.True(t, errors.Is(err, ErrMissingCredential))
}

func TestResolverIsDeterministic(t *testing.T) {
	r := NewResolver()
	payloads := []string{
		`{"user":{"role":"DOCTOR"}}`,
		`ADMIN and STAFF and doctor`,
		`nothing here`,
	}
	for _, p := range payloads {
		first, firstStrategy, firstErr := r.Resolve(p)
		for i := 0; i < 20; i++ {
			role, strategy, err := r.Resolve(p)
			assert.Equal(t, first, role)
			assert.Equal(t, firstStrategy, strategy)
			assert.Equal(t, firstErr, err)
		}
	}
}

func TestResolverSingleTokenAnyNoise(t *testing.T) {
	r := NewResolver()
	noise := []string{"", "xx ", "<html>", "{{", "\n\t", "id=42;"}
	for _, role := range AllRoles {
		for _, token := range []string{role.Token(), string(role), role.Title()} {
			for _, pre := range noise {
				for _, post := range noise {
					got, _, err := r.Resolve(pre + token + post)
					require.NoError(t, err)
					assert.Equal(t, role, got, "payload %q", pre+token+post)
				}
			}
		}
	}
}

func TestCustomStrategyChain(t *testing.T) {
	never := Strategy{Name: "never", Resolve: func(string) (Role, bool) { return RoleNone, false }}
	r := NewResolver(never, FoldedTokenStrategy)

	role, strategy, err := r.Resolve(`{"role":"ADMIN"}`)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)
	assert.Equal(t, "folded-token", strategy)
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"patient":    RolePatient,
		" DOCTOR ":   RoleDoctor,
		"Role_Staff": RoleStaff,
		"ADMIN":      RoleAdmin,
	} {
		got, ok := ParseRole(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseRole("superuser")
	assert.False(t, ok)
}

package auth

import "errors"

var (
	// ErrMissingCredential means no token or no identity payload is stored.
	ErrMissingCredential = errors.New("missing credential")
	// ErrRoleResolution means every resolver strategy came up empty.
	ErrRoleResolution = errors.New("role could not be resolved")
	// ErrIdentityInconsistency marks a stored role/identifier mismatch.
	// The reconciler corrects it; it is never shown to the user.
	ErrIdentityInconsistency = errors.New("identity inconsistency")
)

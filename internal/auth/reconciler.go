package auth

import (
	"fmt"

	"medportal/internal/logging"
	"medportal/internal/session"

	"go.uber.org/zap"
)

// Result describes the session after a reconciliation pass.
type Result struct {
	Identity Identity
	// Role is the effective role. It can be set while Identity is None when
	// the role was resolved from the payload but no identifier is known.
	Role         Role
	Changed      bool
	Conflict     bool // more than one identifier slot was populated
	ForcedLogout bool
}

// Authenticated reports whether a usable session remains.
func (r Result) Authenticated() bool { return !r.ForcedLogout && r.Role != RoleNone }

// Reconciler corrects drift between the stored role marker and the stored
// role identifiers. Running it twice without an intervening store write
// leaves the store unchanged.
type Reconciler struct {
	store            session.Store
	resolver         *Resolver
	historyNamespace string
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithHistoryNamespace makes a forced logout also drop the archived
// transcripts under ns, the way an explicit logout does.
func WithHistoryNamespace(ns string) ReconcilerOption {
	return func(r *Reconciler) { r.historyNamespace = ns }
}

// NewReconciler creates a Reconciler over store.
func NewReconciler(store session.Store, resolver *Resolver, opts ...ReconcilerOption) *Reconciler {
	if resolver == nil {
		resolver = NewResolver()
	}
	r := &Reconciler{store: store, resolver: resolver}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile reads the session, applies the correction rules and writes the
// corrected values back.
func (r *Reconciler) Reconcile() (Result, error) {
	snap := session.Read(r.store)
	var res Result

	// Without a token nothing about the role can be trusted.
	if snap.Token == "" {
		if snap.Role != "" || snap.UserRole != "" {
			if err := r.store.Delete(session.KeyRole, session.KeyUserRole); err != nil {
				return res, fmt.Errorf("clear orphaned role: %w", err)
			}
			res.Changed = true
			logging.Auth("cleared orphaned role marker (no token)")
		}
		return res, nil
	}

	stored := snap.Role
	if snap.UserRole != "" {
		if stored == "" {
			if legacy, ok := ParseRole(snap.UserRole); ok {
				stored = string(legacy)
				if err := r.store.Set(session.KeyRole, stored); err != nil {
					return res, fmt.Errorf("migrate legacy role: %w", err)
				}
				logging.Auth("migrated legacy role marker %q", snap.UserRole)
			}
		}
		if err := r.store.Delete(session.KeyUserRole); err != nil {
			return res, fmt.Errorf("remove legacy role: %w", err)
		}
		res.Changed = true
	}
	storedRole, storedOK := ParseRole(stored)

	// An identifier always beats the role marker.
	if id, conflict := SelectIdentity(snap); !id.IsNone() {
		res.Identity, res.Role, res.Conflict = id, id.Role, conflict
		if conflict {
			logging.Get(logging.CategoryAuth).Warn("%v: identifiers %v populated, keeping %s",
				ErrIdentityInconsistency, Identities(snap), id)
		}
		if stored != string(id.Role) {
			if err := r.store.Set(session.KeyRole, string(id.Role)); err != nil {
				return res, fmt.Errorf("correct role: %w", err)
			}
			res.Changed = true
			logging.Auth("role %q corrected to %s from identifier", stored, id.Role)
			logging.Audit().Record(logging.AuditIdentityCorrected,
				zap.String("from", stored), zap.String("to", string(id.Role)))
		}
		return res, nil
	}

	if storedOK {
		// A role without its identifier violates the session invariant:
		// re-derive the identifier or end the session. The payload outranks
		// the cached marker; the marker only stands when the payload names no
		// role at all.
		role := storedRole
		if resolved, _, err := r.resolver.Resolve(snap.HomeData); err == nil && resolved != storedRole {
			logging.Get(logging.CategoryAuth).Warn("%v: role marker %s contradicts identity payload (%s)",
				ErrIdentityInconsistency, storedRole, resolved)
			logging.Audit().Record(logging.AuditIdentityCorrected,
				zap.String("from", stored), zap.String("to", string(resolved)))
			role = resolved
		}
		id, ok := ExtractIdentity(snap.HomeData, role)
		if !ok {
			if err := session.ClearAll(r.store, r.historyNamespace); err != nil {
				return res, fmt.Errorf("forced logout: %w", err)
			}
			res.Changed, res.ForcedLogout = true, true
			logging.Get(logging.CategoryAuth).Warn("%v: role %s has no identifier, forcing logout",
				ErrIdentityInconsistency, role)
			logging.Audit().Record(logging.AuditForcedLogout, zap.String("role", string(role)))
			return res, nil
		}
		if err := r.writeIdentity(id, stored); err != nil {
			return res, err
		}
		res.Identity, res.Role, res.Changed = id, id.Role, true
		logging.Auth("re-derived identifier %s from identity payload", id)
		return res, nil
	}

	if stored != "" {
		// Unrecognized marker.
		if err := r.store.Delete(session.KeyRole); err != nil {
			return res, fmt.Errorf("drop unknown role: %w", err)
		}
		res.Changed = true
	}

	// No usable marker and no identifier: fall back to the payload.
	if snap.HomeData == "" {
		return res, nil
	}
	role, _, err := r.resolver.Resolve(snap.HomeData)
	if err != nil {
		return res, nil
	}
	res.Role = role
	// Only cache the role together with its identifier so the invariant holds
	// and a second pass sees nothing to do.
	if id, ok := ExtractIdentity(snap.HomeData, role); ok {
		if err := r.writeIdentity(id, ""); err != nil {
			return res, err
		}
		res.Identity, res.Changed = id, true
	}
	return res, nil
}

func (r *Reconciler) writeIdentity(id Identity, storedRole string) error {
	if err := r.store.Set(id.Role.IDKey(), id.ID); err != nil {
		return fmt.Errorf("store identifier: %w", err)
	}
	if storedRole != string(id.Role) {
		if err := r.store.Set(session.KeyRole, string(id.Role)); err != nil {
			return fmt.Errorf("store role: %w", err)
		}
	}
	return nil
}

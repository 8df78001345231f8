package portal

import (
	"fmt"
	"sync"

	"medportal/internal/auth"
	"medportal/internal/logging"
	"medportal/internal/session"

	"go.uber.org/zap"
)

// State is the guard's position in Checking -> {Admitted, Redirecting}.
type State int

const (
	Checking State = iota
	Admitted
	Redirecting
)

func (s State) String() string {
	switch s {
	case Admitted:
		return "admitted"
	case Redirecting:
		return "redirecting"
	}
	return "checking"
}

// Decision is the outcome of a guard check. Reason explains a redirect; it
// is informational and never shown to the user.
type Decision struct {
	State  State
	Route  Route
	Target Route
	Role   auth.Role
	Reason error
}

// Admitted reports whether the view may render.
func (d Decision) Admitted() bool { return d.State == Admitted }

type memoKey struct {
	route    Route
	required auth.Role
	snap     session.Snapshot
}

// Guard gates the portal routes. Decisions are memoized per route, required
// role and session contents, so repeated renders do not re-run the check.
type Guard struct {
	store      session.Store
	reconciler *auth.Reconciler

	mu       sync.Mutex
	memo     *memoKey
	decision Decision
	runs     int
}

// NewGuard creates a guard over store. A nil reconciler gets the default
// resolver chain.
func NewGuard(store session.Store, reconciler *auth.Reconciler) *Guard {
	if reconciler == nil {
		reconciler = auth.NewReconciler(store, nil)
	}
	return &Guard{store: store, reconciler: reconciler}
}

// Check decides whether the session may enter route.
func (g *Guard) Check(route Route) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	required := route.RequiredRole()
	key := memoKey{route: route, required: required, snap: session.Read(g.store)}
	if g.memo != nil && *g.memo == key {
		return g.decision
	}

	g.runs++
	d := g.evaluate(route, required)
	if d.State == Redirecting {
		logging.Routing("%s -> %s (%v)", route, d.Target, d.Reason)
		logging.Audit().Record(logging.AuditRedirect,
			zap.String("from", string(route)), zap.String("to", string(d.Target)),
			zap.String("role", string(d.Role)), zap.Error(d.Reason))
	} else {
		logging.RoutingDebug("%s admitted for %s", route, d.Role)
	}

	// Key on the post-check contents; the reconciler may have corrected them.
	key.snap = session.Read(g.store)
	g.memo, g.decision = &key, d
	return d
}

// Runs is the number of non-memoized evaluations so far.
func (g *Guard) Runs() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.runs
}

// Invalidate drops the memoized decision.
func (g *Guard) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.memo = nil
}

func (g *Guard) evaluate(route Route, required auth.Role) Decision {
	d := Decision{State: Checking, Route: route}
	if required == auth.RoleNone {
		d.State = Admitted
		return d
	}

	redirect := func(target Route, reason error) Decision {
		d.State, d.Target, d.Reason = Redirecting, target, reason
		return d
	}

	snap := session.Read(g.store)
	if snap.Token == "" || snap.HomeData == "" {
		return redirect(Login, auth.ErrMissingCredential)
	}

	res, err := g.reconciler.Reconcile()
	if err != nil {
		return redirect(Login, fmt.Errorf("reconcile session: %w", err))
	}
	if res.ForcedLogout {
		return redirect(Login, auth.ErrIdentityInconsistency)
	}
	if res.Role == auth.RoleNone {
		return redirect(Login, auth.ErrRoleResolution)
	}

	d.Role = res.Role
	if res.Role != required {
		return redirect(PortalFor(res.Role), fmt.Errorf("role %s cannot enter %s", res.Role, route))
	}
	d.State = Admitted
	return d
}

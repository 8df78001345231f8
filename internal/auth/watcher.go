package auth

import (
	"context"
	"sync"
	"time"

	"medportal/internal/logging"
	"medportal/internal/session"

	"go.uber.org/zap"
)

// DefaultWatchInterval is the polling period of the auth watcher.
const DefaultWatchInterval = time.Second

// Change is delivered to the watcher callback when the token or the role
// moved since the previous check.
type Change struct {
	PrevToken string
	PrevRole  string
	Token     string
	Role      string
	Result    Result
}

// Authenticated reports whether the session still holds a token.
func (c Change) Authenticated() bool { return c.Token != "" }

// Watcher detects externally caused session changes (another process logging
// in or out, manual edits) by comparing token and role against the values
// cached at the previous check. It polls on a ticker and, when the store is a
// session.Notifier, also checks as soon as the store signals a write.
type Watcher struct {
	store      session.Store
	reconciler *Reconciler
	interval   time.Duration
	onChange   func(Change)

	mu        sync.Mutex
	lastToken string
	lastRole  string

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewWatcher creates a watcher primed with the current token and role.
func NewWatcher(store session.Store, reconciler *Reconciler, interval time.Duration, onChange func(Change)) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	w := &Watcher{
		store:      store,
		reconciler: reconciler,
		interval:   interval,
		onChange:   onChange,
	}
	w.lastToken = session.Value(store, session.KeyAuthToken)
	w.lastRole = session.Value(store, session.KeyRole)
	return w
}

// Interval returns the polling period.
func (w *Watcher) Interval() time.Duration { return w.interval }

// Check runs one consistency pass and reports whether a change was handled.
// The callback runs after the watcher lock is released, so it may call Check.
func (w *Watcher) Check() bool {
	change, changed := w.check()
	if !changed {
		return false
	}
	if w.onChange != nil {
		w.onChange(change)
	}
	return true
}

func (w *Watcher) check() (Change, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	token := session.Value(w.store, session.KeyAuthToken)
	role := session.Value(w.store, session.KeyRole)
	if token == w.lastToken && role == w.lastRole {
		return Change{}, false
	}

	logging.Watcher("session changed (token changed: %v, role %q -> %q)",
		token != w.lastToken, w.lastRole, role)

	res, err := w.reconciler.Reconcile()
	if err != nil {
		logging.Get(logging.CategoryWatcher).Error("reconcile after change failed: %v", err)
	}

	change := Change{
		PrevToken: w.lastToken,
		PrevRole:  w.lastRole,
		Token:     session.Value(w.store, session.KeyAuthToken),
		Role:      session.Value(w.store, session.KeyRole),
		Result:    res,
	}
	// Cache post-reconciliation values so the correction itself is not
	// reported as another change.
	w.lastToken, w.lastRole = change.Token, change.Role

	logging.Audit().Record(logging.AuditRoleChanged,
		zap.String("from", change.PrevRole), zap.String("to", change.Role),
		zap.Bool("authenticated", change.Authenticated()))
	return change, true
}

// Start runs the watcher loop until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	w.runMu.Lock()
	defer w.runMu.Unlock()
	if w.running {
		select {
		case <-w.done:
			// The previous loop ended with its parent context.
			w.cancel()
			w.running = false
		default:
			return
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	var notify <-chan struct{}
	var unsubscribe func()
	if n, ok := w.store.(session.Notifier); ok {
		notify, unsubscribe = n.Subscribe()
	}

	go w.run(ctx, notify, unsubscribe)
}

func (w *Watcher) run(ctx context.Context, notify <-chan struct{}, unsubscribe func()) {
	defer close(w.done)
	if unsubscribe != nil {
		defer unsubscribe()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logging.WatcherDebug("watcher started (interval %v, notifications %v)", w.interval, notify != nil)
	for {
		select {
		case <-ctx.Done():
			logging.WatcherDebug("watcher stopped")
			return
		case <-ticker.C:
			w.Check()
		case <-notify:
			w.Check()
		}
	}
}

// Stop cancels the loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.runMu.Lock()
	defer w.runMu.Unlock()
	if !w.running {
		return
	}
	w.cancel()
	<-w.done
	w.running = false
}

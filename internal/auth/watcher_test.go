package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"medportal/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *changeRecorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) snapshot() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func newTestWatcher(store session.Store, interval time.Duration) (*Watcher, *changeRecorder) {
	rec := &changeRecorder{}
	return NewWatcher(store, NewReconciler(store, nil), interval, rec.record), rec
}

func TestWatcherCheck_NoChange(t *testing.T) {
	store := session.NewMemoryStore(map[string]string{
		session.KeyAuthToken: "tok",
		session.KeyRole:      "doctor",
		session.KeyDoctorID:  "1",
	})
	w, rec := newTestWatcher(store, 0)

	assert.Equal(t, DefaultWatchInterval, w.Interval())
	assert.False(t, w.Check())
	assert.Empty(t, rec.snapshot())
}

func TestWatcherCheck_ExternalLogin(t *testing.T) {
	store := session.NewMemoryStore(nil)
	w, rec := newTestWatcher(store, time.Hour)

	require.NoError(t, store.Set(session.KeyAuthToken, "tok"))
	require.NoError(t, store.Set(session.KeyDoctorID, "7"))

	assert.True(t, w.Check())
	changes := rec.snapshot()
	require.Len(t, changes, 1)
	assert.Equal(t, "", changes[0].PrevToken)
	assert.Equal(t, "tok", changes[0].Token)
	assert.Equal(t, "doctor", changes[0].Role, "role reported after correction")
	assert.True(t, changes[0].Authenticated())

	// The correction written by the reconciler is not a second change.
	assert.False(t, w.Check())
	assert.Len(t, rec.snapshot(), 1)
}

func TestWatcherCheck_ExternalLogout(t *testing.T) {
	store := session.NewMemoryStore(map[string]string{
		session.KeyAuthToken: "tok",
		session.KeyRole:      "patient",
		session.KeyPatientID: "2",
	})
	w, rec := newTestWatcher(store, time.Hour)

	require.NoError(t, store.Delete(session.KeyAuthToken))

	assert.True(t, w.Check())
	changes := rec.snapshot()
	require.Len(t, changes, 1)
	assert.False(t, changes[0].Authenticated())
	assert.Equal(t, "patient", changes[0].PrevRole)
	assert.Equal(t, "", changes[0].Role)
	assert.False(t, session.Has(store, session.KeyRole))
}

func TestWatcherStart_ReactsToNotifications(t *testing.T) {
	store := session.NewMemoryStore(nil)
	w, rec := newTestWatcher(store, time.Hour)

	w.Start(context.Background())
	defer w.Stop()

	// Identifier first; the token write is what the watcher reacts to.
	require.NoError(t, store.Set(session.KeyAdminID, "1"))
	require.NoError(t, store.Set(session.KeyAuthToken, "tok"))

	assert.Eventually(t, func() bool {
		for _, c := range rec.snapshot() {
			if c.Role == "admin" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherStart_Polls(t *testing.T) {
	// A plain Store without notifications is only picked up by the ticker.
	store := plainStore{session.NewMemoryStore(nil)}
	w, rec := newTestWatcher(store, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	require.NoError(t, store.Set(session.KeyAuthToken, "tok"))
	assert.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	w.Stop()
	w.Stop()
}

// plainStore hides the Notifier implementation of the wrapped store.
type plainStore struct{ s *session.MemoryStore }

func (p plainStore) Get(key string) (string, bool) { return p.s.Get(key) }
func (p plainStore) Set(key, value string) error   { return p.s.Set(key, value) }
func (p plainStore) Delete(keys ...string) error   { return p.s.Delete(keys...) }
func (p plainStore) Keys(prefix string) []string   { return p.s.Keys(prefix) }

func TestWatcherCheck_CallbackMayCheckAgain(t *testing.T) {
	store := session.NewMemoryStore(nil)
	var w *Watcher
	var nested []bool
	w = NewWatcher(store, NewReconciler(store, nil), time.Hour, func(Change) {
		nested = append(nested, w.Check())
	})

	require.NoError(t, store.Set(session.KeyAuthToken, "tok"))

	result := make(chan bool, 1)
	go func() { result <- w.Check() }()
	select {
	case changed := <-result:
		assert.True(t, changed)
	case <-time.After(2 * time.Second):
		t.Fatal("Check did not return while its callback re-checked")
	}
	assert.Equal(t, []bool{false}, nested, "the nested pass sees the cached values")
}

func TestWatcherStart_RestartsAfterParentCancel(t *testing.T) {
	store := session.NewMemoryStore(nil)
	w, rec := newTestWatcher(store, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	firstDone := w.done
	cancel()
	<-firstDone

	w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, store.Set(session.KeyAuthToken, "tok"))
	assert.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 2*time.Second, 10*time.Millisecond)
}

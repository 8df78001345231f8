package transcript

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"medportal/internal/api"
	"medportal/internal/auth"
	"medportal/internal/session"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	records []api.HistoryRecord
	err     error
	calls   atomic.Int32
	release chan struct{}
}

func (s *stubSource) ChatHistory(ctx context.Context, token string) ([]api.HistoryRecord, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	return s.records, s.err
}

func TestFetch_Failures(t *testing.T) {
	tests := map[string]*stubSource{
		"error": {err: errors.New("boom")},
		"empty": {},
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewFetcher(src, nil).Fetch(context.Background(), "tok")
			assert.True(t, errors.Is(err, ErrHistoryUnavailable))
		})
	}

	_, err := NewFetcher(&stubSource{}, nil).Fetch(context.Background(), "")
	assert.True(t, errors.Is(err, ErrHistoryUnavailable))
	assert.True(t, errors.Is(err, auth.ErrMissingCredential))
}

func TestFetch_SharesConcurrentRequests(t *testing.T) {
	src := &stubSource{
		records: []api.HistoryRecord{{"request": "hi"}},
		release: make(chan struct{}),
	}
	f := NewFetcher(src, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			records, err := f.Fetch(context.Background(), "tok")
			assert.NoError(t, err)
			assert.Len(t, records, 1)
		}()
	}
	assert.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.LessOrEqual(t, src.calls.Load(), int32(5))
	assert.GreaterOrEqual(t, src.calls.Load(), int32(1))
}

func TestFetch_Cancelled(t *testing.T) {
	src := &stubSource{release: make(chan struct{})}
	f := NewFetcher(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, "tok")
		done <- err
	}()
	assert.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	close(src.release)
	// Let the shared call finish before goleak looks.
	assert.Eventually(t, func() bool {
		_, err := f.Fetch(context.Background(), "tok")
		return errors.Is(err, ErrHistoryUnavailable)
	}, time.Second, 5*time.Millisecond)
}

func TestLoad_FallsBackToGreeting(t *testing.T) {
	f := NewFetcher(&stubSource{err: api.ErrNetwork}, NewMerger(clock))
	got, err := f.Load(context.Background(), "tok", auth.RolePatient)
	require.NoError(t, err)
	if diff := cmp.Diff(GreetingTranscript(auth.RolePatient, fixedNow), got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	got, err = f.Load(context.Background(), "", auth.RoleNone)
	require.NoError(t, err)
	assert.Equal(t, Greeting(auth.RoleNone), got[0].Text)
}

func TestLoad_MergesOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"request":"hi","response":"hello","timestamp":"2024-05-01T10:00:00Z"}]`)
	}))
	defer srv.Close()

	hc := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	f := NewFetcher(api.New(srv.URL, 5*time.Second, api.WithHTTPClient(hc)), NewMerger(clock))
	got, err := f.Load(context.Background(), "tok", auth.RoleDoctor)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, SenderSystem, got[2].Sender)
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFetcher(&stubSource{}, nil).Load(ctx, "tok", auth.RoleStaff)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchive(t *testing.T) {
	store := session.NewMemoryStore(nil)
	a := NewArchive(store, "chat_history")

	assert.Equal(t, "chat_history:anonymous", a.Key(auth.NoIdentity))
	assert.Equal(t, "chat_history:doctor:7", a.Key(auth.DoctorIdentity("7")))

	empty, err := a.Load(auth.DoctorIdentity("7"))
	require.NoError(t, err)
	assert.Nil(t, empty)

	tr := GreetingTranscript(auth.RoleDoctor, fixedNow)
	require.NoError(t, a.Save(auth.DoctorIdentity("7"), tr))
	got, err := a.Load(auth.DoctorIdentity("7"))
	require.NoError(t, err)
	if diff := cmp.Diff(tr, got); diff != "" {
		t.Errorf("archive round trip (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"chat_history:doctor:7"}, a.Keys())
}

package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// storeFactories lets every contract test run against both implementations.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore(nil) },
		"sqlite": func() Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "session.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStoreContract(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()

			_, ok := s.Get(KeyAuthToken)
			assert.False(t, ok)

			require.NoError(t, s.Set(KeyAuthToken, "tok"))
			require.NoError(t, s.Set(KeyRole, "doctor"))
			v, ok := s.Get(KeyAuthToken)
			assert.True(t, ok)
			assert.Equal(t, "tok", v)

			require.NoError(t, s.Set(KeyRole, "patient"))
			assert.Equal(t, "patient", Value(s, KeyRole), "set overwrites")

			require.NoError(t, s.Set(KeyUsername, ""))
			assert.False(t, Has(s, KeyUsername), "empty value reads as absent")

			require.NoError(t, s.Delete(KeyAuthToken, KeyRole, "missing"))
			assert.False(t, Has(s, KeyAuthToken))
			assert.False(t, Has(s, KeyRole))
		})
	}
}

func TestKeysPrefix(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			require.NoError(t, s.Set("chat_history:patient:7", "[]"))
			require.NoError(t, s.Set("chat_history:anonymous", "[]"))
			require.NoError(t, s.Set("chatXhistory:other", "[]")) // '_' must not act as a wildcard
			require.NoError(t, s.Set(KeyAuthToken, "tok"))

			assert.Equal(t,
				[]string{"chat_history:anonymous", "chat_history:patient:7"},
				s.Keys("chat_history:"))
		})
	}
}

func TestClearAll(t *testing.T) {
	s := NewMemoryStore(map[string]string{
		KeyAuthToken:           "tok",
		KeyHomeData:            `{"role":"ADMIN"}`,
		KeyAdminID:             "1",
		"chat_history:admin:1": "[]",
		"unrelated":            "keep",
	})

	require.NoError(t, ClearAll(s, "chat_history"))

	assert.Equal(t, map[string]string{"unrelated": "keep"}, s.Dump())
}

func TestReadSnapshot(t *testing.T) {
	s := NewMemoryStore(map[string]string{
		KeyAuthToken: " tok ",
		KeyRole:      "doctor",
		KeyDoctorID:  "12",
	})
	snap := Read(s)
	assert.Equal(t, "tok", snap.Token)
	assert.Equal(t, "doctor", snap.Role)
	assert.Equal(t, "12", snap.DoctorID)
	assert.Empty(t, snap.PatientID)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyAuthToken, "persisted"))
	require.NoError(t, s.Close())

	s2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, "persisted", Value(s2, KeyAuthToken))
}

func TestMemoryStoreNotifies(t *testing.T) {
	s := NewMemoryStore(nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Set(KeyRole, "staff"))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected change notification")
	}
}

func TestSQLiteNotifiesOnExternalWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	watched, err := OpenSQLite(path, WithFileWatch(true))
	require.NoError(t, err)
	defer watched.Close()

	ch, cancel := watched.Subscribe()
	defer cancel()

	// A second handle plays the part of another process.
	other, err := OpenSQLite(path)
	require.NoError(t, err)
	defer other.Close()
	require.NoError(t, other.Set(KeyAuthToken, "from-elsewhere"))

	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("expected notification for write from another handle")
	}
	assert.Equal(t, "from-elsewhere", Value(watched, KeyAuthToken))
}

func TestSQLiteCloseWithoutSubscribe(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "session.db"), WithFileWatch(true))
	require.NoError(t, err)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close(), "close is idempotent")
}

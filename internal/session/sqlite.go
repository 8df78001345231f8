package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"medportal/internal/logging"

	"github.com/fsnotify/fsnotify"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists the session in a SQLite database so it survives
// restarts and is shared by every medportal process of the same user.
// Writes made by other processes are observed through fsnotify on the
// database files.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string

	watchFiles bool

	subsMu sync.Mutex
	subs   map[int]chan struct{}
	nextID int

	watchOnce sync.Once
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithFileWatch enables fsnotify-based change notification.
func WithFileWatch(enabled bool) SQLiteOption {
	return func(s *SQLiteStore) { s.watchFiles = enabled }
}

// OpenSQLite opens (creating if needed) the session database at path.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "OpenSQLite")
	defer timer.Stop()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS session_kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		dbPath: path,
		subs:   make(map[int]chan struct{}),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	logging.Store("Session store ready at %s (file watch: %v)", path, s.watchFiles)
	return s, nil
}

func (s *SQLiteStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM session_kv WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			logging.Get(logging.CategoryStore).Error("Get %s failed: %v", key, err)
		}
		return "", false
	}
	if value == "" {
		return "", false
	}
	return value, true
}

func (s *SQLiteStore) Set(key, value string) error {
	s.mu.Lock()
	_, err := s.db.Exec(
		`INSERT INTO session_kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	s.mu.Unlock()
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Set %s failed: %v", key, err)
		return fmt.Errorf("set %s: %w", key, err)
	}
	logging.StoreDebug("Set %s (%d bytes)", key, len(value))
	s.publish()
	return nil
}

func (s *SQLiteStore) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	s.mu.Lock()
	tx, err := s.db.Begin()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("begin delete: %w", err)
	}
	for _, k := range keys {
		if _, err := tx.Exec("DELETE FROM session_kv WHERE key = ?", k); err != nil {
			tx.Rollback()
			s.mu.Unlock()
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	err = tx.Commit()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	logging.StoreDebug("Deleted %d keys", len(keys))
	s.publish()
	return nil
}

func (s *SQLiteStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT key FROM session_kv WHERE key LIKE ? ESCAPE '\' ORDER BY key`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Keys %q failed: %v", prefix, err)
		return nil
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			continue
		}
		out = append(out, k)
	}
	return out
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Subscribe implements Notifier. The first subscription starts the file
// watcher when file watching is enabled.
func (s *SQLiteStore) Subscribe() (<-chan struct{}, func()) {
	if s.watchFiles {
		s.watchOnce.Do(s.startFileWatch)
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *SQLiteStore) publish() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *SQLiteStore) startFileWatch() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("File watch unavailable, relying on polling: %v", err)
		close(s.doneCh)
		return
	}
	if err := w.Add(filepath.Dir(s.dbPath)); err != nil {
		logging.Get(logging.CategoryStore).Warn("Cannot watch %s: %v", filepath.Dir(s.dbPath), err)
		w.Close()
		close(s.doneCh)
		return
	}
	s.watcher = w
	go s.runFileWatch()
}

func (s *SQLiteStore) runFileWatch() {
	defer close(s.doneCh)
	base := filepath.Base(s.dbPath)

	for {
		select {
		case <-s.stopCh:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			// db, db-wal and db-journal all signal a possible change.
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			logging.StoreDebug("File event %s on %s", event.Op, event.Name)
			s.publish()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryStore).Error("File watch error: %v", err)
		}
	}
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.dbPath }

// Close stops the file watcher and closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.watchOnce.Do(func() { close(s.doneCh) }) // never started
		<-s.doneCh
		if s.watcher != nil {
			s.watcher.Close()
		}
		err = s.db.Close()
	})
	return err
}

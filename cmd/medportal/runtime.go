package main

import (
	"fmt"

	"medportal/internal/account"
	"medportal/internal/api"
	"medportal/internal/auth"
	"medportal/internal/chat"
	"medportal/internal/config"
	"medportal/internal/logging"
	"medportal/internal/portal"
	"medportal/internal/session"
	"medportal/internal/transcript"
	"medportal/internal/ux"

	"go.uber.org/zap"
)

// runtime wires the components every command shares. Components are built on
// first use so that `store get` does not need a reachable backend.
type runtime struct {
	cfg *config.Config

	store      *session.SQLiteStore
	client     *api.Client
	reconciler *auth.Reconciler
	prefs      *ux.PreferencesManager
}

func (r *runtime) Store() (*session.SQLiteStore, error) {
	if r.store != nil {
		return r.store, nil
	}
	s, err := session.OpenSQLite(r.cfg.Session.DatabasePath, session.WithFileWatch(r.cfg.Session.WatchFiles))
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	r.store = s
	return s, nil
}

func (r *runtime) Client() *api.Client {
	if r.client == nil {
		r.client = api.New(r.cfg.API.BaseURL, r.cfg.GetAPITimeout())
	}
	return r.client
}

func (r *runtime) Reconciler() (*auth.Reconciler, error) {
	if r.reconciler != nil {
		return r.reconciler, nil
	}
	s, err := r.Store()
	if err != nil {
		return nil, err
	}
	r.reconciler = auth.NewReconciler(s, auth.NewResolver(),
		auth.WithHistoryNamespace(r.cfg.Chat.HistoryNamespace))
	return r.reconciler, nil
}

func (r *runtime) Guard() (*portal.Guard, error) {
	rec, err := r.Reconciler()
	if err != nil {
		return nil, err
	}
	return portal.NewGuard(r.store, rec), nil
}

func (r *runtime) Accounts() (*account.Service, error) {
	rec, err := r.Reconciler()
	if err != nil {
		return nil, err
	}
	return account.NewService(r.Client(), r.store, rec, r.cfg.Chat.HistoryNamespace), nil
}

func (r *runtime) Archive() (*transcript.Archive, error) {
	s, err := r.Store()
	if err != nil {
		return nil, err
	}
	return transcript.NewArchive(s, r.cfg.Chat.HistoryNamespace), nil
}

func (r *runtime) Fetcher() *transcript.Fetcher {
	return transcript.NewFetcher(r.Client(), nil)
}

func (r *runtime) Chat() (*chat.Session, error) {
	archive, err := r.Archive()
	if err != nil {
		return nil, err
	}
	return chat.New(r.store, r.Client(), r.Fetcher(), chat.Options{
		ContextWindow: r.cfg.Chat.ContextWindow,
		Archive:       archive,
	}), nil
}

func (r *runtime) Watcher(onChange func(auth.Change)) (*auth.Watcher, error) {
	rec, err := r.Reconciler()
	if err != nil {
		return nil, err
	}
	return auth.NewWatcher(r.store, rec, r.cfg.GetWatchInterval(), onChange), nil
}

// Prefs loads local preferences, creating the file on first use.
func (r *runtime) Prefs() (*ux.PreferencesManager, error) {
	if r.prefs != nil {
		return r.prefs, nil
	}
	dir := config.DataDir()
	res, err := ux.EnsurePreferences(dir)
	if err != nil {
		return nil, err
	}
	if res.Reset {
		logging.Get(logging.CategoryBoot).Warn("unreadable preferences replaced with defaults")
	} else if res.Created {
		logging.Boot("created preferences in %s", dir)
	}
	pm := ux.NewPreferencesManager(dir)
	if err := pm.Load(); err != nil {
		return nil, err
	}
	r.prefs = pm
	return pm, nil
}

// Close releases the session store.
func (r *runtime) Close() {
	if r.store != nil {
		if err := r.store.Close(); err != nil && logger != nil {
			logger.Warn("close session store", zap.Error(err))
		}
		r.store = nil
	}
}

package main

import (
	"context"
	"fmt"

	"medportal/cmd/medportal/ui"
	"medportal/internal/logging"
	"medportal/internal/ux"

	tea "github.com/charmbracelet/bubbletea"
)

var startPath string

func init() {
	rootCmd.Flags().StringVar(&startPath, "open", "/", "Route to open first, e.g. /patient-portal")
}

func runInteractive(ctx context.Context) error {
	store, err := rt.Store()
	if err != nil {
		return err
	}
	rec, err := rt.Reconciler()
	if err != nil {
		return err
	}
	guard, err := rt.Guard()
	if err != nil {
		return err
	}
	accounts, err := rt.Accounts()
	if err != nil {
		return err
	}
	session, err := rt.Chat()
	if err != nil {
		return err
	}

	prefs, err := rt.Prefs()
	if err != nil {
		return err
	}
	if err := ux.RecordSessionStart(prefs); err != nil {
		logging.Get(logging.CategoryBoot).Warn("save preferences: %v", err)
	}

	logging.Boot("interactive session on %s", store.Path())
	m := ui.New(ui.Deps{
		Store:         store,
		Reconciler:    rec,
		Guard:         guard,
		Accounts:      accounts,
		Chat:          session,
		Backend:       rt.Client(),
		WatchInterval: rt.cfg.GetWatchInterval(),
		Prefs:         prefs,
	}, ui.NewStyles(ui.ThemeFor(prefs.Get().Theme)), startPath)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if ctx != nil {
		opts = append(opts, tea.WithContext(ctx))
	}
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return fmt.Errorf("interactive interface: %w", err)
	}
	return nil
}

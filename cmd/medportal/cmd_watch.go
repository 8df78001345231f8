package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"medportal/internal/auth"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// watchCmd follows session changes made by other processes
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow session changes until interrupted",
	Long: `Runs the auth watcher against the stored session and prints every
login, logout or role correction, whichever process caused it.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := rt.Watcher(func(c auth.Change) {
		logger.Info("session changed",
			zap.String("from", c.PrevRole), zap.String("to", c.Role),
			zap.Bool("authenticated", c.Authenticated()))
		switch {
		case !c.Authenticated():
			fmt.Println("signed out")
		case c.Result.ForcedLogout:
			fmt.Println("session was inconsistent; signed out")
		default:
			fmt.Printf("signed in as %s\n", c.Result.Identity)
		}
	})
	if err != nil {
		return err
	}

	fmt.Printf("Watching %s every %s (Ctrl+C to stop)\n", rt.store.Path(), w.Interval())
	w.Start(ctx)
	<-ctx.Done()
	w.Stop()
	return nil
}

package main

import (
	"fmt"
	"os"

	"medportal/internal/config"
	"medportal/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	sessionDB  string

	// Logger
	logger *zap.Logger

	// rt is opened lazily by commands that need the session or the backend.
	rt *runtime
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "medportal",
	Short: "medportal - patient, doctor, staff and admin portal client",
	Long: `medportal is a terminal client for the clinic portal.

It keeps one persisted session per machine profile, shared by every running
medportal process, and routes each user to the portal of their role.

Run without arguments to start the interactive interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if sessionDB != "" {
			cfg.Session.DatabasePath = sessionDB
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := logging.Initialize(config.DataDir(), logging.Options{
			DebugMode:  cfg.Logging.DebugMode || verbose,
			Level:      cfg.Logging.Level,
			JSONFormat: cfg.Logging.JSONFormat,
			Categories: cfg.Logging.Categories,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "logging disabled: %v\n", err)
		}
		rt = &runtime{cfg: cfg}

		// The interactive interface owns the terminal; no process logger.
		if cmd == cmd.Root() {
			logger = zap.NewNop()
			return nil
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if rt != nil {
			rt.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "Config file")
	rootCmd.PersistentFlags().StringVar(&sessionDB, "session-db", "", "Session database (default from config)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(prefsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/me/folio/internal/config"
	"github.com/me/folio/internal/logging"
	"github.com/me/folio/internal/store"
	"github.com/spf13/cobra"
)

var (
	flagDB        string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the folio CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "folio",
		Short: "Folio: portfolio site with a session-gated admin",
		Long:  "Folio serves a portfolio site and its admin pages, and manages the content database.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (or FOLIO_DB, default ~/.folio/folio.db)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newAdminCmd(),
		newSeedCmd(),
	)

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// resolveDBPath picks the database path: --db, then FOLIO_DB, then
// ~/.folio/folio.db. The parent directory is created when needed.
func resolveDBPath(cfg config.ServerConfig) (string, error) {
	dbPath := cfg.DBPath
	if flagDB != "" {
		dbPath = flagDB
	}
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dbPath = filepath.Join(home, ".folio", "folio.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return "", fmt.Errorf("create db directory: %w", err)
		}
	}
	return dbPath, nil
}

// openStore opens the content database and brings its schema up to date.
func openStore(ctx context.Context, cfg config.ServerConfig) (*store.SQLiteStore, error) {
	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready", "path", dbPath)
	return st, nil
}
